package session

// WebSocket 会话入口：一条连接对应一个会话控制器。服务端下发
// announce / gain 帧，客户端上行 ack / snooze / dismiss / repeat /
// volume 帧。

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/websocket"
	"go.uber.org/zap"

	"CogitoRadio/internal/audio"
	"CogitoRadio/internal/broadcast"
	"CogitoRadio/internal/model"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/pkg/metrics"
)

// defaultClientGain 客户端未上报音量前假定的增益
const defaultClientGain = 1.0

// serverFrame 服务端下行帧
type serverFrame struct {
	Type        string                  `json:"type"`
	SessionID   string                  `json:"session_id,omitempty"`
	Text        string                  `json:"text,omitempty"`
	Level       *float64                `json:"level,omitempty"`
	Reminder    *model.ReminderSnapshot `json:"reminder,omitempty"`
	TriggeredAt *time.Time              `json:"triggered_at,omitempty"`
	LatencyMs   *int64                  `json:"avg_latency_ms,omitempty"`
}

// clientFrame 客户端上行帧
type clientFrame struct {
	Type          string   `json:"type"`
	Action        string   `json:"action,omitempty"`
	SnoozeMinutes *int     `json:"snooze_minutes,omitempty"`
	ActingUserID  *string  `json:"acting_user_id,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`
	Level         *float64 `json:"level,omitempty"`
}

// wsConn 串行化连接写入：控制器和读循环都会下发帧
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// wsGain 远端增益：SetGain 下发 gain 帧，本地记录客户端当前电平。
// 客户端通过 volume 帧上报用户手动调整，保证恢复到正确的电平。
type wsGain struct {
	w *wsConn

	mu    sync.Mutex
	level float64
}

func newWSGain(w *wsConn) *wsGain {
	return &wsGain{w: w, level: defaultClientGain}
}

func (g *wsGain) SetGain(level float64) error {
	if err := g.w.writeJSON(serverFrame{Type: "gain", Level: &level}); err != nil {
		return err
	}
	g.mu.Lock()
	g.level = level
	g.mu.Unlock()
	return nil
}

func (g *wsGain) Gain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

// report 客户端上报的电平，不回写帧
func (g *wsGain) report(level float64) {
	g.mu.Lock()
	g.level = level
	g.mu.Unlock()
}

// wsAnnouncer 把播报下发为 announce 帧
type wsAnnouncer struct {
	w *wsConn
}

func (a *wsAnnouncer) Announce(msg model.TriggerMessage, text string) error {
	return a.w.writeJSON(serverFrame{
		Type:        "announce",
		Text:        text,
		Reminder:    &msg.Reminder,
		TriggeredAt: &msg.TriggeredAt,
	})
}

// Manager 负责升级 WebSocket 连接并装配会话控制器
type Manager struct {
	hub  *broadcast.Hub
	acks Acker

	duckLevel   float64
	transition  time.Duration
	repeatEvery time.Duration
	latencySize int

	upgrader websocket.HertzUpgrader
}

type ManagerOption func(*Manager)

func WithDuckLevel(level float64) ManagerOption {
	return func(m *Manager) { m.duckLevel = level }
}

func WithDuckTransition(t time.Duration) ManagerOption {
	return func(m *Manager) { m.transition = t }
}

func WithManagerRepeatInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.repeatEvery = d }
}

func WithLatencyWindowSize(n int) ManagerOption {
	return func(m *Manager) { m.latencySize = n }
}

func NewManager(hub *broadcast.Hub, acks Acker, opts ...ManagerOption) *Manager {
	m := &Manager{
		hub:         hub,
		acks:        acks,
		duckLevel:   audio.DefaultDuckLevel,
		transition:  audio.DefaultTransition,
		repeatEvery: DefaultRepeatInterval,
		latencySize: defaultLatencyWindow,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle 升级连接并阻塞到会话结束
func (m *Manager) Handle(ctx context.Context, c *app.RequestContext) error {
	return m.upgrader.Upgrade(c, func(conn *websocket.Conn) {
		m.serve(ctx, conn)
	})
}

func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) {
	sessionID := uuid.NewString()
	lg := logger.Logger.With(zap.String("session_id", sessionID))

	triggers := m.hub.Subscribe(sessionID)
	defer m.hub.Unsubscribe(sessionID)

	metrics.SessionOpened(ctx)
	defer metrics.SessionClosed(ctx)

	w := &wsConn{conn: conn}
	gain := newWSGain(w)
	ducking := audio.NewDucking(gain,
		audio.WithDuckLevel(m.duckLevel),
		audio.WithTransition(m.transition),
	)
	ctrl := NewController(sessionID, triggers, ducking, &wsAnnouncer{w: w}, m.acks,
		WithRepeatInterval(m.repeatEvery),
		WithLatencyWindow(NewLatencyWindow(m.latencySize)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		ctrl.Run(runCtx)
		close(done)
	}()

	if err := w.writeJSON(serverFrame{Type: "hello", SessionID: sessionID}); err != nil {
		lg.Warn("Failed to send hello frame", zap.Error(err))
	}

	lg.Info("Session connected")
	m.readLoop(conn, w, ctrl, gain, lg)
	lg.Info("Session disconnected")

	cancel()
	<-done
}

// readLoop 解析客户端帧直到连接断开
func (m *Manager) readLoop(conn *websocket.Conn, w *wsConn, ctrl *Controller, gain *wsGain, lg *zap.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lg.Warn("Session read failed", zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			lg.Warn("Malformed client frame", zap.Error(err))
			continue
		}

		switch frame.Type {
		case "ack":
			switch model.AckAction(frame.Action) {
			case model.AckActionConfirmed:
				ctrl.Confirm(frame.ActingUserID)
			case model.AckActionSnoozed:
				ctrl.Snooze(frame.SnoozeMinutes, frame.ActingUserID)
			default:
				lg.Warn("Unknown ack action", zap.String("action", frame.Action))
			}
		case "dismiss":
			ctrl.Dismiss()
		case "repeat":
			enabled := frame.Enabled == nil || *frame.Enabled
			ctrl.SetRepeat(enabled)
		case "volume":
			if frame.Level != nil {
				gain.report(*frame.Level)
			}
		case "latency":
			avg := ctrl.AverageLatencyMs()
			if err := w.writeJSON(serverFrame{Type: "latency", LatencyMs: &avg}); err != nil {
				lg.Warn("Failed to send latency frame", zap.Error(err))
			}
		default:
			lg.Warn("Unknown client frame type", zap.String("type", frame.Type))
		}
	}
}
