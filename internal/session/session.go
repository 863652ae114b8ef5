package session

// 会话控制器：每条设备连接一个。单 goroutine 事件循环串行处理
// 触发、用户指令和重复播报定时器，状态无需另加锁。

import (
	"context"
	"time"

	"go.uber.org/zap"

	"CogitoRadio/internal/audio"
	"CogitoRadio/internal/model"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/pkg/metrics"
)

// DefaultRepeatInterval 激活状态下重复播报的间隔
const DefaultRepeatInterval = 5 * time.Minute

// commandBuffer 指令通道缓冲，避免读循环被事件循环短暂阻塞
const commandBuffer = 8

// Announcer 把播报推送到设备端的出口
type Announcer interface {
	Announce(msg model.TriggerMessage, text string) error
}

// Acker 记录确认回执，由 service 层实现
type Acker interface {
	RecordAck(ctx context.Context, reminderID int64, req model.AckRequest) (*model.ReminderLog, error)
}

type commandKind int

const (
	cmdConfirm commandKind = iota
	cmdSnooze
	cmdDismiss
	cmdRepeatOn
	cmdRepeatOff
)

type command struct {
	kind          commandKind
	snoozeMinutes *int
	actingUserID  *string
}

// Controller 会话状态机。Idle 与 Active 两态，Active 期间压低电台
// 增益并等待确认，确认或撤销后回到 Idle。
type Controller struct {
	id        string
	triggers  <-chan model.TriggerMessage
	commands  chan command
	ducking   *audio.Ducking
	announcer Announcer
	acks      Acker
	latency   *LatencyWindow
	logger    *zap.Logger

	repeatEvery time.Duration
	now         func() time.Time

	// 以下仅在事件循环内访问
	active        *model.TriggerMessage
	repeatEnabled bool
	repeatTimer   *time.Timer
}

type ControllerOption func(*Controller)

func WithRepeatInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.repeatEvery = d }
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func WithLatencyWindow(w *LatencyWindow) ControllerOption {
	return func(c *Controller) { c.latency = w }
}

func NewController(id string, triggers <-chan model.TriggerMessage, ducking *audio.Ducking, announcer Announcer, acks Acker, opts ...ControllerOption) *Controller {
	lg := logger.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	c := &Controller{
		id:          id,
		triggers:    triggers,
		commands:    make(chan command, commandBuffer),
		ducking:     ducking,
		announcer:   announcer,
		acks:        acks,
		latency:     NewLatencyWindow(defaultLatencyWindow),
		logger:      lg.With(zap.String("session_id", id)),
		repeatEvery: DefaultRepeatInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Confirm 用户确认当前提醒
func (c *Controller) Confirm(actingUserID *string) {
	c.enqueue(command{kind: cmdConfirm, actingUserID: actingUserID})
}

// Snooze 用户小睡当前提醒
func (c *Controller) Snooze(minutes *int, actingUserID *string) {
	c.enqueue(command{kind: cmdSnooze, snoozeMinutes: minutes, actingUserID: actingUserID})
}

// Dismiss 撤下当前提醒但不记录回执
func (c *Controller) Dismiss() {
	c.enqueue(command{kind: cmdDismiss})
}

// SetRepeat 开关重复播报
func (c *Controller) SetRepeat(enabled bool) {
	if enabled {
		c.enqueue(command{kind: cmdRepeatOn})
	} else {
		c.enqueue(command{kind: cmdRepeatOff})
	}
}

// AverageLatencyMs 本会话滚动窗口内的平均确认延迟
func (c *Controller) AverageLatencyMs() int64 {
	return c.latency.Average()
}

func (c *Controller) enqueue(cmd command) {
	select {
	case c.commands <- cmd:
	default:
		c.logger.Warn("session command dropped, queue full",
			zap.Int("kind", int(cmd.kind)))
	}
}

// Run 事件循环，连接关闭或 ctx 取消时返回
func (c *Controller) Run(ctx context.Context) {
	defer c.exitActive()

	for {
		// 定时器未启动时 repeatC 为 nil，对应分支永不就绪
		var repeatC <-chan time.Time
		if c.repeatTimer != nil {
			repeatC = c.repeatTimer.C
		}

		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.triggers:
			if !ok {
				return
			}
			c.handleTrigger(ctx, msg)
		case cmd := <-c.commands:
			c.handleCommand(ctx, cmd)
		case <-repeatC:
			c.handleRepeat()
		}
	}
}

func (c *Controller) handleTrigger(ctx context.Context, msg model.TriggerMessage) {
	if c.active != nil {
		if c.active.Reminder.ReminderID == msg.Reminder.ReminderID {
			// 同一提醒重复触达，保留首次 triggered_at，延迟以它为锚
			c.logger.Info("duplicate trigger for active reminder, ignored",
				zap.Int64("reminder_id", msg.Reminder.ReminderID))
			return
		}
		// 新提醒顶替旧提醒，旧的保持未确认，交给升级链路
		c.logger.Warn("active reminder superseded",
			zap.Int64("old_reminder_id", c.active.Reminder.ReminderID),
			zap.Int64("new_reminder_id", msg.Reminder.ReminderID))
	} else {
		if err := c.ducking.Duck(); err != nil {
			c.logger.Error("failed to duck audio", zap.Error(err))
		}
	}

	c.active = &msg
	c.announce(msg, false)

	if c.repeatEnabled {
		c.resetRepeatTimer()
	}
}

func (c *Controller) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdRepeatOn:
		c.repeatEnabled = true
		if c.active != nil {
			c.resetRepeatTimer()
		}
	case cmdRepeatOff:
		c.repeatEnabled = false
		c.stopRepeatTimer()
	case cmdDismiss:
		if c.active == nil {
			return
		}
		c.logger.Info("reminder dismissed without ack",
			zap.Int64("reminder_id", c.active.Reminder.ReminderID))
		c.exitActive()
	case cmdConfirm, cmdSnooze:
		if c.active == nil {
			c.logger.Warn("ack command with no active reminder")
			return
		}
		c.acknowledge(ctx, cmd)
	}
}

func (c *Controller) acknowledge(ctx context.Context, cmd command) {
	action := model.AckActionConfirmed
	if cmd.kind == cmdSnooze {
		action = model.AckActionSnoozed
	}

	ackTimeMs := c.now().Sub(c.active.TriggeredAt).Milliseconds()
	req := model.AckRequest{
		Action:        action,
		SnoozeMinutes: cmd.snoozeMinutes,
		AckTimeMs:     &ackTimeMs,
		TriggeredAt:   c.active.TriggeredAt,
		ActingUserID:  cmd.actingUserID,
	}

	log, err := c.acks.RecordAck(ctx, c.active.Reminder.ReminderID, req)
	if err != nil {
		c.logger.Error("failed to record ack",
			zap.Int64("reminder_id", c.active.Reminder.ReminderID),
			zap.String("action", string(action)),
			zap.Error(err))
		// 回执落库失败不把会话卡在 Active，设备侧先恢复
	} else if log.AckLatencyMs != nil {
		c.latency.Record(*log.AckLatencyMs)
	}

	c.logger.Info("reminder acknowledged",
		zap.Int64("reminder_id", c.active.Reminder.ReminderID),
		zap.String("action", string(action)),
		zap.Int64("latency_ms", ackTimeMs))

	c.exitActive()
}

func (c *Controller) handleRepeat() {
	if c.active == nil {
		return
	}
	c.announce(*c.active, true)
	c.resetRepeatTimer()
}

func (c *Controller) announce(msg model.TriggerMessage, repeat bool) {
	text := BuildAnnouncement(msg.Reminder)
	if err := c.announcer.Announce(msg, text); err != nil {
		c.logger.Error("failed to announce reminder",
			zap.Int64("reminder_id", msg.Reminder.ReminderID),
			zap.Error(err))
		return
	}
	metrics.RecordAnnouncement(context.Background(), repeat)
}

// exitActive 回到 Idle：停掉定时器并恢复增益
func (c *Controller) exitActive() {
	c.stopRepeatTimer()
	if c.active == nil {
		return
	}
	c.active = nil
	if err := c.ducking.Restore(); err != nil {
		c.logger.Error("failed to restore audio gain", zap.Error(err))
	}
}

func (c *Controller) resetRepeatTimer() {
	c.stopRepeatTimer()
	c.repeatTimer = time.NewTimer(c.repeatEvery)
}

func (c *Controller) stopRepeatTimer() {
	if c.repeatTimer != nil {
		c.repeatTimer.Stop()
		c.repeatTimer = nil
	}
}
