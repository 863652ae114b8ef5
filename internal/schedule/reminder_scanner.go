package schedule

// 提醒扫描器：定期扫描到期提醒，触发并广播；同时把长时间无人确认的
// 触发升级为照护者告警。

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"CogitoRadio/internal/model"
	"CogitoRadio/internal/service"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/pkg/metrics"
	"CogitoRadio/pkg/snowflake"
)

const (
	// DefaultLookahead 吸收调度抖动：60 秒粒度的 tick 不能漏掉 now+5s 到期的提醒
	DefaultLookahead = 15 * time.Second

	// DefaultEscalateAfter 触发后无人确认多久升级照护者告警
	DefaultEscalateAfter = 30 * time.Minute

	// reminderLockTTL 单个提醒的处理锁时长，防止相邻 tick 重复处理
	reminderLockTTL = 30 * time.Second
)

// TriggerPublisher 触发消息的出口（生产环境为 RabbitMQ fanout）
type TriggerPublisher interface {
	PublishTrigger(ctx context.Context, msg model.TriggerMessage) error
	PublishEscalation(ctx context.Context, msg model.EscalationMessage) error
}

// Locker 单提醒互斥锁（生产环境为 Redis SetNX）
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type ReminderScanner struct {
	svc           *service.ReminderService
	pub           TriggerPublisher
	locks         Locker
	logger        *zap.Logger
	lookahead     time.Duration
	escalateAfter time.Duration
	now           func() time.Time

	scanRunning  bool
	scanMu       sync.Mutex
	lastScanTime time.Time
}

type ScannerOption func(*ReminderScanner)

func WithLookahead(d time.Duration) ScannerOption {
	return func(s *ReminderScanner) { s.lookahead = d }
}

func WithEscalateAfter(d time.Duration) ScannerOption {
	return func(s *ReminderScanner) { s.escalateAfter = d }
}

// WithScannerClock 注入时钟，测试用
func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *ReminderScanner) { s.now = now }
}

func NewReminderScanner(svc *service.ReminderService, pub TriggerPublisher, locks Locker, opts ...ScannerOption) *ReminderScanner {
	lg := logger.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &ReminderScanner{
		svc:           svc,
		pub:           pub,
		locks:         locks,
		logger:        lg,
		lookahead:     DefaultLookahead,
		escalateAfter: DefaultEscalateAfter,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 周期性扫描直到 ctx 结束
func (s *ReminderScanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Reminder scanner started",
		zap.Duration("interval", interval),
		zap.Duration("lookahead", s.lookahead),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scanner stopped")
			return
		case <-ticker.C:
			scanCtx, cancel := context.WithTimeout(ctx, interval)
			if err := s.ScanOnce(scanCtx); err != nil {
				s.logger.Error("Reminder scan failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// ScanOnce 执行一次扫描。上一轮还在进行时直接跳过（tick 永不并发）。
// 单个提醒的错误被隔离：记日志、继续扫描其余提醒。
func (s *ReminderScanner) ScanOnce(ctx context.Context) error {
	s.scanMu.Lock()
	if s.scanRunning {
		s.scanMu.Unlock()
		s.logger.Info("Previous scan still running, skipping tick")
		return nil
	}
	s.scanRunning = true
	s.scanMu.Unlock()

	defer func() {
		s.scanMu.Lock()
		s.scanRunning = false
		s.scanMu.Unlock()
	}()

	startTime := s.now()
	s.lastScanTime = startTime

	horizon := startTime.Add(s.lookahead)
	due, err := s.svc.FindDue(ctx, horizon)
	if err != nil {
		return fmt.Errorf("failed to find due reminders: %w", err)
	}

	errCount := 0
	for i := range due {
		if err := s.processDueReminder(ctx, &due[i]); err != nil {
			errCount++
			s.logger.Error("Failed to process due reminder",
				zap.Int64("reminder_id", due[i].ID),
				zap.String("label", due[i].Label),
				zap.Error(err),
			)
		}
	}

	escalated, err := s.scanEscalations(ctx, startTime)
	if err != nil {
		s.logger.Error("Escalation scan failed", zap.Error(err))
	}

	duration := s.now().Sub(startTime)
	metrics.RecordScan(ctx, duration.Seconds(), errCount)

	if len(due) > 0 || escalated > 0 {
		s.logger.Info("Reminder scan completed",
			zap.Int("due_count", len(due)),
			zap.Int("error_count", errCount),
			zap.Int("escalated", escalated),
			zap.Duration("duration", duration),
		)
	}

	return nil
}

// processDueReminder 处理单个到期提醒：加锁、触发（落库）、广播。
// 锁保证同一提醒不会被两个重叠的扫描同时处理。
func (s *ReminderScanner) processDueReminder(ctx context.Context, reminder *model.Reminder) error {
	lockKey := fmt.Sprintf("reminder:%d", reminder.ID)
	locked, err := s.locks.TryLock(ctx, lockKey, reminderLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire reminder lock: %w", err)
	}
	if !locked {
		s.logger.Info("Reminder locked by another scan, skipping",
			zap.Int64("reminder_id", reminder.ID),
		)
		return nil
	}
	defer func() {
		if err := s.locks.Unlock(ctx, lockKey); err != nil {
			s.logger.Warn("Failed to release reminder lock",
				zap.Int64("reminder_id", reminder.ID),
				zap.Error(err),
			)
		}
	}()

	msg, err := s.svc.Fire(ctx, reminder)
	if err != nil {
		return err
	}

	if err := s.pub.PublishTrigger(ctx, *msg); err != nil {
		// 事务已提交：这次触发广播失败即丢失，由客户端重连轮询兜底
		return fmt.Errorf("trigger committed but publish failed: %w", err)
	}

	return nil
}

// scanEscalations 把触发后超时未确认的记录升级为照护者告警。
// 先发布再落 escalated_at：崩溃窗口内可能重复投递，
// worker 侧以 log_code 唯一约束去重。
func (s *ReminderScanner) scanEscalations(ctx context.Context, now time.Time) (int, error) {
	if s.escalateAfter <= 0 {
		return 0, nil
	}

	cutoff := now.Add(-s.escalateAfter)
	pending, err := s.svc.FindPendingEscalations(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for i := range pending {
		ok, err := s.escalateOne(ctx, &pending[i])
		if err != nil {
			s.logger.Error("Failed to escalate unacknowledged trigger",
				zap.Int64("log_code", pending[i].LogCode),
				zap.Error(err),
			)
			continue
		}
		if ok {
			metrics.RecordEscalation(ctx)
			escalated++
		}
	}

	return escalated, nil
}

// escalateOne 把一条未确认记录升级为照护者告警：加锁、发布、落档。
// 锁保证多个扫描器实例并发时同一条记录只升级一次。
func (s *ReminderScanner) escalateOne(ctx context.Context, p *model.ReminderLog) (bool, error) {
	lockKey := fmt.Sprintf("escalation:%d", p.LogCode)
	locked, err := s.locks.TryLock(ctx, lockKey, reminderLockTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire escalation lock: %w", err)
	}
	if !locked {
		return false, nil
	}
	defer func() {
		if err := s.locks.Unlock(ctx, lockKey); err != nil {
			s.logger.Warn("Failed to release escalation lock",
				zap.Int64("log_code", p.LogCode),
				zap.Error(err),
			)
		}
	}()

	reminder, err := s.svc.Get(ctx, p.ReminderID)
	if err != nil {
		return false, fmt.Errorf("failed to load reminder: %w", err)
	}

	msgID, err := snowflake.NextID()
	if err != nil {
		return false, fmt.Errorf("failed to generate message ID: %w", err)
	}

	msg := model.EscalationMessage{
		MessageID:   fmt.Sprintf("reminder_escalation_%d", msgID),
		LogCode:     p.LogCode,
		ReminderID:  p.ReminderID,
		ProfileID:   reminder.ProfileID,
		Label:       reminder.Label,
		TriggeredAt: p.TriggeredAt,
	}

	if err := s.pub.PublishEscalation(ctx, msg); err != nil {
		return false, fmt.Errorf("failed to publish escalation: %w", err)
	}

	if err := s.svc.MarkEscalated(ctx, p.LogCode); err != nil {
		// 已发出但未落档，下个 tick 会重复投递，worker 侧按 log_code 去重
		s.logger.Warn("Escalation published but marking failed",
			zap.Int64("log_code", p.LogCode),
			zap.Error(err),
		)
	}

	return true, nil
}
