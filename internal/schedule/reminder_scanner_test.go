package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"CogitoRadio/internal/model"
	"CogitoRadio/internal/service"
	"CogitoRadio/pkg/snowflake"
)

type fakePublisher struct {
	mu          sync.Mutex
	triggers    []model.TriggerMessage
	escalations []model.EscalationMessage
	failTrigger bool
}

func (p *fakePublisher) PublishTrigger(ctx context.Context, msg model.TriggerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTrigger {
		return errors.New("broker unavailable")
	}
	p.triggers = append(p.triggers, msg)
	return nil
}

func (p *fakePublisher) PublishEscalation(ctx context.Context, msg model.EscalationMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escalations = append(p.escalations, msg)
	return nil
}

func (p *fakePublisher) triggerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.triggers)
}

// memLocker 进程内锁，语义对齐 Redis SetNX
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
	deny bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deny || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

func newScannerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Medication{},
		&model.Reminder{},
		&model.ReminderLog{},
		&model.CaregiverAlert{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedReminder(t *testing.T, svc *service.ReminderService, label string, at time.Time, mode model.RecurrenceMode) *model.Reminder {
	t.Helper()
	r, err := svc.Create(context.Background(), model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       label,
		ScheduledAt: at,
		Recurrence:  mode,
	})
	if err != nil {
		t.Fatalf("failed to seed reminder: %v", err)
	}
	return r
}

func TestScanOnceFiresDueReminders(t *testing.T) {
	if err := snowflake.Init(1, 1); err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	db := newScannerTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := service.NewReminderService(db, service.WithClock(clock))

	seedReminder(t, svc, "take medication", now.Add(-10*time.Second), model.RecurrenceDaily)
	seedReminder(t, svc, "due soon", now.Add(10*time.Second), model.RecurrenceNone) // lookahead 内
	seedReminder(t, svc, "tomorrow", now.Add(20*time.Hour), model.RecurrenceDaily)  // 未到期

	pub := &fakePublisher{}
	scanner := NewReminderScanner(svc, pub, newMemLocker(),
		WithLookahead(15*time.Second),
		WithScannerClock(clock),
	)

	if err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if got := pub.triggerCount(); got != 2 {
		t.Fatalf("expected 2 triggers, got %d", got)
	}

	// 下一轮不应重复触发：日程已全部顺延或停用
	if err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if got := pub.triggerCount(); got != 2 {
		t.Fatalf("reminders re-fired on second scan, got %d triggers", got)
	}
}

func TestScanSkipsLockedReminder(t *testing.T) {
	if err := snowflake.Init(1, 1); err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	db := newScannerTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := service.NewReminderService(db, service.WithClock(clock))

	r := seedReminder(t, svc, "take medication", now.Add(-time.Minute), model.RecurrenceDaily)

	pub := &fakePublisher{}
	locks := newMemLocker()
	locks.deny = true

	scanner := NewReminderScanner(svc, pub, locks, WithScannerClock(clock))
	if err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.triggers) != 0 {
		t.Fatalf("locked reminder must not fire")
	}

	// 锁被占不算错误，扫描后日志也不应有记录
	var count int64
	if err := db.Model(&model.ReminderLog{}).Where("reminder_id = ?", r.ID).Count(&count).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if count != 0 {
		t.Fatalf("locked reminder must not be fired to the log")
	}
}

func TestScanIsolatesPublishFailure(t *testing.T) {
	if err := snowflake.Init(1, 1); err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	db := newScannerTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := service.NewReminderService(db, service.WithClock(clock))

	seedReminder(t, svc, "take medication", now.Add(-time.Minute), model.RecurrenceDaily)

	pub := &fakePublisher{failTrigger: true}
	scanner := NewReminderScanner(svc, pub, newMemLocker(), WithScannerClock(clock))

	// 发布失败不让 ScanOnce 整体报错，错误被隔离在单个提醒
	if err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan must isolate per-reminder errors, got %v", err)
	}

	// 事务已提交：日程顺延，这次触发即丢失（不会重复投递）
	var reminders []model.Reminder
	if err := db.Find(&reminders).Error; err != nil {
		t.Fatalf("load reminders: %v", err)
	}
	want := now.Add(-time.Minute).Add(24 * time.Hour)
	if !reminders[0].ScheduledAt.Equal(want) {
		t.Fatalf("schedule must advance even when publish fails, got %v", reminders[0].ScheduledAt)
	}
}

func TestScanEscalatesUnacked(t *testing.T) {
	if err := snowflake.Init(1, 1); err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	db := newScannerTestDB(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := service.NewReminderService(db, service.WithClock(func() time.Time { return now }))

	r := seedReminder(t, svc, "take medication", now.Add(-2*time.Hour), model.RecurrenceDaily)

	// 40 分钟前触发过一次，无人确认
	fireSvc := service.NewReminderService(db, service.WithClock(func() time.Time { return now.Add(-40 * time.Minute) }))
	msg, err := fireSvc.Fire(context.Background(), r)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}

	pub := &fakePublisher{}
	scanner := NewReminderScanner(svc, pub, newMemLocker(),
		WithEscalateAfter(30*time.Minute),
		WithScannerClock(func() time.Time { return now }),
	)

	if err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	pub.mu.Lock()
	if len(pub.escalations) != 1 {
		t.Fatalf("expected 1 escalation, got %d", len(pub.escalations))
	}
	esc := pub.escalations[0]
	pub.mu.Unlock()

	if esc.LogCode != msg.LogCode || esc.ReminderID != r.ID || esc.ProfileID != "p1" {
		t.Fatalf("escalation carries wrong identity: %+v", esc)
	}

	// 已升级的触发不会二次投递
	if err := scanner.ScanOnce(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.escalations) != 1 {
		t.Fatalf("escalation must not repeat, got %d", len(pub.escalations))
	}
}
