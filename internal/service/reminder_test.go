package service

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"CogitoRadio/internal/model"
	cerrors "CogitoRadio/pkg/errors"
	"CogitoRadio/pkg/snowflake"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	// :memory: 数据库按连接隔离，收紧到单连接
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

func initSnowflake(t *testing.T) {
	t.Helper()
	if err := snowflake.Init(1, 1); err != nil {
		t.Fatalf("failed to init snowflake: %v", err)
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func mustCreate(t *testing.T, svc *ReminderService, req model.CreateReminderRequest) *model.Reminder {
	t.Helper()
	r, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}
	return r
}

func TestFireAdvancesDailySchedule(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	scheduledAt := now.Add(-10 * time.Second)
	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: scheduledAt,
		Recurrence:  model.RecurrenceDaily,
	})

	msg, err := svc.Fire(context.Background(), r)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if msg.Reminder.ReminderID != r.ID {
		t.Fatalf("trigger message for wrong reminder: %d", msg.Reminder.ReminderID)
	}
	if !msg.TriggeredAt.Equal(now) {
		t.Fatalf("expected triggered_at %v, got %v", now, msg.TriggeredAt)
	}

	got, err := svc.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := scheduledAt.Add(24 * time.Hour)
	if !got.ScheduledAt.Equal(want) {
		t.Fatalf("expected next schedule %v, got %v", want, got.ScheduledAt)
	}
	if !got.Active {
		t.Fatalf("daily reminder must stay active after firing")
	}

	logs, err := svc.QueryLogs(context.Background(), r.ID, 10)
	if err != nil {
		t.Fatalf("query logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 trigger log, got %d", len(logs))
	}
	if logs[0].AcknowledgedAt != nil || logs[0].Action != nil {
		t.Fatalf("trigger log must start unacknowledged")
	}
	if logs[0].LogCode != msg.LogCode {
		t.Fatalf("log code mismatch: %d vs %d", logs[0].LogCode, msg.LogCode)
	}
}

func TestFireDeactivatesOneShot(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "doctor appointment",
		ScheduledAt: now.Add(-time.Minute),
		Recurrence:  model.RecurrenceNone,
	})

	if _, err := svc.Fire(context.Background(), r); err != nil {
		t.Fatalf("fire: %v", err)
	}

	got, err := svc.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active {
		t.Fatalf("one-shot reminder must deactivate after firing")
	}

	// 已停用的提醒不可再触发
	if _, err := svc.Fire(context.Background(), got); err != cerrors.ReminderInactive {
		t.Fatalf("expected ReminderInactive, got %v", err)
	}

	due, err := svc.FindDue(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("deactivated reminder must not appear in due scan")
	}
}

func TestRecordAckComputesLatency(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 15, 500e6, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: now,
		Recurrence:  model.RecurrenceDaily,
	})

	triggeredAt := now.Add(-15500 * time.Millisecond)
	log, err := svc.RecordAck(context.Background(), r.ID, model.AckRequest{
		Action:      model.AckActionConfirmed,
		TriggeredAt: triggeredAt,
	})
	if err != nil {
		t.Fatalf("record ack: %v", err)
	}
	if log.AckLatencyMs == nil || *log.AckLatencyMs != 15500 {
		t.Fatalf("expected latency 15500ms, got %v", log.AckLatencyMs)
	}
	if log.Action == nil || *log.Action != model.AckActionConfirmed {
		t.Fatalf("expected confirmed action")
	}
}

func TestRecordAckClampsNegativeLatency(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: now,
	})

	// 客户端时钟超前：triggered_at 在确认时刻之后
	log, err := svc.RecordAck(context.Background(), r.ID, model.AckRequest{
		Action:      model.AckActionConfirmed,
		TriggeredAt: now.Add(30 * time.Second),
	})
	if err != nil {
		t.Fatalf("record ack: %v", err)
	}
	if log.AckLatencyMs == nil || *log.AckLatencyMs != 0 {
		t.Fatalf("expected clamped latency 0, got %v", log.AckLatencyMs)
	}
}

func TestRecordAckRejectsUnknownAction(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)
	svc := NewReminderService(db)

	if _, err := svc.RecordAck(context.Background(), 1, model.AckRequest{Action: "later"}); err != cerrors.AckActionInvalid {
		t.Fatalf("expected AckActionInvalid, got %v", err)
	}
}

func TestRecordAckRejectsOutOfRangeSnoozeWithoutSideEffects(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: now.Add(time.Hour),
		Recurrence:  model.RecurrenceDaily,
	})

	bad := 25 * 60
	_, err := svc.RecordAck(context.Background(), r.ID, model.AckRequest{
		Action:        model.AckActionSnoozed,
		SnoozeMinutes: &bad,
		TriggeredAt:   now.Add(-time.Minute),
	})
	if err != cerrors.SnoozeOutOfRange {
		t.Fatalf("expected SnoozeOutOfRange, got %v", err)
	}

	// 被拒绝的回执不能留下任何痕迹：无日志行，日程不变
	var count int64
	if err := db.Model(&model.ReminderLog{}).Where("reminder_id = ?", r.ID).Count(&count).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected ack must not append a log row, got %d", count)
	}

	got, err := svc.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ScheduledAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("rejected ack must not move the schedule, got %v", got.ScheduledAt)
	}
}

func TestSnoozeAckReanchorsSchedule(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	// 原计划在一小时前，snooze 必须以当前时刻为锚，而不是原计划时间
	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: now.Add(-time.Hour),
		Recurrence:  model.RecurrenceDaily,
	})

	minutes := 10
	if _, err := svc.RecordAck(context.Background(), r.ID, model.AckRequest{
		Action:        model.AckActionSnoozed,
		SnoozeMinutes: &minutes,
		TriggeredAt:   now.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("record ack: %v", err)
	}

	got, err := svc.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := now.Add(10 * time.Minute)
	if !got.ScheduledAt.Equal(want) {
		t.Fatalf("expected snoozed schedule %v, got %v", want, got.ScheduledAt)
	}
	if !got.Active {
		t.Fatalf("snoozed reminder must stay active")
	}
	if got.Recurrence != model.RecurrenceDaily {
		t.Fatalf("snooze must not overwrite recurrence, got %s", got.Recurrence)
	}
}

func TestDailyAckStats(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: now,
		Recurrence:  model.RecurrenceDaily,
	})

	// 两天、每天两次确认
	for _, in := range []struct {
		ackedAt time.Time
		latency int64
	}{
		{now.Add(-26 * time.Hour), 4000},
		{now.Add(-25 * time.Hour), 6000},
		{now.Add(-2 * time.Hour), 1000},
		{now.Add(-1 * time.Hour), 3000},
	} {
		ackedAt := in.ackedAt
		daySvc := NewReminderService(db, WithClock(fixedClock(ackedAt)))
		lat := in.latency
		if _, err := daySvc.RecordAck(context.Background(), r.ID, model.AckRequest{
			Action:      model.AckActionConfirmed,
			TriggeredAt: ackedAt.Add(-time.Duration(lat) * time.Millisecond),
			AckTimeMs:   &lat,
		}); err != nil {
			t.Fatalf("record ack: %v", err)
		}
	}

	stats, err := svc.DailyAckStats(context.Background(), 7)
	if err != nil {
		t.Fatalf("daily stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d", len(stats))
	}
	if stats[0].Day.After(stats[1].Day) {
		t.Fatalf("stats must be sorted by day")
	}
	if stats[0].AvgLatencyMs != 5000 {
		t.Fatalf("expected day one avg 5000ms, got %v", stats[0].AvgLatencyMs)
	}
	if stats[1].AvgLatencyMs != 2000 || stats[1].AckCount != 2 {
		t.Fatalf("expected day two avg 2000ms over 2 acks, got %+v", stats[1])
	}
}

func TestFindPendingEscalations(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: now.Add(-2 * time.Hour),
		Recurrence:  model.RecurrenceDaily,
	})

	// 一次 40 分钟前的触发，无人确认
	fireSvc := NewReminderService(db, WithClock(fixedClock(now.Add(-40*time.Minute))))
	staleMsg, err := fireSvc.Fire(context.Background(), r)
	if err != nil {
		t.Fatalf("fire stale: %v", err)
	}

	// 一次 5 分钟前的触发，尚在等待窗口内
	r2, err := svc.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	recentSvc := NewReminderService(db, WithClock(fixedClock(now.Add(-5*time.Minute))))
	if _, err := recentSvc.Fire(context.Background(), r2); err != nil {
		t.Fatalf("fire recent: %v", err)
	}

	cutoff := now.Add(-30 * time.Minute)
	pending, err := svc.FindPendingEscalations(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if len(pending) != 1 || pending[0].LogCode != staleMsg.LogCode {
		t.Fatalf("expected only the stale trigger pending, got %+v", pending)
	}

	// 升级后不再入选
	if err := svc.MarkEscalated(context.Background(), staleMsg.LogCode); err != nil {
		t.Fatalf("mark escalated: %v", err)
	}
	pending, err = svc.FindPendingEscalations(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("escalated trigger must not be selected again")
	}
}

func TestFindPendingEscalationsSkipsAcked(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "take medication",
		ScheduledAt: now.Add(-2 * time.Hour),
		Recurrence:  model.RecurrenceDaily,
	})

	fireSvc := NewReminderService(db, WithClock(fixedClock(now.Add(-40*time.Minute))))
	msg, err := fireSvc.Fire(context.Background(), r)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}

	// 确认回执是追加的新行，按 triggered_at 关联到这次触发
	if _, err := svc.RecordAck(context.Background(), r.ID, model.AckRequest{
		Action:      model.AckActionConfirmed,
		TriggeredAt: msg.TriggeredAt,
	}); err != nil {
		t.Fatalf("record ack: %v", err)
	}

	pending, err := svc.FindPendingEscalations(context.Background(), now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("acknowledged trigger must not escalate, got %+v", pending)
	}
}

func TestUpdateAndDeactivate(t *testing.T) {
	initSnowflake(t)
	db := newTestDB(t)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewReminderService(db, WithClock(fixedClock(now)))

	r := mustCreate(t, svc, model.CreateReminderRequest{
		ProfileID:   "p1",
		Label:       "drink water",
		ScheduledAt: now.Add(time.Hour),
		Recurrence:  model.RecurrenceHourly,
	})

	label := "drink a glass of water"
	mode := model.RecurrenceDaily
	updated, err := svc.Update(context.Background(), r.ID, model.UpdateReminderRequest{
		Label:      &label,
		Recurrence: &mode,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Label != label || updated.Recurrence != model.RecurrenceDaily {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := svc.Deactivate(context.Background(), r.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err := svc.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get after deactivate: %v", err)
	}
	if got.Active {
		t.Fatalf("expected inactive after deactivate")
	}

	if err := svc.Deactivate(context.Background(), 99999); err != cerrors.ReminderNotFound {
		t.Fatalf("expected ReminderNotFound, got %v", err)
	}
}
