package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"CogitoRadio/internal/model"
)

type captureSink struct {
	alerts []model.CaregiverAlert
	fail   bool
}

func (s *captureSink) Notify(ctx context.Context, alert *model.CaregiverAlert) error {
	if s.fail {
		return errors.New("gateway down")
	}
	s.alerts = append(s.alerts, *alert)
	return nil
}

func escalation(logCode int64) model.EscalationMessage {
	return model.EscalationMessage{
		MessageID:   "reminder_escalation_1",
		LogCode:     logCode,
		ReminderID:  7,
		ProfileID:   "p1",
		Label:       "take medication",
		TriggeredAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleEscalationRecordsAndNotifies(t *testing.T) {
	db := newTestDB(t)
	sink := &captureSink{}
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc := NewAlertService(db, WithNotifySink(sink), WithAlertClock(func() time.Time { return now }))

	alerted, err := svc.HandleEscalation(context.Background(), escalation(42))
	if err != nil {
		t.Fatalf("handle escalation: %v", err)
	}
	if !alerted {
		t.Fatalf("first escalation must alert")
	}
	if len(sink.alerts) != 1 || sink.alerts[0].LogCode != 42 {
		t.Fatalf("sink not notified: %+v", sink.alerts)
	}

	var stored model.CaregiverAlert
	if err := db.Where("log_code = ?", 42).First(&stored).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if stored.Status != model.CaregiverAlertStatusSent {
		t.Fatalf("expected sent status, got %s", stored.Status)
	}
	if stored.SentAt == nil || !stored.SentAt.Equal(now) {
		t.Fatalf("expected sent_at %v, got %v", now, stored.SentAt)
	}
}

func TestHandleEscalationIsIdempotentPerLogCode(t *testing.T) {
	db := newTestDB(t)
	sink := &captureSink{}
	svc := NewAlertService(db, WithNotifySink(sink))

	if _, err := svc.HandleEscalation(context.Background(), escalation(42)); err != nil {
		t.Fatalf("first: %v", err)
	}

	// 重复投递：唯一约束挡下，不再通知
	alerted, err := svc.HandleEscalation(context.Background(), escalation(42))
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if alerted {
		t.Fatalf("duplicate escalation must not alert again")
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("expected single notification, got %d", len(sink.alerts))
	}
}

func TestHandleEscalationMarksFailedDelivery(t *testing.T) {
	db := newTestDB(t)
	svc := NewAlertService(db, WithNotifySink(&captureSink{fail: true}))

	alerted, err := svc.HandleEscalation(context.Background(), escalation(43))
	if err != nil {
		t.Fatalf("handle escalation: %v", err)
	}
	if !alerted {
		t.Fatalf("alert row must still be recorded")
	}

	var stored model.CaregiverAlert
	if err := db.Where("log_code = ?", 43).First(&stored).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if stored.Status != model.CaregiverAlertStatusFailed {
		t.Fatalf("expected failed status, got %s", stored.Status)
	}
}

func TestListAlerts(t *testing.T) {
	db := newTestDB(t)
	svc := NewAlertService(db, WithNotifySink(&captureSink{}))

	for i := int64(1); i <= 3; i++ {
		msg := escalation(i)
		msg.TriggeredAt = msg.TriggeredAt.Add(time.Duration(i) * time.Minute)
		if _, err := svc.HandleEscalation(context.Background(), msg); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	alerts, err := svc.ListAlerts(context.Background(), "p1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected limit 2, got %d", len(alerts))
	}
	if alerts[0].TriggeredAt.Before(alerts[1].TriggeredAt) {
		t.Fatalf("alerts must be newest first")
	}

	none, err := svc.ListAlerts(context.Background(), "other", 10)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no alerts for other profile")
	}
}
