package broadcast

import (
	"testing"

	"CogitoRadio/internal/model"
)

func msg(reminderID int64) model.TriggerMessage {
	return model.TriggerMessage{
		MessageID: "m1",
		LogCode:   reminderID * 10,
		Reminder:  model.ReminderSnapshot{ReminderID: reminderID, Label: "take medication"},
	}
}

func TestPublishFansOutToAllSessions(t *testing.T) {
	h := NewHub()

	a := h.Subscribe("a")
	b := h.Subscribe("b")

	if delivered := h.Publish(msg(1)); delivered != 2 {
		t.Fatalf("expected delivery to 2 sessions, got %d", delivered)
	}

	got := <-a
	if got.Reminder.ReminderID != 1 {
		t.Fatalf("session a got wrong message: %+v", got)
	}
	got = <-b
	if got.Reminder.ReminderID != 1 {
		t.Fatalf("session b got wrong message: %+v", got)
	}
}

func TestPublishWithNoSubscribersIsNotAnError(t *testing.T) {
	h := NewHub()
	if delivered := h.Publish(msg(1)); delivered != 0 {
		t.Fatalf("expected 0 deliveries, got %d", delivered)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe("a")
	h.Unsubscribe("a")

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestResubscribeReplacesChannel(t *testing.T) {
	h := NewHub()
	old := h.Subscribe("a")
	fresh := h.Subscribe("a")

	if _, ok := <-old; ok {
		t.Fatalf("old channel must be closed on resubscribe")
	}

	if delivered := h.Publish(msg(2)); delivered != 1 {
		t.Fatalf("expected delivery to 1 session, got %d", delivered)
	}
	got := <-fresh
	if got.Reminder.ReminderID != 2 {
		t.Fatalf("fresh channel got wrong message")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	h.Subscribe("slow")

	// 填满缓冲后继续发布不能阻塞
	for i := 0; i < subscriberBuffer; i++ {
		if delivered := h.Publish(msg(int64(i + 1))); delivered != 1 {
			t.Fatalf("expected buffered delivery")
		}
	}
	if delivered := h.Publish(msg(99)); delivered != 0 {
		t.Fatalf("full buffer must drop, got %d deliveries", delivered)
	}
}
