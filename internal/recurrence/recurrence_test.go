package recurrence

import (
	"testing"
	"time"

	"CogitoRadio/internal/model"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextDueTime_Daily(t *testing.T) {
	current := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	next, ok := NextDueTime(current, model.RecurrenceDaily, 0, nil)
	if !ok {
		t.Fatal("daily recurrence should have a next occurrence")
	}
	if want := current.Add(24 * time.Hour); !next.Equal(want) {
		t.Fatalf("daily: got %v, want %v", next, want)
	}
}

func TestNextDueTime_Hourly(t *testing.T) {
	current := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	next, ok := NextDueTime(current, model.RecurrenceHourly, 0, nil)
	if !ok {
		t.Fatal("hourly recurrence should have a next occurrence")
	}
	if want := current.Add(60 * time.Minute); !next.Equal(want) {
		t.Fatalf("hourly: got %v, want %v", next, want)
	}
}

func TestNextDueTime_None(t *testing.T) {
	current := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	if _, ok := NextDueTime(current, model.RecurrenceNone, 15, nil); ok {
		t.Fatal("none recurrence must be terminal")
	}
}

func TestNextDueTime_UnknownModeIsTerminal(t *testing.T) {
	if _, ok := NextDueTime(time.Now(), model.RecurrenceMode("weekly"), 0, nil); ok {
		t.Fatal("unknown recurrence mode must be terminal")
	}
}

func TestNextDueTime_SnoozeAnchorsToNow(t *testing.T) {
	// snooze 从计算时刻顺延，而不是从原计划时间顺延
	current := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	ackMoment := time.Date(2026, 3, 10, 9, 47, 12, 0, time.UTC)

	next, ok := NextDueTime(current, model.RecurrenceSnooze, 10, fixedNow(ackMoment))
	if !ok {
		t.Fatal("snooze recurrence should have a next occurrence")
	}
	if want := ackMoment.Add(10 * time.Minute); !next.Equal(want) {
		t.Fatalf("snooze: got %v, want %v", next, want)
	}
}

func TestNextDueTime_SnoozeDefaultsMinutes(t *testing.T) {
	ackMoment := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	next, ok := NextDueTime(time.Time{}, model.RecurrenceSnooze, 0, fixedNow(ackMoment))
	if !ok {
		t.Fatal("snooze recurrence should have a next occurrence")
	}
	if want := ackMoment.Add(DefaultSnoozeMinutes * time.Minute); !next.Equal(want) {
		t.Fatalf("snooze default: got %v, want %v", next, want)
	}
}

func TestNextDueTime_NonSnoozeIgnoresClock(t *testing.T) {
	// 除 snooze 外，结果只依赖 (current, recurrence)
	current := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	a, _ := NextDueTime(current, model.RecurrenceDaily, 0, fixedNow(time.Unix(0, 0)))
	b, _ := NextDueTime(current, model.RecurrenceDaily, 99, fixedNow(time.Unix(1e9, 0)))
	if !a.Equal(b) {
		t.Fatalf("daily result must be clock-independent: %v vs %v", a, b)
	}
}
