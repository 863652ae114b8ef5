package session

import "testing"

func TestLatencyWindowAverage(t *testing.T) {
	w := NewLatencyWindow(3)

	if w.Average() != 0 {
		t.Fatalf("empty window average must be 0")
	}

	w.Record(1000)
	w.Record(2000)
	w.Record(3000)
	if got := w.Average(); got != 2000 {
		t.Fatalf("expected average 2000, got %d", got)
	}
}

func TestLatencyWindowEvictsOldest(t *testing.T) {
	w := NewLatencyWindow(3)
	for _, s := range []int64{10000, 1000, 2000, 3000} {
		w.Record(s)
	}

	// 最旧的 10000 被淘汰
	if got := w.Average(); got != 2000 {
		t.Fatalf("expected average 2000 after eviction, got %d", got)
	}
	if w.Count() != 3 {
		t.Fatalf("expected window size 3, got %d", w.Count())
	}
}

func TestLatencyWindowDefaultSize(t *testing.T) {
	w := NewLatencyWindow(0)
	for i := 0; i < defaultLatencyWindow+5; i++ {
		w.Record(int64(i))
	}
	if w.Count() != defaultLatencyWindow {
		t.Fatalf("expected default window %d, got %d", defaultLatencyWindow, w.Count())
	}
}
