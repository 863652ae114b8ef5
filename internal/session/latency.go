package session

import "sync"

// defaultLatencyWindow 滚动窗口大小
const defaultLatencyWindow = 20

// LatencyWindow 最近 N 次确认延迟的滚动窗口，用于本地响应度展示
type LatencyWindow struct {
	mu      sync.Mutex
	size    int
	samples []int64
}

func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = defaultLatencyWindow
	}
	return &LatencyWindow{size: size}
}

// Record 追加一个延迟样本（毫秒），窗口满时淘汰最旧的
func (w *LatencyWindow) Record(latencyMs int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, latencyMs)
	if len(w.samples) > w.size {
		w.samples = w.samples[len(w.samples)-w.size:]
	}
}

// Average 窗口内样本的算术平均，空窗口返回 0
func (w *LatencyWindow) Average() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range w.samples {
		sum += s
	}
	return sum / int64(len(w.samples))
}

// Count 窗口内当前样本数
func (w *LatencyWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}
