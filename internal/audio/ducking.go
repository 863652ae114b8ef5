package audio

// 音频压低协调器：提醒激活期间把持续播放的电台增益压到低位，
// 确认后恢复。与音频来源解耦，只要求一个可读写的标量增益。

import (
	"context"
	"sync"
	"time"

	"CogitoRadio/pkg/metrics"
)

const (
	// DefaultDuckLevel 压低后的增益
	DefaultDuckLevel = 0.2

	// DefaultTransition 增益渐变时长，避免突变产生爆音
	DefaultTransition = 200 * time.Millisecond

	// rampSteps 渐变的分段数
	rampSteps = 5
)

// GainControl 独立音频流的增益控制。实现可以是 WebSocket 控制帧、
// 本地声卡，或经独立通道转发的硬件音量指令。
type GainControl interface {
	SetGain(level float64) error
	Gain() float64
}

// Ducking 每个会话持有一个实例，只由该会话自己的控制器调用。
type Ducking struct {
	gain       GainControl
	duckLevel  float64
	transition time.Duration

	mu           sync.Mutex
	ducked       bool
	previousGain float64
}

type DuckingOption func(*Ducking)

func WithDuckLevel(level float64) DuckingOption {
	return func(d *Ducking) { d.duckLevel = level }
}

func WithTransition(t time.Duration) DuckingOption {
	return func(d *Ducking) { d.transition = t }
}

func NewDucking(gain GainControl, opts ...DuckingOption) *Ducking {
	d := &Ducking{
		gain:       gain,
		duckLevel:  DefaultDuckLevel,
		transition: DefaultTransition,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Duck 记录当前增益并渐变到低位。重复调用是幂等的：
// 已压低时不再覆盖 previousGain，否则第二次会把低位当成恢复目标。
func (d *Ducking) Duck() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ducked {
		return nil
	}

	d.previousGain = d.gain.Gain()
	d.ducked = true

	metrics.RecordDuckTransition(context.Background(), "duck")
	return d.ramp(d.previousGain, d.duckLevel)
}

// Restore 渐变回压低前的增益。未压低时为空操作。
func (d *Ducking) Restore() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ducked {
		return nil
	}

	d.ducked = false

	metrics.RecordDuckTransition(context.Background(), "restore")
	return d.ramp(d.duckLevel, d.previousGain)
}

// Ducked 当前是否处于压低状态
func (d *Ducking) Ducked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ducked
}

// ramp 分段逼近目标增益；持有 d.mu 时调用
func (d *Ducking) ramp(from, to float64) error {
	if d.transition <= 0 {
		return d.gain.SetGain(to)
	}

	stepDelay := d.transition / rampSteps
	for i := 1; i <= rampSteps; i++ {
		// 浮点插值会让末步差出一个 ulp，最后一步直接落在目标值上
		level := to
		if i < rampSteps {
			level = from + (to-from)*float64(i)/rampSteps
		}
		if err := d.gain.SetGain(level); err != nil {
			return err
		}
		if i < rampSteps {
			time.Sleep(stepDelay)
		}
	}
	return nil
}
