package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 提醒相关指标
	RemindersTriggeredTotal   metric.Int64Counter
	ReminderScanDuration      metric.Float64Histogram
	ReminderScanErrorsTotal   metric.Int64Counter
	ReminderAckLatency        metric.Float64Histogram
	ReminderAcksTotal         metric.Int64Counter
	ReminderEscalationsTotal  metric.Int64Counter

	// 会话相关指标
	ActiveSessions       metric.Int64UpDownCounter
	DuckTransitionsTotal metric.Int64Counter
	AnnouncementsTotal   metric.Int64Counter
}

var (
	metrics *OTelMetrics
	meter   = otel.Meter("cogito-radio")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error

	metrics = &OTelMetrics{}

	metrics.RemindersTriggeredTotal, err = meter.Int64Counter(
		"reminders_triggered_total",
		metric.WithDescription("Total number of reminder triggers emitted"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return err
	}

	metrics.ReminderScanDuration, err = meter.Float64Histogram(
		"reminder_scan_duration_seconds",
		metric.WithDescription("Time spent scanning for due reminders"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics.ReminderScanErrorsTotal, err = meter.Int64Counter(
		"reminder_scan_errors_total",
		metric.WithDescription("Per-reminder errors isolated during a scan"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	metrics.ReminderAckLatency, err = meter.Float64Histogram(
		"reminder_ack_latency_seconds",
		metric.WithDescription("Latency between trigger and user acknowledgment"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1800),
	)
	if err != nil {
		return err
	}

	metrics.ReminderAcksTotal, err = meter.Int64Counter(
		"reminder_acks_total",
		metric.WithDescription("Total acknowledgments recorded"),
		metric.WithUnit("{ack}"),
	)
	if err != nil {
		return err
	}

	metrics.ReminderEscalationsTotal, err = meter.Int64Counter(
		"reminder_escalations_total",
		metric.WithDescription("Triggers escalated to caregivers after the unacknowledged window"),
		metric.WithUnit("{escalation}"),
	)
	if err != nil {
		return err
	}

	metrics.ActiveSessions, err = meter.Int64UpDownCounter(
		"companion_sessions_active",
		metric.WithDescription("Currently connected companion device sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return err
	}

	metrics.DuckTransitionsTotal, err = meter.Int64Counter(
		"audio_duck_transitions_total",
		metric.WithDescription("Duck/restore transitions applied to the radio gain"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	metrics.AnnouncementsTotal, err = meter.Int64Counter(
		"announcements_total",
		metric.WithDescription("Announcements issued to companion sessions"),
		metric.WithUnit("{announcement}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Metrics 返回全局指标实例，未初始化时返回 nil（调用方需容忍）
func Metrics() *OTelMetrics {
	return metrics
}

// RecordTrigger 记录一次提醒触发
func RecordTrigger(ctx context.Context, recurrence string) {
	if metrics == nil {
		return
	}
	metrics.RemindersTriggeredTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("recurrence", recurrence)),
	)
}

// RecordScan 记录一次扫描耗时和错误数
func RecordScan(ctx context.Context, seconds float64, errCount int) {
	if metrics == nil {
		return
	}
	metrics.ReminderScanDuration.Record(ctx, seconds)
	if errCount > 0 {
		metrics.ReminderScanErrorsTotal.Add(ctx, int64(errCount))
	}
}

// RecordAck 记录一次确认动作及其耗时
func RecordAck(ctx context.Context, action string, latencySeconds float64) {
	if metrics == nil {
		return
	}
	metrics.ReminderAcksTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", action)),
	)
	metrics.ReminderAckLatency.Record(ctx, latencySeconds)
}

// RecordEscalation 记录一次照护者升级告警
func RecordEscalation(ctx context.Context) {
	if metrics == nil {
		return
	}
	metrics.ReminderEscalationsTotal.Add(ctx, 1)
}

// SessionOpened / SessionClosed 维护活跃会话数
func SessionOpened(ctx context.Context) {
	if metrics == nil {
		return
	}
	metrics.ActiveSessions.Add(ctx, 1)
}

func SessionClosed(ctx context.Context) {
	if metrics == nil {
		return
	}
	metrics.ActiveSessions.Add(ctx, -1)
}

// RecordDuckTransition 记录一次增益压低/恢复
func RecordDuckTransition(ctx context.Context, direction string) {
	if metrics == nil {
		return
	}
	metrics.DuckTransitionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("direction", direction)),
	)
}

// RecordAnnouncement 记录一次播报
func RecordAnnouncement(ctx context.Context, repeat bool) {
	if metrics == nil {
		return
	}
	metrics.AnnouncementsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("repeat", repeat)),
	)
}
