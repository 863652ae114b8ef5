package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"CogitoRadio/internal/model"
	"CogitoRadio/internal/recurrence"
	cerrors "CogitoRadio/pkg/errors"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/pkg/metrics"
	"CogitoRadio/pkg/snowflake"
)

// RecordAck 记录一次确认回执。永远追加新行，不更新触发时写入的空回执行；
// 负的耗时（客户端时钟偏移）压到 0 而不是拒绝。
func (s *ReminderService) RecordAck(ctx context.Context, reminderID int64, req model.AckRequest) (*model.ReminderLog, error) {
	if !model.ValidAckAction(req.Action) {
		return nil, cerrors.AckActionInvalid
	}
	// 边界校验全部先行：拒绝的请求不能留下半截回执
	if req.SnoozeMinutes != nil {
		if *req.SnoozeMinutes <= 0 || *req.SnoozeMinutes > 24*60 {
			return nil, cerrors.SnoozeOutOfRange
		}
	}

	reminder, err := s.Get(ctx, reminderID)
	if err != nil {
		return nil, err
	}

	acknowledgedAt := s.now()

	triggeredAt := req.TriggeredAt
	if triggeredAt.IsZero() {
		triggeredAt = acknowledgedAt
	}

	var latencyMs int64
	if req.AckTimeMs != nil {
		latencyMs = *req.AckTimeMs
	} else {
		latencyMs = acknowledgedAt.Sub(triggeredAt).Milliseconds()
	}
	if latencyMs < 0 {
		latencyMs = 0
	}

	logCode, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate log code: %w", err)
	}

	action := req.Action
	logRow := model.ReminderLog{
		LogCode:        logCode,
		ReminderID:     reminder.ID,
		TriggeredAt:    triggeredAt,
		AcknowledgedAt: &acknowledgedAt,
		Action:         &action,
		AckLatencyMs:   &latencyMs,
		ActingUserID:   req.ActingUserID,
	}

	if err := s.db.WithContext(ctx).Create(&logRow).Error; err != nil {
		return nil, fmt.Errorf("failed to append ack log: %w", err)
	}

	if req.Action == model.AckActionSnoozed {
		snooze := reminder.SnoozeMinutes
		if req.SnoozeMinutes != nil {
			snooze = *req.SnoozeMinutes
		}

		// snooze 以确认时刻为锚点重排，而非原计划时间
		next, _ := recurrence.NextDueTime(reminder.ScheduledAt, model.RecurrenceSnooze, snooze, s.now)
		err := s.db.WithContext(ctx).
			Model(&model.Reminder{}).
			Where("id = ?", reminder.ID).
			Updates(map[string]interface{}{
				"scheduled_at": next,
				"active":       true,
			}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to reschedule snoozed reminder: %w", err)
		}
	}

	metrics.RecordAck(ctx, string(req.Action), float64(latencyMs)/1000.0)

	logger.Logger.Info("Acknowledgment recorded",
		zap.Int64("reminder_id", reminder.ID),
		zap.String("action", string(req.Action)),
		zap.Int64("ack_latency_ms", latencyMs),
	)

	return &logRow, nil
}

// QueryLogs 查询某提醒最近的触发/确认记录
func (s *ReminderService) QueryLogs(ctx context.Context, reminderID int64, limit int) ([]model.ReminderLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	var logs []model.ReminderLog
	err := s.db.WithContext(ctx).
		Where("reminder_id = ?", reminderID).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	return logs, nil
}

// DailyAckStats 照护者分析：最近 days 天、按天聚合的平均确认耗时。
// 数据量是人的响应次数这个量级，直接取回内存聚合。
func (s *ReminderService) DailyAckStats(ctx context.Context, days int) ([]model.DailyAckStat, error) {
	if days <= 0 || days > 90 {
		days = 7
	}

	since := s.now().AddDate(0, 0, -days)

	var logs []model.ReminderLog
	err := s.db.WithContext(ctx).
		Where("acknowledged_at IS NOT NULL AND acknowledged_at >= ?", since).
		Order("acknowledged_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query ack logs: %w", err)
	}

	type bucket struct {
		sum   int64
		count int64
	}
	buckets := map[time.Time]*bucket{}
	for _, l := range logs {
		if l.AckLatencyMs == nil || l.AcknowledgedAt == nil {
			continue
		}
		day := l.AcknowledgedAt.UTC().Truncate(24 * time.Hour)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.sum += *l.AckLatencyMs
		b.count++
	}

	stats := make([]model.DailyAckStat, 0, len(buckets))
	for day, b := range buckets {
		stats = append(stats, model.DailyAckStat{
			Day:          day,
			AvgLatencyMs: float64(b.sum) / float64(b.count),
			AckCount:     b.count,
		})
	}

	// 按天排序输出
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Day.Before(stats[j].Day)
	})

	return stats, nil
}

// FindPendingEscalations 查询触发后超过 cutoff 仍无任何确认、且尚未升级的记录。
// 回执是追加式的：同一次触发的确认是一条新行，按 (reminder_id, triggered_at)
// 关联；时间戳经历 JSON 往返可能有亚秒偏差，放宽 1 秒匹配。
func (s *ReminderService) FindPendingEscalations(ctx context.Context, cutoff time.Time) ([]model.ReminderLog, error) {
	var candidates []model.ReminderLog
	err := s.db.WithContext(ctx).
		Where("acknowledged_at IS NULL AND escalated_at IS NULL AND triggered_at <= ?", cutoff).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pending escalations: %w", err)
	}

	pending := make([]model.ReminderLog, 0, len(candidates))
	for _, c := range candidates {
		var acked int64
		err := s.db.WithContext(ctx).
			Model(&model.ReminderLog{}).
			Where("reminder_id = ? AND acknowledged_at IS NOT NULL AND triggered_at BETWEEN ? AND ?",
				c.ReminderID,
				c.TriggeredAt.Add(-time.Second),
				c.TriggeredAt.Add(time.Second),
			).
			Count(&acked).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check ack for log %d: %w", c.LogCode, err)
		}
		if acked == 0 {
			pending = append(pending, c)
		}
	}

	return pending, nil
}

// MarkEscalated 在日志行上落档升级时间
func (s *ReminderService) MarkEscalated(ctx context.Context, logCode int64) error {
	now := s.now()
	return s.db.WithContext(ctx).
		Model(&model.ReminderLog{}).
		Where("log_code = ?", logCode).
		Update("escalated_at", now).Error
}
