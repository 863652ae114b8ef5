package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"CogitoRadio/internal/model"
	"CogitoRadio/internal/recurrence"
	cerrors "CogitoRadio/pkg/errors"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/pkg/metrics"
	"CogitoRadio/pkg/snowflake"
)

// ReminderService 提醒的存取与触发/确认流程
type ReminderService struct {
	db            *gorm.DB
	now           func() time.Time
	defaultSnooze int
}

type Option func(*ReminderService)

// WithClock 注入时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(s *ReminderService) {
		s.now = now
	}
}

// WithDefaultSnooze 创建提醒时未指定 snooze 分钟数的兜底值
func WithDefaultSnooze(minutes int) Option {
	return func(s *ReminderService) {
		if minutes > 0 {
			s.defaultSnooze = minutes
		}
	}
}

func NewReminderService(db *gorm.DB, opts ...Option) *ReminderService {
	s := &ReminderService{
		db:            db,
		now:           time.Now,
		defaultSnooze: recurrence.DefaultSnoozeMinutes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List 按 profile 查询提醒，附带药物和最近 5 条触发记录
func (s *ReminderService) List(ctx context.Context, profileID string) ([]model.ReminderWithLogs, error) {
	if profileID == "" {
		return nil, cerrors.ProfileIDMissing
	}

	var reminders []model.Reminder
	err := s.db.WithContext(ctx).
		Preload("Medication").
		Where("profile_id = ?", profileID).
		Order("scheduled_at ASC").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	result := make([]model.ReminderWithLogs, 0, len(reminders))
	for _, r := range reminders {
		var logs []model.ReminderLog
		err := s.db.WithContext(ctx).
			Where("reminder_id = ?", r.ID).
			Order("triggered_at DESC").
			Limit(5).
			Find(&logs).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load logs for reminder %d: %w", r.ID, err)
		}
		result = append(result, model.ReminderWithLogs{Reminder: r, Logs: logs})
	}

	return result, nil
}

// Get 按 ID 查询提醒（附带药物）
func (s *ReminderService) Get(ctx context.Context, id int64) (*model.Reminder, error) {
	var reminder model.Reminder
	err := s.db.WithContext(ctx).
		Preload("Medication").
		First(&reminder, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cerrors.ReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &reminder, nil
}

// Create 创建提醒
func (s *ReminderService) Create(ctx context.Context, req model.CreateReminderRequest) (*model.Reminder, error) {
	if req.ProfileID == "" {
		return nil, cerrors.ProfileIDMissing
	}
	if req.Label == "" {
		return nil, cerrors.ReminderLabelMissing
	}

	if req.Recurrence == "" {
		req.Recurrence = model.RecurrenceNone
	}
	if !model.ValidRecurrence(req.Recurrence) {
		return nil, cerrors.RecurrenceInvalid
	}

	snooze := s.defaultSnooze
	if req.SnoozeMinutes != nil {
		if *req.SnoozeMinutes <= 0 || *req.SnoozeMinutes > 24*60 {
			return nil, cerrors.SnoozeOutOfRange
		}
		snooze = *req.SnoozeMinutes
	}

	reminder := model.Reminder{
		ProfileID:     req.ProfileID,
		Label:         req.Label,
		ScheduledAt:   req.ScheduledAt,
		Recurrence:    req.Recurrence,
		SnoozeMinutes: snooze,
		Active:        true,
		MedicationID:  req.MedicationID,
	}

	if err := s.db.WithContext(ctx).Create(&reminder).Error; err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	logger.Logger.Info("Reminder created",
		zap.Int64("reminder_id", reminder.ID),
		zap.String("profile_id", reminder.ProfileID),
		zap.Time("scheduled_at", reminder.ScheduledAt),
		zap.String("recurrence", string(reminder.Recurrence)),
	)

	return &reminder, nil
}

// Update 更新提醒，nil 字段保持不变
func (s *ReminderService) Update(ctx context.Context, id int64, req model.UpdateReminderRequest) (*model.Reminder, error) {
	reminder, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Label != nil {
		if *req.Label == "" {
			return nil, cerrors.ReminderLabelMissing
		}
		updates["label"] = *req.Label
	}
	if req.ScheduledAt != nil {
		updates["scheduled_at"] = *req.ScheduledAt
	}
	if req.Recurrence != nil {
		if !model.ValidRecurrence(*req.Recurrence) {
			return nil, cerrors.RecurrenceInvalid
		}
		updates["recurrence"] = *req.Recurrence
	}
	if req.SnoozeMinutes != nil {
		if *req.SnoozeMinutes <= 0 || *req.SnoozeMinutes > 24*60 {
			return nil, cerrors.SnoozeOutOfRange
		}
		updates["snooze_minutes"] = *req.SnoozeMinutes
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.MedicationID != nil {
		updates["medication_id"] = *req.MedicationID
	}

	if len(updates) == 0 {
		return reminder, nil
	}

	err = s.db.WithContext(ctx).
		Model(&model.Reminder{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}

	return s.Get(ctx, id)
}

// Deactivate 停用提醒（软删除语义：active=false 后扫描器不再选中）
func (s *ReminderService) Deactivate(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).
		Model(&model.Reminder{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate reminder: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return cerrors.ReminderNotFound
	}
	return nil
}

// FindDue 查询到期提醒：active 且 scheduled_at 不晚于 horizon
func (s *ReminderService) FindDue(ctx context.Context, horizon time.Time) ([]model.Reminder, error) {
	var due []model.Reminder
	err := s.db.WithContext(ctx).
		Preload("Medication").
		Where("active = ? AND scheduled_at <= ?", true, horizon).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	return due, nil
}

// Fire 触发一个提醒：在同一事务里追加空回执日志并顺延/停用计划，
// 返回待广播的触发消息。崩溃语义：事务提交而消息未发出时该次触发丢失
// （不会重复），由下一次用户侧轮询兜底。
func (s *ReminderService) Fire(ctx context.Context, reminder *model.Reminder) (*model.TriggerMessage, error) {
	if !reminder.Active {
		return nil, cerrors.ReminderInactive
	}

	triggeredAt := s.now()

	logCode, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate log code: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		logRow := model.ReminderLog{
			LogCode:     logCode,
			ReminderID:  reminder.ID,
			TriggeredAt: triggeredAt,
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return fmt.Errorf("failed to append trigger log: %w", err)
		}

		next, ok := recurrence.NextDueTime(reminder.ScheduledAt, reminder.Recurrence, reminder.SnoozeMinutes, s.now)
		if ok {
			if err := tx.Model(&model.Reminder{}).
				Where("id = ?", reminder.ID).
				Update("scheduled_at", next).Error; err != nil {
				return fmt.Errorf("failed to advance schedule: %w", err)
			}
			reminder.ScheduledAt = next
		} else {
			if err := tx.Model(&model.Reminder{}).
				Where("id = ?", reminder.ID).
				Update("active", false).Error; err != nil {
				return fmt.Errorf("failed to deactivate: %w", err)
			}
			reminder.Active = false
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTrigger(ctx, string(reminder.Recurrence))

	msgID, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message ID: %w", err)
	}

	return &model.TriggerMessage{
		MessageID:   fmt.Sprintf("reminder_trigger_%d", msgID),
		LogCode:     logCode,
		Reminder:    model.NewReminderSnapshot(reminder),
		TriggeredAt: triggeredAt,
	}, nil
}
