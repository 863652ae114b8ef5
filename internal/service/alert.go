package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"CogitoRadio/internal/model"
	"CogitoRadio/pkg/logger"
)

// NotifySink 照护者告警的投递出口。生产部署可换成短信、邮件或推送网关。
type NotifySink interface {
	Notify(ctx context.Context, alert *model.CaregiverAlert) error
}

// LogSink 默认出口：只写结构化日志
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, alert *model.CaregiverAlert) error {
	logger.Logger.Warn("CAREGIVER ALERT: reminder unacknowledged",
		zap.Int64("reminder_id", alert.ReminderID),
		zap.String("profile_id", alert.ProfileID),
		zap.String("label", alert.Label),
		zap.Time("triggered_at", alert.TriggeredAt),
	)
	return nil
}

// AlertService 落库并投递照护者告警
type AlertService struct {
	db   *gorm.DB
	sink NotifySink
	now  func() time.Time
}

type AlertOption func(*AlertService)

func WithNotifySink(sink NotifySink) AlertOption {
	return func(s *AlertService) { s.sink = sink }
}

func WithAlertClock(now func() time.Time) AlertOption {
	return func(s *AlertService) { s.now = now }
}

func NewAlertService(db *gorm.DB, opts ...AlertOption) *AlertService {
	s := &AlertService{
		db:   db,
		sink: LogSink{},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEscalation 处理一条升级消息。log_code 唯一约束保证同一触发
// 只产生一条告警：冲突时插入 0 行，直接跳过，天然对重复投递幂等。
// 返回 (alerted, error)，alerted=false 表示重复消息。
func (s *AlertService) HandleEscalation(ctx context.Context, msg model.EscalationMessage) (bool, error) {
	alert := model.CaregiverAlert{
		ReminderID:  msg.ReminderID,
		LogCode:     msg.LogCode,
		ProfileID:   msg.ProfileID,
		Label:       msg.Label,
		TriggeredAt: msg.TriggeredAt,
		Status:      model.CaregiverAlertStatusPending,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "log_code"}},
			DoNothing: true,
		}).
		Create(&alert)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record caregiver alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	status := model.CaregiverAlertStatusSent
	if err := s.sink.Notify(ctx, &alert); err != nil {
		logger.Logger.Error("Failed to deliver caregiver alert",
			zap.Int64("log_code", msg.LogCode),
			zap.Error(err),
		)
		status = model.CaregiverAlertStatusFailed
	}

	sentAt := s.now()
	if err := s.db.WithContext(ctx).
		Model(&model.CaregiverAlert{}).
		Where("id = ?", alert.ID).
		Updates(map[string]interface{}{
			"status":  status,
			"sent_at": sentAt,
		}).Error; err != nil {
		return true, fmt.Errorf("failed to update alert status: %w", err)
	}

	return true, nil
}

// ListAlerts 按配置档案查询告警，最近的在前
func (s *AlertService) ListAlerts(ctx context.Context, profileID string, limit int) ([]model.CaregiverAlert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var alerts []model.CaregiverAlert
	query := s.db.WithContext(ctx).Order("triggered_at DESC").Limit(limit)
	if profileID != "" {
		query = query.Where("profile_id = ?", profileID)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list caregiver alerts: %w", err)
	}
	return alerts, nil
}
