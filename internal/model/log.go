package model

import "time"

// AckAction 确认动作枚举
type AckAction string

const (
	AckActionConfirmed AckAction = "confirmed"
	AckActionSnoozed   AckAction = "snoozed"
)

// ValidAckAction 校验确认动作取值
func ValidAckAction(action AckAction) bool {
	return action == AckActionConfirmed || action == AckActionSnoozed
}

// ReminderLog 提醒触发/确认审计记录。只追加，不更新不删除；
// acknowledged_at 为空表示触发后尚无人响应。
type ReminderLog struct {
	BaseModel
	LogCode        int64      `gorm:"uniqueIndex;not null" json:"log_code"`
	ReminderID     int64      `gorm:"not null;index:idx_reminder_logs_reminder" json:"reminder_id"`
	TriggeredAt    time.Time  `gorm:"not null;index:idx_reminder_logs_pending,priority:2" json:"triggered_at"`
	AcknowledgedAt *time.Time `gorm:"index:idx_reminder_logs_pending,priority:1" json:"acknowledged_at,omitempty"`
	Action         *AckAction `gorm:"type:varchar(16)" json:"action,omitempty"`
	AckLatencyMs   *int64     `json:"ack_latency_ms,omitempty"`
	ActingUserID   *string    `gorm:"type:varchar(64)" json:"acting_user_id,omitempty"`
	EscalatedAt    *time.Time `json:"escalated_at,omitempty"`
}

// TableName 指定表名
func (ReminderLog) TableName() string {
	return "reminder_logs"
}

// CaregiverAlertStatus 照护者告警状态枚举
type CaregiverAlertStatus string

const (
	CaregiverAlertStatusPending CaregiverAlertStatus = "pending"
	CaregiverAlertStatusSent    CaregiverAlertStatus = "sent"
	CaregiverAlertStatusFailed  CaregiverAlertStatus = "failed"
)

// CaregiverAlert 照护者升级告警记录：提醒触发后长时间无人确认时生成
type CaregiverAlert struct {
	BaseModel
	ReminderID  int64                `gorm:"not null;index:idx_caregiver_alerts_reminder" json:"reminder_id"`
	LogCode     int64                `gorm:"not null;uniqueIndex" json:"log_code"`
	ProfileID   string               `gorm:"type:varchar(64);not null;index" json:"profile_id"`
	Label       string               `gorm:"type:varchar(255);not null" json:"label"`
	TriggeredAt time.Time            `gorm:"not null" json:"triggered_at"`
	Status      CaregiverAlertStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	SentAt      *time.Time           `json:"sent_at,omitempty"`
}

// TableName 指定表名
func (CaregiverAlert) TableName() string {
	return "caregiver_alerts"
}
