package model

import "time"

// ========== Reminder 相关 DTO ==========

// CreateReminderRequest 创建提醒请求
type CreateReminderRequest struct {
	ProfileID     string         `json:"profile_id"`
	Label         string         `json:"label"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	Recurrence    RecurrenceMode `json:"recurrence"`
	SnoozeMinutes *int           `json:"snooze_minutes,omitempty"`
	MedicationID  *int64         `json:"medication_id,omitempty"`
}

// UpdateReminderRequest 更新提醒请求，nil 字段不修改
type UpdateReminderRequest struct {
	Label         *string         `json:"label,omitempty"`
	ScheduledAt   *time.Time      `json:"scheduled_at,omitempty"`
	Recurrence    *RecurrenceMode `json:"recurrence,omitempty"`
	SnoozeMinutes *int            `json:"snooze_minutes,omitempty"`
	Active        *bool           `json:"active,omitempty"`
	MedicationID  *int64          `json:"medication_id,omitempty"`
}

// ReminderListQuery 提醒列表查询参数
type ReminderListQuery struct {
	ProfileID string `query:"profile_id"`
}

// AckRequest 确认回执请求
type AckRequest struct {
	Action        AckAction `json:"action"`
	SnoozeMinutes *int      `json:"snooze_minutes,omitempty"`
	AckTimeMs     *int64    `json:"ack_time_ms,omitempty"`
	TriggeredAt   time.Time `json:"triggered_at"`
	ActingUserID  *string   `json:"acting_user_id,omitempty"`
}

// ReminderWithLogs 列表响应：提醒 + 最近触发记录
type ReminderWithLogs struct {
	Reminder
	Logs []ReminderLog `json:"logs"`
}

// LogListQuery 日志查询参数
type LogListQuery struct {
	Limit int `query:"limit"`
}

// DailyAckStat 按天聚合的平均确认耗时
type DailyAckStat struct {
	Day          time.Time `json:"day"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	AckCount     int64     `json:"ack_count"`
}

// ========== Medication 相关 DTO ==========

// CreateMedicationRequest 创建药物请求
type CreateMedicationRequest struct {
	ProfileID    string `json:"profile_id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// UpdateMedicationRequest 更新药物请求
type UpdateMedicationRequest struct {
	Name         *string `json:"name,omitempty"`
	Dosage       *string `json:"dosage,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}
