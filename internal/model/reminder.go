package model

import "time"

// RecurrenceMode 重复模式枚举
type RecurrenceMode string

const (
	RecurrenceNone   RecurrenceMode = "none"   // 单次，触发后停用
	RecurrenceDaily  RecurrenceMode = "daily"  // 每天同一时刻
	RecurrenceHourly RecurrenceMode = "hourly" // 每小时
	RecurrenceSnooze RecurrenceMode = "snooze" // 从确认时刻顺延 snooze_minutes
)

// ValidRecurrence 校验重复模式取值
func ValidRecurrence(mode RecurrenceMode) bool {
	switch mode {
	case RecurrenceNone, RecurrenceDaily, RecurrenceHourly, RecurrenceSnooze:
		return true
	}
	return false
}

// Reminder 提醒模型。active=false 后扫描器不再选中该提醒。
// scheduled_at 只由扫描器（顺延/停用）和确认回执（snooze 重排）修改。
type Reminder struct {
	BaseModel
	ProfileID     string         `gorm:"type:varchar(64);not null;index:idx_reminders_profile" json:"profile_id"`
	Label         string         `gorm:"type:varchar(255);not null" json:"label"`
	ScheduledAt   time.Time      `gorm:"not null;index:idx_reminders_due,priority:2" json:"scheduled_at"`
	Recurrence    RecurrenceMode `gorm:"type:varchar(16);not null;default:'none'" json:"recurrence"`
	SnoozeMinutes int            `gorm:"type:smallint;not null;default:10" json:"snooze_minutes"`
	Active        bool           `gorm:"not null;default:true;index:idx_reminders_due,priority:1" json:"active"`
	MedicationID  *int64         `gorm:"index" json:"medication_id,omitempty"`
	Medication    *Medication    `gorm:"foreignKey:MedicationID" json:"medication,omitempty"`
}

// TableName 指定表名
func (Reminder) TableName() string {
	return "reminders"
}

// Medication 关联药物模型，触发时快照进消息载荷
type Medication struct {
	BaseModel
	ProfileID    string `gorm:"type:varchar(64);not null;index" json:"profile_id"`
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Dosage       string `gorm:"type:varchar(255)" json:"dosage"`
	Instructions string `gorm:"type:text" json:"instructions"`
}

// TableName 指定表名
func (Medication) TableName() string {
	return "medications"
}
