package model

import "time"

// MedicationSnapshot 触发时的药物快照，随消息自带，客户端无需再查询
type MedicationSnapshot struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// ReminderSnapshot 触发时的提醒快照（按值，不随后续修改变化）
type ReminderSnapshot struct {
	ReminderID    int64               `json:"reminder_id"`
	ProfileID     string              `json:"profile_id"`
	Label         string              `json:"label"`
	Recurrence    RecurrenceMode      `json:"recurrence"`
	SnoozeMinutes int                 `json:"snooze_minutes"`
	Medication    *MedicationSnapshot `json:"medication,omitempty"`
}

// TriggerMessage 提醒触发消息，经 fanout 交换机广播到所有 server 实例。
// (reminder_id, triggered_at) 即去重标识。
type TriggerMessage struct {
	MessageID   string           `json:"message_id"` // 消息唯一ID，用于幂等性检查
	LogCode     int64            `json:"log_code"`
	Reminder    ReminderSnapshot `json:"reminder"`
	TriggeredAt time.Time        `json:"triggered_at"`
}

// EscalationMessage 升级告警消息：触发后超时未确认，交由 worker 通知照护者
type EscalationMessage struct {
	MessageID   string    `json:"message_id"` // 消息唯一ID，用于幂等性检查
	LogCode     int64     `json:"log_code"`
	ReminderID  int64     `json:"reminder_id"`
	ProfileID   string    `json:"profile_id"`
	Label       string    `json:"label"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// NewReminderSnapshot 从 Reminder 构建快照
func NewReminderSnapshot(r *Reminder) ReminderSnapshot {
	snap := ReminderSnapshot{
		ReminderID:    r.ID,
		ProfileID:     r.ProfileID,
		Label:         r.Label,
		Recurrence:    r.Recurrence,
		SnoozeMinutes: r.SnoozeMinutes,
	}
	if r.Medication != nil {
		snap.Medication = &MedicationSnapshot{
			Name:         r.Medication.Name,
			Dosage:       r.Medication.Dosage,
			Instructions: r.Medication.Instructions,
		}
	}
	return snap
}
