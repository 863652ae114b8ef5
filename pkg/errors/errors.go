package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 提醒模块错误。
var (
	ReminderNotFound     = Definition{Code: "REMINDER_NOT_FOUND", Message: "Reminder not found"}
	ReminderInactive     = Definition{Code: "REMINDER_INACTIVE", Message: "Reminder is inactive"}
	ReminderLabelMissing = Definition{Code: "REMINDER_LABEL_MISSING", Message: "Reminder label required"}
	RecurrenceInvalid    = Definition{Code: "RECURRENCE_INVALID", Message: "Recurrence mode invalid"}
	ProfileIDMissing     = Definition{Code: "PROFILE_ID_MISSING", Message: "profile_id query param required"}
)

// 确认回执模块错误。
var (
	AckActionInvalid  = Definition{Code: "ACK_ACTION_INVALID", Message: "Acknowledgment action invalid"}
	AckTriggerMissing = Definition{Code: "ACK_TRIGGER_MISSING", Message: "Acknowledgment triggered_at required"}
	SnoozeOutOfRange  = Definition{Code: "SNOOZE_OUT_OF_RANGE", Message: "Snooze minutes out of range"}
)

// 药物模块错误。
var (
	MedicationNotFound    = Definition{Code: "MEDICATION_NOT_FOUND", Message: "Medication not found"}
	MedicationNameMissing = Definition{Code: "MEDICATION_NAME_MISSING", Message: "Medication name required"}
)

// 通用错误。
var (
	InvalidRequest = Definition{Code: "INVALID_REQUEST", Message: "Request body or params invalid"}
	RateLimited    = Definition{Code: "RATE_LIMITED", Message: "Too many requests"}
)

// SkipMessageError 表示消息应被跳过（已处理过），消费者据此 Ack 而非重新入队。
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return e.Reason
}

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	ReminderNotFound.Code:      ReminderNotFound,
	ReminderInactive.Code:      ReminderInactive,
	ReminderLabelMissing.Code:  ReminderLabelMissing,
	RecurrenceInvalid.Code:     RecurrenceInvalid,
	ProfileIDMissing.Code:      ProfileIDMissing,
	AckActionInvalid.Code:      AckActionInvalid,
	AckTriggerMissing.Code:     AckTriggerMissing,
	SnoozeOutOfRange.Code:      SnoozeOutOfRange,
	MedicationNotFound.Code:    MedicationNotFound,
	MedicationNameMissing.Code: MedicationNameMissing,
	InvalidRequest.Code:        InvalidRequest,
	RateLimited.Code:           RateLimited,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
