package service

import (
	"sync"

	"CogitoRadio/config"
	"CogitoRadio/storage/database"
)

var (
	reminderService *ReminderService
	reminderOnce    sync.Once

	alertService *AlertService
	alertOnce    sync.Once
)

// Reminders 进程级单例，handler 层使用
func Reminders() *ReminderService {
	reminderOnce.Do(func() {
		reminderService = NewReminderService(database.DB(),
			WithDefaultSnooze(config.Cfg.DefaultSnoozeMinutes))
	})
	return reminderService
}

// Alerts 进程级单例，worker 的消费者使用
func Alerts() *AlertService {
	alertOnce.Do(func() {
		alertService = NewAlertService(database.DB())
	})
	return alertService
}
