package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"CogitoRadio/internal/handler"
	"CogitoRadio/internal/middleware"
	"CogitoRadio/internal/session"
)

func Register(h *server.Hertz, sessions *session.Manager) {

	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	h.GET("/healthz", handler.Healthz)

	// 设备会话，WebSocket 升级后即接管连接
	h.GET("/ws", handler.SessionWebSocket(sessions))

	v1 := h.Group("/v1")
	v1.Use(middleware.GeneralRateLimitMiddleware())

	// 提醒路由
	reminders := v1.Group("/reminders")
	{
		reminders.GET("", handler.ListReminders)
		reminders.POST("", middleware.WriteRateLimitMiddleware(), handler.CreateReminder)
		reminders.GET("/:reminder_id", handler.GetReminder)
		reminders.PATCH("/:reminder_id", middleware.WriteRateLimitMiddleware(), handler.UpdateReminder)
		reminders.DELETE("/:reminder_id", handler.DeactivateReminder)
		reminders.POST("/:reminder_id/trigger", handler.TriggerReminder)
		reminders.POST("/:reminder_id/ack", handler.AckReminder)
		reminders.GET("/:reminder_id/logs", handler.GetReminderLogs)
	}

	// 药物路由
	medications := v1.Group("/medications")
	{
		medications.GET("", handler.ListMedications)
		medications.POST("", middleware.WriteRateLimitMiddleware(), handler.CreateMedication)
		medications.PATCH("/:medication_id", middleware.WriteRateLimitMiddleware(), handler.UpdateMedication)
	}

	// 统计与告警路由
	v1.GET("/analytics/ack-daily", handler.GetDailyAckStats)
	v1.GET("/alerts", handler.ListCaregiverAlerts)
}
