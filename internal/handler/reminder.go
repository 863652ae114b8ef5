package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"CogitoRadio/internal/model"
	"CogitoRadio/internal/queue"
	"CogitoRadio/internal/service"
	"CogitoRadio/pkg/errors"
	"CogitoRadio/pkg/response"
)

func parseID(c *app.RequestContext) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("reminder_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListReminders 查询某个配置档案下的提醒，附最近触发记录
// GET /v1/reminders?profile_id=xxx
func ListReminders(ctx context.Context, c *app.RequestContext) {
	var query model.ReminderListQuery
	if err := c.Bind(&query); err != nil {
		response.Error(ctx, c, errors.ProfileIDMissing)
		return
	}
	if query.ProfileID == "" {
		response.Error(ctx, c, errors.ProfileIDMissing)
		return
	}

	result, err := service.Reminders().List(ctx, query.ProfileID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetReminder 查询单个提醒
// GET /v1/reminders/:reminder_id
func GetReminder(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		response.Error(ctx, c, errors.ReminderNotFound)
		return
	}

	result, err := service.Reminders().Get(ctx, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// CreateReminder 创建提醒
// POST /v1/reminders
func CreateReminder(ctx context.Context, c *app.RequestContext) {
	var req model.CreateReminderRequest
	if err := c.Bind(&req); err != nil {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.Reminders().Create(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// UpdateReminder 更新提醒，nil 字段不变
// PATCH /v1/reminders/:reminder_id
func UpdateReminder(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		response.Error(ctx, c, errors.ReminderNotFound)
		return
	}

	var req model.UpdateReminderRequest
	if err := c.Bind(&req); err != nil {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.Reminders().Update(ctx, id, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// DeactivateReminder 停用提醒（软删除，历史记录保留）
// DELETE /v1/reminders/:reminder_id
func DeactivateReminder(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		response.Error(ctx, c, errors.ReminderNotFound)
		return
	}

	if err := service.Reminders().Deactivate(ctx, id); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.NoContent(ctx, c)
}

// TriggerReminder 手动触发，走与扫描器相同的触发链路
// POST /v1/reminders/:reminder_id/trigger
func TriggerReminder(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		response.Error(ctx, c, errors.ReminderNotFound)
		return
	}

	svc := service.Reminders()
	reminder, err := svc.Get(ctx, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	if !reminder.Active {
		response.Error(ctx, c, errors.ReminderInactive)
		return
	}

	msg, err := svc.Fire(ctx, reminder)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	if err := queue.NewProducer().PublishTrigger(ctx, *msg); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// AckReminder 记录确认回执。snoozed 动作会把提醒重排到 now+snooze
// POST /v1/reminders/:reminder_id/ack
func AckReminder(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		response.Error(ctx, c, errors.ReminderNotFound)
		return
	}

	var req model.AckRequest
	if err := c.Bind(&req); err != nil {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.Reminders().RecordAck(ctx, id, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetReminderLogs 按提醒查询触发与确认历史
// GET /v1/reminders/:reminder_id/logs?limit=20
func GetReminderLogs(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c)
	if !ok {
		response.Error(ctx, c, errors.ReminderNotFound)
		return
	}

	var query model.LogListQuery
	if err := c.Bind(&query); err != nil {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.Reminders().QueryLogs(ctx, id, query.Limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetDailyAckStats 按天聚合的平均确认耗时
// GET /v1/analytics/ack-daily?days=7
func GetDailyAckStats(ctx context.Context, c *app.RequestContext) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}

	result, err := service.Reminders().DailyAckStats(ctx, days)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
