package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"CogitoRadio/internal/model"
	"CogitoRadio/internal/service"
	"CogitoRadio/pkg/errors"
	"CogitoRadio/pkg/response"
)

// ListMedications 查询配置档案下的药物
// GET /v1/medications?profile_id=xxx
func ListMedications(ctx context.Context, c *app.RequestContext) {
	profileID := c.Query("profile_id")
	if profileID == "" {
		response.Error(ctx, c, errors.ProfileIDMissing)
		return
	}

	result, err := service.Reminders().ListMedications(ctx, profileID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// CreateMedication 创建药物
// POST /v1/medications
func CreateMedication(ctx context.Context, c *app.RequestContext) {
	var req model.CreateMedicationRequest
	if err := c.Bind(&req); err != nil {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.Reminders().CreateMedication(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// UpdateMedication 更新药物
// PATCH /v1/medications/:medication_id
func UpdateMedication(ctx context.Context, c *app.RequestContext) {
	id, err := strconv.ParseInt(c.Param("medication_id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(ctx, c, errors.MedicationNotFound)
		return
	}

	var req model.UpdateMedicationRequest
	if err := c.Bind(&req); err != nil {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.Reminders().UpdateMedication(ctx, id, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
