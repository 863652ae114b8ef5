package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"CogitoRadio/internal/service"
	"CogitoRadio/pkg/response"
)

// ListCaregiverAlerts 照护者告警历史
// GET /v1/alerts?profile_id=xxx&limit=50
func ListCaregiverAlerts(ctx context.Context, c *app.RequestContext) {
	profileID := c.Query("profile_id")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	result, listErr := service.Alerts().ListAlerts(ctx, profileID, limit)
	if listErr != nil {
		response.Error(ctx, c, listErr)
		return
	}

	response.Success(ctx, c, result)
}
