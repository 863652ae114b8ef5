package handler

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"CogitoRadio/storage/database"
	"CogitoRadio/storage/redis"
)

// Healthz 存活与依赖检查
// GET /healthz
func Healthz(ctx context.Context, c *app.RequestContext) {
	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	healthy := true

	if sqlDB, err := database.DB().DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unreachable"
		healthy = false
	}
	if err := redis.Client().Ping(ctx).Err(); err != nil {
		checks["redis"] = "unreachable"
		healthy = false
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}
