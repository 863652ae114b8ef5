package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"CogitoRadio/internal/session"
	"CogitoRadio/pkg/logger"
)

// SessionWebSocket 设备会话入口，升级为 WebSocket 并阻塞到连接关闭
// GET /ws
func SessionWebSocket(manager *session.Manager) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if err := manager.Handle(ctx, c); err != nil {
			logger.Logger.Warn("WebSocket upgrade failed", zap.Error(err))
		}
	}
}
