package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"CogitoRadio/internal/broadcast"
	"CogitoRadio/internal/cache"
	"CogitoRadio/internal/model"
	"CogitoRadio/internal/service"
	"CogitoRadio/pkg/errors"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/storage/mq"
)

const (
	triggerConsumerTag    = "cogito-server-trigger"
	escalationConsumerTag = "cogito-worker-escalation"

	escalationPrefetch = 10

	// processingTTL 消息处理标记的初始时长，覆盖最坏的处理耗时
	processingTTL = 5 * time.Minute
)

// StartTriggerConsumer 消费 fanout 触发消息并经 Hub 扇出到本实例会话。
// 独占队列随连接创建，不回放历史消息。阻塞到 ctx 取消。
func StartTriggerConsumer(ctx context.Context, hub *broadcast.Hub) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:       "", // 独占自动删除队列，随实例存亡
		Exchange:    mq.TriggerExchange,
		RoutingKey:  "",
		ConsumerTag: triggerConsumerTag,
		Handler: func(ctx context.Context, body []byte) error {
			var msg model.TriggerMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				// 解析不了的消息重试也没用，Ack 掉
				return &errors.SkipMessageError{
					Reason: fmt.Sprintf("malformed trigger message: %v", err),
				}
			}

			delivered := hub.Publish(msg)

			logger.Logger.Info("Trigger message delivered to sessions",
				zap.String("message_id", msg.MessageID),
				zap.Int64("reminder_id", msg.Reminder.ReminderID),
				zap.Int("delivered", delivered),
			)
			return nil
		},
	})
}

// StartEscalationConsumer 消费升级消息并交给 AlertService。
// Redis 标记挡住快速重复，数据库 log_code 唯一约束兜底。
func StartEscalationConsumer(ctx context.Context, alerts *service.AlertService) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.EscalationQueue,
		Exchange:      mq.EscalationExchange,
		RoutingKey:    mq.EscalationRoutingKey,
		ConsumerTag:   escalationConsumerTag,
		PrefetchCount: escalationPrefetch,
		Handler: func(ctx context.Context, body []byte) error {
			var msg model.EscalationMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				return &errors.SkipMessageError{
					Reason: fmt.Sprintf("malformed escalation message: %v", err),
				}
			}

			acquired, err := cache.TryMarkMessageProcessing(ctx, msg.MessageID, processingTTL)
			if err != nil {
				return fmt.Errorf("failed to check message idempotency: %w", err)
			}
			if !acquired {
				return &errors.SkipMessageError{
					Reason: fmt.Sprintf("message %s already processed", msg.MessageID),
				}
			}

			alerted, err := alerts.HandleEscalation(ctx, msg)
			if err != nil {
				// 处理失败解除标记，Nack 后重试
				if unmarkErr := cache.UnmarkMessageProcessing(ctx, msg.MessageID); unmarkErr != nil {
					logger.Logger.Warn("Failed to unmark message processing",
						zap.String("message_id", msg.MessageID),
						zap.Error(unmarkErr),
					)
				}
				return err
			}

			if err := cache.MarkMessageProcessed(ctx, msg.MessageID, 0); err != nil {
				logger.Logger.Warn("Failed to mark message processed",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
			}

			if !alerted {
				return &errors.SkipMessageError{
					Reason: fmt.Sprintf("escalation for log_code %d already alerted", msg.LogCode),
				}
			}

			logger.Logger.Info("Caregiver alert processed",
				zap.String("message_id", msg.MessageID),
				zap.Int64("log_code", msg.LogCode),
				zap.Int64("reminder_id", msg.ReminderID),
			)
			return nil
		},
	})
}
