package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"CogitoRadio/internal/model"
	"CogitoRadio/pkg/logger"
	"CogitoRadio/storage/mq"
)

// Producer 把触发和升级消息发到 RabbitMQ，实现 schedule.TriggerPublisher
type Producer struct{}

func NewProducer() *Producer {
	return &Producer{}
}

// PublishTrigger 广播触发消息到所有 server 实例
func (p *Producer) PublishTrigger(ctx context.Context, msg model.TriggerMessage) error {
	if err := mq.PublishMessage(ctx, mq.TriggerExchange, "", msg); err != nil {
		return fmt.Errorf("failed to publish trigger message: %w", err)
	}

	logger.Logger.Info("Trigger message published",
		zap.String("message_id", msg.MessageID),
		zap.Int64("reminder_id", msg.Reminder.ReminderID),
		zap.Int64("log_code", msg.LogCode),
	)
	return nil
}

// PublishEscalation 投递升级告警到 worker 队列
func (p *Producer) PublishEscalation(ctx context.Context, msg model.EscalationMessage) error {
	if err := mq.PublishMessage(ctx, mq.EscalationExchange, mq.EscalationRoutingKey, msg); err != nil {
		return fmt.Errorf("failed to publish escalation message: %w", err)
	}

	logger.Logger.Info("Escalation message published",
		zap.String("message_id", msg.MessageID),
		zap.Int64("reminder_id", msg.ReminderID),
		zap.Int64("log_code", msg.LogCode),
	)
	return nil
}
