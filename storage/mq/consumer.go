package mq

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	cerrors "CogitoRadio/pkg/errors"
	"CogitoRadio/pkg/logger"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	// Queue 为空时声明一个独占的自动删除队列并绑定到 Exchange，
	// 用于 fanout 场景（每个进程实例各收一份）。
	Queue         string
	Exchange      string
	RoutingKey    string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

func Consume(ctx context.Context, opts ConsumeOptions) error {
	conn := Connection()

	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	queue := opts.Queue
	if queue == "" {
		q, err := ch.QueueDeclare(
			"",    // server-named
			false, // durable
			true,  // auto-delete
			true,  // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare exclusive queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, opts.RoutingKey, opts.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind exclusive queue: %w", err)
		}
		queue = q.Name
	}

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		queue,
		opts.ConsumerTag,
		false, // auto-ack = false
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed: %s", queue)
			}

			msgCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))

			if err := opts.Handler(msgCtx, msg.Body); err != nil {
				var skip *cerrors.SkipMessageError
				if errors.As(err, &skip) {
					logger.Logger.Info("Skipping message",
						zap.String("queue", queue),
						zap.String("reason", skip.Reason),
					)
					msg.Ack(false)
					continue
				}

				logger.Logger.Error("Failed to process message",
					zap.String("queue", queue),
					zap.String("consumer_tag", opts.ConsumerTag),
					zap.Error(err),
				)

				msg.Nack(false, true) // requeue = true
				continue
			}

			msg.Ack(false)
		}
	}
}
