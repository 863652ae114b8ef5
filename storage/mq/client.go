package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"CogitoRadio/config"
)

// 交换机与队列拓扑。trigger 使用 fanout：每个 server 实例绑定一个独占队列，
// 实现对所有在线实例的扇出；escalation 使用持久队列由 worker 消费。
const (
	TriggerExchange      = "reminder.trigger"
	EscalationExchange   = "reminder.escalation"
	EscalationQueue      = "reminder.escalation.worker"
	EscalationRoutingKey = "escalation"
)

var (
	conn   *amqp.Connection
	connMu sync.Mutex
)

func Init() error {
	connMu.Lock()
	defer connMu.Unlock()

	if conn != nil && !conn.IsClosed() {
		return nil
	}

	url := config.Cfg.GetRabbitMQURL()
	c, err := amqp.Dial(url)
	if err != nil {
		return err
	}

	ch, err := c.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		return err
	}

	conn = c
	return nil
}

// Connection 返回底层连接，未初始化时返回 nil
func Connection() *amqp.Connection {
	connMu.Lock()
	defer connMu.Unlock()
	return conn
}

func Close(ctx context.Context) error {
	connMu.Lock()
	defer connMu.Unlock()

	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		conn = nil
		return err
	}
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		TriggerExchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare trigger exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(
		EscalationExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare escalation exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		EscalationQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare escalation queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, EscalationRoutingKey, EscalationExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind escalation queue: %w", err)
	}

	return nil
}
