package mq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// headerCarrier 让 amqp.Table 满足 otel 的 TextMapCarrier，
// 用于把 traceparent 等上下文在发布者和消费者之间传递。
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
