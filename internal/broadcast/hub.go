package broadcast

// 进程内触发广播：MQ 消费者收到触发消息后，经 Hub 扇出到本实例
// 所有在线会话。无回放：发布时不在线的会话收不到，靠重连后轮询补偿。

import (
	"sync"

	"go.uber.org/zap"

	"CogitoRadio/internal/model"
	"CogitoRadio/pkg/logger"
)

const subscriberBuffer = 8

type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan model.TriggerMessage
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]chan model.TriggerMessage),
	}
}

// Subscribe 注册一个会话，返回其触发通道。重复订阅同一 id 会替换旧通道。
func (h *Hub) Subscribe(sessionID string) <-chan model.TriggerMessage {
	ch := make(chan model.TriggerMessage, subscriberBuffer)

	h.mu.Lock()
	if old, ok := h.subs[sessionID]; ok {
		close(old)
	}
	h.subs[sessionID] = ch
	h.mu.Unlock()

	return ch
}

// Unsubscribe 注销会话并关闭其通道
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	if ch, ok := h.subs[sessionID]; ok {
		delete(h.subs, sessionID)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish 把触发扇出给所有在线会话，不等待任何确认。
// 某个会话的缓冲已满时丢弃并告警，不能阻塞其他会话的投递。
// 返回成功投递的会话数；0 不是错误（没有在线客户端）。
func (h *Hub) Publish(msg model.TriggerMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, ch := range h.subs {
		select {
		case ch <- msg:
			delivered++
		default:
			logger.Logger.Warn("Session trigger buffer full, dropping",
				zap.String("session_id", id),
				zap.Int64("reminder_id", msg.Reminder.ReminderID),
			)
		}
	}

	return delivered
}

// Subscribers 当前在线会话数
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
