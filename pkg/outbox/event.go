// Package outbox 事务性发件箱
//
// 业务事务内把集成事件写入outbox_events表（与业务数据同一事务提交），
// 再由Relay异步投递到RabbitMQ或Kafka。投递至少一次，消费方按event_id去重。
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiebiao/storefront/pkg/tracing"
)

// Status 事件状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed" // 超过最大重试次数，需人工处理
)

// 事件类型（同时作为AMQP routing key）
const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
)

// Event 发件箱事件
type Event struct {
	ID            uint
	EventID       string // 全局唯一，消费方去重用
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	Status        Status
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
}

// NewEvent 构造待写入的事件，payload序列化为JSON
// 当前span的traceparent一并保存，投递时写入消息头
func NewEvent(ctx context.Context, aggregateType, aggregateID, eventType string, payload interface{}) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}
	return &Event{
		EventID:       uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       body,
		Headers:       map[string]string{},
		Traceparent:   tracing.Traceparent(ctx),
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}, nil
}

// messageHeaders 投递时附带的消息头
func (e Event) messageHeaders() map[string]string {
	headers := make(map[string]string, len(e.Headers)+3)
	for k, v := range e.Headers {
		headers[k] = v
	}
	headers["event_id"] = e.EventID
	headers["event_type"] = e.Type
	if e.Traceparent != "" {
		headers["traceparent"] = e.Traceparent
	}
	return headers
}

// Writer 在业务事务内追加事件（ctx携带事务）
type Writer interface {
	Append(ctx context.Context, event *Event) error
}
