package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/xiebiao/storefront/pkg/circuitbreaker"
)

// Dispatcher 把事件投递到消息中间件
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
	// Name 用作指标的broker标签
	Name() string
}

// Producer kafka.Writer的最小接口，便于测试替换
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter 创建kafka.Writer
// RequireAll保证所有ISR副本写入后才返回
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{}, // 同一聚合的事件落在同一分区，保证顺序
		RequiredAcks: kafka.RequireAll,
	}
}

// KafkaDispatcher 投递到Kafka topic，消息key为聚合ID
type KafkaDispatcher struct {
	producer Producer
	topic    string
}

func NewKafkaDispatcher(producer Producer, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic}
}

func (d *KafkaDispatcher) Name() string { return "kafka" }

func (d *KafkaDispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := event.messageHeaders()
	kh := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}

	return d.producer.WriteMessages(ctx, kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: kh,
	})
}

// Publisher 由pkg/mq.Publisher实现
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, body []byte, headers map[string]string) error
}

// AMQPDispatcher 投递到RabbitMQ Topic Exchange，routing key为事件类型
type AMQPDispatcher struct {
	publisher Publisher
}

func NewAMQPDispatcher(publisher Publisher) *AMQPDispatcher {
	return &AMQPDispatcher{publisher: publisher}
}

func (d *AMQPDispatcher) Name() string { return "rabbitmq" }

func (d *AMQPDispatcher) Dispatch(ctx context.Context, event Event) error {
	return d.publisher.PublishWithContext(ctx, event.Type, event.Payload, event.messageHeaders())
}

// BreakerDispatcher 用熔断器包装下游Dispatcher
// 熔断打开时直接返回circuitbreaker.ErrOpenState，中继据此暂停本轮投递
type BreakerDispatcher struct {
	next    Dispatcher
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerDispatcher(next Dispatcher, breaker *circuitbreaker.CircuitBreaker) *BreakerDispatcher {
	return &BreakerDispatcher{next: next, breaker: breaker}
}

func (d *BreakerDispatcher) Name() string { return d.next.Name() }

func (d *BreakerDispatcher) Dispatch(ctx context.Context, event Event) error {
	return d.breaker.Execute(ctx, func(ctx context.Context) error {
		return d.next.Dispatch(ctx, event)
	})
}
