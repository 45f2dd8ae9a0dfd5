// Package mq 消息入口：消费支付网关回写的支付事件
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	apporder "github.com/xiebiao/storefront/internal/application/order"
	"github.com/xiebiao/storefront/internal/domain/order"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/logger"
	"github.com/xiebiao/storefront/pkg/metrics"
	pkgmq "github.com/xiebiao/storefront/pkg/mq"
	"github.com/xiebiao/storefront/pkg/tracing"
)

const tracerName = "payment-consumer"

// PaymentEvent 支付事件消息体
//
//	{"order_no": "ORD20240101...", "status": "paid"}
type PaymentEvent struct {
	OrderNo string `json:"order_no"`
	Status  string `json:"status"`
}

// PaymentUpdater 支付状态回写
type PaymentUpdater interface {
	UpdatePaymentStatus(ctx context.Context, orderNo string, status order.PaymentStatus) (*order.Order, error)
}

var _ PaymentUpdater = (*apporder.ManageOrderUseCase)(nil)

// PaymentConsumer 支付事件处理器
type PaymentConsumer struct {
	orders PaymentUpdater
	queue  string
	log    *zap.Logger
}

// NewPaymentConsumer 创建支付事件处理器，queue仅用作指标标签
func NewPaymentConsumer(orders PaymentUpdater, queue string, log *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{orders: orders, queue: queue, log: log}
}

// Handle 实现pkg/mq.Handler
//
// 消息格式错误、订单不存在、状态非法转换都不会因重试而成功，包装ErrPermanent后丢弃；
// 其余错误（数据库、并发冲突）重新入队。
func (c *PaymentConsumer) Handle(ctx context.Context, d pkgmq.Delivery) (err error) {
	metrics.InitMetrics()
	start := time.Now()
	defer func() {
		metrics.ObserveHistogram(metrics.MessageProcessingDuration, time.Since(start).Seconds())
		metrics.IncCounterVec(metrics.MessagesConsumedTotal, map[string]string{
			"queue":  c.queue,
			"result": consumeResult(err),
		})
	}()

	// 沿用发布方写入的traceparent
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(d.Headers))
	ctx, span := tracing.StartSpan(ctx, tracerName, "payment "+d.RoutingKey)
	defer span.End()

	evt, err := decodePaymentEvent(d.Body)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	status, ok := order.ParsePaymentStatus(evt.Status)
	if !ok {
		err = fmt.Errorf("%w: 未知支付状态 %q", pkgmq.ErrPermanent, evt.Status)
		tracing.RecordError(span, err)
		return err
	}

	o, err := c.orders.UpdatePaymentStatus(ctx, evt.OrderNo, status)
	if err != nil {
		tracing.RecordError(span, err)
		if isPermanent(err) {
			return fmt.Errorf("%w: %w", pkgmq.ErrPermanent, err)
		}
		return err
	}

	logger.WithTrace(ctx, c.log).Info("支付状态已回写",
		zap.String("order_no", o.OrderNo),
		zap.String("payment_status", o.PaymentStatus.String()),
	)
	return nil
}

func decodePaymentEvent(body []byte) (*PaymentEvent, error) {
	var evt PaymentEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: 消息体不是合法JSON: %v", pkgmq.ErrPermanent, err)
	}
	evt.OrderNo = strings.TrimSpace(evt.OrderNo)
	if evt.OrderNo == "" {
		return nil, fmt.Errorf("%w: 缺少order_no", pkgmq.ErrPermanent)
	}
	return &evt, nil
}

func isPermanent(err error) bool {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrInvalidPaymentTransition):
		return true
	}
	return apperrors.KindOfErr(err) == apperrors.KindValidation
}

func consumeResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, pkgmq.ErrPermanent):
		return "dropped"
	default:
		return "requeued"
	}
}
