package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/pkg/circuitbreaker"
	"github.com/xiebiao/storefront/pkg/metrics"
)

// Store 中继使用的存储接口
type Store interface {
	// LockBatch 领取一批待投递事件（FOR UPDATE SKIP LOCKED），
	// 标记为in_progress并设置租约；租约过期的in_progress事件可被重新领取
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []uint) error
	// MarkFailed 重试次数+1；达到maxRetries后状态置为failed，否则回到pending
	MarkFailed(ctx context.Context, id uint, errMsg string, maxRetries int) error
}

// RelayOptions 中继参数，零值使用默认
type RelayOptions struct {
	RelayID    string
	BatchSize  int
	Interval   time.Duration
	Lease      time.Duration
	MaxRetries int
}

// Relay 轮询发件箱并投递
type Relay struct {
	log        *zap.Logger
	store      Store
	dispatcher Dispatcher
	relayID    string
	batchSize  int
	interval   time.Duration
	lease      time.Duration
	maxRetries int
}

// NewRelay 创建中继
func NewRelay(log *zap.Logger, store Store, dispatcher Dispatcher, opts RelayOptions) *Relay {
	metrics.InitMetrics()

	r := &Relay{
		log:        log,
		store:      store,
		dispatcher: dispatcher,
		relayID:    opts.RelayID,
		batchSize:  opts.BatchSize,
		interval:   opts.Interval,
		lease:      opts.Lease,
		maxRetries: opts.MaxRetries,
	}
	if r.relayID == "" {
		r.relayID = "relay-" + uuid.NewString()[:8]
	}
	if r.batchSize <= 0 {
		r.batchSize = 100
	}
	if r.interval <= 0 {
		r.interval = 500 * time.Millisecond
	}
	if r.lease <= 0 {
		r.lease = 5 * time.Second
	}
	if r.maxRetries <= 0 {
		r.maxRetries = 10
	}
	return r
}

// Run 按interval轮询直到ctx取消
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info("outbox relay started", zap.String("relay_id", r.relayID), zap.String("broker", r.dispatcher.Name()))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopping", zap.String("relay_id", r.relayID))
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("outbox relay round failed", zap.Error(err))
			}
		}
	}
}

// RunOnce 处理一批事件，返回投递成功的数量
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	sent := make([]uint, 0, len(events))
	for _, e := range events {
		if err := r.dispatcher.Dispatch(ctx, e); err != nil {
			// 熔断打开：剩余事件不计重试，租约到期后重新领取
			if errors.Is(err, circuitbreaker.ErrOpenState) {
				r.log.Debug("outbox dispatch paused, circuit open", zap.Uint("from_id", e.ID))
				break
			}
			metrics.IncCounterVec(metrics.MessagesPublishedTotal, map[string]string{"broker": r.dispatcher.Name(), "result": "failure"})
			r.log.Warn("outbox dispatch failed",
				zap.Uint("id", e.ID),
				zap.String("event_id", e.EventID),
				zap.String("type", e.Type),
				zap.Int("retry", e.RetryCount+1),
				zap.Error(err),
			)
			if mErr := r.store.MarkFailed(ctx, e.ID, err.Error(), r.maxRetries); mErr != nil {
				r.log.Error("outbox mark failed error", zap.Uint("id", e.ID), zap.Error(mErr))
			}
			continue
		}
		metrics.IncCounterVec(metrics.MessagesPublishedTotal, map[string]string{"broker": r.dispatcher.Name(), "result": "success"})
		sent = append(sent, e.ID)
	}

	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			return 0, err
		}
		r.log.Debug("outbox dispatched", zap.Int("count", len(sent)))
	}
	return len(sent), nil
}
