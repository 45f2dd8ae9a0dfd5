package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/audit"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/shared"
	"github.com/xiebiao/storefront/pkg/logger"
)

// ManageOrderUseCase 订单查询与履约状态流转
type ManageOrderUseCase struct {
	tx     shared.Transactor
	orders order.Repository
	audit  audit.Sink
	log    *zap.Logger
	now    func() time.Time
}

// NewManageOrderUseCase 创建订单管理用例
func NewManageOrderUseCase(tx shared.Transactor, orders order.Repository, sink audit.Sink, log *zap.Logger) *ManageOrderUseCase {
	return &ManageOrderUseCase{
		tx:     tx,
		orders: orders,
		audit:  sink,
		log:    log,
		now:    time.Now,
	}
}

// Get 查询订单详情；ownerID非0时只能查询自己的订单
func (uc *ManageOrderUseCase) Get(ctx context.Context, id, ownerID uint) (*order.Order, error) {
	o, err := uc.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != 0 && !o.IsOwnedBy(ownerID) {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

// List 分页查询订单；userID为0时查询全部
func (uc *ManageOrderUseCase) List(ctx context.Context, userID uint, page, pageSize int) ([]*order.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.orders.ListByUserID(ctx, userID, page, pageSize)
}

// Ship 发货：处理中 → 已发货
func (uc *ManageOrderUseCase) Ship(ctx context.Context, actorID, id uint) (*order.Order, error) {
	return uc.transition(ctx, actorID, func(ctx context.Context) (*order.Order, error) {
		return uc.orders.LockByID(ctx, id)
	}, func(o *order.Order, now time.Time) error {
		return o.Ship(now)
	})
}

// Deliver 签收：已发货 → 已送达
func (uc *ManageOrderUseCase) Deliver(ctx context.Context, actorID, id uint) (*order.Order, error) {
	return uc.transition(ctx, actorID, func(ctx context.Context) (*order.Order, error) {
		return uc.orders.LockByID(ctx, id)
	}, func(o *order.Order, now time.Time) error {
		return o.Deliver(now)
	})
}

// UpdatePaymentStatus 支付状态回写（支付事件消费者调用）
// 重复投递同一状态时直接返回，不写审计
func (uc *ManageOrderUseCase) UpdatePaymentStatus(ctx context.Context, orderNo string, status order.PaymentStatus) (*order.Order, error) {
	return uc.transition(ctx, 0, func(ctx context.Context) (*order.Order, error) {
		return uc.orders.LockByOrderNo(ctx, orderNo)
	}, func(o *order.Order, now time.Time) error {
		return o.SetPaymentStatus(status, now)
	})
}

// transition 加锁读取 → 状态变更 → 保存 → 审计
func (uc *ManageOrderUseCase) transition(
	ctx context.Context,
	actorID uint,
	load func(ctx context.Context) (*order.Order, error),
	apply func(o *order.Order, now time.Time) error,
) (*order.Order, error) {
	var result *order.Order
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		o, err := load(ctx)
		if err != nil {
			return err
		}

		before := o.Snapshot()
		status, payment := o.Status, o.PaymentStatus
		if err := apply(o, uc.now()); err != nil {
			return err
		}
		result = o
		if o.Status == status && o.PaymentStatus == payment {
			return nil
		}

		if err := uc.orders.Update(ctx, o); err != nil {
			return err
		}
		return uc.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityOrder,
			EntityID:   o.ID,
			Action:     audit.ActionUpdate,
			OldValues:  before,
			NewValues:  o.Snapshot(),
			ActorID:    actorID,
			CreatedAt:  o.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, uc.log).Info("订单状态已更新",
		zap.String("order_no", result.OrderNo),
		zap.String("status", result.Status.String()),
		zap.String("payment_status", result.PaymentStatus.String()),
	)
	return result, nil
}
