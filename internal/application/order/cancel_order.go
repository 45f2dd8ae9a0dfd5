// Package order 订单用例：取消、查询、发货、签收、支付状态回写
package order

import (
	"context"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/audit"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/shared"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/logger"
	"github.com/xiebiao/storefront/pkg/metrics"
	"github.com/xiebiao/storefront/pkg/outbox"
	"github.com/xiebiao/storefront/pkg/tracing"
)

// CancelOrderUseCase 取消订单用例
//
// 只有待处理、处理中的订单可以取消。
// 库存按下单时记录的批次分配精确回补；没有分配记录的历史订单回补到该规格最新的批次。
// 支付状态不在这里修改，退款由支付系统处理后通过支付事件回写。
type CancelOrderUseCase struct {
	tx     shared.Transactor
	orders order.Repository
	stock  inventory.Service
	audit  audit.Sink
	events outbox.Writer
	log    *zap.Logger
	now    func() time.Time
}

// NewCancelOrderUseCase 创建取消订单用例
func NewCancelOrderUseCase(
	tx shared.Transactor,
	orders order.Repository,
	stock inventory.Service,
	sink audit.Sink,
	events outbox.Writer,
	log *zap.Logger,
) *CancelOrderUseCase {
	metrics.InitMetrics()
	return &CancelOrderUseCase{
		tx:     tx,
		orders: orders,
		stock:  stock,
		audit:  sink,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// CancelRequest 取消请求
type CancelRequest struct {
	OrderID uint
	ActorID uint // 操作人，写入审计
	OwnerID uint // 非0时只允许取消该用户自己的订单
	Reason  string
}

// restock 一次回补
type restock struct {
	variantID uint
	batchID   uint
	quantity  int
}

// Execute 取消订单
func (uc *CancelOrderUseCase) Execute(ctx context.Context, req CancelRequest) (*order.Order, error) {
	ctx, span := tracing.StartSpan(ctx, "order", "order.Cancel")
	defer span.End()

	var result *order.Order
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		o, err := uc.orders.LockByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if req.OwnerID != 0 && !o.IsOwnedBy(req.OwnerID) {
			return order.ErrOrderNotFound
		}
		if !o.IsCancellable() {
			return order.ErrInvalidStatusTransition.WithDetails(map[string]interface{}{
				"order_id": o.ID,
				"from":     o.Status.String(),
				"to":       order.OrderStatusCancelled.String(),
			})
		}

		before := o.Snapshot()

		plan, err := uc.plan(ctx, o)
		if err != nil {
			return err
		}
		for _, r := range plan {
			if _, err := uc.stock.Restock(ctx, req.ActorID, r.batchID, r.quantity); err != nil {
				return err
			}
		}

		if err := o.Cancel(req.Reason, uc.now()); err != nil {
			return err
		}
		if err := uc.orders.Update(ctx, o); err != nil {
			return err
		}

		if err := uc.audit.Record(ctx, audit.Entry{
			EntityType: audit.EntityOrder,
			EntityID:   o.ID,
			Action:     audit.ActionCancel,
			OldValues:  before,
			NewValues:  o.Snapshot(),
			ActorID:    req.ActorID,
			CreatedAt:  o.UpdatedAt,
		}); err != nil {
			return err
		}

		ev, err := outbox.NewEvent(ctx, order.AggregateType, o.OrderNo, outbox.EventOrderCancelled, order.NewCancelledEvent(o))
		if err != nil {
			return apperrors.Wrap(err, "构造取消事件失败")
		}
		if err := uc.events.Append(ctx, ev); err != nil {
			return apperrors.Wrap(err, "写入取消事件失败")
		}

		result = o
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	metrics.IncCounter(metrics.OrdersCancelledTotal)
	logger.WithTrace(ctx, uc.log).Info("订单已取消",
		zap.String("order_no", result.OrderNo),
		zap.Uint("actor_id", req.ActorID),
		zap.String("reason", req.Reason),
	)
	return result, nil
}

// plan 计算回补明细，按(规格ID, 批次ID)排序，与下单的加锁顺序一致
// 没有分配记录的历史订单回补到规格最新批次，这些规格按ID升序加锁
func (uc *CancelOrderUseCase) plan(ctx context.Context, o *order.Order) ([]restock, error) {
	allocations, err := uc.orders.FindAllocations(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	var (
		plan   []restock
		legacy []*order.OrderItem
	)
	for _, item := range o.Items {
		list := allocations[item.ID]
		if len(list) == 0 {
			legacy = append(legacy, item)
			continue
		}
		for _, a := range list {
			plan = append(plan, restock{variantID: a.VariantID, batchID: a.BatchID, quantity: a.Quantity})
		}
	}

	if len(legacy) > 0 {
		variantIDs := make([]uint, 0, len(legacy))
		for _, item := range legacy {
			if !slices.Contains(variantIDs, item.VariantID) {
				variantIDs = append(variantIDs, item.VariantID)
			}
		}
		slices.Sort(variantIDs)

		newest := make(map[uint]uint, len(variantIDs))
		for _, id := range variantIDs {
			vs, err := uc.stock.LockVariant(ctx, id)
			if err != nil {
				return nil, err
			}
			b := vs.Newest()
			if b == nil {
				return nil, inventory.ErrBatchNotFound.WithDetails(map[string]interface{}{
					"variant_id": id,
				})
			}
			newest[id] = b.ID
		}
		for _, item := range legacy {
			plan = append(plan, restock{variantID: item.VariantID, batchID: newest[item.VariantID], quantity: item.Quantity})
		}
	}

	sort.SliceStable(plan, func(i, j int) bool {
		if plan[i].variantID != plan[j].variantID {
			return plan[i].variantID < plan[j].variantID
		}
		return plan[i].batchID < plan[j].batchID
	})
	return plan, nil
}
