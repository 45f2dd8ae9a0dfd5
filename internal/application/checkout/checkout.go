// Package checkout 购物车结算下单
package checkout

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/audit"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/shared"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/logger"
	"github.com/xiebiao/storefront/pkg/metrics"
	"github.com/xiebiao/storefront/pkg/outbox"
	"github.com/xiebiao/storefront/pkg/tracing"
)

const tracerName = "checkout"

// Options 下单参数
type Options struct {
	Pricing        Pricing
	OrderNoRetries int // 订单号冲突时的最大尝试次数
}

// UseCase 结算下单用例
//
// 整个流程在一个事务内完成：
//  1. 锁定购物车，校验非空
//  2. 校验每个条目都选择了规格，规格存在且已上架
//  3. 按规格ID升序锁定库存批次（所有下单请求加锁顺序一致，避免死锁）
//  4. 按购物车顺序校验每个规格的总可用库存，任何写入之前完成
//  5. 计价并创建订单（订单号冲突时重新生成）
//  6. 按FIFO扣减库存并记录批次分配
//  7. 清空购物车条目，写审计日志和order.created事件
//
// 任何一步失败整个事务回滚，库存、购物车、订单都保持原样。
type UseCase struct {
	tx      shared.Transactor
	carts   cart.Repository
	catalog catalog.Repository
	orders  order.Repository
	stock   inventory.Service
	audit   audit.Sink
	events  outbox.Writer
	opts    Options
	log     *zap.Logger
	now     func() time.Time
}

// NewUseCase 创建下单用例
func NewUseCase(
	tx shared.Transactor,
	carts cart.Repository,
	catalogRepo catalog.Repository,
	orders order.Repository,
	stock inventory.Service,
	sink audit.Sink,
	events outbox.Writer,
	opts Options,
	log *zap.Logger,
) *UseCase {
	metrics.InitMetrics()
	if opts.OrderNoRetries < 1 {
		opts.OrderNoRetries = 3
	}
	return &UseCase{
		tx:      tx,
		carts:   carts,
		catalog: catalogRepo,
		orders:  orders,
		stock:   stock,
		audit:   sink,
		events:  events,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Request 下单请求
type Request struct {
	UserID   uint
	Shipping order.ShippingInfo
	Note     string
}

// line 购物车条目与其商品、规格
type line struct {
	item    *cart.Item
	product *catalog.Product
	variant *catalog.Variant
}

// Execute 执行下单
func (uc *UseCase) Execute(ctx context.Context, req Request) (result *order.Order, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "checkout.Execute")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(req.UserID)))

	start := time.Now()
	metrics.IncGauge(metrics.OrdersInProgress)
	defer func() {
		metrics.DecGauge(metrics.OrdersInProgress)
		metrics.ObserveHistogram(metrics.OrderCreationDuration, time.Since(start).Seconds())
		if err != nil {
			tracing.RecordError(span, err)
			metrics.IncCounterVec(metrics.OrdersFailedTotal, map[string]string{
				"reason": apperrors.KindOfErr(err).String(),
			})
			return
		}
		metrics.IncCounter(metrics.OrdersCreatedTotal)
	}()

	if err := req.Shipping.Validate(); err != nil {
		return nil, err
	}

	log := logger.WithTrace(ctx, uc.log)

	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		o, err := uc.place(ctx, req)
		if err != nil {
			return err
		}
		result = o
		return nil
	})
	if err != nil {
		log.Warn("下单失败", zap.Uint("user_id", req.UserID), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("order.no", result.OrderNo))
	log.Info("下单成功",
		zap.Uint("user_id", req.UserID),
		zap.String("order_no", result.OrderNo),
		zap.Int64("total", result.Total),
	)
	return result, nil
}

// place 事务内的下单流程
func (uc *UseCase) place(ctx context.Context, req Request) (*order.Order, error) {
	// 1. 锁定购物车
	c, err := uc.carts.LockByUserID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// 2. 校验规格
	lines, variantIDs, err := uc.resolve(ctx, c)
	if err != nil {
		return nil, err
	}

	// 3. 按规格ID升序加锁
	locked := make(map[uint]*inventory.VariantStock, len(variantIDs))
	for _, id := range sortedIDs(variantIDs) {
		vs, err := uc.stock.LockVariant(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = vs
	}

	// 4. 按购物车顺序校验库存
	required := requiredByVariant(lines)
	for _, id := range variantIDs {
		if err := inventory.ValidateTotalAvailable(id, locked[id].Batches, required[id]); err != nil {
			return nil, err
		}
	}

	// 5. 计价并创建订单
	o := uc.buildOrder(req, c, lines)
	if err := uc.create(ctx, o); err != nil {
		return nil, err
	}

	// 6. 扣减库存
	consumed := 0
	var allocations []*order.Allocation
	for _, id := range variantIDs {
		consumptions, err := uc.stock.ConsumeLocked(ctx, req.UserID, locked[id], required[id])
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, splitConsumptions(id, consumptions, o.Items)...)
		consumed += required[id]
	}
	if err := uc.orders.AddAllocations(ctx, allocations); err != nil {
		return nil, err
	}

	// 7. 清空购物车、审计、事件
	if err := uc.carts.ClearItems(ctx, c.ID); err != nil {
		return nil, err
	}

	if err := uc.audit.Record(ctx, audit.Entry{
		EntityType: audit.EntityOrder,
		EntityID:   o.ID,
		Action:     audit.ActionCreate,
		NewValues:  o.Snapshot(),
		ActorID:    req.UserID,
		CreatedAt:  o.CreatedAt,
	}); err != nil {
		return nil, err
	}

	ev, err := outbox.NewEvent(ctx, order.AggregateType, o.OrderNo, outbox.EventOrderCreated, order.NewCreatedEvent(o))
	if err != nil {
		return nil, apperrors.Wrap(err, "构造下单事件失败")
	}
	if err := uc.events.Append(ctx, ev); err != nil {
		return nil, apperrors.Wrap(err, "写入下单事件失败")
	}

	metrics.AddCounter(metrics.StockUnitsConsumedTotal, float64(consumed))
	return o, nil
}

// resolve 加载条目对应的商品和规格
// 返回的规格ID按在购物车中首次出现的顺序去重
func (uc *UseCase) resolve(ctx context.Context, c *cart.Cart) ([]line, []uint, error) {
	var variantIDs, productIDs []uint
	for _, it := range c.Items {
		if it.VariantID == 0 {
			return nil, nil, ErrMissingVariant.WithDetails(map[string]interface{}{
				"cart_item_id": it.ID,
				"product_id":   it.ProductID,
			})
		}
		if !slices.Contains(variantIDs, it.VariantID) {
			variantIDs = append(variantIDs, it.VariantID)
		}
		if !slices.Contains(productIDs, it.ProductID) {
			productIDs = append(productIDs, it.ProductID)
		}
	}

	variants, err := uc.catalog.FindVariants(ctx, variantIDs)
	if err != nil {
		return nil, nil, err
	}
	products, err := uc.catalog.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]line, len(c.Items))
	for i, it := range c.Items {
		v, ok := variants[it.VariantID]
		if !ok || !v.IsActive || !v.BelongsTo(it.ProductID) {
			return nil, nil, catalog.ErrVariantNotFound.WithDetails(map[string]interface{}{
				"variant_id":   it.VariantID,
				"product_id":   it.ProductID,
				"cart_item_id": it.ID,
			})
		}
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, catalog.ErrProductNotFound.WithDetails(map[string]interface{}{
				"product_id": it.ProductID,
			})
		}
		lines[i] = line{item: it, product: p, variant: v}
	}
	return lines, variantIDs, nil
}

func (uc *UseCase) buildOrder(req Request, c *cart.Cart, lines []line) *order.Order {
	now := uc.now()

	items := make([]*order.OrderItem, len(lines))
	var subtotal int64
	for i, l := range lines {
		total := l.variant.Price * int64(l.item.Quantity)
		subtotal += total
		items[i] = &order.OrderItem{
			ProductID:   l.product.ID,
			VariantID:   l.variant.ID,
			ProductName: l.product.Name,
			VariantName: l.variant.Name,
			SKU:         l.variant.SKU,
			Attributes:  l.variant.CopyAttributes(),
			Quantity:    l.item.Quantity,
			UnitPrice:   l.variant.Price,
			TotalPrice:  total,
		}
	}

	q := uc.opts.Pricing.Quote(subtotal, c.DiscountAmount)

	return &order.Order{
		UserID:         req.UserID,
		Status:         order.OrderStatusProcessing,
		PaymentStatus:  order.PaymentStatusPending,
		Subtotal:       q.Subtotal,
		DiscountAmount: q.Discount,
		TaxAmount:      q.Tax,
		ShippingAmount: q.Shipping,
		Total:          q.Total,
		Shipping:       req.Shipping,
		Note:           req.Note,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// create 创建订单，订单号冲突时重新生成
func (uc *UseCase) create(ctx context.Context, o *order.Order) error {
	for attempt := 0; attempt < uc.opts.OrderNoRetries; attempt++ {
		o.OrderNo = order.GenerateOrderNo(uc.now())
		err := uc.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, order.ErrDuplicateOrderNo) {
			return err
		}
		uc.log.Warn("订单号冲突，重新生成", zap.String("order_no", o.OrderNo), zap.Int("attempt", attempt+1))
	}
	return order.ErrOrderNoGenerate
}

func requiredByVariant(lines []line) map[uint]int {
	required := make(map[uint]int)
	for _, l := range lines {
		required[l.variant.ID] += l.item.Quantity
	}
	return required
}

func sortedIDs(ids []uint) []uint {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

// splitConsumptions 把一个规格的批次扣减按购物车顺序分摊到该规格的订单明细
// 例如明细数量[3,4]，扣减[{b1,2},{b2,5}] → [{item1,b1,2},{item1,b2,1},{item2,b2,4}]
func splitConsumptions(variantID uint, consumptions []inventory.Consumption, items []*order.OrderItem) []*order.Allocation {
	var out []*order.Allocation

	idx := 0
	left := 0
	if len(consumptions) > 0 {
		left = consumptions[0].Quantity
	}

	for _, it := range items {
		if it.VariantID != variantID {
			continue
		}
		need := it.Quantity
		for need > 0 && idx < len(consumptions) {
			take := min(need, left)
			out = append(out, &order.Allocation{
				OrderItemID: it.ID,
				BatchID:     consumptions[idx].BatchID,
				VariantID:   variantID,
				Quantity:    take,
			})
			need -= take
			left -= take
			if left == 0 {
				idx++
				if idx < len(consumptions) {
					left = consumptions[idx].Quantity
				}
			}
		}
	}
	return out
}
