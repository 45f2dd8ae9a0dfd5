package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xiebiao/storefront/internal/domain/audit"
)

// Service 库存领域服务
//
// 所有方法都运行在调用方的事务中（ctx携带事务），自身不开启事务；
// 事务边界由application层的StockUseCase / 下单编排器负责。
// 每次修改的固定流程：校验 → 行锁 → 分配规则 → 带版本号更新 → 审计。
// actorID为操作人，写入审计日志。
type Service interface {
	CreateBatch(ctx context.Context, actorID uint, in CreateBatchInput) (*Batch, error)
	// UpdateBatch 只更新元数据，不涉及数量
	UpdateBatch(ctx context.Context, actorID uint, id uint, in UpdateBatchInput) (*Batch, error)
	// DeleteBatch 有预留或被订单引用时返回ErrBatchInUse
	DeleteBatch(ctx context.Context, actorID uint, id uint) error
	GetBatch(ctx context.Context, id uint) (*Batch, error)
	GetVariantStock(ctx context.Context, variantID uint) (*VariantStock, error)

	Reserve(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error)
	Release(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error)
	Fulfill(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error)
	Adjust(ctx context.Context, actorID uint, batchID uint, delta int, reason string) (*Batch, error)
	// Transfer 按批次ID升序加锁，避免两个相反方向的调拨互相等待
	Transfer(ctx context.Context, actorID uint, fromID, toID uint, qty int) (from *Batch, to *Batch, err error)
	Restock(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error)

	// LockVariant 锁定规格下全部批次
	LockVariant(ctx context.Context, variantID uint) (*VariantStock, error)
	// ConsumeLocked 在已锁定的聚合上按FIFO扣减并持久化
	ConsumeLocked(ctx context.Context, actorID uint, stock *VariantStock, qty int) ([]Consumption, error)

	List(ctx context.Context, filter Filter) ([]*Batch, int64, error)
	Stats(ctx context.Context) (*Stats, error)
	LowStock(ctx context.Context, page, pageSize int) ([]*Batch, int64, error)
	NeedsReorder(ctx context.Context, page, pageSize int) ([]*Batch, int64, error)
	Expired(ctx context.Context, page, pageSize int) ([]*Batch, int64, error)
}

// CreateBatchInput 新建批次参数
type CreateBatchInput struct {
	VariantID         uint
	SKU               string
	BatchNumber       string
	Location          string
	StockQuantity     int
	ReservedQuantity  int
	LowStockThreshold int
	ReorderLevel      int
	ExpiryDate        *time.Time
}

// UpdateBatchInput 元数据更新参数，nil字段保持不变
type UpdateBatchInput struct {
	SKU               *string
	BatchNumber       *string
	Location          *string
	LowStockThreshold *int
	ReorderLevel      *int
	ExpiryDate        *time.Time
	ClearExpiry       bool
}

type service struct {
	repo     Repository
	variants VariantChecker
	audit    audit.Sink
	now      func() time.Time
}

// NewService 创建库存领域服务
func NewService(repo Repository, variants VariantChecker, sink audit.Sink) Service {
	return &service{
		repo:     repo,
		variants: variants,
		audit:    sink,
		now:      time.Now,
	}
}

// CreateBatch 新建批次
func (s *service) CreateBatch(ctx context.Context, actorID uint, in CreateBatchInput) (*Batch, error) {
	in.SKU = strings.TrimSpace(in.SKU)

	if in.StockQuantity < 0 || in.ReservedQuantity < 0 || in.LowStockThreshold < 0 || in.ReorderLevel < 0 {
		return nil, ErrInvalidQuantity.WithMessage("数量和阈值不能为负数")
	}
	if in.ReservedQuantity > in.StockQuantity {
		return nil, ErrInvalidQuantity.WithMessage("预留数量不能超过库存数量")
	}
	if in.StockQuantity > MaxQuantity {
		return nil, ErrInvalidQuantity.WithMessage("批次库存不能超过%d", MaxQuantity)
	}
	if err := s.ensureVariant(ctx, in.VariantID); err != nil {
		return nil, err
	}
	if err := s.ensureSKUFree(ctx, in.SKU, 0); err != nil {
		return nil, err
	}

	batch := &Batch{
		VariantID:         in.VariantID,
		SKU:               in.SKU,
		BatchNumber:       in.BatchNumber,
		Location:          in.Location,
		StockQuantity:     in.StockQuantity,
		ReservedQuantity:  in.ReservedQuantity,
		LowStockThreshold: in.LowStockThreshold,
		ReorderLevel:      in.ReorderLevel,
		ExpiryDate:        in.ExpiryDate,
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, err
	}

	if err := s.record(ctx, actorID, batch.ID, audit.ActionCreate, nil, batch.Snapshot()); err != nil {
		return nil, err
	}
	return batch, nil
}

// UpdateBatch 更新批次元数据
func (s *service) UpdateBatch(ctx context.Context, actorID uint, id uint, in UpdateBatchInput) (*Batch, error) {
	if (in.LowStockThreshold != nil && *in.LowStockThreshold < 0) || (in.ReorderLevel != nil && *in.ReorderLevel < 0) {
		return nil, ErrInvalidQuantity.WithMessage("阈值不能为负数")
	}
	if in.SKU != nil {
		sku := strings.TrimSpace(*in.SKU)
		in.SKU = &sku
		if err := s.ensureSKUFree(ctx, sku, id); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, actorID, id, audit.ActionUpdate, nil, func(b *Batch) error {
		if in.SKU != nil {
			b.SKU = *in.SKU
		}
		if in.BatchNumber != nil {
			b.BatchNumber = *in.BatchNumber
		}
		if in.Location != nil {
			b.Location = *in.Location
		}
		if in.LowStockThreshold != nil {
			b.LowStockThreshold = *in.LowStockThreshold
		}
		if in.ReorderLevel != nil {
			b.ReorderLevel = *in.ReorderLevel
		}
		switch {
		case in.ClearExpiry:
			b.ExpiryDate = nil
		case in.ExpiryDate != nil:
			b.ExpiryDate = in.ExpiryDate
		}
		return nil
	})
}

// DeleteBatch 删除批次
func (s *service) DeleteBatch(ctx context.Context, actorID uint, id uint) error {
	batch, err := s.repo.LockByID(ctx, id)
	if err != nil {
		return err
	}
	if batch.ReservedQuantity > 0 {
		return ErrBatchInUse.WithDetails(map[string]interface{}{
			"batch_id": id,
			"reserved": batch.ReservedQuantity,
		})
	}

	referenced, err := s.repo.IsReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return ErrBatchInUse.WithDetails(map[string]interface{}{"batch_id": id})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.record(ctx, actorID, id, audit.ActionDelete, batch.Snapshot(), nil)
}

func (s *service) GetBatch(ctx context.Context, id uint) (*Batch, error) {
	return s.repo.FindByID(ctx, id)
}

// GetVariantStock 规格库存聚合（不加锁）
func (s *service) GetVariantStock(ctx context.Context, variantID uint) (*VariantStock, error) {
	if err := s.ensureVariant(ctx, variantID); err != nil {
		return nil, err
	}
	batches, err := s.repo.FindByVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return &VariantStock{VariantID: variantID, Batches: batches}, nil
}

func (s *service) Reserve(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error) {
	return s.mutate(ctx, actorID, batchID, audit.ActionReserve, nil, func(b *Batch) error {
		return Reserve(b, qty)
	})
}

func (s *service) Release(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error) {
	return s.mutate(ctx, actorID, batchID, audit.ActionRelease, nil, func(b *Batch) error {
		return Release(b, qty)
	})
}

func (s *service) Fulfill(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error) {
	return s.mutate(ctx, actorID, batchID, audit.ActionFulfill, nil, func(b *Batch) error {
		return Fulfill(b, qty)
	})
}

// Adjust 盘点调整，reason写入审计的new_values
func (s *service) Adjust(ctx context.Context, actorID uint, batchID uint, delta int, reason string) (*Batch, error) {
	extra := map[string]interface{}{"delta": delta}
	if reason != "" {
		extra["reason"] = reason
	}
	return s.mutate(ctx, actorID, batchID, audit.ActionAdjust, extra, func(b *Batch) error {
		return Adjust(b, delta)
	})
}

// Restock 回补库存
func (s *service) Restock(ctx context.Context, actorID uint, batchID uint, qty int) (*Batch, error) {
	return s.mutate(ctx, actorID, batchID, audit.ActionRestock, map[string]interface{}{"quantity": qty}, func(b *Batch) error {
		return Restock(b, qty)
	})
}

// Transfer 批次间调拨
func (s *service) Transfer(ctx context.Context, actorID uint, fromID, toID uint, qty int) (*Batch, *Batch, error) {
	if qty <= 0 {
		return nil, nil, ErrInvalidQuantity
	}
	if fromID == toID {
		return nil, nil, ErrVariantMismatch.WithMessage("调出和调入不能是同一批次")
	}

	// 固定加锁顺序
	firstID, secondID := fromID, toID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}
	first, err := s.repo.LockByID(ctx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.repo.LockByID(ctx, secondID)
	if err != nil {
		return nil, nil, err
	}
	from, to := first, second
	if from.ID != fromID {
		from, to = second, first
	}

	oldFrom, oldTo := from.Snapshot(), to.Snapshot()
	if err := Transfer(from, to, qty); err != nil {
		return nil, nil, err
	}

	if err := s.repo.Update(ctx, from); err != nil {
		return nil, nil, err
	}
	if err := s.repo.Update(ctx, to); err != nil {
		return nil, nil, err
	}

	extra := map[string]interface{}{"from_batch_id": fromID, "to_batch_id": toID, "quantity": qty}
	if err := s.record(ctx, actorID, from.ID, audit.ActionTransfer, oldFrom, merge(from.Snapshot(), extra)); err != nil {
		return nil, nil, err
	}
	if err := s.record(ctx, actorID, to.ID, audit.ActionTransfer, oldTo, merge(to.Snapshot(), extra)); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// LockVariant 锁定规格下全部批次
func (s *service) LockVariant(ctx context.Context, variantID uint) (*VariantStock, error) {
	batches, err := s.repo.LockByVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return &VariantStock{VariantID: variantID, Batches: batches}, nil
}

// ConsumeLocked FIFO扣减，逐个持久化并审计被扣减的批次
func (s *service) ConsumeLocked(ctx context.Context, actorID uint, stock *VariantStock, qty int) ([]Consumption, error) {
	before := make(map[uint]map[string]interface{}, len(stock.Batches))
	byID := make(map[uint]*Batch, len(stock.Batches))
	for _, b := range stock.Batches {
		before[b.ID] = b.Snapshot()
		byID[b.ID] = b
	}

	consumptions, err := ConsumeFIFO(stock.VariantID, stock.Batches, qty)
	if err != nil {
		return nil, err
	}

	for _, c := range consumptions {
		b := byID[c.BatchID]
		if err := s.repo.Update(ctx, b); err != nil {
			return nil, err
		}
		if err := s.record(ctx, actorID, b.ID, audit.ActionConsume, before[b.ID],
			merge(b.Snapshot(), map[string]interface{}{"quantity": c.Quantity})); err != nil {
			return nil, err
		}
	}
	return consumptions, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Batch, int64, error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx, s.now())
}

func (s *service) LowStock(ctx context.Context, page, pageSize int) ([]*Batch, int64, error) {
	return s.List(ctx, Filter{LowStock: true, Page: page, PageSize: pageSize})
}

func (s *service) NeedsReorder(ctx context.Context, page, pageSize int) ([]*Batch, int64, error) {
	return s.List(ctx, Filter{NeedsReorder: true, Page: page, PageSize: pageSize})
}

func (s *service) Expired(ctx context.Context, page, pageSize int) ([]*Batch, int64, error) {
	now := s.now()
	return s.List(ctx, Filter{ExpiredAt: &now, Page: page, PageSize: pageSize})
}

// =========================================
// 辅助函数
// =========================================

// mutate 锁定单个批次 → fn修改 → 带版本号更新 → 审计
func (s *service) mutate(ctx context.Context, actorID uint, batchID uint, action string, extra map[string]interface{}, fn func(b *Batch) error) (*Batch, error) {
	batch, err := s.repo.LockByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	old := batch.Snapshot()
	if err := fn(batch); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, err
	}

	if err := s.record(ctx, actorID, batch.ID, action, old, merge(batch.Snapshot(), extra)); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *service) record(ctx context.Context, actorID uint, batchID uint, action string, oldValues, newValues map[string]interface{}) error {
	return s.audit.Record(ctx, audit.Entry{
		EntityType: audit.EntityInventoryBatch,
		EntityID:   batchID,
		Action:     action,
		OldValues:  oldValues,
		NewValues:  newValues,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
}

func (s *service) ensureVariant(ctx context.Context, variantID uint) error {
	if variantID == 0 {
		return ErrVariantNotFound
	}
	ok, err := s.variants.VariantExists(ctx, variantID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVariantNotFound.WithDetails(map[string]interface{}{"variant_id": variantID})
	}
	return nil
}

// ensureSKUFree SKU为空时不校验；exceptID为当前批次自身
func (s *service) ensureSKUFree(ctx context.Context, sku string, exceptID uint) error {
	if sku == "" {
		return nil
	}
	existing, err := s.repo.FindBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != exceptID {
		return ErrDuplicateSKU.WithDetails(map[string]interface{}{"sku": sku})
	}
	return nil
}

func merge(dst, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		dst[k] = v
	}
	return dst
}
