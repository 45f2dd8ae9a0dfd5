package inventory

import (
	"context"
	"time"
)

// Repository 库存批次仓储接口
// 由domain层定义，infrastructure层实现（mysql/memory）。
// ctx携带事务时所有方法都在该事务内执行。
type Repository interface {
	// Create 新建批次，回填ID/Version/CreatedAt
	Create(ctx context.Context, batch *Batch) error

	// FindByID 不存在时返回ErrBatchNotFound
	FindByID(ctx context.Context, id uint) (*Batch, error)

	// LockByID 悲观锁查询（SELECT ... FOR UPDATE），必须在事务中调用
	LockByID(ctx context.Context, id uint) (*Batch, error)

	// LockByVariant 锁定规格下全部批次，按created_at, id升序返回
	LockByVariant(ctx context.Context, variantID uint) ([]*Batch, error)

	// FindByVariant 不加锁的读取，顺序同LockByVariant
	FindByVariant(ctx context.Context, variantID uint) ([]*Batch, error)

	// FindBySKU 不存在时返回ErrBatchNotFound
	FindBySKU(ctx context.Context, sku string) (*Batch, error)

	// Update 带版本号更新：WHERE id = ? AND version = batch.Version
	// 成功后batch.Version+1；未命中返回ErrConcurrentModification
	Update(ctx context.Context, batch *Batch) error

	// Delete 物理删除
	Delete(ctx context.Context, id uint) error

	// IsReferenced 是否存在引用该批次的订单分配记录
	IsReferenced(ctx context.Context, batchID uint) (bool, error)

	// List 分页查询
	List(ctx context.Context, filter Filter) ([]*Batch, int64, error)

	// Stats 全量统计，过期以now为准
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

// VariantChecker 规格存在性查询（由catalog提供）
type VariantChecker interface {
	VariantExists(ctx context.Context, variantID uint) (bool, error)
}
