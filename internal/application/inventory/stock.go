// Package inventory 库存管理用例
package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/shared"
	"github.com/xiebiao/storefront/pkg/logger"
	"github.com/xiebiao/storefront/pkg/metrics"
)

// StockUseCase 库存管理的事务门面
// 每个修改类调用开启一个事务，记录操作结果指标；查询直接透传给领域服务。
type StockUseCase struct {
	svc inventory.Service
	tx  shared.Transactor
	log *zap.Logger
}

// NewStockUseCase 创建库存管理用例
func NewStockUseCase(svc inventory.Service, tx shared.Transactor, log *zap.Logger) *StockUseCase {
	metrics.InitMetrics()
	return &StockUseCase{svc: svc, tx: tx, log: log}
}

// execute 在事务中执行op并记录指标
func execute[T any](ctx context.Context, uc *StockUseCase, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})

	metrics.IncCounterVec(metrics.InventoryOperationsTotal, map[string]string{
		"operation": op,
		"result":    metrics.Result(err),
	})
	if errors.Is(err, inventory.ErrConcurrentModification) {
		metrics.IncCounter(metrics.InventoryConflictsTotal)
		logger.WithTrace(ctx, uc.log).Warn("库存并发修改冲突", zap.String("operation", op))
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (uc *StockUseCase) CreateBatch(ctx context.Context, actorID uint, in inventory.CreateBatchInput) (*inventory.Batch, error) {
	return execute(ctx, uc, "create", func(ctx context.Context) (*inventory.Batch, error) {
		return uc.svc.CreateBatch(ctx, actorID, in)
	})
}

func (uc *StockUseCase) UpdateBatch(ctx context.Context, actorID, id uint, in inventory.UpdateBatchInput) (*inventory.Batch, error) {
	return execute(ctx, uc, "update", func(ctx context.Context) (*inventory.Batch, error) {
		return uc.svc.UpdateBatch(ctx, actorID, id, in)
	})
}

func (uc *StockUseCase) DeleteBatch(ctx context.Context, actorID, id uint) error {
	_, err := execute(ctx, uc, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, uc.svc.DeleteBatch(ctx, actorID, id)
	})
	return err
}

func (uc *StockUseCase) Reserve(ctx context.Context, actorID, batchID uint, qty int) (*inventory.Batch, error) {
	return execute(ctx, uc, "reserve", func(ctx context.Context) (*inventory.Batch, error) {
		return uc.svc.Reserve(ctx, actorID, batchID, qty)
	})
}

func (uc *StockUseCase) Release(ctx context.Context, actorID, batchID uint, qty int) (*inventory.Batch, error) {
	return execute(ctx, uc, "release", func(ctx context.Context) (*inventory.Batch, error) {
		return uc.svc.Release(ctx, actorID, batchID, qty)
	})
}

func (uc *StockUseCase) Fulfill(ctx context.Context, actorID, batchID uint, qty int) (*inventory.Batch, error) {
	return execute(ctx, uc, "fulfill", func(ctx context.Context) (*inventory.Batch, error) {
		return uc.svc.Fulfill(ctx, actorID, batchID, qty)
	})
}

func (uc *StockUseCase) Adjust(ctx context.Context, actorID, batchID uint, delta int, reason string) (*inventory.Batch, error) {
	return execute(ctx, uc, "adjust", func(ctx context.Context) (*inventory.Batch, error) {
		return uc.svc.Adjust(ctx, actorID, batchID, delta, reason)
	})
}

func (uc *StockUseCase) Restock(ctx context.Context, actorID, batchID uint, qty int) (*inventory.Batch, error) {
	return execute(ctx, uc, "restock", func(ctx context.Context) (*inventory.Batch, error) {
		return uc.svc.Restock(ctx, actorID, batchID, qty)
	})
}

// TransferResult 调拨后的两个批次
type TransferResult struct {
	From *inventory.Batch
	To   *inventory.Batch
}

func (uc *StockUseCase) Transfer(ctx context.Context, actorID, fromID, toID uint, qty int) (*TransferResult, error) {
	return execute(ctx, uc, "transfer", func(ctx context.Context) (*TransferResult, error) {
		from, to, err := uc.svc.Transfer(ctx, actorID, fromID, toID, qty)
		if err != nil {
			return nil, err
		}
		return &TransferResult{From: from, To: to}, nil
	})
}

// 查询

func (uc *StockUseCase) GetBatch(ctx context.Context, id uint) (*inventory.Batch, error) {
	return uc.svc.GetBatch(ctx, id)
}

func (uc *StockUseCase) GetVariantStock(ctx context.Context, variantID uint) (*inventory.VariantStock, error) {
	return uc.svc.GetVariantStock(ctx, variantID)
}

func (uc *StockUseCase) List(ctx context.Context, filter inventory.Filter) ([]*inventory.Batch, int64, error) {
	return uc.svc.List(ctx, filter)
}

func (uc *StockUseCase) Stats(ctx context.Context) (*inventory.Stats, error) {
	return uc.svc.Stats(ctx)
}

func (uc *StockUseCase) LowStock(ctx context.Context, page, pageSize int) ([]*inventory.Batch, int64, error) {
	return uc.svc.LowStock(ctx, page, pageSize)
}

func (uc *StockUseCase) NeedsReorder(ctx context.Context, page, pageSize int) ([]*inventory.Batch, int64, error) {
	return uc.svc.NeedsReorder(ctx, page, pageSize)
}

func (uc *StockUseCase) Expired(ctx context.Context, page, pageSize int) ([]*inventory.Batch, int64, error) {
	return uc.svc.Expired(ctx, page, pageSize)
}
