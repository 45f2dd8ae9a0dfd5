package grpc

import (
	"context"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	appinventory "github.com/xiebiao/storefront/internal/application/inventory"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// InventoryServer 库存gRPC服务实现
// 调用方身份由认证拦截器注入，作为actorID传给用例
type InventoryServer struct {
	stock *appinventory.StockUseCase
}

// NewInventoryServer 创建库存gRPC服务
func NewInventoryServer(stock *appinventory.StockUseCase) *InventoryServer {
	return &InventoryServer{stock: stock}
}

var _ InventoryServiceServer = (*InventoryServer)(nil)

// GetVariantStock 查询规格库存
func (s *InventoryServer) GetVariantStock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	variantID, err := uintField(in, "variant_id")
	if err != nil {
		return nil, err
	}

	vs, err := s.stock.GetVariantStock(ctx, variantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	batches := make([]interface{}, len(vs.Batches))
	for i, b := range vs.Batches {
		batches[i] = batchFields(b, now)
	}
	return structpb.NewStruct(map[string]interface{}{
		"variant_id":      vs.VariantID,
		"total_stock":     vs.TotalStock(),
		"total_reserved":  vs.TotalReserved(),
		"total_available": vs.TotalAvailable(),
		"batches":         batches,
	})
}

// ReserveStock 预留库存
func (s *InventoryServer) ReserveStock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.quantityOp(ctx, in, s.stock.Reserve)
}

// ReleaseStock 释放预留
func (s *InventoryServer) ReleaseStock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.quantityOp(ctx, in, s.stock.Release)
}

func (s *InventoryServer) quantityOp(
	ctx context.Context,
	in *structpb.Struct,
	op func(ctx context.Context, actorID, batchID uint, qty int) (*inventory.Batch, error),
) (*structpb.Struct, error) {
	batchID, err := uintField(in, "batch_id")
	if err != nil {
		return nil, err
	}
	qty, err := intField(in, "quantity")
	if err != nil {
		return nil, err
	}

	b, err := op(ctx, ActorFromContext(ctx).UserID, batchID, qty)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(batchFields(b, time.Now()))
}

func batchFields(b *inventory.Batch, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":                 b.ID,
		"variant_id":         b.VariantID,
		"sku":                b.SKU,
		"location":           b.Location,
		"stock_quantity":     b.StockQuantity,
		"reserved_quantity":  b.ReservedQuantity,
		"available_quantity": b.Available(),
		"is_expired":         b.IsExpired(now),
		"version":            b.Version,
	}
}

// intField 读取整数字段；Struct里的数字都是float64，带小数时视为非法
func intField(in *structpb.Struct, name string) (int, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, apperrors.ErrInvalidParams.WithMessage("缺少参数%s", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, apperrors.ErrInvalidParams.WithMessage("参数%s必须是整数", name)
	}
	return int(n.NumberValue), nil
}

func uintField(in *structpb.Struct, name string) (uint, error) {
	n, err := intField(in, name)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, apperrors.ErrInvalidParams.WithMessage("参数%s必须大于0", name)
	}
	return uint(n), nil
}
