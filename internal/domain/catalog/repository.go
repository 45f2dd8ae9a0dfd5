package catalog

import (
	"context"
)

// Repository 商品目录读取接口
type Repository interface {
	// FindProduct 不存在时返回ErrProductNotFound
	FindProduct(ctx context.Context, id uint) (*Product, error)

	// FindVariant 不存在时返回ErrVariantNotFound（不区分是否上架）
	FindVariant(ctx context.Context, id uint) (*Variant, error)

	// FindVariants 批量查询，缺失的ID不出现在结果中
	FindVariants(ctx context.Context, ids []uint) (map[uint]*Variant, error)

	// FindProducts 批量查询，缺失的ID不出现在结果中
	FindProducts(ctx context.Context, ids []uint) (map[uint]*Product, error)

	// VariantExists 实现inventory.VariantChecker
	VariantExists(ctx context.Context, id uint) (bool, error)
}
