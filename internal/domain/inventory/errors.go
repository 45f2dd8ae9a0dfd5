package inventory

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 库存领域错误定义
var (
	// ErrBatchNotFound 库存批次不存在
	ErrBatchNotFound = apperrors.New(apperrors.ErrCodeBatchNotFound, "库存批次不存在")

	// ErrVariantNotFound 商品规格不存在
	ErrVariantNotFound = apperrors.New(apperrors.ErrCodeVariantNotFound, "商品规格不存在")

	// ErrInsufficientStock 可用库存不足
	ErrInsufficientStock = apperrors.New(apperrors.ErrCodeInsufficientStock, "库存不足")

	// ErrOverRelease 释放或履约数量超过已预留数量
	ErrOverRelease = apperrors.New(apperrors.ErrCodeOverRelease, "数量超过已预留库存")

	// ErrBelowReserved 调整后库存低于已预留数量
	ErrBelowReserved = apperrors.New(apperrors.ErrCodeBelowReserved, "调整后库存不能低于已预留数量")

	// ErrNegativeStock 库存不能为负
	ErrNegativeStock = apperrors.New(apperrors.ErrCodeNegativeStock, "库存不能为负数")

	// ErrInvalidQuantity 数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidQuantity, "数量必须大于0")

	// ErrVariantMismatch 调拨双方不属于同一规格
	ErrVariantMismatch = apperrors.New(apperrors.ErrCodeVariantMismatch, "调拨批次必须属于同一规格")

	// ErrDuplicateSKU SKU已被其他批次使用
	ErrDuplicateSKU = apperrors.New(apperrors.ErrCodeDuplicateSKU, "SKU已存在")

	// ErrBatchInUse 批次有预留或被订单引用，不能删除
	ErrBatchInUse = apperrors.New(apperrors.ErrCodeBatchInUse, "批次仍有预留或被订单引用，不能删除")

	// ErrConcurrentModification 乐观锁冲突
	ErrConcurrentModification = apperrors.New(apperrors.ErrCodeConcurrentUpdate, "库存已被其他请求修改，请重试")
)

// insufficient 构造带规格信息的库存不足错误
func insufficient(variantID uint, requested, available int) error {
	return ErrInsufficientStock.
		WithMessage("规格%d库存不足（可用%d，需要%d）", variantID, available, requested).
		WithDetails(map[string]interface{}{
			"variant_id": variantID,
			"requested":  requested,
			"available":  available,
		})
}

// BatchNotFound 带batch_id的ErrBatchNotFound
func BatchNotFound(batchID uint) error {
	return ErrBatchNotFound.WithDetails(map[string]interface{}{"batch_id": batchID})
}
