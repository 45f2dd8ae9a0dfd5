package cart

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 购物车领域错误定义
var (
	// ErrCartNotFound 购物车不存在
	ErrCartNotFound = apperrors.New(apperrors.ErrCodeCartNotFound, "购物车不存在")

	// ErrItemNotFound 购物车条目不存在
	ErrItemNotFound = apperrors.New(apperrors.ErrCodeCartItemNotFound, "购物车条目不存在")

	// ErrInvalidQuantity 数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidQuantity, "数量必须大于0")

	// ErrQuantityTooLarge 条目数量超过上限
	ErrQuantityTooLarge = apperrors.New(apperrors.ErrCodeInvalidQuantity, "单个商品数量不能超过9999")

	// ErrInvalidDiscount 优惠金额不合法
	ErrInvalidDiscount = apperrors.New(apperrors.ErrCodeInvalidParams, "优惠金额不能为负数")
)
