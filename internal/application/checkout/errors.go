package checkout

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

var (
	// ErrEmptyCart 购物车不存在或没有商品
	ErrEmptyCart = apperrors.New(apperrors.ErrCodeEmptyCart, "购物车为空")

	// ErrMissingVariant 购物车条目没有选择规格
	ErrMissingVariant = apperrors.New(apperrors.ErrCodeMissingVariant, "购物车条目未选择商品规格")
)
