package catalog

import (
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

var (
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = apperrors.New(apperrors.ErrCodeProductNotFound, "商品不存在")

	// ErrVariantNotFound 规格不存在或已下架
	ErrVariantNotFound = apperrors.New(apperrors.ErrCodeVariantNotFound, "商品规格不存在或已下架")
)
