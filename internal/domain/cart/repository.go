package cart

import (
	"context"
)

// Repository 购物车仓储接口
type Repository interface {
	// FindByUserID 带条目加载，不存在返回ErrCartNotFound
	FindByUserID(ctx context.Context, userID uint) (*Cart, error)

	// LockByUserID 锁定购物车行（SELECT ... FOR UPDATE）并加载条目
	LockByUserID(ctx context.Context, userID uint) (*Cart, error)

	// GetOrCreate 不存在时创建空购物车
	GetOrCreate(ctx context.Context, userID uint) (*Cart, error)

	// UpdateDiscount 更新优惠金额
	UpdateDiscount(ctx context.Context, cartID uint, amount int64) error

	AddItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, cartID, itemID uint) error

	// ClearItems 删除全部条目，保留购物车
	ClearItems(ctx context.Context, cartID uint) error
}
