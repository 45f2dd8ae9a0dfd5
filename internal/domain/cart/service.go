package cart

import (
	"context"

	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/shared"
)

// Service 购物车领域服务
// 修改类操作在一个事务内锁定购物车行后执行，避免并发加购丢失数量。
type Service interface {
	GetCart(ctx context.Context, userID uint) (*Cart, error)
	// AddItem 同一商品+规格合并数量；variantID为0表示未选规格
	AddItem(ctx context.Context, userID, productID, variantID uint, qty int) (*Cart, error)
	UpdateItem(ctx context.Context, userID, itemID uint, qty int) (*Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uint) (*Cart, error)
	Clear(ctx context.Context, userID uint) error
	SetDiscount(ctx context.Context, userID uint, amount int64) (*Cart, error)
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      shared.Transactor
}

// NewService 创建购物车服务
func NewService(repo Repository, catalogRepo catalog.Repository, tx shared.Transactor) Service {
	return &service{repo: repo, catalog: catalogRepo, tx: tx}
}

func (s *service) GetCart(ctx context.Context, userID uint) (*Cart, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// AddItem 加入购物车
func (s *service) AddItem(ctx context.Context, userID, productID, variantID uint, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if qty > MaxItemQuantity {
		return nil, ErrQuantityTooLarge
	}

	// 1. 商品和规格校验（读操作，放在事务外）
	if _, err := s.catalog.FindProduct(ctx, productID); err != nil {
		return nil, err
	}
	if variantID != 0 {
		v, err := s.catalog.FindVariant(ctx, variantID)
		if err != nil {
			return nil, err
		}
		if !v.BelongsTo(productID) || !v.IsActive {
			return nil, catalog.ErrVariantNotFound.WithDetails(map[string]interface{}{
				"product_id": productID,
				"variant_id": variantID,
			})
		}
	}

	// 2. 锁定购物车，合并或新增条目
	err := s.withLockedCart(ctx, userID, func(ctx context.Context, c *Cart) error {
		if line := c.FindLine(productID, variantID); line != nil {
			if line.Quantity > MaxItemQuantity-qty {
				return ErrQuantityTooLarge.WithDetails(map[string]interface{}{
					"cart_item_id": line.ID,
					"quantity":     line.Quantity,
					"adding":       qty,
				})
			}
			line.Quantity += qty
			return s.repo.UpdateItem(ctx, line)
		}
		return s.repo.AddItem(ctx, &Item{
			CartID:    c.ID,
			ProductID: productID,
			VariantID: variantID,
			Quantity:  qty,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUserID(ctx, userID)
}

// UpdateItem 修改条目数量
func (s *service) UpdateItem(ctx context.Context, userID, itemID uint, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if qty > MaxItemQuantity {
		return nil, ErrQuantityTooLarge
	}
	err := s.withLockedCart(ctx, userID, func(ctx context.Context, c *Cart) error {
		item := c.FindItem(itemID)
		if item == nil {
			return ErrItemNotFound.WithDetails(map[string]interface{}{"cart_item_id": itemID})
		}
		item.Quantity = qty
		return s.repo.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUserID(ctx, userID)
}

// RemoveItem 删除条目
func (s *service) RemoveItem(ctx context.Context, userID, itemID uint) (*Cart, error) {
	err := s.withLockedCart(ctx, userID, func(ctx context.Context, c *Cart) error {
		if c.FindItem(itemID) == nil {
			return ErrItemNotFound.WithDetails(map[string]interface{}{"cart_item_id": itemID})
		}
		return s.repo.DeleteItem(ctx, c.ID, itemID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUserID(ctx, userID)
}

// Clear 清空购物车
func (s *service) Clear(ctx context.Context, userID uint) error {
	return s.withLockedCart(ctx, userID, func(ctx context.Context, c *Cart) error {
		return s.repo.ClearItems(ctx, c.ID)
	})
}

// SetDiscount 设置优惠金额（外部促销引擎的替身）
func (s *service) SetDiscount(ctx context.Context, userID uint, amount int64) (*Cart, error) {
	if amount < 0 {
		return nil, ErrInvalidDiscount
	}
	err := s.withLockedCart(ctx, userID, func(ctx context.Context, c *Cart) error {
		return s.repo.UpdateDiscount(ctx, c.ID, amount)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUserID(ctx, userID)
}

func (s *service) withLockedCart(ctx context.Context, userID uint, fn func(ctx context.Context, c *Cart) error) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
			return err
		}
		c, err := s.repo.LockByUserID(ctx, userID)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	})
}
