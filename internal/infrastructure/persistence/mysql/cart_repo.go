package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/storefront/internal/domain/cart"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// cartRepository 购物车仓储实现(MySQL)
type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindByUserID(ctx context.Context, userID uint) (*cart.Cart, error) {
	return r.find(getDB(ctx, r.db), userID)
}

// LockByUserID 锁定购物车行；条目随后普通查询（购物车行锁已串行化同一用户的修改）
func (r *cartRepository) LockByUserID(ctx context.Context, userID uint) (*cart.Cart, error) {
	return r.find(getDB(ctx, r.db).Clauses(forUpdate), userID)
}

func (r *cartRepository) find(db *gorm.DB, userID uint) (*cart.Cart, error) {
	var model CartModel
	err := db.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Where("user_id = ?", userID).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cart.ErrCartNotFound
		}
		return nil, apperrors.Wrap(err, "查询购物车失败")
	}
	return toCartEntity(&model), nil
}

// GetOrCreate INSERT ... ON DUPLICATE KEY 忽略，并发创建时只会有一行
func (r *cartRepository) GetOrCreate(ctx context.Context, userID uint) (*cart.Cart, error) {
	db := getDB(ctx, r.db)
	model := &CartModel{UserID: userID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(model).Error; err != nil {
		return nil, apperrors.Wrap(err, "创建购物车失败")
	}
	return r.find(db, userID)
}

func (r *cartRepository) UpdateDiscount(ctx context.Context, cartID uint, amount int64) error {
	result := getDB(ctx, r.db).Model(&CartModel{}).Where("id = ?", cartID).Update("discount_amount", amount)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新优惠金额失败")
	}
	return nil
}

func (r *cartRepository) AddItem(ctx context.Context, item *cart.Item) error {
	model := toCartItemModel(item)
	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "添加购物车条目失败")
	}
	item.ID = model.ID
	item.CreatedAt = model.CreatedAt
	item.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *cartRepository) UpdateItem(ctx context.Context, item *cart.Item) error {
	result := getDB(ctx, r.db).Model(&CartItemModel{}).
		Where("id = ? AND cart_id = ?", item.ID, item.CartID).
		Update("quantity", item.Quantity)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新购物车条目失败")
	}
	if result.RowsAffected == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID uint) error {
	result := getDB(ctx, r.db).Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&CartItemModel{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除购物车条目失败")
	}
	if result.RowsAffected == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func (r *cartRepository) ClearItems(ctx context.Context, cartID uint) error {
	if err := getDB(ctx, r.db).Where("cart_id = ?", cartID).Delete(&CartItemModel{}).Error; err != nil {
		return apperrors.Wrap(err, "清空购物车失败")
	}
	return nil
}

func toCartEntity(m *CartModel) *cart.Cart {
	c := &cart.Cart{
		ID:             m.ID,
		UserID:         m.UserID,
		DiscountAmount: m.DiscountAmount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Items:          make([]*cart.Item, len(m.Items)),
	}
	for i, it := range m.Items {
		var variantID uint
		if it.VariantID != nil {
			variantID = *it.VariantID
		}
		c.Items[i] = &cart.Item{
			ID:        it.ID,
			CartID:    it.CartID,
			ProductID: it.ProductID,
			VariantID: variantID,
			Quantity:  it.Quantity,
			CreatedAt: it.CreatedAt,
			UpdatedAt: it.UpdatedAt,
		}
	}
	return c
}

func toCartItemModel(it *cart.Item) *CartItemModel {
	var variantID *uint
	if it.VariantID != 0 {
		v := it.VariantID
		variantID = &v
	}
	return &CartItemModel{
		ID:        it.ID,
		CartID:    it.CartID,
		ProductID: it.ProductID,
		VariantID: variantID,
		Quantity:  it.Quantity,
	}
}
