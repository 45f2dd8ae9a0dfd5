package dto

import (
	"github.com/xiebiao/storefront/internal/domain/cart"
)

// AddCartItemRequest 加入购物车
// variant_id可以不传，但结算时会被拒绝（ErrMissingVariant）
type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required" example:"1"`
	VariantID uint `json:"variant_id" example:"3"`
	Quantity  int  `json:"quantity" binding:"required,min=1,max=9999" example:"2"`
}

// UpdateCartItemRequest 修改条目数量
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=9999" example:"3"`
}

// SetDiscountRequest 写入某个用户购物车的优惠金额（分）
type SetDiscountRequest struct {
	UserID uint  `json:"user_id" binding:"required" example:"1001"`
	Amount int64 `json:"amount" example:"500"`
}

// CartItemResponse 购物车条目
type CartItemResponse struct {
	ID        uint `json:"id" example:"1"`
	ProductID uint `json:"product_id" example:"1"`
	VariantID uint `json:"variant_id" example:"3"`
	Quantity  int  `json:"quantity" example:"2"`
}

// CartResponse 购物车
type CartResponse struct {
	ID             uint               `json:"id" example:"1"`
	UserID         uint               `json:"user_id" example:"1001"`
	DiscountAmount int64              `json:"discount_amount" example:"0"`
	TotalQuantity  int                `json:"total_quantity" example:"2"`
	Items          []CartItemResponse `json:"items"`
	UpdatedAt      string             `json:"updated_at" example:"2024-01-15 10:30:00"`
}

// NewCartResponse 领域对象转响应
func NewCartResponse(c *cart.Cart) CartResponse {
	items := make([]CartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}
	}
	return CartResponse{
		ID:             c.ID,
		UserID:         c.UserID,
		DiscountAmount: c.DiscountAmount,
		TotalQuantity:  c.TotalQuantity(),
		Items:          items,
		UpdatedAt:      formatTime(c.UpdatedAt),
	}
}
