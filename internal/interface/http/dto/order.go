package dto

import (
	"github.com/xiebiao/storefront/internal/domain/order"
)

// CheckoutRequest 购物车结算
// 收货人和地址是否为空由领域层校验（ErrInvalidShippingInfo）
type CheckoutRequest struct {
	Shipping ShippingInfo `json:"shipping"`
	Note     string       `json:"note" binding:"max=500" example:"工作日送货"`
}

// ShippingInfo 收货信息
type ShippingInfo struct {
	Recipient  string `json:"recipient" binding:"max=100" example:"张三"`
	Phone      string `json:"phone" binding:"max=32" example:"13800000000"`
	Address    string `json:"address" binding:"max=255" example:"人民路1号"`
	City       string `json:"city" binding:"max=100" example:"上海"`
	PostalCode string `json:"postal_code" binding:"max=20" example:"200000"`
	Country    string `json:"country" binding:"max=64" example:"CN"`
}

// ToDomain 转换为领域值对象
func (s ShippingInfo) ToDomain() order.ShippingInfo {
	return order.ShippingInfo{
		Recipient:  s.Recipient,
		Phone:      s.Phone,
		Address:    s.Address,
		City:       s.City,
		PostalCode: s.PostalCode,
		Country:    s.Country,
	}
}

// CancelOrderRequest 取消订单
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=255" example:"不想要了"`
}

// ListOrdersRequest 订单列表
// all=true时列出全部用户的订单，需要order:manage权限
type ListOrdersRequest struct {
	PageQuery
	All bool `form:"all"`
}

// OrderItemResponse 订单明细
type OrderItemResponse struct {
	ID          uint              `json:"id" example:"1"`
	ProductID   uint              `json:"product_id" example:"1"`
	VariantID   uint              `json:"variant_id" example:"3"`
	ProductName string            `json:"product_name" example:"纯棉T恤"`
	VariantName string            `json:"variant_name" example:"红色 XL"`
	SKU         string            `json:"sku" example:"TS-RED-XL"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Quantity    int               `json:"quantity" example:"2"`
	UnitPrice   int64             `json:"unit_price" example:"5900"`
	TotalPrice  int64             `json:"total_price" example:"11800"`
}

// OrderResponse 订单详情
type OrderResponse struct {
	ID             uint                `json:"id" example:"1"`
	OrderNo        string              `json:"order_no" example:"ORD20240115103000A1B2C3D4"`
	UserID         uint                `json:"user_id" example:"1001"`
	Status         string              `json:"status" example:"processing"`
	PaymentStatus  string              `json:"payment_status" example:"pending"`
	Subtotal       int64               `json:"subtotal" example:"11800"`
	DiscountAmount int64               `json:"discount_amount" example:"0"`
	TaxAmount      int64               `json:"tax_amount" example:"0"`
	ShippingAmount int64               `json:"shipping_amount" example:"1000"`
	Total          int64               `json:"total" example:"12800"`
	TotalYuan      string              `json:"total_yuan" example:"128.00"`
	Shipping       ShippingInfo        `json:"shipping"`
	Note           string              `json:"note,omitempty"`
	CancelReason   string              `json:"cancel_reason,omitempty"`
	CancelledAt    *string             `json:"cancelled_at,omitempty"`
	Items          []OrderItemResponse `json:"items"`
	CreatedAt      string              `json:"created_at" example:"2024-01-15 10:30:00"`
	UpdatedAt      string              `json:"updated_at" example:"2024-01-15 10:30:00"`
}

// NewOrderResponse 领域对象转响应
func NewOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			VariantName: it.VariantName,
			SKU:         it.SKU,
			Attributes:  it.Attributes,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}

	return OrderResponse{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		UserID:         o.UserID,
		Status:         o.Status.String(),
		PaymentStatus:  o.PaymentStatus.String(),
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		TaxAmount:      o.TaxAmount,
		ShippingAmount: o.ShippingAmount,
		Total:          o.Total,
		TotalYuan:      FormatPriceYuan(o.Total),
		Shipping: ShippingInfo{
			Recipient:  o.Shipping.Recipient,
			Phone:      o.Shipping.Phone,
			Address:    o.Shipping.Address,
			City:       o.Shipping.City,
			PostalCode: o.Shipping.PostalCode,
			Country:    o.Shipping.Country,
		},
		Note:         o.Note,
		CancelReason: o.CancelReason,
		CancelledAt:  formatTimePtr(o.CancelledAt),
		Items:        items,
		CreatedAt:    formatTime(o.CreatedAt),
		UpdatedAt:    formatTime(o.UpdatedAt),
	}
}

// NewOrderList 批量转换
func NewOrderList(orders []*order.Order) []OrderResponse {
	list := make([]OrderResponse, len(orders))
	for i, o := range orders {
		list[i] = NewOrderResponse(o)
	}
	return list
}
