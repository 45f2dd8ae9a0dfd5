package order

import (
	"strings"
	"time"
)

// OrderStatus 订单状态
// 使用int存储，1-5递增便于理解流转方向
type OrderStatus int

const (
	OrderStatusPending    OrderStatus = 1 // 待处理
	OrderStatusProcessing OrderStatus = 2 // 处理中（下单成功后的初始状态）
	OrderStatusShipped    OrderStatus = 3 // 已发货
	OrderStatusDelivered  OrderStatus = 4 // 已送达
	OrderStatusCancelled  OrderStatus = 5 // 已取消
)

// String 实现Stringer接口，API和日志中使用
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusProcessing:
		return "processing"
	case OrderStatusShipped:
		return "shipped"
	case OrderStatusDelivered:
		return "delivered"
	case OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PaymentStatus 支付状态，由支付网关异步回写
type PaymentStatus int

const (
	PaymentStatusPending  PaymentStatus = 1
	PaymentStatusPaid     PaymentStatus = 2
	PaymentStatusFailed   PaymentStatus = 3
	PaymentStatusRefunded PaymentStatus = 4
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentStatusPending:
		return "pending"
	case PaymentStatusPaid:
		return "paid"
	case PaymentStatusFailed:
		return "failed"
	case PaymentStatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// ParsePaymentStatus 解析支付事件中的状态字符串
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	for _, st := range []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded} {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// ShippingInfo 收货信息
type ShippingInfo struct {
	Recipient  string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

// Validate 收货人和地址必填
func (s ShippingInfo) Validate() error {
	if strings.TrimSpace(s.Recipient) == "" || strings.TrimSpace(s.Address) == "" {
		return ErrInvalidShippingInfo
	}
	return nil
}

// Order 订单实体（聚合根）
// 金额全部以分存储，Total冗余存储，防止改价后历史订单金额变化。
type Order struct {
	ID             uint
	OrderNo        string // 业务主键，全局唯一
	UserID         uint
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	Subtotal       int64
	DiscountAmount int64
	TaxAmount      int64
	ShippingAmount int64
	Total          int64
	Shipping       ShippingInfo
	Note           string
	CancelReason   string
	CancelledAt    *time.Time
	Items          []*OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem 订单明细（下单时的不可变快照）
type OrderItem struct {
	ID          uint
	OrderID     uint
	ProductID   uint
	VariantID   uint
	ProductName string
	VariantName string
	SKU         string
	Attributes  map[string]string
	Quantity    int
	UnitPrice   int64
	TotalPrice  int64
}

// Allocation 订单明细在某个库存批次上的扣减记录
// 取消订单时按这些记录精确回补库存。
type Allocation struct {
	ID          uint
	OrderItemID uint
	BatchID     uint
	VariantID   uint
	Quantity    int
}

// transitions 合法的状态流转
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:   {PaymentStatusPaid, PaymentStatusPending},
	PaymentStatusPaid:     {PaymentStatusRefunded},
	PaymentStatusRefunded: {},
}

// CanTransitionTo 检查是否可以转换到目标状态
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range transitions[o.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo 状态转换，非法跳转返回ErrInvalidStatusTransition
func (o *Order) TransitionTo(target OrderStatus, now time.Time) error {
	if !o.CanTransitionTo(target) {
		return ErrInvalidStatusTransition.WithDetails(map[string]interface{}{
			"order_id": o.ID,
			"from":     o.Status.String(),
			"to":       target.String(),
		})
	}
	o.Status = target
	o.UpdatedAt = now
	return nil
}

// IsCancellable 只有待处理和处理中的订单可以取消
func (o *Order) IsCancellable() bool {
	return o.CanTransitionTo(OrderStatusCancelled)
}

// Cancel 取消订单，记录原因和时间；不修改支付状态
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.TransitionTo(OrderStatusCancelled, now); err != nil {
		return err
	}
	o.CancelReason = reason
	o.CancelledAt = &now
	return nil
}

// Ship 发货
func (o *Order) Ship(now time.Time) error {
	return o.TransitionTo(OrderStatusShipped, now)
}

// Deliver 确认送达
func (o *Order) Deliver(now time.Time) error {
	return o.TransitionTo(OrderStatusDelivered, now)
}

// SetPaymentStatus 支付状态流转；相同状态视为幂等重放，直接返回nil
func (o *Order) SetPaymentStatus(target PaymentStatus, now time.Time) error {
	if o.PaymentStatus == target {
		return nil
	}
	for _, allowed := range paymentTransitions[o.PaymentStatus] {
		if allowed == target {
			o.PaymentStatus = target
			o.UpdatedAt = now
			return nil
		}
	}
	return ErrInvalidPaymentTransition.WithDetails(map[string]interface{}{
		"order_no": o.OrderNo,
		"from":     o.PaymentStatus.String(),
		"to":       target.String(),
	})
}

// IsOwnedBy 检查订单是否属于指定用户
func (o *Order) IsOwnedBy(userID uint) bool {
	return o.UserID == userID
}

// Snapshot 审计快照
func (o *Order) Snapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"order_no":       o.OrderNo,
		"user_id":        o.UserID,
		"status":         o.Status.String(),
		"payment_status": o.PaymentStatus.String(),
		"subtotal":       o.Subtotal,
		"discount":       o.DiscountAmount,
		"tax":            o.TaxAmount,
		"shipping":       o.ShippingAmount,
		"total":          o.Total,
		"items":          len(o.Items),
	}
	if o.CancelReason != "" {
		snap["cancel_reason"] = o.CancelReason
	}
	return snap
}
