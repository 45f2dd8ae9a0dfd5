package order

import "time"

// AggregateType outbox事件的聚合类型
const AggregateType = "order"

// EventItem 事件中的订单明细
type EventItem struct {
	VariantID uint   `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// CreatedEvent order.created事件负载
type CreatedEvent struct {
	OrderID   uint        `json:"order_id"`
	OrderNo   string      `json:"order_no"`
	UserID    uint        `json:"user_id"`
	Total     int64       `json:"total"`
	Items     []EventItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// CancelledEvent order.cancelled事件负载
type CancelledEvent struct {
	OrderID     uint        `json:"order_id"`
	OrderNo     string      `json:"order_no"`
	UserID      uint        `json:"user_id"`
	Reason      string      `json:"reason"`
	Items       []EventItem `json:"items"`
	CancelledAt time.Time   `json:"cancelled_at"`
}

// NewCreatedEvent 构造下单事件
func NewCreatedEvent(o *Order) CreatedEvent {
	return CreatedEvent{
		OrderID:   o.ID,
		OrderNo:   o.OrderNo,
		UserID:    o.UserID,
		Total:     o.Total,
		Items:     eventItems(o),
		CreatedAt: o.CreatedAt,
	}
}

// NewCancelledEvent 构造取消事件，必须在Cancel之后调用
func NewCancelledEvent(o *Order) CancelledEvent {
	ev := CancelledEvent{
		OrderID: o.ID,
		OrderNo: o.OrderNo,
		UserID:  o.UserID,
		Reason:  o.CancelReason,
		Items:   eventItems(o),
	}
	if o.CancelledAt != nil {
		ev.CancelledAt = *o.CancelledAt
	}
	return ev
}

func eventItems(o *Order) []EventItem {
	items := make([]EventItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = EventItem{
			VariantID: it.VariantID,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return items
}
