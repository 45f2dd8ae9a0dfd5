package cart

import (
	"time"
)

// MaxItemQuantity 单个条目数量上限（合并后同样受限）
const MaxItemQuantity = 9999

// Cart 购物车（每个用户一个）
// 下单成功后只清空条目，购物车本身保留。
type Cart struct {
	ID             uint
	UserID         uint
	DiscountAmount int64 // 优惠金额（分），由外部促销引擎写入
	Items          []*Item
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Item 购物车条目
// VariantID为0表示未选择规格，结算时会被拒绝。
type Item struct {
	ID        uint
	CartID    uint
	ProductID uint
	VariantID uint
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEmpty 是否没有条目
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem 按条目ID查找
func (c *Cart) FindItem(itemID uint) *Item {
	for _, it := range c.Items {
		if it.ID == itemID {
			return it
		}
	}
	return nil
}

// FindLine 查找同一商品+规格的条目（用于合并数量）
func (c *Cart) FindLine(productID, variantID uint) *Item {
	for _, it := range c.Items {
		if it.ProductID == productID && it.VariantID == variantID {
			return it
		}
	}
	return nil
}

// TotalQuantity 条目数量合计
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}
