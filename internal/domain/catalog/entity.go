package catalog

// Product 商品（只读模型，商品CRUD由外部系统维护）
type Product struct {
	ID    uint
	Name  string
	SKU   string
	Price int64 // 分
}

// Variant 商品规格
// 规格本身不持有库存，库存分布在inventory.Batch上。
type Variant struct {
	ID         uint
	ProductID  uint
	SKU        string
	Name       string
	Attributes map[string]string // 例如 {"color":"red","size":"XL"}
	Price      int64             // 分
	IsActive   bool
}

// BelongsTo 规格是否属于商品
func (v *Variant) BelongsTo(productID uint) bool {
	return v.ProductID == productID
}

// CopyAttributes 拷贝属性，订单快照使用
func (v *Variant) CopyAttributes() map[string]string {
	if len(v.Attributes) == 0 {
		return nil
	}
	cp := make(map[string]string, len(v.Attributes))
	for k, val := range v.Attributes {
		cp[k] = val
	}
	return cp
}
