package inventory

import (
	"time"
)

// Batch 库存批次
// 一个批次表示某个规格（Variant）在某个库位/批号下的一份库存。
//
// 不变量：
//   - 0 <= ReservedQuantity <= StockQuantity
//   - Available() = StockQuantity - ReservedQuantity >= 0
//
// Version 乐观锁版本号，每次更新+1；更新时带 WHERE version = ? 条件，
// 未命中说明被并发修改，返回ErrConcurrentModification。
type Batch struct {
	ID                uint
	VariantID         uint
	SKU               string // 可选，非空时全局唯一
	BatchNumber       string
	Location          string
	StockQuantity     int // 实物库存
	ReservedQuantity  int // 已预留（软占用）
	LowStockThreshold int
	ReorderLevel      int
	ExpiryDate        *time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Available 可用库存
func (b *Batch) Available() int {
	return b.StockQuantity - b.ReservedQuantity
}

// IsLowStock 库存不高于低库存阈值
func (b *Batch) IsLowStock() bool {
	return b.StockQuantity <= b.LowStockThreshold
}

// NeedsReorder 库存不高于补货点
func (b *Batch) NeedsReorder() bool {
	return b.StockQuantity <= b.ReorderLevel
}

// IsOutOfStock 实物库存为0
func (b *Batch) IsOutOfStock() bool {
	return b.StockQuantity == 0
}

// IsExpired 过期日期早于now
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(now)
}

// Clone 深拷贝（ExpiryDate指针也复制）
func (b *Batch) Clone() *Batch {
	cp := *b
	if b.ExpiryDate != nil {
		t := *b.ExpiryDate
		cp.ExpiryDate = &t
	}
	return &cp
}

// Snapshot 审计快照
func (b *Batch) Snapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"variant_id":          b.VariantID,
		"sku":                 b.SKU,
		"batch_number":        b.BatchNumber,
		"location":            b.Location,
		"stock_quantity":      b.StockQuantity,
		"reserved_quantity":   b.ReservedQuantity,
		"low_stock_threshold": b.LowStockThreshold,
		"reorder_level":       b.ReorderLevel,
		"version":             b.Version,
	}
	if b.ExpiryDate != nil {
		snap["expiry_date"] = b.ExpiryDate.Format(time.RFC3339)
	}
	return snap
}

// VariantStock 规格库存聚合（显式加载，替代对象图的懒加载遍历）
// Batches按创建时间升序（同时间按ID升序）
type VariantStock struct {
	VariantID uint
	Batches   []*Batch
}

// TotalStock 实物库存合计
func (v *VariantStock) TotalStock() int {
	total := 0
	for _, b := range v.Batches {
		total += b.StockQuantity
	}
	return total
}

// TotalReserved 预留合计
func (v *VariantStock) TotalReserved() int {
	total := 0
	for _, b := range v.Batches {
		total += b.ReservedQuantity
	}
	return total
}

// TotalAvailable 可用合计
func (v *VariantStock) TotalAvailable() int {
	return TotalAvailable(v.Batches)
}

// Newest 最新创建的批次，无批次时返回nil
func (v *VariantStock) Newest() *Batch {
	var newest *Batch
	for _, b := range v.Batches {
		if newest == nil || b.CreatedAt.After(newest.CreatedAt) ||
			(b.CreatedAt.Equal(newest.CreatedAt) && b.ID > newest.ID) {
			newest = b
		}
	}
	return newest
}

// Consumption 一次扣减落在某个批次上的数量
type Consumption struct {
	BatchID  uint
	Quantity int
}

// Filter 批次列表筛选条件
type Filter struct {
	VariantID    uint
	SKU          string
	Location     string
	MinStock     *int
	MaxStock     *int
	LowStock     bool       // 仅低库存
	NeedsReorder bool       // 仅需补货
	OutOfStock   bool       // 仅缺货
	ExpiredAt    *time.Time // 仅在该时间点已过期
	Page         int
	PageSize     int
}

// Normalize 补齐分页默认值
func (f *Filter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// Offset 分页偏移
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Matches 判断批次是否满足条件（内存实现和单元测试使用）
func (f Filter) Matches(b *Batch) bool {
	if f.VariantID != 0 && b.VariantID != f.VariantID {
		return false
	}
	if f.SKU != "" && b.SKU != f.SKU {
		return false
	}
	if f.Location != "" && b.Location != f.Location {
		return false
	}
	if f.MinStock != nil && b.StockQuantity < *f.MinStock {
		return false
	}
	if f.MaxStock != nil && b.StockQuantity > *f.MaxStock {
		return false
	}
	if f.LowStock && !b.IsLowStock() {
		return false
	}
	if f.NeedsReorder && !b.NeedsReorder() {
		return false
	}
	if f.OutOfStock && !b.IsOutOfStock() {
		return false
	}
	if f.ExpiredAt != nil && !b.IsExpired(*f.ExpiredAt) {
		return false
	}
	return true
}

// Stats 库存统计
type Stats struct {
	TotalBatches      int64 `json:"total_batches"`
	TotalStock        int64 `json:"total_stock"`
	TotalReserved     int64 `json:"total_reserved"`
	TotalAvailable    int64 `json:"total_available"`
	LowStockCount     int64 `json:"low_stock_count"`
	NeedsReorderCount int64 `json:"needs_reorder_count"`
	ExpiredCount      int64 `json:"expired_count"`
	OutOfStockCount   int64 `json:"out_of_stock_count"`
}

// Add 把一个批次计入统计
func (s *Stats) Add(b *Batch, now time.Time) {
	s.TotalBatches++
	s.TotalStock += int64(b.StockQuantity)
	s.TotalReserved += int64(b.ReservedQuantity)
	s.TotalAvailable += int64(b.Available())
	if b.IsLowStock() {
		s.LowStockCount++
	}
	if b.NeedsReorder() {
		s.NeedsReorderCount++
	}
	if b.IsExpired(now) {
		s.ExpiredCount++
	}
	if b.IsOutOfStock() {
		s.OutOfStockCount++
	}
}
