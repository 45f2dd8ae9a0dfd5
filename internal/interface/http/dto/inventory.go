package dto

import (
	"time"

	"github.com/xiebiao/storefront/internal/domain/inventory"
)

// CreateBatchRequest 新建库存批次
// 数量的合法性（非负、预留不超过库存）由领域层校验，返回统一的错误码
type CreateBatchRequest struct {
	VariantID         uint       `json:"variant_id" binding:"required" example:"1"`
	SKU               string     `json:"sku" binding:"max=64" example:"TS-RED-XL-B1"`
	BatchNumber       string     `json:"batch_number" binding:"max=64" example:"B20240115"`
	Location          string     `json:"location" binding:"max=100" example:"WH-A-01"`
	StockQuantity     int        `json:"stock_quantity" binding:"max=1000000000" example:"100"`
	ReservedQuantity  int        `json:"reserved_quantity" binding:"max=1000000000" example:"0"`
	LowStockThreshold int        `json:"low_stock_threshold" example:"10"`
	ReorderLevel      int        `json:"reorder_level" example:"20"`
	ExpiryDate        *time.Time `json:"expiry_date" example:"2025-12-31T00:00:00Z"`
}

// ToInput 转换为领域层参数
func (r CreateBatchRequest) ToInput() inventory.CreateBatchInput {
	return inventory.CreateBatchInput{
		VariantID:         r.VariantID,
		SKU:               r.SKU,
		BatchNumber:       r.BatchNumber,
		Location:          r.Location,
		StockQuantity:     r.StockQuantity,
		ReservedQuantity:  r.ReservedQuantity,
		LowStockThreshold: r.LowStockThreshold,
		ReorderLevel:      r.ReorderLevel,
		ExpiryDate:        r.ExpiryDate,
	}
}

// UpdateBatchRequest 更新批次元数据，未传的字段保持不变
type UpdateBatchRequest struct {
	SKU               *string    `json:"sku" binding:"omitempty,max=64"`
	BatchNumber       *string    `json:"batch_number" binding:"omitempty,max=64"`
	Location          *string    `json:"location" binding:"omitempty,max=100"`
	LowStockThreshold *int       `json:"low_stock_threshold"`
	ReorderLevel      *int       `json:"reorder_level"`
	ExpiryDate        *time.Time `json:"expiry_date"`
	ClearExpiry       bool       `json:"clear_expiry"`
}

// ToInput 转换为领域层参数
func (r UpdateBatchRequest) ToInput() inventory.UpdateBatchInput {
	return inventory.UpdateBatchInput{
		SKU:               r.SKU,
		BatchNumber:       r.BatchNumber,
		Location:          r.Location,
		LowStockThreshold: r.LowStockThreshold,
		ReorderLevel:      r.ReorderLevel,
		ExpiryDate:        r.ExpiryDate,
		ClearExpiry:       r.ClearExpiry,
	}
}

// QuantityRequest 预留/释放/出库数量
type QuantityRequest struct {
	Quantity int `json:"quantity" binding:"max=1000000000" example:"5"`
}

// AdjustRequest 库存调整，delta可正可负
type AdjustRequest struct {
	Delta  int    `json:"delta" binding:"min=-1000000000,max=1000000000" example:"-3"`
	Reason string `json:"reason" binding:"max=255" example:"盘点差异"`
}

// TransferRequest 批次间调拨（必须属于同一规格）
type TransferRequest struct {
	FromBatchID uint `json:"from_batch_id" binding:"required" example:"1"`
	ToBatchID   uint `json:"to_batch_id" binding:"required" example:"2"`
	Quantity    int  `json:"quantity" binding:"max=1000000000" example:"10"`
}

// ListBatchesRequest 批次列表筛选
type ListBatchesRequest struct {
	PageQuery
	VariantID    uint   `form:"variant_id" example:"1"`
	SKU          string `form:"sku" binding:"max=64"`
	Location     string `form:"location" binding:"max=100"`
	MinStock     *int   `form:"min_stock"`
	MaxStock     *int   `form:"max_stock"`
	LowStock     bool   `form:"low_stock"`
	NeedsReorder bool   `form:"needs_reorder"`
	OutOfStock   bool   `form:"out_of_stock"`
	Expired      bool   `form:"expired"`
}

// ToFilter 转换为仓储筛选条件
func (r ListBatchesRequest) ToFilter(now time.Time) inventory.Filter {
	f := inventory.Filter{
		VariantID:    r.VariantID,
		SKU:          r.SKU,
		Location:     r.Location,
		MinStock:     r.MinStock,
		MaxStock:     r.MaxStock,
		LowStock:     r.LowStock,
		NeedsReorder: r.NeedsReorder,
		OutOfStock:   r.OutOfStock,
		Page:         r.Page,
		PageSize:     r.PageSize,
	}
	if r.Expired {
		f.ExpiredAt = &now
	}
	return f
}

// BatchResponse 批次详情
type BatchResponse struct {
	ID                uint    `json:"id" example:"1"`
	VariantID         uint    `json:"variant_id" example:"1"`
	SKU               string  `json:"sku" example:"TS-RED-XL-B1"`
	BatchNumber       string  `json:"batch_number" example:"B20240115"`
	Location          string  `json:"location" example:"WH-A-01"`
	StockQuantity     int     `json:"stock_quantity" example:"100"`
	ReservedQuantity  int     `json:"reserved_quantity" example:"5"`
	AvailableQuantity int     `json:"available_quantity" example:"95"`
	LowStockThreshold int     `json:"low_stock_threshold" example:"10"`
	ReorderLevel      int     `json:"reorder_level" example:"20"`
	IsLowStock        bool    `json:"is_low_stock" example:"false"`
	NeedsReorder      bool    `json:"needs_reorder" example:"false"`
	IsExpired         bool    `json:"is_expired" example:"false"`
	ExpiryDate        *string `json:"expiry_date,omitempty" example:"2025-12-31 00:00:00"`
	Version           int     `json:"version" example:"3"`
	CreatedAt         string  `json:"created_at" example:"2024-01-15 10:30:00"`
	UpdatedAt         string  `json:"updated_at" example:"2024-01-15 10:30:00"`
}

// NewBatchResponse 领域对象转响应
func NewBatchResponse(b *inventory.Batch, now time.Time) BatchResponse {
	return BatchResponse{
		ID:                b.ID,
		VariantID:         b.VariantID,
		SKU:               b.SKU,
		BatchNumber:       b.BatchNumber,
		Location:          b.Location,
		StockQuantity:     b.StockQuantity,
		ReservedQuantity:  b.ReservedQuantity,
		AvailableQuantity: b.Available(),
		LowStockThreshold: b.LowStockThreshold,
		ReorderLevel:      b.ReorderLevel,
		IsLowStock:        b.IsLowStock(),
		NeedsReorder:      b.NeedsReorder(),
		IsExpired:         b.IsExpired(now),
		ExpiryDate:        formatTimePtr(b.ExpiryDate),
		Version:           b.Version,
		CreatedAt:         formatTime(b.CreatedAt),
		UpdatedAt:         formatTime(b.UpdatedAt),
	}
}

// NewBatchList 批量转换
func NewBatchList(batches []*inventory.Batch, now time.Time) []BatchResponse {
	list := make([]BatchResponse, len(batches))
	for i, b := range batches {
		list[i] = NewBatchResponse(b, now)
	}
	return list
}

// VariantStockResponse 规格库存汇总
type VariantStockResponse struct {
	VariantID      uint            `json:"variant_id" example:"1"`
	TotalStock     int             `json:"total_stock" example:"10"`
	TotalReserved  int             `json:"total_reserved" example:"2"`
	TotalAvailable int             `json:"total_available" example:"8"`
	Batches        []BatchResponse `json:"batches"`
}

// NewVariantStockResponse 聚合转响应
func NewVariantStockResponse(vs *inventory.VariantStock, now time.Time) VariantStockResponse {
	return VariantStockResponse{
		VariantID:      vs.VariantID,
		TotalStock:     vs.TotalStock(),
		TotalReserved:  vs.TotalReserved(),
		TotalAvailable: vs.TotalAvailable(),
		Batches:        NewBatchList(vs.Batches, now),
	}
}

// TransferResponse 调拨结果
type TransferResponse struct {
	From BatchResponse `json:"from"`
	To   BatchResponse `json:"to"`
}
