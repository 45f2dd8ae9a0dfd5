package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// inventoryRepository 库存批次仓储实现(MySQL)
// 1. 负责domain实体与GORM模型之间的转换
// 2. 唯一索引冲突转换为ErrDuplicateSKU
// 3. Update带版本号条件，未命中转换为ErrConcurrentModification
type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建库存批次仓储
func NewInventoryRepository(db *gorm.DB) inventory.Repository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(ctx context.Context, b *inventory.Batch) error {
	model := toBatchModel(b)
	model.Version = 1

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return inventory.ErrDuplicateSKU.WithDetails(map[string]interface{}{"sku": b.SKU})
		}
		return apperrors.Wrap(err, "创建库存批次失败")
	}

	b.ID = model.ID
	b.Version = model.Version
	b.CreatedAt = model.CreatedAt
	b.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uint) (*inventory.Batch, error) {
	return r.first(getDB(ctx, r.db), id)
}

// LockByID SELECT ... FOR UPDATE
func (r *inventoryRepository) LockByID(ctx context.Context, id uint) (*inventory.Batch, error) {
	return r.first(getDB(ctx, r.db).Clauses(forUpdate), id)
}

func (r *inventoryRepository) first(db *gorm.DB, id uint) (*inventory.Batch, error) {
	var model InventoryBatchModel
	if err := db.First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, inventory.BatchNotFound(id)
		}
		return nil, apperrors.Wrap(err, "查询库存批次失败")
	}
	return toBatchEntity(&model), nil
}

// LockByVariant 按FIFO顺序锁定规格下全部批次
// 走idx_variant_created索引，只锁该规格的行
func (r *inventoryRepository) LockByVariant(ctx context.Context, variantID uint) ([]*inventory.Batch, error) {
	return r.byVariant(getDB(ctx, r.db).Clauses(forUpdate), variantID)
}

func (r *inventoryRepository) FindByVariant(ctx context.Context, variantID uint) ([]*inventory.Batch, error) {
	return r.byVariant(getDB(ctx, r.db), variantID)
}

func (r *inventoryRepository) byVariant(db *gorm.DB, variantID uint) ([]*inventory.Batch, error) {
	var models []InventoryBatchModel
	err := db.Where("variant_id = ?", variantID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询规格库存失败")
	}
	return toBatchEntities(models), nil
}

func (r *inventoryRepository) FindBySKU(ctx context.Context, sku string) (*inventory.Batch, error) {
	var model InventoryBatchModel
	if err := getDB(ctx, r.db).Where("sku = ?", sku).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, inventory.ErrBatchNotFound
		}
		return nil, apperrors.Wrap(err, "查询库存批次失败")
	}
	return toBatchEntity(&model), nil
}

// Update 乐观锁更新
// UPDATE inventory_batches SET ..., version = version + 1 WHERE id = ? AND version = ?
func (r *inventoryRepository) Update(ctx context.Context, b *inventory.Batch) error {
	db := getDB(ctx, r.db)
	now := time.Now()

	result := db.Model(&InventoryBatchModel{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]interface{}{
			"sku":                 nullableString(b.SKU),
			"batch_number":        b.BatchNumber,
			"location":            b.Location,
			"stock_quantity":      b.StockQuantity,
			"reserved_quantity":   b.ReservedQuantity,
			"low_stock_threshold": b.LowStockThreshold,
			"reorder_level":       b.ReorderLevel,
			"expiry_date":         b.ExpiryDate,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          now,
		})
	if result.Error != nil {
		if isDuplicateError(result.Error) {
			return inventory.ErrDuplicateSKU.WithDetails(map[string]interface{}{"sku": b.SKU})
		}
		return apperrors.Wrap(result.Error, "更新库存批次失败")
	}

	if result.RowsAffected == 0 {
		// 区分“不存在”和“版本号不匹配”
		var count int64
		if err := db.Model(&InventoryBatchModel{}).Where("id = ?", b.ID).Count(&count).Error; err != nil {
			return apperrors.Wrap(err, "查询库存批次失败")
		}
		if count == 0 {
			return inventory.BatchNotFound(b.ID)
		}
		return inventory.ErrConcurrentModification.WithDetails(map[string]interface{}{
			"batch_id": b.ID,
			"version":  b.Version,
		})
	}

	b.Version++
	b.UpdatedAt = now
	return nil
}

func (r *inventoryRepository) Delete(ctx context.Context, id uint) error {
	result := getDB(ctx, r.db).Delete(&InventoryBatchModel{}, id)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除库存批次失败")
	}
	if result.RowsAffected == 0 {
		return inventory.BatchNotFound(id)
	}
	return nil
}

func (r *inventoryRepository) IsReferenced(ctx context.Context, batchID uint) (bool, error) {
	var count int64
	err := getDB(ctx, r.db).Model(&OrderAllocationModel{}).Where("batch_id = ?", batchID).Limit(1).Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(err, "查询批次引用失败")
	}
	return count > 0, nil
}

// List 分页查询，条件与inventory.Filter.Matches保持一致
func (r *inventoryRepository) List(ctx context.Context, f inventory.Filter) ([]*inventory.Batch, int64, error) {
	f.Normalize()
	query := getDB(ctx, r.db).Model(&InventoryBatchModel{})

	if f.VariantID != 0 {
		query = query.Where("variant_id = ?", f.VariantID)
	}
	if f.SKU != "" {
		query = query.Where("sku = ?", f.SKU)
	}
	if f.Location != "" {
		query = query.Where("location = ?", f.Location)
	}
	if f.MinStock != nil {
		query = query.Where("stock_quantity >= ?", *f.MinStock)
	}
	if f.MaxStock != nil {
		query = query.Where("stock_quantity <= ?", *f.MaxStock)
	}
	if f.LowStock {
		query = query.Where("stock_quantity <= low_stock_threshold")
	}
	if f.NeedsReorder {
		query = query.Where("stock_quantity <= reorder_level")
	}
	if f.OutOfStock {
		query = query.Where("stock_quantity = 0")
	}
	if f.ExpiredAt != nil {
		query = query.Where("expiry_date IS NOT NULL AND expiry_date < ?", *f.ExpiredAt)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询库存批次总数失败")
	}

	var models []InventoryBatchModel
	err := query.Order("id ASC").Limit(f.PageSize).Offset(f.Offset()).Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询库存批次列表失败")
	}
	return toBatchEntities(models), total, nil
}

type statsRow struct {
	TotalBatches      int64
	TotalStock        int64
	TotalReserved     int64
	TotalAvailable    int64
	LowStockCount     int64
	NeedsReorderCount int64
	ExpiredCount      int64
	OutOfStockCount   int64
}

// Stats 一条聚合SQL完成统计
func (r *inventoryRepository) Stats(ctx context.Context, now time.Time) (*inventory.Stats, error) {
	var row statsRow
	err := getDB(ctx, r.db).Model(&InventoryBatchModel{}).Select(`
		COUNT(*) AS total_batches,
		COALESCE(SUM(stock_quantity), 0) AS total_stock,
		COALESCE(SUM(reserved_quantity), 0) AS total_reserved,
		COALESCE(SUM(stock_quantity - reserved_quantity), 0) AS total_available,
		COALESCE(SUM(CASE WHEN stock_quantity <= low_stock_threshold THEN 1 ELSE 0 END), 0) AS low_stock_count,
		COALESCE(SUM(CASE WHEN stock_quantity <= reorder_level THEN 1 ELSE 0 END), 0) AS needs_reorder_count,
		COALESCE(SUM(CASE WHEN expiry_date IS NOT NULL AND expiry_date < ? THEN 1 ELSE 0 END), 0) AS expired_count,
		COALESCE(SUM(CASE WHEN stock_quantity = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock_count`, now).
		Scan(&row).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "统计库存失败")
	}

	return &inventory.Stats{
		TotalBatches:      row.TotalBatches,
		TotalStock:        row.TotalStock,
		TotalReserved:     row.TotalReserved,
		TotalAvailable:    row.TotalAvailable,
		LowStockCount:     row.LowStockCount,
		NeedsReorderCount: row.NeedsReorderCount,
		ExpiredCount:      row.ExpiredCount,
		OutOfStockCount:   row.OutOfStockCount,
	}, nil
}

// =========================================
// 辅助函数:模型转换
// =========================================

func toBatchModel(b *inventory.Batch) *InventoryBatchModel {
	return &InventoryBatchModel{
		ID:                b.ID,
		VariantID:         b.VariantID,
		SKU:               nullableString(b.SKU),
		BatchNumber:       b.BatchNumber,
		Location:          b.Location,
		StockQuantity:     b.StockQuantity,
		ReservedQuantity:  b.ReservedQuantity,
		LowStockThreshold: b.LowStockThreshold,
		ReorderLevel:      b.ReorderLevel,
		ExpiryDate:        b.ExpiryDate,
		Version:           b.Version,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

func toBatchEntity(m *InventoryBatchModel) *inventory.Batch {
	return &inventory.Batch{
		ID:                m.ID,
		VariantID:         m.VariantID,
		SKU:               derefString(m.SKU),
		BatchNumber:       m.BatchNumber,
		Location:          m.Location,
		StockQuantity:     m.StockQuantity,
		ReservedQuantity:  m.ReservedQuantity,
		LowStockThreshold: m.LowStockThreshold,
		ReorderLevel:      m.ReorderLevel,
		ExpiryDate:        m.ExpiryDate,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toBatchEntities(models []InventoryBatchModel) []*inventory.Batch {
	out := make([]*inventory.Batch, len(models))
	for i := range models {
		out[i] = toBatchEntity(&models[i])
	}
	return out
}
