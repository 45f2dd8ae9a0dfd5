package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/catalog"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// catalogRepository 商品目录只读仓储
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建商品目录仓储
func NewCatalogRepository(db *gorm.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) FindProduct(ctx context.Context, id uint) (*catalog.Product, error) {
	var model ProductModel
	if err := getDB(ctx, r.db).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrProductNotFound.WithDetails(map[string]interface{}{"product_id": id})
		}
		return nil, apperrors.Wrap(err, "查询商品失败")
	}
	return toProductEntity(&model), nil
}

func (r *catalogRepository) FindVariant(ctx context.Context, id uint) (*catalog.Variant, error) {
	var model ProductVariantModel
	if err := getDB(ctx, r.db).First(&model, id).Error; err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrVariantNotFound.WithDetails(map[string]interface{}{"variant_id": id})
		}
		return nil, apperrors.Wrap(err, "查询商品规格失败")
	}
	return toVariantEntity(&model), nil
}

func (r *catalogRepository) FindVariants(ctx context.Context, ids []uint) (map[uint]*catalog.Variant, error) {
	out := make(map[uint]*catalog.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []ProductVariantModel
	if err := getDB(ctx, r.db).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询商品规格失败")
	}
	for i := range models {
		out[models[i].ID] = toVariantEntity(&models[i])
	}
	return out, nil
}

func (r *catalogRepository) FindProducts(ctx context.Context, ids []uint) (map[uint]*catalog.Product, error) {
	out := make(map[uint]*catalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []ProductModel
	if err := getDB(ctx, r.db).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询商品失败")
	}
	for i := range models {
		out[models[i].ID] = toProductEntity(&models[i])
	}
	return out, nil
}

func (r *catalogRepository) VariantExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := getDB(ctx, r.db).Model(&ProductVariantModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(err, "查询商品规格失败")
	}
	return count > 0, nil
}

func toProductEntity(m *ProductModel) *catalog.Product {
	return &catalog.Product{ID: m.ID, Name: m.Name, SKU: m.SKU, Price: m.Price}
}

func toVariantEntity(m *ProductVariantModel) *catalog.Variant {
	return &catalog.Variant{
		ID:         m.ID,
		ProductID:  m.ProductID,
		SKU:        m.SKU,
		Name:       m.Name,
		Attributes: m.Attributes,
		Price:      m.Price,
		IsActive:   m.IsActive,
	}
}
