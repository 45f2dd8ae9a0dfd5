package memory

import (
	"context"

	"github.com/xiebiao/storefront/internal/domain/catalog"
)

type catalogRepository struct {
	s *Store
}

// NewCatalogRepository 创建商品目录仓储
func NewCatalogRepository(s *Store) catalog.Repository {
	return &catalogRepository{s: s}
}

// AddProduct 写入商品（商品CRUD不在本服务内，开发和测试时用它准备数据）
func (s *Store) AddProduct(p *catalog.Product) *catalog.Product {
	_ = s.run(context.Background(), func(d *state) error {
		if p.ID == 0 {
			p.ID = d.nextID("products")
		} else if p.ID > d.seq["products"] {
			d.seq["products"] = p.ID
		}
		pp := *p
		d.products[p.ID] = &pp
		return nil
	})
	return p
}

// AddVariant 写入商品规格
func (s *Store) AddVariant(v *catalog.Variant) *catalog.Variant {
	_ = s.run(context.Background(), func(d *state) error {
		if v.ID == 0 {
			v.ID = d.nextID("product_variants")
		} else if v.ID > d.seq["product_variants"] {
			d.seq["product_variants"] = v.ID
		}
		d.variants[v.ID] = cloneVariant(v)
		return nil
	})
	return v
}

func (r *catalogRepository) FindProduct(ctx context.Context, id uint) (*catalog.Product, error) {
	var out *catalog.Product
	err := r.s.run(ctx, func(d *state) error {
		p, ok := d.products[id]
		if !ok {
			return catalog.ErrProductNotFound.WithDetails(map[string]interface{}{"product_id": id})
		}
		pp := *p
		out = &pp
		return nil
	})
	return out, err
}

func (r *catalogRepository) FindVariant(ctx context.Context, id uint) (*catalog.Variant, error) {
	var out *catalog.Variant
	err := r.s.run(ctx, func(d *state) error {
		v, ok := d.variants[id]
		if !ok {
			return catalog.ErrVariantNotFound.WithDetails(map[string]interface{}{"variant_id": id})
		}
		out = cloneVariant(v)
		return nil
	})
	return out, err
}

func (r *catalogRepository) FindVariants(ctx context.Context, ids []uint) (map[uint]*catalog.Variant, error) {
	out := make(map[uint]*catalog.Variant, len(ids))
	err := r.s.run(ctx, func(d *state) error {
		for _, id := range ids {
			if v, ok := d.variants[id]; ok {
				out[id] = cloneVariant(v)
			}
		}
		return nil
	})
	return out, err
}

func (r *catalogRepository) FindProducts(ctx context.Context, ids []uint) (map[uint]*catalog.Product, error) {
	out := make(map[uint]*catalog.Product, len(ids))
	err := r.s.run(ctx, func(d *state) error {
		for _, id := range ids {
			if p, ok := d.products[id]; ok {
				pp := *p
				out[id] = &pp
			}
		}
		return nil
	})
	return out, err
}

func (r *catalogRepository) VariantExists(ctx context.Context, id uint) (bool, error) {
	exists := false
	err := r.s.run(ctx, func(d *state) error {
		_, exists = d.variants[id]
		return nil
	})
	return exists, err
}
