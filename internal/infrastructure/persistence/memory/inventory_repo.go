package memory

import (
	"context"
	"sort"
	"time"

	"github.com/xiebiao/storefront/internal/domain/inventory"
)

type inventoryRepository struct {
	s *Store
}

// NewInventoryRepository 创建库存批次仓储
func NewInventoryRepository(s *Store) inventory.Repository {
	return &inventoryRepository{s: s}
}

func (r *inventoryRepository) Create(ctx context.Context, b *inventory.Batch) error {
	return r.s.run(ctx, func(d *state) error {
		if err := skuTaken(d, b.SKU, 0); err != nil {
			return err
		}
		now := r.s.now()
		b.ID = d.nextID("inventory_batches")
		b.Version = 1
		b.CreatedAt = now
		b.UpdatedAt = now
		d.batches[b.ID] = b.Clone()
		return nil
	})
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uint) (*inventory.Batch, error) {
	var out *inventory.Batch
	err := r.s.run(ctx, func(d *state) error {
		b, ok := d.batches[id]
		if !ok {
			return inventory.BatchNotFound(id)
		}
		out = b.Clone()
		return nil
	})
	return out, err
}

// LockByID 内存实现由事务全局锁保证互斥
func (r *inventoryRepository) LockByID(ctx context.Context, id uint) (*inventory.Batch, error) {
	return r.FindByID(ctx, id)
}

func (r *inventoryRepository) LockByVariant(ctx context.Context, variantID uint) ([]*inventory.Batch, error) {
	return r.FindByVariant(ctx, variantID)
}

func (r *inventoryRepository) FindByVariant(ctx context.Context, variantID uint) ([]*inventory.Batch, error) {
	var out []*inventory.Batch
	err := r.s.run(ctx, func(d *state) error {
		for _, b := range d.batches {
			if b.VariantID == variantID {
				out = append(out, b.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inventory.SortFIFO(out), nil
}

func (r *inventoryRepository) FindBySKU(ctx context.Context, sku string) (*inventory.Batch, error) {
	var out *inventory.Batch
	err := r.s.run(ctx, func(d *state) error {
		for _, b := range d.batches {
			if sku != "" && b.SKU == sku {
				out = b.Clone()
				return nil
			}
		}
		return inventory.ErrBatchNotFound
	})
	return out, err
}

// Update 版本号不一致返回ErrConcurrentModification
func (r *inventoryRepository) Update(ctx context.Context, b *inventory.Batch) error {
	return r.s.run(ctx, func(d *state) error {
		current, ok := d.batches[b.ID]
		if !ok {
			return inventory.BatchNotFound(b.ID)
		}
		if current.Version != b.Version {
			return inventory.ErrConcurrentModification.WithDetails(map[string]interface{}{"batch_id": b.ID})
		}
		if err := skuTaken(d, b.SKU, b.ID); err != nil {
			return err
		}
		b.Version++
		b.UpdatedAt = r.s.now()
		d.batches[b.ID] = b.Clone()
		return nil
	})
}

func (r *inventoryRepository) Delete(ctx context.Context, id uint) error {
	return r.s.run(ctx, func(d *state) error {
		if _, ok := d.batches[id]; !ok {
			return inventory.BatchNotFound(id)
		}
		delete(d.batches, id)
		return nil
	})
}

func (r *inventoryRepository) IsReferenced(ctx context.Context, batchID uint) (bool, error) {
	referenced := false
	err := r.s.run(ctx, func(d *state) error {
		for _, a := range d.allocations {
			if a.BatchID == batchID {
				referenced = true
				return nil
			}
		}
		return nil
	})
	return referenced, err
}

func (r *inventoryRepository) List(ctx context.Context, filter inventory.Filter) ([]*inventory.Batch, int64, error) {
	filter.Normalize()

	var matched []*inventory.Batch
	err := r.s.run(ctx, func(d *state) error {
		for _, b := range d.batches {
			if filter.Matches(b) {
				matched = append(matched, b.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return paginate(matched, filter.Page, filter.PageSize), int64(len(matched)), nil
}

func (r *inventoryRepository) Stats(ctx context.Context, now time.Time) (*inventory.Stats, error) {
	stats := &inventory.Stats{}
	err := r.s.run(ctx, func(d *state) error {
		for _, b := range d.batches {
			stats.Add(b, now)
		}
		return nil
	})
	return stats, err
}

func skuTaken(d *state, sku string, selfID uint) error {
	if sku == "" {
		return nil
	}
	for _, b := range d.batches {
		if b.SKU == sku && b.ID != selfID {
			return inventory.ErrDuplicateSKU.WithDetails(map[string]interface{}{"sku": sku})
		}
	}
	return nil
}
