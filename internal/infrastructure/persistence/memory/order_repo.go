package memory

import (
	"context"
	"sort"

	"github.com/xiebiao/storefront/internal/domain/order"
)

type orderRepository struct {
	s *Store
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(s *Store) order.Repository {
	return &orderRepository{s: s}
}

func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.s.run(ctx, func(d *state) error {
		for _, existing := range d.orders {
			if existing.OrderNo == o.OrderNo {
				return order.ErrDuplicateOrderNo
			}
		}
		now := r.s.now()
		o.ID = d.nextID("orders")
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		o.UpdatedAt = now
		for _, it := range o.Items {
			it.ID = d.nextID("order_items")
			it.OrderID = o.ID
		}
		d.orders[o.ID] = cloneOrder(o)
		return nil
	})
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*order.Order, error) {
	var out *order.Order
	err := r.s.run(ctx, func(d *state) error {
		o, ok := d.orders[id]
		if !ok {
			return order.ErrOrderNotFound
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

func (r *orderRepository) LockByID(ctx context.Context, id uint) (*order.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *orderRepository) FindByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	var out *order.Order
	err := r.s.run(ctx, func(d *state) error {
		for _, o := range d.orders {
			if o.OrderNo == orderNo {
				out = cloneOrder(o)
				return nil
			}
		}
		return order.ErrOrderNotFound
	})
	return out, err
}

func (r *orderRepository) LockByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	return r.FindByOrderNo(ctx, orderNo)
}

// Update 只更新订单头，明细保持不变
func (r *orderRepository) Update(ctx context.Context, o *order.Order) error {
	return r.s.run(ctx, func(d *state) error {
		existing, ok := d.orders[o.ID]
		if !ok {
			return order.ErrOrderNotFound
		}
		updated := cloneOrder(o)
		updated.Items = existing.Items
		d.orders[o.ID] = updated
		return nil
	})
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*order.Order, int64, error) {
	var matched []*order.Order
	err := r.s.run(ctx, func(d *state) error {
		for _, o := range d.orders {
			if userID == 0 || o.UserID == userID {
				matched = append(matched, cloneOrder(o))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	// 创建时间倒序，同一时间按ID倒序
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, page, pageSize), int64(len(matched)), nil
}

func (r *orderRepository) AddAllocations(ctx context.Context, allocations []*order.Allocation) error {
	return r.s.run(ctx, func(d *state) error {
		for _, a := range allocations {
			a.ID = d.nextID("order_allocations")
			aa := *a
			d.allocations[a.ID] = &aa
		}
		return nil
	})
}

func (r *orderRepository) FindAllocations(ctx context.Context, orderID uint) (map[uint][]*order.Allocation, error) {
	out := map[uint][]*order.Allocation{}
	err := r.s.run(ctx, func(d *state) error {
		o, ok := d.orders[orderID]
		if !ok {
			return order.ErrOrderNotFound
		}
		itemIDs := make(map[uint]bool, len(o.Items))
		for _, it := range o.Items {
			itemIDs[it.ID] = true
		}
		for _, a := range d.allocations {
			if itemIDs[a.OrderItemID] {
				aa := *a
				out[a.OrderItemID] = append(out[a.OrderItemID], &aa)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return out, nil
}
