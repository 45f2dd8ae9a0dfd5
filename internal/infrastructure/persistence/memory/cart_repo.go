package memory

import (
	"context"
	"sort"

	"github.com/xiebiao/storefront/internal/domain/cart"
)

type cartRepository struct {
	s *Store
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(s *Store) cart.Repository {
	return &cartRepository{s: s}
}

func (r *cartRepository) FindByUserID(ctx context.Context, userID uint) (*cart.Cart, error) {
	var out *cart.Cart
	err := r.s.run(ctx, func(d *state) error {
		c := findCart(d, userID)
		if c == nil {
			return cart.ErrCartNotFound
		}
		out = loadCart(d, c)
		return nil
	})
	return out, err
}

func (r *cartRepository) LockByUserID(ctx context.Context, userID uint) (*cart.Cart, error) {
	return r.FindByUserID(ctx, userID)
}

func (r *cartRepository) GetOrCreate(ctx context.Context, userID uint) (*cart.Cart, error) {
	var out *cart.Cart
	err := r.s.run(ctx, func(d *state) error {
		c := findCart(d, userID)
		if c == nil {
			now := r.s.now()
			c = &cart.Cart{ID: d.nextID("carts"), UserID: userID, CreatedAt: now, UpdatedAt: now}
			d.carts[c.ID] = c
		}
		out = loadCart(d, c)
		return nil
	})
	return out, err
}

func (r *cartRepository) UpdateDiscount(ctx context.Context, cartID uint, amount int64) error {
	return r.s.run(ctx, func(d *state) error {
		c, ok := d.carts[cartID]
		if !ok {
			return cart.ErrCartNotFound
		}
		c.DiscountAmount = amount
		c.UpdatedAt = r.s.now()
		return nil
	})
}

func (r *cartRepository) AddItem(ctx context.Context, item *cart.Item) error {
	return r.s.run(ctx, func(d *state) error {
		if _, ok := d.carts[item.CartID]; !ok {
			return cart.ErrCartNotFound
		}
		now := r.s.now()
		item.ID = d.nextID("cart_items")
		item.CreatedAt = now
		item.UpdatedAt = now
		it := *item
		d.cartItems[item.ID] = &it
		return nil
	})
}

func (r *cartRepository) UpdateItem(ctx context.Context, item *cart.Item) error {
	return r.s.run(ctx, func(d *state) error {
		existing, ok := d.cartItems[item.ID]
		if !ok || existing.CartID != item.CartID {
			return cart.ErrItemNotFound
		}
		item.UpdatedAt = r.s.now()
		it := *item
		d.cartItems[item.ID] = &it
		return nil
	})
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID uint) error {
	return r.s.run(ctx, func(d *state) error {
		existing, ok := d.cartItems[itemID]
		if !ok || existing.CartID != cartID {
			return cart.ErrItemNotFound
		}
		delete(d.cartItems, itemID)
		return nil
	})
}

func (r *cartRepository) ClearItems(ctx context.Context, cartID uint) error {
	return r.s.run(ctx, func(d *state) error {
		for id, it := range d.cartItems {
			if it.CartID == cartID {
				delete(d.cartItems, id)
			}
		}
		return nil
	})
}

func findCart(d *state, userID uint) *cart.Cart {
	for _, c := range d.carts {
		if c.UserID == userID {
			return c
		}
	}
	return nil
}

// loadCart 拷贝购物车并按条目ID升序加载条目
func loadCart(d *state, c *cart.Cart) *cart.Cart {
	out := *c
	out.Items = nil
	for _, it := range d.cartItems {
		if it.CartID == c.ID {
			ii := *it
			out.Items = append(out.Items, &ii)
		}
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	return &out
}
