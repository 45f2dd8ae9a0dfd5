// Package memory 进程内存储实现
//
// 用于本地开发（database.driver=memory）和领域/应用层测试。
// 事务语义：Transaction持有全局互斥锁串行执行，fn返回错误时恢复事务开始前的快照，
// 因此“行锁”在这里退化为全局锁，但回滚、版本号冲突、唯一约束与MySQL实现保持一致。
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xiebiao/storefront/internal/domain/audit"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/order"
)

type txKey struct{}

// Store 内存数据库
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

// NewStore 创建空的内存存储
func NewStore() *Store {
	return &Store{data: newState(), now: time.Now}
}

// SetClock 替换时钟（测试用）
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Transaction 实现shared.Transactor
// ctx已处于本Store的事务中时直接复用
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// run 在事务中直接访问数据，否则单独加锁
func (s *Store) run(ctx context.Context, fn func(d *state) error) error {
	if s.inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// state 全部表数据
type state struct {
	seq         map[string]uint
	batches     map[uint]*inventory.Batch
	products    map[uint]*catalog.Product
	variants    map[uint]*catalog.Variant
	carts       map[uint]*cart.Cart // 不含Items，条目单独存放
	cartItems   map[uint]*cart.Item
	orders      map[uint]*order.Order
	allocations map[uint]*order.Allocation
	audits      []audit.Entry
	outbox      map[uint]*outboxRow
}

func newState() *state {
	return &state{
		seq:         map[string]uint{},
		batches:     map[uint]*inventory.Batch{},
		products:    map[uint]*catalog.Product{},
		variants:    map[uint]*catalog.Variant{},
		carts:       map[uint]*cart.Cart{},
		cartItems:   map[uint]*cart.Item{},
		orders:      map[uint]*order.Order{},
		allocations: map[uint]*order.Allocation{},
		outbox:      map[uint]*outboxRow{},
	}
}

// nextID 模拟自增主键
func (d *state) nextID(table string) uint {
	d.seq[table]++
	return d.seq[table]
}

func (d *state) clone() *state {
	cp := newState()
	for k, v := range d.seq {
		cp.seq[k] = v
	}
	for id, b := range d.batches {
		cp.batches[id] = b.Clone()
	}
	for id, p := range d.products {
		pp := *p
		cp.products[id] = &pp
	}
	for id, v := range d.variants {
		cp.variants[id] = cloneVariant(v)
	}
	for id, c := range d.carts {
		cc := *c
		cp.carts[id] = &cc
	}
	for id, it := range d.cartItems {
		ii := *it
		cp.cartItems[id] = &ii
	}
	for id, o := range d.orders {
		cp.orders[id] = cloneOrder(o)
	}
	for id, a := range d.allocations {
		aa := *a
		cp.allocations[id] = &aa
	}
	cp.audits = append([]audit.Entry(nil), d.audits...)
	for id, r := range d.outbox {
		cp.outbox[id] = r.clone()
	}
	return cp
}

func cloneVariant(v *catalog.Variant) *catalog.Variant {
	cp := *v
	cp.Attributes = v.CopyAttributes()
	return &cp
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		cp.CancelledAt = &t
	}
	cp.Items = make([]*order.OrderItem, len(o.Items))
	for i, it := range o.Items {
		ii := *it
		if it.Attributes != nil {
			ii.Attributes = make(map[string]string, len(it.Attributes))
			for k, v := range it.Attributes {
				ii.Attributes[k] = v
			}
		}
		cp.Items[i] = &ii
	}
	return &cp
}

// paginate 页码从1开始
func paginate[T any](items []T, page, pageSize int) []T {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}
