package order

import (
	"context"
)

// Repository 订单仓储接口
// 通过context传递事务，订单和明细必须在同一事务中创建。
type Repository interface {
	// Create 创建订单及明细，回填ID；订单号冲突返回ErrDuplicateOrderNo
	Create(ctx context.Context, order *Order) error

	// FindByID 包含明细，不存在返回ErrOrderNotFound
	FindByID(ctx context.Context, id uint) (*Order, error)

	// LockByID 悲观锁查询（包含明细）
	LockByID(ctx context.Context, id uint) (*Order, error)

	// FindByOrderNo 根据订单号查找
	FindByOrderNo(ctx context.Context, orderNo string) (*Order, error)

	// LockByOrderNo 根据订单号加锁查询
	LockByOrderNo(ctx context.Context, orderNo string) (*Order, error)

	// Update 更新订单头（状态、支付状态、取消信息）
	Update(ctx context.Context, order *Order) error

	// ListByUserID 分页查询，按创建时间倒序；userID为0表示全部
	ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*Order, int64, error)

	// AddAllocations 保存批次分配记录
	AddAllocations(ctx context.Context, allocations []*Allocation) error

	// FindAllocations 查询订单全部明细的分配记录，按OrderItemID分组
	FindAllocations(ctx context.Context, orderID uint) (map[uint][]*Allocation, error)
}
