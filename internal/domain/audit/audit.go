package audit

import (
	"context"
	"time"
)

// 实体类型
const (
	EntityInventoryBatch = "inventory_batch"
	EntityOrder          = "order"
)

// 操作类型
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionReserve  = "reserve"
	ActionRelease  = "release"
	ActionFulfill  = "fulfill"
	ActionAdjust   = "adjust"
	ActionTransfer = "transfer"
	ActionConsume  = "consume"
	ActionRestock  = "restock"
	ActionCancel   = "cancel"
)

// Entry 审计记录（只追加，不修改）
type Entry struct {
	EntityType string
	EntityID   uint
	Action     string
	OldValues  map[string]interface{}
	NewValues  map[string]interface{}
	ActorID    uint
	CreatedAt  time.Time
}

// Sink 审计日志写入端
// Record必须在被审计操作所在的事务内调用（ctx携带事务），事务回滚时审计记录一并回滚。
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}
