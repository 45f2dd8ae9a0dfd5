package shared

import "context"

// Transactor 事务边界
// fn内通过ctx执行的所有仓储操作处于同一事务：fn返回error则回滚，返回nil则提交。
// 若ctx已处于事务中，则直接复用该事务（嵌套调用不会开启新事务）。
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
