package mysql

import (
	"errors"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/storefront/internal/domain/inventory"
)

// MySQL锁冲突错误码
const (
	errLockWaitTimeout uint16 = 1205
	errDeadlock        uint16 = 1213
)

// forUpdate SELECT ... FOR UPDATE
var forUpdate = clause.Locking{Strength: "UPDATE"}

// isDuplicateError 判断是否为MySQL唯一索引冲突错误
// MySQL错误码 1062: Duplicate entry 'xxx' for key 'yyy'
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}

// isLockConflict 死锁或锁等待超时，事务已被回滚，可以整体重试
func isLockConflict(err error) bool {
	var me *mysqldrv.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errDeadlock || me.Number == errLockWaitTimeout
}

// translateLockConflict 锁冲突统一转换为ErrConcurrentModification(409)，其余错误原样返回
func translateLockConflict(err error) error {
	if err == nil || !isLockConflict(err) {
		return err
	}
	return inventory.ErrConcurrentModification.WithErr(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// offset 页码从1开始
func offset(page, pageSize int) int {
	if page <= 0 {
		page = 1
	}
	return (page - 1) * pageSize
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
