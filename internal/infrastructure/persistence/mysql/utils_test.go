package mysql

import (
	"errors"
	"fmt"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

func TestTranslateLockConflict(t *testing.T) {
	deadlock := &mysqldrv.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	lockWait := &mysqldrv.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}

	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"死锁", deadlock, true},
		{"锁等待超时", lockWait, true},
		{"仓储包装后的死锁", apperrors.Wrap(deadlock, "更新库存批次失败"), true},
		{"fmt包装的锁等待", fmt.Errorf("commit: %w", lockWait), true},
		{"唯一键冲突", &mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{"记录不存在", gorm.ErrRecordNotFound, false},
		{"普通错误", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateLockConflict(tt.err)
			if tt.conflict {
				assert.ErrorIs(t, got, inventory.ErrConcurrentModification)
				assert.Equal(t, apperrors.KindConflict, apperrors.KindOfErr(got))
				assert.ErrorIs(t, got, tt.err, "保留原始错误")
				return
			}
			assert.Same(t, tt.err, got)
		})
	}

	assert.NoError(t, translateLockConflict(nil))
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, isDuplicateError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'uk_sku'"}))
	assert.True(t, isDuplicateError(gorm.ErrDuplicatedKey))
	assert.False(t, isDuplicateError(&mysqldrv.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateError(nil))
}
