package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Is(t *testing.T) {
	t.Run("派生错误仍匹配哨兵错误", func(t *testing.T) {
		derived := ErrInsufficientStock.WithDetails(map[string]interface{}{"variant_id": uint(7)})

		assert.True(t, errors.Is(derived, ErrInsufficientStock))
		assert.False(t, errors.Is(derived, ErrInvalidOrderStatus))
		assert.Nil(t, ErrInsufficientStock.Details, "哨兵错误不应被修改")
	})

	t.Run("经fmt包装后仍可匹配", func(t *testing.T) {
		err := fmt.Errorf("checkout: %w", ErrConcurrentUpdate.WithMessage("批次%d已被修改", 3))

		assert.True(t, errors.Is(err, ErrConcurrentUpdate))
		appErr := GetAppError(err)
		assert.Equal(t, "批次3已被修改", appErr.Message)
	})
}

func TestWithDetails_Merge(t *testing.T) {
	base := New(ErrCodeBatchInUse, "批次仍被占用").WithDetails(map[string]interface{}{"batch_id": uint(1)})
	merged := base.WithDetails(map[string]interface{}{"reserved": 2})

	assert.Len(t, base.Details, 1)
	assert.Equal(t, map[string]interface{}{"batch_id": uint(1), "reserved": 2}, merged.Details)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		code   int
		kind   Kind
		status int
	}{
		{ErrCodeInsufficientStock, KindValidation, http.StatusBadRequest},
		{ErrCodeInvalidParams, KindValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, KindUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, KindForbidden, http.StatusForbidden},
		{ErrCodeBatchNotFound, KindNotFound, http.StatusNotFound},
		{ErrCodeConcurrentUpdate, KindConflict, http.StatusConflict},
		{ErrCodeIdempotencyKeyReused, KindUnprocessable, http.StatusUnprocessableEntity},
		{ErrCodeDatabaseError, KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.code))
			assert.Equal(t, tt.status, New(tt.code, "x").HTTPStatus())
		})
	}
}

func TestGetAppError(t *testing.T) {
	raw := errors.New("connection reset")
	appErr := GetAppError(raw)

	require.NotNil(t, appErr)
	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.ErrorIs(t, appErr, raw)
	assert.Equal(t, KindInternal, KindOfErr(raw))
	assert.False(t, IsAppError(raw))
	assert.True(t, IsAppError(appErr))
}
