package inventory

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

var base = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

// newBatches 按顺序创建批次，创建时间依次递增
func newBatches(variantID uint, quantities ...int) []*Batch {
	batches := make([]*Batch, len(quantities))
	for i, q := range quantities {
		batches[i] = &Batch{
			ID:            uint(i + 1),
			VariantID:     variantID,
			StockQuantity: q,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}
	}
	return batches
}

func stocks(batches []*Batch) []int {
	out := make([]int, len(batches))
	for i, b := range batches {
		out[i] = b.StockQuantity
	}
	return out
}

func assertInvariant(t *testing.T, b *Batch) {
	t.Helper()
	assert.GreaterOrEqual(t, b.ReservedQuantity, 0, "reserved不能为负")
	assert.LessOrEqual(t, b.ReservedQuantity, b.StockQuantity, "reserved不能超过stock")
}

func TestValidateTotalAvailable(t *testing.T) {
	tests := []struct {
		name    string
		batches []*Batch
		qty     int
		wantErr error
	}{
		{"无批次", nil, 1, ErrInsufficientStock},
		{"单批次刚好满足", newBatches(1, 3), 3, nil},
		{"单批次不足", newBatches(1, 2), 3, ErrInsufficientStock},
		{"多批次合计满足", newBatches(1, 2, 5, 3), 10, nil},
		{"多批次合计不足", newBatches(1, 2, 5), 8, ErrInsufficientStock},
		{"数量为0", newBatches(1, 2), 0, ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTotalAvailable(1, tt.batches, tt.qty)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("预留部分不计入可用", func(t *testing.T) {
		batches := newBatches(1, 5, 5)
		batches[0].ReservedQuantity = 4
		assert.NoError(t, ValidateTotalAvailable(1, batches, 6))
		assert.ErrorIs(t, ValidateTotalAvailable(1, batches, 7), ErrInsufficientStock)
	})

	t.Run("其他规格的批次不计入", func(t *testing.T) {
		batches := append(newBatches(1, 2), &Batch{ID: 9, VariantID: 2, StockQuantity: 10})
		err := ValidateTotalAvailable(1, batches, 3)

		require.ErrorIs(t, err, ErrInsufficientStock)
		appErr := apperrors.GetAppError(err)
		assert.Equal(t, uint(1), appErr.Details["variant_id"])
		assert.Equal(t, 2, appErr.Details["available"])
		assert.Equal(t, 3, appErr.Details["requested"])
	})
}

func TestConsumeFIFO(t *testing.T) {
	t.Run("先进先出扣减", func(t *testing.T) {
		batches := newBatches(1, 2, 5, 3)

		consumed, err := ConsumeFIFO(1, batches, 6)
		require.NoError(t, err)

		assert.Equal(t, []Consumption{{BatchID: 1, Quantity: 2}, {BatchID: 2, Quantity: 4}}, consumed)
		assert.Equal(t, []int{0, 1, 3}, stocks(batches))
	})

	t.Run("不按传入顺序而按创建时间", func(t *testing.T) {
		batches := newBatches(1, 2, 5, 3)
		shuffled := []*Batch{batches[2], batches[0], batches[1]}

		_, err := ConsumeFIFO(1, shuffled, 6)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 3}, stocks(batches))
	})

	t.Run("创建时间相同时按ID", func(t *testing.T) {
		a := &Batch{ID: 7, VariantID: 1, StockQuantity: 4, CreatedAt: base}
		b := &Batch{ID: 3, VariantID: 1, StockQuantity: 4, CreatedAt: base}

		consumed, err := ConsumeFIFO(1, []*Batch{a, b}, 5)
		require.NoError(t, err)
		assert.Equal(t, []Consumption{{BatchID: 3, Quantity: 4}, {BatchID: 7, Quantity: 1}}, consumed)
	})

	t.Run("跳过预留占满的旧批次", func(t *testing.T) {
		batches := newBatches(1, 2, 5)
		batches[0].ReservedQuantity = 2

		consumed, err := ConsumeFIFO(1, batches, 3)
		require.NoError(t, err)
		assert.Equal(t, []Consumption{{BatchID: 2, Quantity: 3}}, consumed)
		assert.Equal(t, []int{2, 2}, stocks(batches))
		for _, b := range batches {
			assertInvariant(t, b)
		}
	})

	t.Run("恰好耗尽", func(t *testing.T) {
		batches := newBatches(1, 1, 2)
		_, err := ConsumeFIFO(1, batches, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, TotalAvailable(batches))
	})

	t.Run("不足时不修改任何批次", func(t *testing.T) {
		batches := newBatches(1, 2, 5)
		_, err := ConsumeFIFO(1, batches, 10)

		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, []int{2, 5}, stocks(batches))
	})
}

func TestReserveRelease(t *testing.T) {
	t.Run("成对的预留与释放恢复原值", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 2}

		require.NoError(t, Reserve(b, 5))
		assert.Equal(t, 7, b.ReservedQuantity)
		assertInvariant(t, b)

		require.NoError(t, Release(b, 5))
		assert.Equal(t, 2, b.ReservedQuantity)
		assert.Equal(t, 10, b.StockQuantity)
	})

	t.Run("预留超过可用", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 8}
		assert.ErrorIs(t, Reserve(b, 3), ErrInsufficientStock)
		assert.Equal(t, 8, b.ReservedQuantity)
	})

	t.Run("释放超过预留", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 2}
		assert.ErrorIs(t, Release(b, 3), ErrOverRelease)
		assert.Equal(t, 2, b.ReservedQuantity)
	})

	t.Run("非法数量", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10}
		assert.ErrorIs(t, Reserve(b, 0), ErrInvalidQuantity)
		assert.ErrorIs(t, Release(b, -1), ErrInvalidQuantity)
	})
}

func TestFulfill(t *testing.T) {
	b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 4}

	require.NoError(t, Fulfill(b, 3))
	assert.Equal(t, 1, b.ReservedQuantity)
	assert.Equal(t, 7, b.StockQuantity)
	assertInvariant(t, b)

	assert.ErrorIs(t, Fulfill(b, 2), ErrOverRelease)
	assert.Equal(t, 7, b.StockQuantity)
}

func TestAdjust(t *testing.T) {
	t.Run("加减往返恢复原值", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 3}

		require.NoError(t, Adjust(b, 5))
		assert.Equal(t, 15, b.StockQuantity)
		require.NoError(t, Adjust(b, -5))
		assert.Equal(t, 10, b.StockQuantity)
	})

	t.Run("低于预留被拒绝", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 3}
		assert.ErrorIs(t, Adjust(b, -8), ErrBelowReserved)
		assert.Equal(t, 10, b.StockQuantity)
	})

	t.Run("低于零被拒绝", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 2}
		assert.ErrorIs(t, Adjust(b, -3), ErrNegativeStock)
		assert.Equal(t, 2, b.StockQuantity)
	})

	t.Run("零调整", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 2}
		assert.ErrorIs(t, Adjust(b, 0), ErrInvalidQuantity)
	})

	t.Run("超过上限被拒绝", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: MaxQuantity - 1, ReservedQuantity: 1}
		assert.ErrorIs(t, Adjust(b, 2), ErrInvalidQuantity)
		assert.ErrorIs(t, Adjust(b, math.MaxInt), ErrInvalidQuantity)
		assert.Equal(t, MaxQuantity-1, b.StockQuantity)

		require.NoError(t, Adjust(b, 1))
		assert.Equal(t, MaxQuantity, b.StockQuantity)
	})
}

func TestTransfer(t *testing.T) {
	t.Run("同规格调拨", func(t *testing.T) {
		from := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 2}
		to := &Batch{ID: 2, VariantID: 1, StockQuantity: 1}

		require.NoError(t, Transfer(from, to, 8))
		assert.Equal(t, 2, from.StockQuantity)
		assert.Equal(t, 9, to.StockQuantity)
		assertInvariant(t, from)
	})

	t.Run("超过可用", func(t *testing.T) {
		from := &Batch{ID: 1, VariantID: 1, StockQuantity: 10, ReservedQuantity: 2}
		to := &Batch{ID: 2, VariantID: 1}
		assert.ErrorIs(t, Transfer(from, to, 9), ErrInsufficientStock)
		assert.Equal(t, 10, from.StockQuantity)
		assert.Equal(t, 0, to.StockQuantity)
	})

	t.Run("不同规格", func(t *testing.T) {
		from := &Batch{ID: 1, VariantID: 1, StockQuantity: 10}
		to := &Batch{ID: 2, VariantID: 2}
		assert.ErrorIs(t, Transfer(from, to, 1), ErrVariantMismatch)
	})

	t.Run("同一批次", func(t *testing.T) {
		b := &Batch{ID: 1, VariantID: 1, StockQuantity: 10}
		assert.ErrorIs(t, Transfer(b, b, 1), ErrVariantMismatch)
		assert.Equal(t, 10, b.StockQuantity)
	})

	t.Run("调入批次超过上限不溢出", func(t *testing.T) {
		from := &Batch{ID: 1, VariantID: 1, StockQuantity: 5}
		to := &Batch{ID: 2, VariantID: 1, StockQuantity: math.MaxInt, ReservedQuantity: 1}

		assert.ErrorIs(t, Transfer(from, to, 5), ErrInvalidQuantity)
		assert.Equal(t, 5, from.StockQuantity)
		assert.Equal(t, math.MaxInt, to.StockQuantity)
		assertInvariant(t, to)
	})
}

func TestRestock(t *testing.T) {
	b := &Batch{ID: 1, VariantID: 1, StockQuantity: 0}
	require.NoError(t, Restock(b, 4))
	assert.Equal(t, 4, b.StockQuantity)
	assert.ErrorIs(t, Restock(b, 0), ErrInvalidQuantity)

	full := &Batch{ID: 2, VariantID: 1, StockQuantity: math.MaxInt}
	assert.ErrorIs(t, Restock(full, 1), ErrInvalidQuantity)
	assert.Equal(t, math.MaxInt, full.StockQuantity)

	edge := &Batch{ID: 3, VariantID: 1, StockQuantity: MaxQuantity}
	assert.ErrorIs(t, Restock(edge, 1), ErrInvalidQuantity)
}

func TestInvariantUnderOperationSequence(t *testing.T) {
	b := &Batch{ID: 1, VariantID: 1, StockQuantity: 20}
	ops := []func() error{
		func() error { return Reserve(b, 6) },
		func() error { return Fulfill(b, 2) },
		func() error { return Adjust(b, -10) },
		func() error { return Reserve(b, 5) }, // 可用仅剩4，失败
		func() error { return Adjust(b, -5) }, // 低于预留，失败
		func() error { return Release(b, 4) },
		func() error { return Adjust(b, -8) },
	}
	for _, op := range ops {
		_ = op()
		assertInvariant(t, b)
	}
	assert.Equal(t, 0, b.ReservedQuantity)
	assert.Equal(t, 0, b.StockQuantity)
}

func TestVariantStock(t *testing.T) {
	batches := newBatches(1, 2, 5, 3)
	batches[1].ReservedQuantity = 1
	vs := &VariantStock{VariantID: 1, Batches: batches}

	assert.Equal(t, 10, vs.TotalStock())
	assert.Equal(t, 1, vs.TotalReserved())
	assert.Equal(t, 9, vs.TotalAvailable())
	assert.Equal(t, uint(3), vs.Newest().ID)
	assert.Nil(t, (&VariantStock{}).Newest())
}

func TestFilterMatches(t *testing.T) {
	expiry := base.Add(-time.Hour)
	b := &Batch{VariantID: 1, SKU: "SKU-1", Location: "WH-A", StockQuantity: 3,
		LowStockThreshold: 5, ReorderLevel: 2, ExpiryDate: &expiry}

	min, max := 1, 4
	assert.True(t, Filter{VariantID: 1, SKU: "SKU-1", Location: "WH-A", MinStock: &min, MaxStock: &max}.Matches(b))
	assert.True(t, Filter{LowStock: true, ExpiredAt: &base}.Matches(b))
	assert.False(t, Filter{NeedsReorder: true}.Matches(b))
	assert.False(t, Filter{OutOfStock: true}.Matches(b))
	assert.False(t, Filter{Location: "WH-B"}.Matches(b))
}
