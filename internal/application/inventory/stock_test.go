package inventory_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appinventory "github.com/xiebiao/storefront/internal/application/inventory"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/memory"
	"github.com/xiebiao/storefront/pkg/metrics"
)

const actor uint = 5

func setup(t *testing.T, wrap func(inventory.Repository) inventory.Repository) (*appinventory.StockUseCase, *memory.Store, uint) {
	t.Helper()
	store := memory.NewStore()
	p := store.AddProduct(&catalog.Product{Name: "T恤"})
	v := store.AddVariant(&catalog.Variant{ProductID: p.ID, Name: "L", IsActive: true})

	var repo inventory.Repository = memory.NewInventoryRepository(store)
	if wrap != nil {
		repo = wrap(repo)
	}
	svc := inventory.NewService(repo, memory.NewCatalogRepository(store), memory.NewAuditSink(store))
	return appinventory.NewStockUseCase(svc, store, zap.NewNop()), store, v.ID
}

func opCount(op, result string) float64 {
	return testutil.ToFloat64(metrics.InventoryOperationsTotal.WithLabelValues(op, result))
}

func TestStockUseCase_Operations(t *testing.T) {
	uc, _, variantID := setup(t, nil)
	ctx := context.Background()

	successBefore := opCount("reserve", "success")
	failureBefore := opCount("reserve", "failure")

	b, err := uc.CreateBatch(ctx, actor, inventory.CreateBatchInput{VariantID: variantID, StockQuantity: 10})
	require.NoError(t, err)

	b, err = uc.Reserve(ctx, actor, b.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, b.ReservedQuantity)

	_, err = uc.Reserve(ctx, actor, b.ID, 7)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	assert.Equal(t, successBefore+1, opCount("reserve", "success"))
	assert.Equal(t, failureBefore+1, opCount("reserve", "failure"))

	b, err = uc.Fulfill(ctx, actor, b.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, b.StockQuantity)
	assert.Equal(t, 1, b.ReservedQuantity)

	b, err = uc.Release(ctx, actor, b.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, b.ReservedQuantity)

	b, err = uc.Adjust(ctx, actor, b.ID, 5, "盘点")
	require.NoError(t, err)
	b, err = uc.Adjust(ctx, actor, b.ID, -5, "盘点")
	require.NoError(t, err)
	assert.Equal(t, 7, b.StockQuantity)

	vs, err := uc.GetVariantStock(ctx, variantID)
	require.NoError(t, err)
	assert.Equal(t, 7, vs.TotalAvailable())
}

func TestStockUseCase_Transfer(t *testing.T) {
	uc, _, variantID := setup(t, nil)
	ctx := context.Background()

	from, err := uc.CreateBatch(ctx, actor, inventory.CreateBatchInput{VariantID: variantID, StockQuantity: 6, Location: "WH-A"})
	require.NoError(t, err)
	to, err := uc.CreateBatch(ctx, actor, inventory.CreateBatchInput{VariantID: variantID, StockQuantity: 1, Location: "WH-B"})
	require.NoError(t, err)

	res, err := uc.Transfer(ctx, actor, from.ID, to.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, res.From.StockQuantity)
	assert.Equal(t, 5, res.To.StockQuantity)

	_, err = uc.Transfer(ctx, actor, from.ID, to.ID, 3)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	got, err := uc.GetBatch(ctx, to.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
}

// conflictRepo 模拟另一个请求抢先更新了批次
type conflictRepo struct {
	inventory.Repository
}

func (conflictRepo) Update(context.Context, *inventory.Batch) error {
	return inventory.ErrConcurrentModification
}

func TestStockUseCase_Conflict(t *testing.T) {
	uc, store, variantID := setup(t, func(r inventory.Repository) inventory.Repository {
		return conflictRepo{r}
	})
	ctx := context.Background()

	b, err := uc.CreateBatch(ctx, actor, inventory.CreateBatchInput{VariantID: variantID, StockQuantity: 10})
	require.NoError(t, err)
	auditsBefore := len(store.AuditEntries())
	conflictsBefore := testutil.ToFloat64(metrics.InventoryConflictsTotal)

	_, err = uc.Reserve(ctx, actor, b.ID, 1)
	assert.ErrorIs(t, err, inventory.ErrConcurrentModification)

	assert.Equal(t, conflictsBefore+1, testutil.ToFloat64(metrics.InventoryConflictsTotal))
	assert.Len(t, store.AuditEntries(), auditsBefore)

	got, err := uc.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ReservedQuantity)
}

func TestStockUseCase_Delete(t *testing.T) {
	uc, _, variantID := setup(t, nil)
	ctx := context.Background()

	b, err := uc.CreateBatch(ctx, actor, inventory.CreateBatchInput{VariantID: variantID, StockQuantity: 3, ReservedQuantity: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, uc.DeleteBatch(ctx, actor, b.ID), inventory.ErrBatchInUse)

	_, err = uc.Release(ctx, actor, b.ID, 1)
	require.NoError(t, err)
	require.NoError(t, uc.DeleteBatch(ctx, actor, b.ID))

	_, err = uc.GetBatch(ctx, b.ID)
	assert.ErrorIs(t, err, inventory.ErrBatchNotFound)
}
