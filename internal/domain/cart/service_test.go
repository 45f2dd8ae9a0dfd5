package cart_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/memory"
)

const user uint = 3

type fixture struct {
	svc     cart.Service
	product *catalog.Product
	red     *catalog.Variant
	blue    *catalog.Variant
	other   *catalog.Variant // 属于另一个商品
	hidden  *catalog.Variant // 已下架
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	p := store.AddProduct(&catalog.Product{Name: "卫衣", Price: 9900})
	p2 := store.AddProduct(&catalog.Product{Name: "帽子", Price: 3900})

	return &fixture{
		svc:     cart.NewService(memory.NewCartRepository(store), memory.NewCatalogRepository(store), store),
		product: p,
		red:     store.AddVariant(&catalog.Variant{ProductID: p.ID, Name: "红", IsActive: true}),
		blue:    store.AddVariant(&catalog.Variant{ProductID: p.ID, Name: "蓝", IsActive: true}),
		other:   store.AddVariant(&catalog.Variant{ProductID: p2.ID, Name: "黑", IsActive: true}),
		hidden:  store.AddVariant(&catalog.Variant{ProductID: p.ID, Name: "绿", IsActive: false}),
	}
}

func TestCartService_AddItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.svc.AddItem(ctx, user, f.product.ID, f.red.ID, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	// 同一商品+规格合并
	c, err = f.svc.AddItem(ctx, user, f.product.ID, f.red.ID, 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	// 不同规格新增一行
	c, err = f.svc.AddItem(ctx, user, f.product.ID, f.blue.ID, 1)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
	assert.Equal(t, 4, c.TotalQuantity())

	tests := []struct {
		name      string
		productID uint
		variantID uint
		qty       int
		wantErr   error
	}{
		{"数量为0", f.product.ID, f.red.ID, 0, cart.ErrInvalidQuantity},
		{"超过数量上限", f.product.ID, f.red.ID, math.MaxInt, cart.ErrQuantityTooLarge},
		{"商品不存在", 404, 0, 1, catalog.ErrProductNotFound},
		{"规格不存在", f.product.ID, 404, 1, catalog.ErrVariantNotFound},
		{"规格不属于商品", f.product.ID, f.other.ID, 1, catalog.ErrVariantNotFound},
		{"规格已下架", f.product.ID, f.hidden.ID, 1, catalog.ErrVariantNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddItem(ctx, user, tt.productID, tt.variantID, tt.qty)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// 合并后的数量同样受上限约束，超限时条目保持原值
func TestCartService_AddItemMergeLimit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, user, f.product.ID, f.red.ID, cart.MaxItemQuantity-1)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, user, f.product.ID, f.red.ID, 2)
	assert.ErrorIs(t, err, cart.ErrQuantityTooLarge)

	c, err := f.svc.AddItem(ctx, user, f.product.ID, f.red.ID, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, cart.MaxItemQuantity, c.Items[0].Quantity)

	_, err = f.svc.UpdateItem(ctx, user, c.Items[0].ID, cart.MaxItemQuantity+1)
	assert.ErrorIs(t, err, cart.ErrQuantityTooLarge)
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.svc.AddItem(ctx, user, f.product.ID, f.red.ID, 1)
	require.NoError(t, err)
	itemID := c.Items[0].ID

	c, err = f.svc.UpdateItem(ctx, user, itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Items[0].Quantity)

	_, err = f.svc.UpdateItem(ctx, user, itemID, -1)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = f.svc.UpdateItem(ctx, user, 999, 1)
	assert.ErrorIs(t, err, cart.ErrItemNotFound)

	// 其他用户不能修改
	_, err = f.svc.RemoveItem(ctx, user+1, itemID)
	assert.ErrorIs(t, err, cart.ErrItemNotFound)

	c, err = f.svc.RemoveItem(ctx, user, itemID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestCartService_ClearAndDiscount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, user, f.product.ID, f.red.ID, 1)
	require.NoError(t, err)

	c, err := f.svc.SetDiscount(ctx, user, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), c.DiscountAmount)

	_, err = f.svc.SetDiscount(ctx, user, -1)
	assert.ErrorIs(t, err, cart.ErrInvalidDiscount)

	require.NoError(t, f.svc.Clear(ctx, user))
	c, err = f.svc.GetCart(ctx, user)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, int64(500), c.DiscountAmount)
}
