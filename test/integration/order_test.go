//go:build integration

package integration

import (
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/jwt"
)

// TestCheckoutFlow 下单 → 查询 → 取消，库存按批次精确回补
func TestCheckoutFlow(t *testing.T) {
	env := Setup(t)
	productID, variantID := env.SeedVariant(t, 5900)
	env.CreateBatch(t, variantID, 2)
	env.CreateBatch(t, variantID, 5)

	buyer := env.Token(t, NewUserID(), jwt.RoleCustomer)
	env.AddToCart(t, buyer, productID, variantID, 4)

	resp := env.Checkout(t, buyer)
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	var o OrderData
	resp.Decode(t, &o)
	assert.Equal(t, "processing", o.Status)
	assert.Equal(t, "pending", o.PaymentStatus)
	assert.NotEmpty(t, o.OrderNo)

	vs := env.VariantStock(t, variantID)
	assert.Equal(t, 3, vs.TotalStock, "先进先出：第一批扣完，第二批扣2")

	// 下单后购物车被清空
	cartResp := env.Do(t, http.MethodGet, "/cart", buyer, nil)
	var c struct {
		Items []interface{} `json:"items"`
	}
	cartResp.Decode(t, &c)
	assert.Empty(t, c.Items)

	cancelResp := env.Do(t, http.MethodPost, "/orders/"+uintStr(o.ID)+"/cancel", buyer, map[string]string{"reason": "集成测试"})
	require.Equal(t, http.StatusOK, cancelResp.Status, cancelResp.Message)
	cancelResp.Decode(t, &o)
	assert.Equal(t, "cancelled", o.Status)

	assert.Equal(t, 7, env.VariantStock(t, variantID).TotalStock)

	// 重复取消
	again := env.Do(t, http.MethodPost, "/orders/"+uintStr(o.ID)+"/cancel", buyer, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidOrderStatus, again.Code)
	assert.Equal(t, 7, env.VariantStock(t, variantID).TotalStock)
}

// TestCheckoutInsufficientStock 库存不足时不产生订单、不改库存、不清购物车
func TestCheckoutInsufficientStock(t *testing.T) {
	env := Setup(t)
	productID, variantID := env.SeedVariant(t, 1500)
	env.CreateBatch(t, variantID, 3)

	buyer := env.Token(t, NewUserID(), jwt.RoleCustomer)
	env.AddToCart(t, buyer, productID, variantID, 5)

	resp := env.Checkout(t, buyer)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, apperrors.ErrCodeInsufficientStock, resp.Code)
	assert.EqualValues(t, 5, resp.Details["requested"])
	assert.EqualValues(t, 3, resp.Details["available"])

	assert.Equal(t, 3, env.VariantStock(t, variantID).TotalStock)

	var c struct {
		Items []interface{} `json:"items"`
	}
	env.Do(t, http.MethodGet, "/cart", buyer, nil).Decode(t, &c)
	assert.Len(t, c.Items, 1)
}

// TestConcurrentCheckout 多个买家并发抢购同一规格
//
// 场景：库存5，10个买家各买1件
// 预期：5个成功，5个库存不足，最终库存0，不超卖
// 批次行 SELECT ... FOR UPDATE 串行化同一规格的扣减，版本号兜底
func TestConcurrentCheckout(t *testing.T) {
	env := Setup(t)
	productID, variantID := env.SeedVariant(t, 990)
	env.CreateBatch(t, variantID, 2)
	env.CreateBatch(t, variantID, 3)

	const buyers = 10
	tokens := make([]string, buyers)
	for i := range tokens {
		tokens[i] = env.Token(t, NewUserID(), jwt.RoleCustomer)
		env.AddToCart(t, tokens[i], productID, variantID, 1)
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successCount int
		failCodes    []int
	)
	for i, token := range tokens {
		wg.Add(1)
		go func(idx int, token string) {
			defer wg.Done()
			resp := env.Checkout(t, token)

			mu.Lock()
			defer mu.Unlock()
			if resp.Status == http.StatusCreated {
				successCount++
				return
			}
			failCodes = append(failCodes, resp.Code)
			t.Logf("[买家%02d] 下单失败: %d %s", idx+1, resp.Code, resp.Message)
		}(i, token)
	}
	wg.Wait()

	assert.Equal(t, 5, successCount, "成功订单数应等于库存数")
	for _, code := range failCodes {
		assert.Equal(t, apperrors.ErrCodeInsufficientStock, code)
	}

	vs := env.VariantStock(t, variantID)
	assert.Equal(t, 0, vs.TotalStock)
	assert.Equal(t, 0, vs.TotalReserved)
}

// TestCheckoutIdempotency 同一Idempotency-Key重复提交只下一单
func TestCheckoutIdempotency(t *testing.T) {
	env := Setup(t)
	if !env.Redis {
		t.Log("Redis不可用，使用内存幂等存储")
	}
	productID, variantID := env.SeedVariant(t, 2000)
	env.CreateBatch(t, variantID, 10)

	buyer := env.Token(t, NewUserID(), jwt.RoleCustomer)
	env.AddToCart(t, buyer, productID, variantID, 2)

	key := uuid.NewString()
	first := env.Checkout(t, buyer, "Idempotency-Key", key)
	require.Equal(t, http.StatusCreated, first.Status, first.Message)

	second := env.Checkout(t, buyer, "Idempotency-Key", key)
	assert.Equal(t, http.StatusCreated, second.Status)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(first.Data), string(second.Data))

	assert.Equal(t, 8, env.VariantStock(t, variantID).TotalStock)

	// 换一个key：购物车已清空
	third := env.Checkout(t, buyer, "Idempotency-Key", uuid.NewString())
	assert.Equal(t, apperrors.ErrCodeEmptyCart, third.Code)
}

// TestInventoryManagement 批次管理接口在MySQL上的行为
func TestInventoryManagement(t *testing.T) {
	env := Setup(t)
	_, variantID := env.SeedVariant(t, 100)
	batchID := env.CreateBatch(t, variantID, 10)
	staff := env.Token(t, 1, jwt.RoleStaff)
	path := "/inventory/batches/" + uintStr(batchID)

	resp := env.Do(t, http.MethodPost, path+"/reserve", staff, map[string]int{"quantity": 4})
	require.Equal(t, http.StatusOK, resp.Status, resp.Message)

	resp = env.Do(t, http.MethodPost, path+"/adjust", staff, map[string]interface{}{"delta": -7, "reason": "盘亏"})
	assert.Equal(t, apperrors.ErrCodeBelowReserved, resp.Code)

	resp = env.Do(t, http.MethodPost, path+"/fulfill", staff, map[string]int{"quantity": 4})
	require.Equal(t, http.StatusOK, resp.Status, resp.Message)

	vs := env.VariantStock(t, variantID)
	assert.Equal(t, 6, vs.TotalStock)
	assert.Equal(t, 0, vs.TotalReserved)

	resp = env.Do(t, http.MethodGet, path, env.Token(t, NewUserID(), jwt.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
}
