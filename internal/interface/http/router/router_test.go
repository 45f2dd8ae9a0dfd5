package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/application/checkout"
	appinventory "github.com/xiebiao/storefront/internal/application/inventory"
	apporder "github.com/xiebiao/storefront/internal/application/order"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/memory"
	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/internal/interface/http/router"
	"github.com/xiebiao/storefront/pkg/idempotency"
	"github.com/xiebiao/storefront/pkg/jwt"
)

const (
	staffID    uint = 1
	customerID uint = 100
	otherID    uint = 200
)

type server struct {
	t       *testing.T
	engine  *gin.Engine
	store   *memory.Store
	jwt     *jwt.Manager
	product *catalog.Product
	variant *catalog.Variant
}

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Details map[string]interface{} `json:"details"`
}

func newServer(t *testing.T) *server {
	t.Helper()
	log := zap.NewNop()

	store := memory.NewStore()
	p := store.AddProduct(&catalog.Product{Name: "纯棉T恤", SKU: "TS", Price: 5900})
	v := store.AddVariant(&catalog.Variant{ProductID: p.ID, SKU: "TS-RED-XL", Name: "红色 XL", Price: 5900, IsActive: true})

	catalogRepo := memory.NewCatalogRepository(store)
	orders := memory.NewOrderRepository(store)
	sink := memory.NewAuditSink(store)
	events := memory.NewOutboxStore(store)
	stock := inventory.NewService(memory.NewInventoryRepository(store), catalogRepo, sink)

	jwtManager := jwt.NewManager("test-secret", "storefront", time.Hour)
	auth := middleware.NewAuthMiddleware(jwtManager, middleware.DefaultPolicy())

	checkoutUC := checkout.NewUseCase(store, memory.NewCartRepository(store), catalogRepo, orders, stock, sink, events,
		checkout.Options{Pricing: checkout.Pricing{ShippingFee: 1000, FreeShippingThreshold: 9900}}, log)

	engine := router.New(router.Options{
		Mode:        gin.TestMode,
		MetricsPath: "/metrics",
		Logger:      log,
		Auth:        auth,
		Idempotency: idempotency.NewMemoryStore(time.Hour),
		Inventory:   handler.NewInventoryHandler(appinventory.NewStockUseCase(stock, store, log)),
		Orders: handler.NewOrderHandler(
			checkoutUC,
			apporder.NewCancelOrderUseCase(store, orders, stock, sink, events, log),
			apporder.NewManageOrderUseCase(store, orders, sink, log),
			auth,
		),
		Cart: handler.NewCartHandler(cart.NewService(memory.NewCartRepository(store), catalogRepo, store)),
	})

	return &server{t: t, engine: engine, store: store, jwt: jwtManager, product: p, variant: v}
}

func (s *server) token(userID uint, role string) string {
	tok, err := s.jwt.GenerateToken(userID, role)
	require.NoError(s.t, err)
	return tok.AccessToken
}

func (s *server) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// createBatch 以staff身份新建批次，返回批次ID
func (s *server) createBatch(stockQty int) uint {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/inventory/batches", s.token(staffID, jwt.RoleStaff), map[string]interface{}{
		"variant_id":     s.variant.ID,
		"stock_quantity": stockQty,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var b struct {
		ID uint `json:"id"`
	}
	decode(s.t, w, &b)
	return b.ID
}

func (s *server) addToCart(token string, qty int) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/cart/items", token, map[string]interface{}{
		"product_id": s.product.ID,
		"variant_id": s.variant.ID,
		"quantity":   qty,
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
}

var shippingBody = map[string]interface{}{
	"shipping": map[string]string{"recipient": "张三", "address": "人民路1号", "city": "上海"},
}

func TestOpsRoutes(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuthAndPolicy(t *testing.T) {
	s := newServer(t)

	t.Run("未登录", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/cart", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 40100, decode(t, w, nil).Code)
	})

	t.Run("Token无效", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/cart", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 40101, decode(t, w, nil).Code)
	})

	t.Run("顾客不能管理库存", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/inventory/stats", s.token(customerID, jwt.RoleCustomer), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		env := decode(t, w, nil)
		assert.Equal(t, 40104, env.Code)
		assert.Equal(t, "inventory:read", env.Details["permission"])
	})

	t.Run("顾客不能发货", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/orders/1/ship", s.token(customerID, jwt.RoleCustomer), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestInventoryEndpoints(t *testing.T) {
	s := newServer(t)
	staff := s.token(staffID, jwt.RoleStaff)
	id := s.createBatch(10)
	batchPath := fmt.Sprintf("/api/v1/inventory/batches/%d", id)

	t.Run("预留", func(t *testing.T) {
		w := s.do(http.MethodPost, batchPath+"/reserve", staff, map[string]int{"quantity": 4})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var b struct {
			Reserved  int `json:"reserved_quantity"`
			Available int `json:"available_quantity"`
		}
		decode(t, w, &b)
		assert.Equal(t, 4, b.Reserved)
		assert.Equal(t, 6, b.Available)
	})

	t.Run("释放超过预留", func(t *testing.T) {
		w := s.do(http.MethodPost, batchPath+"/release", staff, map[string]int{"quantity": 5})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40006, decode(t, w, nil).Code)
	})

	t.Run("调整后低于预留", func(t *testing.T) {
		w := s.do(http.MethodPost, batchPath+"/adjust", staff, map[string]interface{}{"delta": -7, "reason": "盘亏"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40007, decode(t, w, nil).Code)
	})

	t.Run("有预留不能删除", func(t *testing.T) {
		w := s.do(http.MethodDelete, batchPath, staff, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40011, decode(t, w, nil).Code)
	})

	t.Run("规格库存汇总", func(t *testing.T) {
		w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/inventory/variants/%d/stock", s.variant.ID), staff, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var vs struct {
			TotalStock     int `json:"total_stock"`
			TotalReserved  int `json:"total_reserved"`
			TotalAvailable int `json:"total_available"`
		}
		decode(t, w, &vs)
		assert.Equal(t, 10, vs.TotalStock)
		assert.Equal(t, 4, vs.TotalReserved)
		assert.Equal(t, 6, vs.TotalAvailable)
	})

	t.Run("列表分页", func(t *testing.T) {
		w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/inventory/batches?variant_id=%d&page_size=5", s.variant.ID), staff, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var page struct {
			Total    int64 `json:"total"`
			PageSize int   `json:"page_size"`
		}
		decode(t, w, &page)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, 5, page.PageSize)
	})

	t.Run("批次不存在", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/inventory/batches/999", staff, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 40405, decode(t, w, nil).Code)
	})

	t.Run("非法ID", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/inventory/batches/abc", staff, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40020, decode(t, w, nil).Code)
	})

	t.Run("数量超过上限", func(t *testing.T) {
		other := s.createBatch(1)
		w := s.do(http.MethodPost, "/api/v1/inventory/transfers", staff, map[string]interface{}{
			"from_batch_id": id, "to_batch_id": other, "quantity": math.MaxInt64,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40021, decode(t, w, nil).Code)

		w = s.do(http.MethodPost, "/api/v1/inventory/batches", staff, map[string]interface{}{
			"variant_id": s.variant.ID, "stock_quantity": math.MaxInt64,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("请求体格式错误", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/inventory/transfers", staff, "oops")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40021, decode(t, w, nil).Code)
	})
}

func TestCheckoutAndCancel(t *testing.T) {
	s := newServer(t)
	staff := s.token(staffID, jwt.RoleStaff)
	customer := s.token(customerID, jwt.RoleCustomer)
	batchID := s.createBatch(5)

	s.addToCart(customer, 3)

	w := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var o struct {
		ID       uint   `json:"id"`
		OrderNo  string `json:"order_no"`
		Status   string `json:"status"`
		Subtotal int64  `json:"subtotal"`
		Shipping int64  `json:"shipping_amount"`
		Total    int64  `json:"total"`
	}
	decode(t, w, &o)
	assert.Equal(t, "processing", o.Status)
	assert.Equal(t, int64(17700), o.Subtotal)
	assert.Equal(t, int64(0), o.Shipping) // 满9900包邮
	assert.Equal(t, int64(17700), o.Total)

	// 库存扣减、购物车清空
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/inventory/batches/%d", batchID), staff, nil)
	var b struct {
		Stock int `json:"stock_quantity"`
	}
	decode(t, w, &b)
	assert.Equal(t, 2, b.Stock)

	w = s.do(http.MethodGet, "/api/v1/cart", customer, nil)
	var c struct {
		Items []interface{} `json:"items"`
	}
	decode(t, w, &c)
	assert.Empty(t, c.Items)

	orderPath := fmt.Sprintf("/api/v1/orders/%d", o.ID)

	t.Run("他人订单不可见", func(t *testing.T) {
		w := s.do(http.MethodGet, orderPath, s.token(otherID, jwt.RoleCustomer), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = s.do(http.MethodPost, orderPath+"/cancel", s.token(otherID, jwt.RoleCustomer), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("订单列表", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/orders", customer, nil)
		var page struct {
			Total int64 `json:"total"`
		}
		decode(t, w, &page)
		assert.Equal(t, int64(1), page.Total)

		w = s.do(http.MethodGet, "/api/v1/orders", s.token(otherID, jwt.RoleCustomer), nil)
		decode(t, w, &page)
		assert.Equal(t, int64(0), page.Total)

		w = s.do(http.MethodGet, "/api/v1/orders?all=true", staff, nil)
		decode(t, w, &page)
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("取消后库存回补", func(t *testing.T) {
		w := s.do(http.MethodPost, orderPath+"/cancel", customer, map[string]string{"reason": "不想要了"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var cancelled struct {
			Status       string `json:"status"`
			CancelReason string `json:"cancel_reason"`
		}
		decode(t, w, &cancelled)
		assert.Equal(t, "cancelled", cancelled.Status)
		assert.Equal(t, "不想要了", cancelled.CancelReason)

		w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/inventory/batches/%d", batchID), staff, nil)
		decode(t, w, &b)
		assert.Equal(t, 5, b.Stock)
	})

	t.Run("重复取消", func(t *testing.T) {
		w := s.do(http.MethodPost, orderPath+"/cancel", customer, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40002, decode(t, w, nil).Code)
	})
}

func TestCheckoutFailures(t *testing.T) {
	s := newServer(t)
	customer := s.token(customerID, jwt.RoleCustomer)

	t.Run("购物车为空", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40012, decode(t, w, nil).Code)
	})

	t.Run("库存不足", func(t *testing.T) {
		s.createBatch(2)
		s.addToCart(customer, 3)

		w := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w, nil)
		assert.Equal(t, 40001, env.Code)
		assert.EqualValues(t, s.variant.ID, env.Details["variant_id"])
		assert.EqualValues(t, 3, env.Details["requested"])
		assert.EqualValues(t, 2, env.Details["available"])
	})

	t.Run("收货信息不完整", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 40015, decode(t, w, nil).Code)
	})
}

func TestCheckoutIdempotency(t *testing.T) {
	s := newServer(t)
	customer := s.token(customerID, jwt.RoleCustomer)
	s.createBatch(10)
	s.addToCart(customer, 1)

	first := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// 同一个key换了收货信息，不重放旧订单
	otherBody := map[string]interface{}{
		"shipping": map[string]string{"recipient": "李四", "address": "南京路2号", "city": "上海"},
	}
	w := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, otherBody, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 42201, decode(t, w, nil).Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))

	// 失败的请求不占用key：购物车已空，换个key返回40012，再用同一个key仍然重新执行
	w = s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody, "Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody, "Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))

	w = s.do(http.MethodGet, "/api/v1/orders", customer, nil)
	var page struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &page)
	assert.Equal(t, int64(1), page.Total)
}

func TestFulfilmentFlow(t *testing.T) {
	s := newServer(t)
	staff := s.token(staffID, jwt.RoleStaff)
	customer := s.token(customerID, jwt.RoleCustomer)
	s.createBatch(10)
	s.addToCart(customer, 2)

	w := s.do(http.MethodPost, "/api/v1/orders/checkout", customer, shippingBody)
	require.Equal(t, http.StatusCreated, w.Code)
	var o struct {
		ID uint `json:"id"`
	}
	decode(t, w, &o)
	orderPath := fmt.Sprintf("/api/v1/orders/%d", o.ID)

	w = s.do(http.MethodPost, orderPath+"/deliver", staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, orderPath+"/ship", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, orderPath+"/deliver", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var delivered struct {
		Status string `json:"status"`
	}
	decode(t, w, &delivered)
	assert.Equal(t, "delivered", delivered.Status)

	w = s.do(http.MethodPost, orderPath+"/cancel", customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40002, decode(t, w, nil).Code)
}

func TestCartEndpoints(t *testing.T) {
	s := newServer(t)
	customer := s.token(customerID, jwt.RoleCustomer)

	s.addToCart(customer, 1)
	s.addToCart(customer, 2)

	w := s.do(http.MethodGet, "/api/v1/cart", customer, nil)
	var c struct {
		TotalQuantity int `json:"total_quantity"`
		Items         []struct {
			ID       uint `json:"id"`
			Quantity int  `json:"quantity"`
		} `json:"items"`
	}
	decode(t, w, &c)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)

	itemPath := fmt.Sprintf("/api/v1/cart/items/%d", c.Items[0].ID)
	w = s.do(http.MethodPut, itemPath, customer, map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/cart/items", customer, map[string]interface{}{
		"product_id": s.product.ID,
		"variant_id": s.variant.ID,
		"quantity":   math.MaxInt64,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40021, decode(t, w, nil).Code)

	w = s.do(http.MethodPut, itemPath, customer, map[string]int{"quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &c)
	assert.Equal(t, 5, c.TotalQuantity)

	t.Run("优惠金额需要管理权限", func(t *testing.T) {
		body := map[string]interface{}{"user_id": customerID, "amount": 500}
		w := s.do(http.MethodPut, "/api/v1/cart/discount", customer, body)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.do(http.MethodPut, "/api/v1/cart/discount", s.token(staffID, jwt.RoleStaff), body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var dc struct {
			Discount int64 `json:"discount_amount"`
		}
		decode(t, w, &dc)
		assert.Equal(t, int64(500), dc.Discount)
	})

	w = s.do(http.MethodDelete, itemPath, customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, itemPath, customer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
