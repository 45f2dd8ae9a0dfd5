//go:build integration

// Package integration 基于真实MySQL/Redis的端到端测试
//
// 需要本地MySQL（Redis可选），运行：
//
//	go test -tags integration ./test/integration/...
//
// 配置读取../../config/config.yaml，可用STOREFRONT_TEST_CONFIG指定其他文件；
// 连接不上MySQL时测试被跳过。
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/application/checkout"
	appinventory "github.com/xiebiao/storefront/internal/application/inventory"
	apporder "github.com/xiebiao/storefront/internal/application/order"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/infrastructure/config"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/internal/interface/http/router"
	"github.com/xiebiao/storefront/pkg/idempotency"
	"github.com/xiebiao/storefront/pkg/jwt"
)

// Timeout HTTP请求超时时间
const Timeout = 10 * time.Second

// Response 统一响应结构
type Response struct {
	Status  int                    `json:"-"`
	Header  http.Header            `json:"-"`
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Details map[string]interface{} `json:"details"`
}

// Decode 解析data字段
func (r *Response) Decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v), string(r.Data))
}

// OrderData 订单响应数据
type OrderData struct {
	ID            uint   `json:"id"`
	OrderNo       string `json:"order_no"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Total         int64  `json:"total"`
}

// VariantStockData 规格库存汇总
type VariantStockData struct {
	TotalStock     int `json:"total_stock"`
	TotalReserved  int `json:"total_reserved"`
	TotalAvailable int `json:"total_available"`
}

// Env 测试环境：真实MySQL + 可选Redis + httptest服务
type Env struct {
	BaseURL string
	DB      *gorm.DB
	JWT     *jwt.Manager
	Redis   bool
}

var userSeq atomic.Uint64

// NewUserID 每次运行生成不同的用户ID，避免和上次运行留下的购物车冲突
func NewUserID() uint {
	base := uint64(time.Now().Unix()%100000) * 1000
	return uint(base + userSeq.Add(1))
}

// Setup 连接数据库并启动HTTP服务
func Setup(t *testing.T) *Env {
	t.Helper()

	path := os.Getenv("STOREFRONT_TEST_CONFIG")
	if path == "" {
		path = "../../config/config.yaml"
	}
	cfg, err := config.LoadFrom(path)
	require.NoError(t, err, "加载配置失败")
	cfg.Server.Mode = gin.TestMode
	cfg.Database.AutoMigrate = true

	log := zap.NewNop()
	db, err := mysql.NewDB(cfg, log)
	if err != nil {
		t.Skipf("MySQL不可用，跳过集成测试: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var store idempotency.Store = idempotency.NewMemoryStore(time.Hour)
	useRedis := false
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if rdb, err := redis.NewClient(ctx, cfg.Redis, log); err == nil {
			store = redis.NewIdempotencyStore(rdb, time.Hour)
			useRedis = true
			t.Cleanup(func() { _ = rdb.Close() })
		} else {
			t.Logf("Redis不可用，幂等存储使用内存实现: %v", err)
		}
	}

	tx := mysql.NewTxManager(db)
	catalogRepo := mysql.NewCatalogRepository(db)
	carts := mysql.NewCartRepository(db)
	orders := mysql.NewOrderRepository(db)
	sink := mysql.NewAuditSink(db)
	events := mysql.NewOutboxStore(db)
	stock := inventory.NewService(mysql.NewInventoryRepository(db), catalogRepo, sink)

	jwtManager := jwt.NewManager("integration-secret", "storefront", time.Hour)
	auth := middleware.NewAuthMiddleware(jwtManager, middleware.DefaultPolicy())

	engine := router.New(router.Options{
		Mode:        gin.TestMode,
		Logger:      log,
		Auth:        auth,
		Idempotency: store,
		Inventory:   handler.NewInventoryHandler(appinventory.NewStockUseCase(stock, tx, log)),
		Orders: handler.NewOrderHandler(
			checkout.NewUseCase(tx, carts, catalogRepo, orders, stock, sink, events,
				checkout.Options{Pricing: checkout.NewPricing(cfg.Checkout), OrderNoRetries: 3}, log),
			apporder.NewCancelOrderUseCase(tx, orders, stock, sink, events, log),
			apporder.NewManageOrderUseCase(tx, orders, sink, log),
			auth,
		),
		Cart: handler.NewCartHandler(cart.NewService(carts, catalogRepo, tx)),
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &Env{BaseURL: srv.URL + "/api/v1", DB: db, JWT: jwtManager, Redis: useRedis}
}

// Token 签发测试Token
func (e *Env) Token(t *testing.T, userID uint, role string) string {
	t.Helper()
	tok, err := e.JWT.GenerateToken(userID, role)
	require.NoError(t, err)
	return tok.AccessToken
}

// SeedVariant 直接写库创建商品和规格，返回(productID, variantID)
func (e *Env) SeedVariant(t *testing.T, price int64) (uint, uint) {
	t.Helper()
	suffix := uuid.NewString()[:8]

	product := mysql.ProductModel{Name: "集成测试商品-" + suffix, SKU: "IT-" + suffix, Price: price}
	require.NoError(t, e.DB.Create(&product).Error)

	variant := mysql.ProductVariantModel{
		ProductID: product.ID,
		SKU:       "IT-" + suffix + "-V",
		Name:      "默认规格",
		Price:     price,
		IsActive:  true,
	}
	require.NoError(t, e.DB.Create(&variant).Error)
	return product.ID, variant.ID
}

// CreateBatch 以staff身份新建批次，返回批次ID
func (e *Env) CreateBatch(t *testing.T, variantID uint, qty int) uint {
	t.Helper()
	resp := e.Do(t, http.MethodPost, "/inventory/batches", e.Token(t, 1, jwt.RoleStaff), map[string]interface{}{
		"variant_id":     variantID,
		"stock_quantity": qty,
	})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)

	var b struct {
		ID uint `json:"id"`
	}
	resp.Decode(t, &b)
	return b.ID
}

// VariantStock 查询规格库存
func (e *Env) VariantStock(t *testing.T, variantID uint) VariantStockData {
	t.Helper()
	resp := e.Do(t, http.MethodGet, "/inventory/variants/"+uintStr(variantID)+"/stock", e.Token(t, 1, jwt.RoleStaff), nil)
	require.Equal(t, http.StatusOK, resp.Status, resp.Message)

	var vs VariantStockData
	resp.Decode(t, &vs)
	return vs
}

// AddToCart 加入购物车
func (e *Env) AddToCart(t *testing.T, token string, productID, variantID uint, qty int) {
	t.Helper()
	resp := e.Do(t, http.MethodPost, "/cart/items", token, map[string]interface{}{
		"product_id": productID,
		"variant_id": variantID,
		"quantity":   qty,
	})
	require.Equal(t, 0, resp.Code, resp.Message)
}

// Checkout 结算下单
func (e *Env) Checkout(t *testing.T, token string, headers ...string) *Response {
	return e.Do(t, http.MethodPost, "/orders/checkout", token, map[string]interface{}{
		"shipping": map[string]string{"recipient": "张三", "address": "人民路1号", "city": "上海"},
	}, headers...)
}

// Do 发送JSON请求并解析统一响应，headers按key, value成对传入
func (e *Env) Do(t *testing.T, method, path, token string, body interface{}, headers ...string) *Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body), "JSON序列化失败")
	}
	req, err := http.NewRequest(method, e.BaseURL+path, &buf)
	require.NoError(t, err, "创建HTTP请求失败")

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	client := &http.Client{Timeout: Timeout}
	resp, err := client.Do(req)
	require.NoError(t, err, "发送HTTP请求失败")
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "读取响应体失败")

	result := Response{Status: resp.StatusCode, Header: resp.Header}
	require.NoError(t, json.Unmarshal(raw, &result), "解析JSON响应失败: %s", string(raw))
	return &result
}

func uintStr(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
