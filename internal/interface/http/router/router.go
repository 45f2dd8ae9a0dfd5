// Package router 组装gin引擎：全局中间件、运维路由和/api/v1业务路由
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/xiebiao/storefront/docs" // 注册swagger文档
	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/pkg/idempotency"
	"github.com/xiebiao/storefront/pkg/response"
)

// Options 路由依赖
type Options struct {
	Mode        string // debug | release | test
	MetricsPath string // 为空时不暴露指标
	Swagger     bool
	Logger      *zap.Logger
	Auth        *middleware.AuthMiddleware
	Idempotency idempotency.Store // nil时不启用幂等下单

	Inventory *handler.InventoryHandler
	Orders    *handler.OrderHandler
	Cart      *handler.CartHandler
}

// New 创建并配置Gin引擎
//
// 中间件顺序：Recovery → Tracing → Logger → Metrics → (RequireAuth → Require(perm) → Idempotency) → Handler
func New(opts Options) *gin.Engine {
	switch opts.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Tracing(), middleware.Logger(opts.Logger), middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})
	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
	if opts.Swagger {
		// 访问 http://localhost:8080/swagger/index.html 查看API文档
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := opts.Auth
	v1 := r.Group("/api/v1")
	v1.Use(auth.RequireAuth())

	// 购物车（当前用户）
	carts := v1.Group("/cart")
	{
		carts.GET("", opts.Cart.GetCart)
		carts.DELETE("", opts.Cart.Clear)
		carts.POST("/items", opts.Cart.AddItem)
		carts.PUT("/items/:id", opts.Cart.UpdateItem)
		carts.DELETE("/items/:id", opts.Cart.RemoveItem)
		carts.PUT("/discount", auth.Require(middleware.PermOrderManage), opts.Cart.SetDiscount)
	}

	// 订单
	orders := v1.Group("/orders")
	{
		checkout := []gin.HandlerFunc{}
		if opts.Idempotency != nil {
			checkout = append(checkout, middleware.Idempotency(opts.Idempotency, opts.Logger))
		}
		orders.POST("/checkout", append(checkout, opts.Orders.Checkout)...)
		orders.GET("", opts.Orders.ListOrders)
		orders.GET("/:id", opts.Orders.GetOrder)
		orders.POST("/:id/cancel", opts.Orders.CancelOrder)
		orders.POST("/:id/ship", auth.Require(middleware.PermOrderManage), opts.Orders.ShipOrder)
		orders.POST("/:id/deliver", auth.Require(middleware.PermOrderManage), opts.Orders.DeliverOrder)
	}

	// 库存管理
	inv := v1.Group("/inventory")
	read := inv.Group("", auth.Require(middleware.PermInventoryRead))
	{
		read.GET("/batches", opts.Inventory.ListBatches)
		read.GET("/batches/:id", opts.Inventory.GetBatch)
		read.GET("/stats", opts.Inventory.Stats)
		read.GET("/low-stock", opts.Inventory.LowStock)
		read.GET("/reorder", opts.Inventory.NeedsReorder)
		read.GET("/expired", opts.Inventory.Expired)
		read.GET("/variants/:id/stock", opts.Inventory.GetVariantStock)
	}
	write := inv.Group("", auth.Require(middleware.PermInventoryWrite))
	{
		write.POST("/batches", opts.Inventory.CreateBatch)
		write.PUT("/batches/:id", opts.Inventory.UpdateBatch)
		write.DELETE("/batches/:id", opts.Inventory.DeleteBatch)
		write.POST("/batches/:id/reserve", opts.Inventory.Reserve)
		write.POST("/batches/:id/release", opts.Inventory.Release)
		write.POST("/batches/:id/fulfill", opts.Inventory.Fulfill)
		write.POST("/batches/:id/adjust", opts.Inventory.Adjust)
		write.POST("/transfers", opts.Inventory.Transfer)
	}

	return r
}
