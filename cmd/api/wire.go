//go:build wireinject
// +build wireinject

// Wire依赖注入配置
//
// 修改Provider后重新生成：
//
//	wire gen ./cmd/api
//
// 依赖链：Persistence ← 领域服务 ← 用例 ← Handler/gRPC/消费者 ← App
package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/infrastructure/config"
	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
)

// infrastructureSet 存储、消息、幂等存储
var infrastructureSet = wire.NewSet(
	providePersistence,
	provideMessaging,
	provideIdempotencyStore,
)

// domainSet 领域服务
var domainSet = wire.NewSet(
	provideInventoryService,
	provideCartService,
)

// applicationSet 用例
var applicationSet = wire.NewSet(
	provideStockUseCase,
	provideCheckoutUseCase,
	provideCancelOrderUseCase,
	provideManageOrderUseCase,
)

// interfaceSet HTTP、gRPC、消息入口
var interfaceSet = wire.NewSet(
	provideJWTManager,
	providePolicy,
	middleware.NewAuthMiddleware,
	handler.NewInventoryHandler,
	handler.NewOrderHandler,
	handler.NewCartHandler,
	provideEngine,
	provideGRPC,
	providePaymentConsumer,
	provideRelay,
)

// InitializeApp 组装整个应用
// cleanup按创建的逆序关闭数据库、Redis和消息连接
func InitializeApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, func(), error) {
	wire.Build(
		infrastructureSet,
		domainSet,
		applicationSet,
		interfaceSet,
		newApp,
	)
	return nil, nil, nil
}
