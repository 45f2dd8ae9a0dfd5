package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/xiebiao/storefront/internal/application/checkout"
	appinventory "github.com/xiebiao/storefront/internal/application/inventory"
	apporder "github.com/xiebiao/storefront/internal/application/order"
	"github.com/xiebiao/storefront/internal/domain/audit"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/shared"
	"github.com/xiebiao/storefront/internal/infrastructure/config"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/memory"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/redis"
	grpcserver "github.com/xiebiao/storefront/internal/interface/grpc"
	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/internal/interface/http/router"
	mqconsumer "github.com/xiebiao/storefront/internal/interface/mq"
	"github.com/xiebiao/storefront/pkg/circuitbreaker"
	"github.com/xiebiao/storefront/pkg/idempotency"
	"github.com/xiebiao/storefront/pkg/jwt"
	"github.com/xiebiao/storefront/pkg/metrics"
	"github.com/xiebiao/storefront/pkg/mq"
	"github.com/xiebiao/storefront/pkg/outbox"
)

// OutboxStore 业务事务内追加事件，中继领取投递
type OutboxStore interface {
	outbox.Writer
	outbox.Store
}

// Persistence 存储层组件，按database.driver选择MySQL或内存实现
type Persistence struct {
	Tx        shared.Transactor
	Catalog   catalog.Repository
	Inventory inventory.Repository
	Carts     cart.Repository
	Orders    order.Repository
	Audit     audit.Sink
	Outbox    OutboxStore
}

func providePersistence(cfg *config.Config, log *zap.Logger) (*Persistence, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("使用内存存储，进程退出后数据丢失")
		store := memory.NewStore()
		seedCatalog(store)
		return &Persistence{
			Tx:        store,
			Catalog:   memory.NewCatalogRepository(store),
			Inventory: memory.NewInventoryRepository(store),
			Carts:     memory.NewCartRepository(store),
			Orders:    memory.NewOrderRepository(store),
			Audit:     memory.NewAuditSink(store),
			Outbox:    memory.NewOutboxStore(store),
		}, func() {}, nil

	default:
		db, err := mysql.NewDB(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return &Persistence{
			Tx:        mysql.NewTxManager(db),
			Catalog:   mysql.NewCatalogRepository(db),
			Inventory: mysql.NewInventoryRepository(db),
			Carts:     mysql.NewCartRepository(db),
			Orders:    mysql.NewOrderRepository(db),
			Audit:     mysql.NewAuditSink(db),
			Outbox:    mysql.NewOutboxStore(db),
		}, cleanup, nil
	}
}

// seedCatalog 内存模式下的演示商品
func seedCatalog(store *memory.Store) {
	tee := store.AddProduct(&catalog.Product{Name: "纯棉T恤", SKU: "TS-001", Price: 5900})
	store.AddVariant(&catalog.Variant{ProductID: tee.ID, SKU: "TS-001-RED-M", Name: "红色 M",
		Attributes: map[string]string{"color": "red", "size": "M"}, Price: 5900, IsActive: true})
	store.AddVariant(&catalog.Variant{ProductID: tee.ID, SKU: "TS-001-RED-XL", Name: "红色 XL",
		Attributes: map[string]string{"color": "red", "size": "XL"}, Price: 6900, IsActive: true})

	mug := store.AddProduct(&catalog.Product{Name: "陶瓷马克杯", SKU: "MUG-001", Price: 3500})
	store.AddVariant(&catalog.Variant{ProductID: mug.ID, SKU: "MUG-001-W", Name: "白色",
		Attributes: map[string]string{"color": "white"}, Price: 3500, IsActive: true})
}

// Messaging 消息组件，broker=none时均为nil
type Messaging struct {
	Dispatcher outbox.Dispatcher
	Consumer   *mq.Consumer // 只有rabbitmq且配置了payment_queue时创建
}

func provideMessaging(cfg *config.Config, log *zap.Logger) (*Messaging, func(), error) {
	mc := cfg.Messaging
	switch mc.Broker {
	case config.BrokerRabbitMQ:
		pub, err := mq.NewPublisher(mc.RabbitMQ.URL, mc.RabbitMQ.Exchange, "topic", log)
		if err != nil {
			return nil, nil, err
		}
		m := &Messaging{Dispatcher: outbox.NewAMQPDispatcher(pub)}
		if mc.RabbitMQ.PaymentQueue != "" {
			consumer, err := mq.NewConsumer(mq.ConsumerOptions{
				URL:          mc.RabbitMQ.URL,
				Exchange:     mc.RabbitMQ.Exchange,
				ExchangeType: "topic",
				Queue:        mc.RabbitMQ.PaymentQueue,
				RoutingKeys:  []string{mc.RabbitMQ.PaymentRoutingKey},
				Prefetch:     mc.RabbitMQ.Prefetch,
			}, log)
			if err != nil {
				_ = pub.Close()
				return nil, nil, err
			}
			m.Consumer = consumer
		}
		return m, func() {
			if m.Consumer != nil {
				_ = m.Consumer.Close()
			}
			_ = pub.Close()
		}, nil

	case config.BrokerKafka:
		w := outbox.NewKafkaWriter(mc.Kafka.Brokers)
		log.Info("Kafka投递已启用", zap.Strings("brokers", mc.Kafka.Brokers), zap.String("topic", mc.Kafka.Topic))
		return &Messaging{Dispatcher: outbox.NewKafkaDispatcher(w, mc.Kafka.Topic)}, func() { _ = w.Close() }, nil

	default:
		return &Messaging{}, func() {}, nil
	}
}

// provideIdempotencyStore 优先使用Redis；未启用Redis时退化为进程内存储（单实例）
func provideIdempotencyStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (idempotency.Store, func(), error) {
	if !cfg.Idempotency.Enabled {
		return nil, func() {}, nil
	}
	if !cfg.Redis.Enabled {
		log.Warn("Redis未启用，幂等键保存在进程内存中")
		return idempotency.NewMemoryStore(cfg.Idempotency.TTL), func() {}, nil
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewIdempotencyStore(rdb, cfg.Idempotency.TTL), func() { _ = rdb.Close() }, nil
}

func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpire)
}

func providePolicy() middleware.Policy {
	return middleware.DefaultPolicy()
}

func provideInventoryService(p *Persistence) inventory.Service {
	return inventory.NewService(p.Inventory, p.Catalog, p.Audit)
}

func provideCartService(p *Persistence) cart.Service {
	return cart.NewService(p.Carts, p.Catalog, p.Tx)
}

func provideStockUseCase(p *Persistence, stock inventory.Service, log *zap.Logger) *appinventory.StockUseCase {
	return appinventory.NewStockUseCase(stock, p.Tx, log)
}

func provideCheckoutUseCase(cfg *config.Config, p *Persistence, stock inventory.Service, log *zap.Logger) *checkout.UseCase {
	return checkout.NewUseCase(p.Tx, p.Carts, p.Catalog, p.Orders, stock, p.Audit, p.Outbox, checkout.Options{
		Pricing:        checkout.NewPricing(cfg.Checkout),
		OrderNoRetries: cfg.Checkout.OrderNoRetries,
	}, log)
}

func provideCancelOrderUseCase(p *Persistence, stock inventory.Service, log *zap.Logger) *apporder.CancelOrderUseCase {
	return apporder.NewCancelOrderUseCase(p.Tx, p.Orders, stock, p.Audit, p.Outbox, log)
}

func provideManageOrderUseCase(p *Persistence, log *zap.Logger) *apporder.ManageOrderUseCase {
	return apporder.NewManageOrderUseCase(p.Tx, p.Orders, p.Audit, log)
}

func provideRelay(cfg *config.Config, p *Persistence, m *Messaging, log *zap.Logger) *outbox.Relay {
	if !cfg.Outbox.Enabled || m.Dispatcher == nil {
		return nil
	}
	dispatcher := m.Dispatcher
	if cfg.Outbox.BreakerThreshold > 0 {
		name := "outbox-" + dispatcher.Name()
		metrics.InitMetrics()
		metrics.SetGaugeVec(metrics.CircuitBreakerState, map[string]string{"name": name}, float64(circuitbreaker.StateClosed))
		cb := circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
			Timeout:     cfg.Outbox.BreakerTimeout,
			ReadyToTrip: circuitbreaker.ConsecutiveFailures(cfg.Outbox.BreakerThreshold),
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				log.Warn("outbox熔断器状态变化", zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
				metrics.SetGaugeVec(metrics.CircuitBreakerState, map[string]string{"name": name}, float64(to))
			},
		})
		dispatcher = outbox.NewBreakerDispatcher(dispatcher, cb)
	}
	return outbox.NewRelay(log, p.Outbox, dispatcher, outbox.RelayOptions{
		BatchSize:  cfg.Outbox.BatchSize,
		Interval:   cfg.Outbox.Interval,
		Lease:      cfg.Outbox.Lease,
		MaxRetries: cfg.Outbox.MaxRetries,
	})
}

func providePaymentConsumer(cfg *config.Config, manage *apporder.ManageOrderUseCase, log *zap.Logger) *mqconsumer.PaymentConsumer {
	return mqconsumer.NewPaymentConsumer(manage, cfg.Messaging.RabbitMQ.PaymentQueue, log)
}

func provideEngine(
	cfg *config.Config,
	log *zap.Logger,
	auth *middleware.AuthMiddleware,
	store idempotency.Store,
	inventoryHandler *handler.InventoryHandler,
	orderHandler *handler.OrderHandler,
	cartHandler *handler.CartHandler,
) *gin.Engine {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return router.New(router.Options{
		Mode:        cfg.Server.Mode,
		MetricsPath: metricsPath,
		// 生产环境不暴露Swagger
		Swagger:     cfg.Server.Mode != gin.ReleaseMode,
		Logger:      log,
		Auth:        auth,
		Idempotency: store,
		Inventory:   inventoryHandler,
		Orders:      orderHandler,
		Cart:        cartHandler,
	})
}

// GRPC gRPC服务及其健康检查
type GRPC struct {
	Server *grpc.Server
	Health *health.Server
}

func provideGRPC(jwtManager *jwt.Manager, policy middleware.Policy, stock *appinventory.StockUseCase, log *zap.Logger) *GRPC {
	srv, healthSrv := grpcserver.NewServer(grpcserver.ServerOptions{
		JWT:    jwtManager,
		Policy: policy,
		Logger: log,
	}, grpcserver.NewInventoryServer(stock))
	return &GRPC{Server: srv, Health: healthSrv}
}

func describe(cfg *config.Config) string {
	return fmt.Sprintf("driver=%s broker=%s http=:%d grpc=:%d",
		cfg.Database.Driver, cfg.Messaging.Broker, cfg.Server.Port, cfg.Server.GRPCPort)
}
