package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiebiao/storefront/internal/infrastructure/config"
	mqconsumer "github.com/xiebiao/storefront/internal/interface/mq"
	"github.com/xiebiao/storefront/pkg/outbox"
)

// App 进程内全部长期运行的组件
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	engine    *gin.Engine
	grpc      *GRPC
	messaging *Messaging
	relay     *outbox.Relay // nil: 未启用发件箱中继
	payments  *mqconsumer.PaymentConsumer
}

func newApp(
	cfg *config.Config,
	log *zap.Logger,
	engine *gin.Engine,
	grpcSrv *GRPC,
	messaging *Messaging,
	relay *outbox.Relay,
	payments *mqconsumer.PaymentConsumer,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		engine:    engine,
		grpc:      grpcSrv,
		messaging: messaging,
		relay:     relay,
		payments:  payments,
	}
}

// Run 启动HTTP、gRPC、发件箱中继和支付消费者，ctx取消后优雅退出
// 任一组件异常退出都会取消其余组件
func (a *App) Run(ctx context.Context) error {
	var lis net.Listener
	if a.cfg.Server.GRPCPort > 0 {
		var err error
		if lis, err = net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.GRPCPort)); err != nil {
			return fmt.Errorf("监听gRPC端口失败: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.engine,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		a.log.Info("HTTP服务启动", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP服务异常退出: %w", err)
		}
		return nil
	})

	if lis != nil {
		g.Go(func() error {
			a.log.Info("gRPC服务启动", zap.String("addr", lis.Addr().String()))
			if err := a.grpc.Server.Serve(lis); err != nil {
				return fmt.Errorf("gRPC服务异常退出: %w", err)
			}
			return nil
		})
	}

	if a.relay != nil {
		g.Go(func() error { return a.relay.Run(ctx) })
	}
	if a.messaging.Consumer != nil {
		g.Go(func() error { return a.messaging.Consumer.Consume(ctx, a.payments.Handle) })
	}

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		a.grpc.Health.Shutdown()
		stopGRPC(a.grpc, a.cfg.Server.ShutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP服务关闭失败: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// stopGRPC 超时后强制关闭
func stopGRPC(g *GRPC, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		g.Server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		g.Server.Stop()
	}
}
