package grpc

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"

	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/jwt"
	"github.com/xiebiao/storefront/pkg/logger"
	"github.com/xiebiao/storefront/pkg/tracing"
)

const tracerName = "grpc"

// Actor 调用方身份
type Actor struct {
	UserID uint
	Role   string
}

type actorKey struct{}

// ActorFromContext 读取认证拦截器注入的调用方
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}

// methodPermissions 各方法需要的权限
var methodPermissions = map[string]middleware.Permission{
	methodGetVariantStock: middleware.PermInventoryRead,
	methodReserveStock:    middleware.PermInventoryWrite,
	methodReleaseStock:    middleware.PermInventoryWrite,
}

// ServerOptions gRPC服务参数
type ServerOptions struct {
	JWT    *jwt.Manager
	Policy middleware.Policy
	Logger *zap.Logger
}

// NewServer 创建gRPC服务：库存服务 + 健康检查 + 反射
// 返回的health.Server供main在退出时切换为NOT_SERVING
func NewServer(opts ServerOptions, inventorySrv InventoryServiceServer) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(opts.Logger),
			errorInterceptor(),
			loggingInterceptor(opts.Logger),
			authInterceptor(opts.JWT, opts.Policy),
		),
	)

	RegisterInventoryServiceServer(srv, inventorySrv)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	// 注册反射服务（用于grpcurl调试）
	reflection.Register(srv)

	return srv, healthSrv
}

func recoveryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("gRPC处理panic", zap.String("method", info.FullMethod), zap.Any("panic", r), zap.Stack("stack"))
				err = ToStatus(apperrors.ErrInternal).Err()
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, span := tracing.StartSpan(ctx, tracerName, info.FullMethod)
		defer span.End()

		start := time.Now()
		resp, err := handler(ctx, req)

		l := logger.WithTrace(ctx, log)
		code := ToStatus(err).Code()
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			tracing.RecordError(span, err)
			l.Warn("gRPC请求失败", append(fields, zap.Error(err))...)
		} else {
			l.Info("gRPC请求", fields...)
		}
		return resp, err
	}
}

// authInterceptor 校验metadata中的Bearer Token，并按方法检查权限
// 健康检查和反射不需要认证
func authInterceptor(jwtManager *jwt.Manager, policy middleware.Policy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		perm, guarded := methodPermissions[info.FullMethod]
		if !guarded {
			return handler(ctx, req)
		}

		token := bearerToken(ctx)
		if token == "" {
			return nil, ToStatus(apperrors.ErrUnauthorized).Err()
		}
		claims, err := jwtManager.ParseToken(token)
		if err != nil {
			return nil, ToStatus(err).Err()
		}
		if !policy.Allows(claims.Role, perm) {
			return nil, ToStatus(apperrors.ErrForbidden.WithDetails(map[string]interface{}{
				"permission": string(perm),
			})).Err()
		}

		ctx = context.WithValue(ctx, actorKey{}, Actor{UserID: claims.UserID, Role: claims.Role})
		return handler(ctx, req)
	}
}

// errorInterceptor 把业务错误转换为带ErrorInfo的gRPC状态
func errorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, ToStatus(err).Err()
		}
		return resp, nil
	}
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	token, found := strings.CutPrefix(values[0], "Bearer ")
	if !found {
		return ""
	}
	return token
}
