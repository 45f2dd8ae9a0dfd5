package grpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	appinventory "github.com/xiebiao/storefront/internal/application/inventory"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/memory"
	grpcserver "github.com/xiebiao/storefront/internal/interface/grpc"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/jwt"
)

type fixture struct {
	conn    *grpc.ClientConn
	client  *grpcserver.InventoryServiceClient
	jwt     *jwt.Manager
	variant *catalog.Variant
	batch   *inventory.Batch
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()

	store := memory.NewStore()
	p := store.AddProduct(&catalog.Product{Name: "纯棉T恤", SKU: "TS", Price: 5900})
	v := store.AddVariant(&catalog.Variant{ProductID: p.ID, SKU: "TS-RED-XL", Name: "红色 XL", Price: 5900, IsActive: true})

	catalogRepo := memory.NewCatalogRepository(store)
	stock := inventory.NewService(memory.NewInventoryRepository(store), catalogRepo, memory.NewAuditSink(store))
	b, err := stock.CreateBatch(context.Background(), 1, inventory.CreateBatchInput{VariantID: v.ID, StockQuantity: 10})
	require.NoError(t, err)

	jwtManager := jwt.NewManager("test-secret", "storefront", time.Hour)
	srv, _ := grpcserver.NewServer(grpcserver.ServerOptions{
		JWT:    jwtManager,
		Policy: middleware.DefaultPolicy(),
		Logger: log,
	}, grpcserver.NewInventoryServer(appinventory.NewStockUseCase(stock, store, log)))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &fixture{
		conn:    conn,
		client:  grpcserver.NewInventoryServiceClient(conn),
		jwt:     jwtManager,
		variant: v,
		batch:   b,
	}
}

func (f *fixture) ctx(t *testing.T, userID uint, role string) context.Context {
	tok, err := f.jwt.GenerateToken(userID, role)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok.AccessToken)
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestInventoryService(t *testing.T) {
	f := setup(t)
	staff := f.ctx(t, 1, jwt.RoleStaff)

	t.Run("查询规格库存", func(t *testing.T) {
		out, err := f.client.GetVariantStock(staff, mustStruct(t, map[string]interface{}{"variant_id": f.variant.ID}))
		require.NoError(t, err)
		m := out.AsMap()
		assert.EqualValues(t, 10, m["total_stock"])
		assert.EqualValues(t, 10, m["total_available"])
		assert.Len(t, m["batches"], 1)
	})

	t.Run("预留与释放", func(t *testing.T) {
		out, err := f.client.ReserveStock(staff, mustStruct(t, map[string]interface{}{"batch_id": f.batch.ID, "quantity": 4}))
		require.NoError(t, err)
		assert.EqualValues(t, 4, out.AsMap()["reserved_quantity"])

		out, err = f.client.ReleaseStock(staff, mustStruct(t, map[string]interface{}{"batch_id": f.batch.ID, "quantity": 3}))
		require.NoError(t, err)
		assert.EqualValues(t, 1, out.AsMap()["reserved_quantity"])
	})

	t.Run("库存不足带ErrorInfo", func(t *testing.T) {
		_, err := f.client.ReserveStock(staff, mustStruct(t, map[string]interface{}{"batch_id": f.batch.ID, "quantity": 100}))
		require.Error(t, err)
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))

		code, meta := grpcserver.FromStatus(err)
		assert.Equal(t, apperrors.ErrCodeInsufficientStock, code)
		assert.Equal(t, "100", meta["requested"])
	})

	t.Run("批次不存在", func(t *testing.T) {
		_, err := f.client.ReleaseStock(staff, mustStruct(t, map[string]interface{}{"batch_id": 999, "quantity": 1}))
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("参数非法", func(t *testing.T) {
		_, err := f.client.ReserveStock(staff, mustStruct(t, map[string]interface{}{"batch_id": 1.5, "quantity": 1}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = f.client.GetVariantStock(staff, mustStruct(t, map[string]interface{}{}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestInventoryService_Auth(t *testing.T) {
	f := setup(t)
	in := mustStruct(t, map[string]interface{}{"variant_id": f.variant.ID})

	_, err := f.client.GetVariantStock(context.Background(), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = f.client.GetVariantStock(f.ctx(t, 100, jwt.RoleCustomer), in)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	code, meta := grpcserver.FromStatus(err)
	assert.Equal(t, apperrors.ErrCodeForbidden, code)
	assert.Equal(t, "inventory:read", meta["permission"])
}

func TestHealth(t *testing.T) {
	f := setup(t)

	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: grpcserver.ServiceName,
	})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{inventory.ErrInvalidQuantity, codes.InvalidArgument},
		{inventory.ErrBelowReserved, codes.FailedPrecondition},
		{apperrors.ErrUnauthorized, codes.Unauthenticated},
		{apperrors.ErrForbidden, codes.PermissionDenied},
		{inventory.ErrBatchNotFound, codes.NotFound},
		{inventory.ErrConcurrentModification, codes.Aborted},
		{apperrors.Wrap(assert.AnError, "数据库错误"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, grpcserver.ToStatus(tt.err).Code(), tt.err.Error())
	}

	st := grpcserver.ToStatus(apperrors.Wrap(assert.AnError, "数据库错误"))
	assert.NotContains(t, st.Message(), assert.AnError.Error())
}
