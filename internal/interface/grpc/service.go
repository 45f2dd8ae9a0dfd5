// Package grpc 库存gRPC服务
//
// 服务storefront.inventory.v1.InventoryService的请求和响应都是google.protobuf.Struct，
// 不依赖代码生成，ServiceDesc手写在本文件中。调试：
//
//	grpcurl -plaintext -H 'authorization: Bearer <token>' \
//	    -d '{"variant_id": 1}' localhost:9090 storefront.inventory.v1.InventoryService/GetVariantStock
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName 完整服务名
const ServiceName = "storefront.inventory.v1.InventoryService"

const (
	methodGetVariantStock = "/" + ServiceName + "/GetVariantStock"
	methodReserveStock    = "/" + ServiceName + "/ReserveStock"
	methodReleaseStock    = "/" + ServiceName + "/ReleaseStock"
)

// InventoryServiceServer 服务端接口
type InventoryServiceServer interface {
	// GetVariantStock {variant_id} → 规格库存汇总及批次明细
	GetVariantStock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	// ReserveStock {batch_id, quantity} → 更新后的批次
	ReserveStock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	// ReleaseStock {batch_id, quantity} → 更新后的批次
	ReleaseStock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// InventoryServiceDesc 服务描述，等价于protoc-gen-go-grpc生成的_ServiceDesc
var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetVariantStock", Handler: unaryHandler(methodGetVariantStock, InventoryServiceServer.GetVariantStock)},
		{MethodName: "ReserveStock", Handler: unaryHandler(methodReserveStock, InventoryServiceServer.ReserveStock)},
		{MethodName: "ReleaseStock", Handler: unaryHandler(methodReleaseStock, InventoryServiceServer.ReleaseStock)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/inventory/v1/inventory.proto",
}

// RegisterInventoryServiceServer 注册服务实现
func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

type structMethod func(InventoryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(InventoryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// InventoryServiceClient 客户端
type InventoryServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInventoryServiceClient 创建客户端
func NewInventoryServiceClient(cc grpc.ClientConnInterface) *InventoryServiceClient {
	return &InventoryServiceClient{cc: cc}
}

func (c *InventoryServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVariantStock 查询规格库存
func (c *InventoryServiceClient) GetVariantStock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetVariantStock, in, opts...)
}

// ReserveStock 预留库存
func (c *InventoryServiceClient) ReserveStock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodReserveStock, in, opts...)
}

// ReleaseStock 释放预留
func (c *InventoryServiceClient) ReleaseStock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodReleaseStock, in, opts...)
}
