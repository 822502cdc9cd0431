package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rulekeeper.v1.RuleTools"

// Full method names, as seen by interceptors.
const (
	MethodCanonicalize = "/" + ServiceName + "/Canonicalize"
	MethodCheck        = "/" + ServiceName + "/Check"
	MethodPreview      = "/" + ServiceName + "/Preview"
	MethodPreviewBatch = "/" + ServiceName + "/PreviewBatch"
)

// RuleToolsServer is the server API of the rule tools service. Messages are
// protobuf well-known types carrying rule JSON, so clients need no generated
// code.
type RuleToolsServer interface {
	// Canonicalize returns the canonical persisted form of rule JSON.
	Canonicalize(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// Check returns {"valid", "diagnostics"} for rule JSON.
	Check(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	// Preview evaluates {"rule", "record"}.
	Preview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// PreviewBatch evaluates {"rule", "records"}, one result per record.
	PreviewBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRuleToolsServer registers srv with s.
func RegisterRuleToolsServer(s grpc.ServiceRegistrar, srv RuleToolsServer) {
	s.RegisterService(&RuleToolsServiceDesc, srv)
}

// RuleToolsServiceDesc describes the service for grpc.Server.
var RuleToolsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleToolsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Canonicalize", Handler: canonicalizeHandler},
		{MethodName: "Check", Handler: checkHandler},
		{MethodName: "Preview", Handler: previewHandler},
		{MethodName: "PreviewBatch", Handler: previewBatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rulekeeper/v1/rule_tools.proto",
}

func canonicalizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(RuleToolsServer).Canonicalize(ctx, req.(*wrapperspb.BytesValue))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCanonicalize}, call)
}

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(RuleToolsServer).Check(ctx, req.(*wrapperspb.BytesValue))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCheck}, call)
}

func previewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(RuleToolsServer).Preview(ctx, req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPreview}, call)
}

func previewBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return srv.(RuleToolsServer).PreviewBatch(ctx, req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPreviewBatch}, call)
}

// RuleToolsClient calls the rule tools service over conn.
type RuleToolsClient struct {
	cc grpc.ClientConnInterface
}

// NewRuleToolsClient wraps an established connection.
func NewRuleToolsClient(cc grpc.ClientConnInterface) *RuleToolsClient {
	return &RuleToolsClient{cc: cc}
}

// Canonicalize calls RuleTools.Canonicalize.
func (c *RuleToolsClient) Canonicalize(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, MethodCanonicalize, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Check calls RuleTools.Check.
func (c *RuleToolsClient) Check(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodCheck, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Preview calls RuleTools.Preview.
func (c *RuleToolsClient) Preview(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodPreview, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewBatch calls RuleTools.PreviewBatch.
func (c *RuleToolsClient) PreviewBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodPreviewBatch, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
