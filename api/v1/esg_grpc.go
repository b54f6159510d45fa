// Package v1 holds the esg.v1.ESGOverview service descriptor, server and client. The
// service exchanges google.protobuf.Struct messages, so it is declared by hand against
// esg.proto instead of being generated.
package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "esg.v1.ESGOverview"

const (
	ESGOverview_GetDashboard_FullMethodName           = "/esg.v1.ESGOverview/GetDashboard"
	ESGOverview_GetScoreSnapshot_FullMethodName       = "/esg.v1.ESGOverview/GetScoreSnapshot"
	ESGOverview_GetInitiativeBreakdown_FullMethodName = "/esg.v1.ESGOverview/GetInitiativeBreakdown"
	ESGOverview_GetMetricsTrend_FullMethodName        = "/esg.v1.ESGOverview/GetMetricsTrend"
	ESGOverview_GetAnalysisReport_FullMethodName      = "/esg.v1.ESGOverview/GetAnalysisReport"
	ESGOverview_GetActivityLog_FullMethodName         = "/esg.v1.ESGOverview/GetActivityLog"
)

// ESGOverviewServer is the server API for the ESGOverview service.
// Implementations must embed UnimplementedESGOverviewServer.
type ESGOverviewServer interface {
	GetDashboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetScoreSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetInitiativeBreakdown(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMetricsTrend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalysisReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetActivityLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	mustEmbedUnimplementedESGOverviewServer()
}

// UnimplementedESGOverviewServer answers every method with codes.Unimplemented.
type UnimplementedESGOverviewServer struct{}

func (UnimplementedESGOverviewServer) GetDashboard(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDashboard not implemented")
}
func (UnimplementedESGOverviewServer) GetScoreSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetScoreSnapshot not implemented")
}
func (UnimplementedESGOverviewServer) GetInitiativeBreakdown(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetInitiativeBreakdown not implemented")
}
func (UnimplementedESGOverviewServer) GetMetricsTrend(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetMetricsTrend not implemented")
}
func (UnimplementedESGOverviewServer) GetAnalysisReport(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAnalysisReport not implemented")
}
func (UnimplementedESGOverviewServer) GetActivityLog(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetActivityLog not implemented")
}
func (UnimplementedESGOverviewServer) mustEmbedUnimplementedESGOverviewServer() {}

// RegisterESGOverviewServer registers srv on s.
func RegisterESGOverviewServer(s grpc.ServiceRegistrar, srv ESGOverviewServer) {
	s.RegisterService(&ESGOverview_ServiceDesc, srv)
}

type unaryMethod func(ESGOverviewServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ESGOverviewServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ESGOverviewServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ESGOverview_ServiceDesc is the grpc.ServiceDesc for the ESGOverview service.
var ESGOverview_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ESGOverviewServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetDashboard",
			Handler:    unaryHandler(ESGOverview_GetDashboard_FullMethodName, ESGOverviewServer.GetDashboard),
		},
		{
			MethodName: "GetScoreSnapshot",
			Handler:    unaryHandler(ESGOverview_GetScoreSnapshot_FullMethodName, ESGOverviewServer.GetScoreSnapshot),
		},
		{
			MethodName: "GetInitiativeBreakdown",
			Handler:    unaryHandler(ESGOverview_GetInitiativeBreakdown_FullMethodName, ESGOverviewServer.GetInitiativeBreakdown),
		},
		{
			MethodName: "GetMetricsTrend",
			Handler:    unaryHandler(ESGOverview_GetMetricsTrend_FullMethodName, ESGOverviewServer.GetMetricsTrend),
		},
		{
			MethodName: "GetAnalysisReport",
			Handler:    unaryHandler(ESGOverview_GetAnalysisReport_FullMethodName, ESGOverviewServer.GetAnalysisReport),
		},
		{
			MethodName: "GetActivityLog",
			Handler:    unaryHandler(ESGOverview_GetActivityLog_FullMethodName, ESGOverviewServer.GetActivityLog),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/v1/esg.proto",
}

// ESGOverviewClient is the client API for the ESGOverview service.
type ESGOverviewClient interface {
	GetDashboard(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetScoreSnapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetInitiativeBreakdown(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetMetricsTrend(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetAnalysisReport(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetActivityLog(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type esgOverviewClient struct {
	cc grpc.ClientConnInterface
}

func NewESGOverviewClient(cc grpc.ClientConnInterface) ESGOverviewClient {
	return &esgOverviewClient{cc: cc}
}

func (c *esgOverviewClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *esgOverviewClient) GetDashboard(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ESGOverview_GetDashboard_FullMethodName, in, opts)
}

func (c *esgOverviewClient) GetScoreSnapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ESGOverview_GetScoreSnapshot_FullMethodName, in, opts)
}

func (c *esgOverviewClient) GetInitiativeBreakdown(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ESGOverview_GetInitiativeBreakdown_FullMethodName, in, opts)
}

func (c *esgOverviewClient) GetMetricsTrend(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ESGOverview_GetMetricsTrend_FullMethodName, in, opts)
}

func (c *esgOverviewClient) GetAnalysisReport(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ESGOverview_GetAnalysisReport_FullMethodName, in, opts)
}

func (c *esgOverviewClient) GetActivityLog(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ESGOverview_GetActivityLog_FullMethodName, in, opts)
}
