package rpc

import (
	"context"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dairykeeper.entitlements.v1.EntitlementService"

const (
	MethodPing               = "/" + ServiceName + "/Ping"
	MethodGetAggregateStatus = "/" + ServiceName + "/GetAggregateStatus"
	MethodGetTabEntitlement  = "/" + ServiceName + "/GetTabEntitlement"
	MethodListOffers         = "/" + ServiceName + "/ListOffers"
	MethodPurchase           = "/" + ServiceName + "/Purchase"
)

// PingOK is the status a healthy server answers Ping with.
const PingOK = "OK"

// EntitlementServer is implemented by the entitlement server. Requests arrive
// already decoded; the user is resolved from the context by the server itself.
type EntitlementServer interface {
	Ping(ctx context.Context) error
	GetAggregateStatus(ctx context.Context) (*entitlements.AggregateStatus, error)
	GetTabEntitlement(ctx context.Context, tab entitlements.TabID) (*entitlements.TabEntitlement, error)
	ListOffers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error)
	Purchase(ctx context.Context, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error)
}

// RegisterEntitlementServer registers srv on s.
func RegisterEntitlementServer(s grpc.ServiceRegistrar, srv EntitlementServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for EntitlementServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EntitlementServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodPing, func(ctx context.Context, srv EntitlementServer, _ *structpb.Struct) (any, error) {
			if err := srv.Ping(ctx); err != nil {
				return nil, err
			}
			return pingResponse{Status: PingOK}, nil
		}),
		unaryMethod(MethodGetAggregateStatus, func(ctx context.Context, srv EntitlementServer, _ *structpb.Struct) (any, error) {
			return srv.GetAggregateStatus(ctx)
		}),
		unaryMethod(MethodGetTabEntitlement, func(ctx context.Context, srv EntitlementServer, in *structpb.Struct) (any, error) {
			tab, err := decodeTab(in, false)
			if err != nil {
				return nil, err
			}
			return srv.GetTabEntitlement(ctx, tab)
		}),
		unaryMethod(MethodListOffers, func(ctx context.Context, srv EntitlementServer, in *structpb.Struct) (any, error) {
			tab, err := decodeTab(in, true)
			if err != nil {
				return nil, err
			}
			offers, err := srv.ListOffers(ctx, tab)
			if err != nil {
				return nil, err
			}
			if offers == nil {
				offers = []entitlements.SubscriptionOffer{}
			}
			return offersResponse{Offers: offers}, nil
		}),
		unaryMethod(MethodPurchase, func(ctx context.Context, srv EntitlementServer, in *structpb.Struct) (any, error) {
			var req entitlements.PurchaseRequest
			if err := Decode(in, &req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			return srv.Purchase(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dairykeeper/entitlements/v1/entitlements.proto",
}

func decodeTab(in *structpb.Struct, allowEmpty bool) (entitlements.TabID, error) {
	var req tabRequest
	if err := Decode(in, &req); err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Tab == "" && allowEmpty {
		return "", nil
	}
	tab, err := entitlements.ParseTab(req.Tab)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	return tab, nil
}

// unaryMethod adapts a typed call into a grpc.MethodDesc: it decodes the
// Struct request, runs the interceptor chain and encodes the result.
func unaryMethod(fullMethod string, call func(ctx context.Context, srv EntitlementServer, in *structpb.Struct) (any, error)) grpc.MethodDesc {
	name := fullMethod[len(ServiceName)+2:]

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(ctx, srv.(EntitlementServer), req.(*structpb.Struct))
				if err != nil {
					return nil, err
				}
				st, err := Encode(out)
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return st, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}
