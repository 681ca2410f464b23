package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/dmitrijs2005/dairykeeper/internal/logging"
	"github.com/dmitrijs2005/dairykeeper/internal/rpc"
	"google.golang.org/grpc"
)

// Subscriptions is the business logic the gRPC handlers delegate to.
type Subscriptions interface {
	AggregateStatus(ctx context.Context, userID string) (*entitlements.AggregateStatus, error)
	TabEntitlement(ctx context.Context, userID string, tab entitlements.TabID) (*entitlements.TabEntitlement, error)
	Offers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error)
	Purchase(ctx context.Context, userID string, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error)
}

type GRPCServer struct {
	address       string
	subscriptions Subscriptions
	logger        logging.Logger
	jwtSecret     []byte
}

var _ rpc.EntitlementServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, subs Subscriptions, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		subscriptions: subs,
		jwtSecret:     []byte(secretKey),
	}
}

// newServer builds a grpc.Server with the access token interceptor and the
// entitlement service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterEntitlementServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
