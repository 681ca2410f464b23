package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/common"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/dmitrijs2005/dairykeeper/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const pingTimeout = 3 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.EntitlementClient

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	ctx = withAccessToken(ctx, s.AccessToken())
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewEntitlementClient dials endpointURL lazily; the first RPC establishes the connection.
func NewEntitlementClient(endpointURL, accessToken string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewEntitlementClient(conn)
	return nil
}

// AccessToken returns the bearer token attached to every call.
func (s *GRPCClient) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SetAccessToken replaces the bearer token for subsequent calls.
func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		if _, ok := status.FromError(err); !ok {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) GetAggregateStatus(ctx context.Context) (*entitlements.AggregateStatus, error) {
	st, err := s.client.GetAggregateStatus(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return st, nil
}

func (s *GRPCClient) GetTabEntitlement(ctx context.Context, tab entitlements.TabID) (*entitlements.TabEntitlement, error) {
	if !tab.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, entitlements.ErrUnknownTab)
	}
	e, err := s.client.GetTabEntitlement(ctx, tab)
	if err != nil {
		return nil, s.mapError(err)
	}
	if e.Tab == "" {
		e.Tab = tab
	}
	return e, nil
}

func (s *GRPCClient) ListOffers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error) {
	offers, err := s.client.ListOffers(ctx, tab)
	if err != nil {
		return nil, s.mapError(err)
	}
	return offers, nil
}

func (s *GRPCClient) Purchase(ctx context.Context, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error) {
	g, err := s.client.Purchase(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return g, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return ErrUnavailable
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
