package rpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// EntitlementClient is the typed client side of EntitlementServer.
type EntitlementClient interface {
	Ping(ctx context.Context, opts ...grpc.CallOption) error
	GetAggregateStatus(ctx context.Context, opts ...grpc.CallOption) (*entitlements.AggregateStatus, error)
	GetTabEntitlement(ctx context.Context, tab entitlements.TabID, opts ...grpc.CallOption) (*entitlements.TabEntitlement, error)
	ListOffers(ctx context.Context, tab entitlements.TabID, opts ...grpc.CallOption) ([]entitlements.SubscriptionOffer, error)
	Purchase(ctx context.Context, req entitlements.PurchaseRequest, opts ...grpc.CallOption) (*entitlements.SubscriptionGrant, error)
}

type entitlementClient struct {
	cc grpc.ClientConnInterface
}

// NewEntitlementClient returns a client that invokes methods over cc.
func NewEntitlementClient(cc grpc.ClientConnInterface) EntitlementClient {
	return &entitlementClient{cc: cc}
}

func (c *entitlementClient) call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := Encode(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return Decode(resp, out)
}

func (c *entitlementClient) Ping(ctx context.Context, opts ...grpc.CallOption) error {
	var resp pingResponse
	if err := c.call(ctx, MethodPing, struct{}{}, &resp, opts...); err != nil {
		return err
	}
	if resp.Status != PingOK {
		return fmt.Errorf("unexpected ping status %q", resp.Status)
	}
	return nil
}

func (c *entitlementClient) GetAggregateStatus(ctx context.Context, opts ...grpc.CallOption) (*entitlements.AggregateStatus, error) {
	out := &entitlements.AggregateStatus{}
	if err := c.call(ctx, MethodGetAggregateStatus, struct{}{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entitlementClient) GetTabEntitlement(ctx context.Context, tab entitlements.TabID, opts ...grpc.CallOption) (*entitlements.TabEntitlement, error) {
	out := &entitlements.TabEntitlement{}
	if err := c.call(ctx, MethodGetTabEntitlement, tabRequest{Tab: tab.String()}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *entitlementClient) ListOffers(ctx context.Context, tab entitlements.TabID, opts ...grpc.CallOption) ([]entitlements.SubscriptionOffer, error) {
	var out offersResponse
	if err := c.call(ctx, MethodListOffers, tabRequest{Tab: tab.String()}, &out, opts...); err != nil {
		return nil, err
	}
	return out.Offers, nil
}

func (c *entitlementClient) Purchase(ctx context.Context, req entitlements.PurchaseRequest, opts ...grpc.CallOption) (*entitlements.SubscriptionGrant, error) {
	out := &entitlements.SubscriptionGrant{}
	if err := c.call(ctx, MethodPurchase, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
