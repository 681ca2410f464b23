package client

import (
	"context"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

// Client is the Entitlement Source as seen by the DairyKeeper client.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	GetAggregateStatus(ctx context.Context) (*entitlements.AggregateStatus, error)
	GetTabEntitlement(ctx context.Context, tab entitlements.TabID) (*entitlements.TabEntitlement, error)
	ListOffers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error)
	Purchase(ctx context.Context, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error)
}
