package offers

import (
	"context"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

type Repository interface {
	List(ctx context.Context) ([]entitlements.SubscriptionOffer, error)
	ListByTab(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error)
	Get(ctx context.Context, id string) (*entitlements.SubscriptionOffer, error)
}
