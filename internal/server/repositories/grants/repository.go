package grants

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

type Repository interface {
	Create(ctx context.Context, userID string, g *entitlements.SubscriptionGrant) error
	ListByUser(ctx context.Context, userID string) ([]entitlements.SubscriptionGrant, error)
	ListActive(ctx context.Context, userID string, now time.Time) ([]entitlements.SubscriptionGrant, error)
	FindByTransactionRef(ctx context.Context, userID, ref string) (*entitlements.SubscriptionGrant, error)
}
