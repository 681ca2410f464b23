// Package services contains application services for the DairyKeeper client.
// This file defines the purchase service: it buys an offer from the
// entitlement source and then resets the entitlement cache, so the next
// access check reflects the new grant.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/dmitrijs2005/dairykeeper/internal/logging"
	"github.com/google/uuid"
)

// Purchaser is the part of the entitlement source the service needs.
type Purchaser interface {
	ListOffers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error)
	Purchase(ctx context.Context, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error)
}

// Clearer is implemented by the entitlement cache.
type Clearer interface {
	Clear(ctx context.Context)
}

// PurchaseService defines subscription purchase operations for the CLI.
//
// Contract:
//   - Offers: list purchasable offers, optionally only those covering tab.
//   - Purchase: validate, buy, then clear the entitlement cache. A failed
//     purchase leaves the cache untouched.
type PurchaseService interface {
	Offers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error)
	Purchase(ctx context.Context, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error)
}

type purchaseService struct {
	source Purchaser
	cache  Clearer
	logger logging.Logger
}

// NewPurchaseService constructs a PurchaseService bound to the source and cache.
func NewPurchaseService(source Purchaser, cache Clearer, logger logging.Logger) PurchaseService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &purchaseService{source: source, cache: cache, logger: logger.With("module", "purchase_service")}
}

func (s *purchaseService) Offers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error) {
	if tab != "" && !tab.Valid() {
		return nil, fmt.Errorf("%w: %q", entitlements.ErrUnknownTab, tab)
	}
	offers, err := s.source.ListOffers(ctx, tab)
	if err != nil {
		return nil, fmt.Errorf("list offers error: %w", err)
	}
	return offers, nil
}

// Purchase fills in a transaction reference when none is given.
func (s *purchaseService) Purchase(ctx context.Context, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TransactionRef == "" {
		req.TransactionRef = uuid.NewString()
	}

	grant, err := s.source.Purchase(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "purchase failed", "offer_id", req.OfferID, "transaction_ref", req.TransactionRef, "error", err)
		return nil, fmt.Errorf("purchase error: %w", err)
	}

	s.cache.Clear(ctx)
	s.logger.Info(ctx, "purchase completed", "offer_id", req.OfferID, "transaction_ref", req.TransactionRef)
	return grant, nil
}
