// Package services holds the entitlement server's business logic on top of
// the repositories.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/common"
	"github.com/dmitrijs2005/dairykeeper/internal/dbx"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/dmitrijs2005/dairykeeper/internal/logging"
	"github.com/dmitrijs2005/dairykeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dairykeeper/internal/timex"
	"github.com/google/uuid"
)

type SubscriptionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	logger      logging.Logger
}

func NewSubscriptionService(db *sql.DB, m repomanager.RepositoryManager, clock timex.Clock, logger logging.Logger) *SubscriptionService {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SubscriptionService{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      logger.With("module", "subscription_service"),
	}
}

// AggregateStatus summarises the grants in force for userID. The whole grant
// history is attached, newest first; grants that have run out are reported
// as expired whatever their stored status.
func (s *SubscriptionService) AggregateStatus(ctx context.Context, userID string) (*entitlements.AggregateStatus, error) {
	now := s.clock.Now()

	history, err := s.repomanager.Grants(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing grants: %w", err)
	}

	var (
		covered []entitlements.TabID
		active  int
	)
	for i := range history {
		g := &history[i]
		if g.ActiveAt(now) {
			active++
			covered = append(covered, g.Tabs...)
			continue
		}
		if g.Status == entitlements.GrantActive && !now.Before(g.EndDate) {
			g.Status = entitlements.GrantExpired
		}
	}
	return entitlements.NewAggregateStatus(active, covered, history), nil
}

// TabEntitlement reports the longest-running grant covering tab together
// with the offers that would unlock it.
func (s *SubscriptionService) TabEntitlement(ctx context.Context, userID string, tab entitlements.TabID) (*entitlements.TabEntitlement, error) {
	if !tab.Valid() {
		return nil, fmt.Errorf("%w: %q", entitlements.ErrUnknownTab, tab)
	}
	now := s.clock.Now()

	active, err := s.repomanager.Grants(s.db).ListActive(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("error listing grants: %w", err)
	}
	offers, err := s.repomanager.Offers(s.db).ListByTab(ctx, tab)
	if err != nil {
		return nil, fmt.Errorf("error listing offers: %w", err)
	}

	e := &entitlements.TabEntitlement{Tab: tab, AvailableOffers: offers, LastFetched: now}
	for i := range active {
		g := active[i]
		if !g.Covers(tab) || !g.ActiveAt(now) {
			continue
		}
		if e.ActiveGrant == nil || g.EndDate.After(e.ActiveGrant.EndDate) {
			e.ActiveGrant = &g
		}
	}
	return e, nil
}

// Offers lists purchasable offers; an empty tab lists all of them.
func (s *SubscriptionService) Offers(ctx context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error) {
	repo := s.repomanager.Offers(s.db)
	if tab == "" {
		return repo.List(ctx)
	}
	if !tab.Valid() {
		return nil, fmt.Errorf("%w: %q", entitlements.ErrUnknownTab, tab)
	}
	return repo.ListByTab(ctx, tab)
}

// Purchase grants req.QuantityMultiplier periods of the offer to userID.
// A purchase of an offer the user already holds extends it from the end of
// the running grant. Repeating a transaction reference returns the grant it
// produced instead of charging again.
func (s *SubscriptionService) Purchase(ctx context.Context, userID string, req entitlements.PurchaseRequest) (*entitlements.SubscriptionGrant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TransactionRef == "" {
		req.TransactionRef = uuid.NewString()
	}

	var grant *entitlements.SubscriptionGrant

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		grantsRepo := s.repomanager.Grants(tx)

		existing, err := grantsRepo.FindByTransactionRef(ctx, userID, req.TransactionRef)
		if err == nil {
			grant = existing
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching transaction: %w", err)
		}

		offer, err := s.repomanager.Offers(tx).Get(ctx, req.OfferID)
		if err != nil {
			return fmt.Errorf("error getting offer %q: %w", req.OfferID, err)
		}

		now := s.clock.Now().UTC()
		active, err := grantsRepo.ListActive(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("error listing grants: %w", err)
		}

		g, err := newGrant(offer, req, extendFrom(active, offer.ID, now))
		if err != nil {
			return err
		}
		if err := grantsRepo.Create(ctx, userID, g); err != nil {
			return fmt.Errorf("error creating grant: %w", err)
		}
		grant = g
		return nil
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		// a concurrent purchase with the same reference committed first
		existing, ferr := s.repomanager.Grants(s.db).FindByTransactionRef(ctx, userID, req.TransactionRef)
		if ferr != nil {
			return nil, fmt.Errorf("error searching transaction: %w", ferr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "purchase recorded", "user", userID, "offer", grant.OfferID, "grant", grant.ID, "end", grant.EndDate)
	return grant, nil
}

// extendFrom is the latest end among running grants of offerID, or now.
func extendFrom(active []entitlements.SubscriptionGrant, offerID string, now time.Time) time.Time {
	start := now
	for _, g := range active {
		if g.OfferID == offerID && g.EndDate.After(start) {
			start = g.EndDate
		}
	}
	return start
}

// newGrant prices and dates req against o. Offers whose price or duration
// cannot be multiplied without overflowing are rejected.
func newGrant(o *entitlements.SubscriptionOffer, req entitlements.PurchaseRequest, start time.Time) (*entitlements.SubscriptionGrant, error) {
	m := req.QuantityMultiplier
	if m < 1 || o.Price < 0 || o.DurationDays < 1 {
		return nil, fmt.Errorf("%w: offer %q cannot be bought %d times", entitlements.ErrInvalidPurchase, o.ID, m)
	}
	if o.Price > math.MaxInt64/int64(m) || o.DurationDays > math.MaxInt32/m {
		return nil, fmt.Errorf("%w: offer %q times %d overflows", entitlements.ErrInvalidPurchase, o.ID, m)
	}

	amount := o.Price * int64(m)
	if req.PaymentMethod == entitlements.PaymentFree {
		amount = 0
	}
	end := start.AddDate(0, 0, o.DurationDays*m)
	if !end.After(start) {
		return nil, fmt.Errorf("%w: offer %q times %d ends before it starts", entitlements.ErrInvalidPurchase, o.ID, m)
	}
	return &entitlements.SubscriptionGrant{
		ID:             uuid.NewString(),
		OfferID:        o.ID,
		OfferName:      o.Name,
		Tabs:           o.Tabs,
		StartDate:      start,
		EndDate:        end,
		Status:         entitlements.GrantActive,
		AmountPaid:     amount,
		Currency:       o.Currency,
		PaymentMethod:  req.PaymentMethod,
		TransactionRef: req.TransactionRef,
	}, nil
}
