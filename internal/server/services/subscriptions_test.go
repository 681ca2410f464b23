package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/dairykeeper/internal/common"
	"github.com/dmitrijs2005/dairykeeper/internal/dbx"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/dmitrijs2005/dairykeeper/internal/server/repositories/grants"
	"github.com/dmitrijs2005/dairykeeper/internal/server/repositories/offers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeOffers struct {
	all     []entitlements.SubscriptionOffer
	listErr error
	lastTab entitlements.TabID
}

func (f *fakeOffers) List(context.Context) ([]entitlements.SubscriptionOffer, error) {
	return f.all, f.listErr
}

func (f *fakeOffers) ListByTab(_ context.Context, tab entitlements.TabID) ([]entitlements.SubscriptionOffer, error) {
	f.lastTab = tab
	var out []entitlements.SubscriptionOffer
	for _, o := range f.all {
		if o.Covers(tab) {
			out = append(out, o)
		}
	}
	return out, f.listErr
}

func (f *fakeOffers) Get(_ context.Context, id string) (*entitlements.SubscriptionOffer, error) {
	for _, o := range f.all {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeGrants struct {
	byUser    map[string][]entitlements.SubscriptionGrant
	listErr   error
	findErr   error
	createErr error
	created   []*entitlements.SubscriptionGrant

	beforeCreate func()
}

func (f *fakeGrants) Create(_ context.Context, userID string, g *entitlements.SubscriptionGrant) error {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, g)
	f.byUser[userID] = append(f.byUser[userID], *g)
	return nil
}

func (f *fakeGrants) ListByUser(_ context.Context, userID string) ([]entitlements.SubscriptionGrant, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.byUser[userID]), nil
}

func (f *fakeGrants) ListActive(_ context.Context, userID string, at time.Time) ([]entitlements.SubscriptionGrant, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []entitlements.SubscriptionGrant
	for _, g := range f.byUser[userID] {
		if g.ActiveAt(at) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrants) FindByTransactionRef(_ context.Context, userID, ref string) (*entitlements.SubscriptionGrant, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, g := range f.byUser[userID] {
		if g.TransactionRef == ref {
			return &g, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeRM struct {
	offers *fakeOffers
	grants *fakeGrants
}

func (m *fakeRM) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRM) Offers(dbx.DBTX) offers.Repository             { return m.offers }
func (m *fakeRM) Grants(dbx.DBTX) grants.Repository             { return m.grants }

var catalog = []entitlements.SubscriptionOffer{
	{ID: "selling-monthly", Name: "Milk selling", Tabs: []entitlements.TabID{entitlements.TabSelling}, DurationDays: 30, Price: 19900, Currency: "INR"},
	{ID: "all-monthly", Name: "Complete", Tabs: entitlements.Tabs(), DurationDays: 30, Price: 44900, Currency: "INR"},
}

func grant(id, offerID string, tabs []entitlements.TabID, start, end time.Time) entitlements.SubscriptionGrant {
	return entitlements.SubscriptionGrant{ID: id, OfferID: offerID, Tabs: tabs, StartDate: start, EndDate: end, Status: entitlements.GrantActive, TransactionRef: "ref-" + id}
}

func newService(t *testing.T) (*SubscriptionService, *fakeRM, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	rm := &fakeRM{
		offers: &fakeOffers{all: catalog},
		grants: &fakeGrants{byUser: map[string][]entitlements.SubscriptionGrant{}},
	}
	return NewSubscriptionService(db, rm, fixedClock{now}, nil), rm, mock
}

// --- tests ---

func TestAggregateStatus(t *testing.T) {
	s, rm, _ := newService(t)
	rm.grants.byUser["u1"] = []entitlements.SubscriptionGrant{
		grant("a", "selling-monthly", []entitlements.TabID{entitlements.TabSelling}, now.AddDate(0, 0, -1), now.AddDate(0, 0, 29)),
		grant("b", "register-monthly", []entitlements.TabID{entitlements.TabRegister}, now.AddDate(0, -2, 0), now.AddDate(0, -1, 0)),
	}

	st, err := s.AggregateStatus(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, st.ActiveCount())
	require.True(t, st.HasSelling())
	require.False(t, st.HasRegister())
	require.False(t, st.HasPurchase())

	subs := st.Subscriptions()
	require.Len(t, subs, 2, "history includes ended grants")
	require.Equal(t, entitlements.GrantActive, subs[0].Status)
	require.Equal(t, entitlements.GrantExpired, subs[1].Status)
	require.Equal(t, entitlements.GrantActive, rm.grants.byUser["u1"][1].Status, "stored grants are not modified")

	st, err = s.AggregateStatus(context.Background(), "nobody")
	require.NoError(t, err)
	require.Zero(t, st.ActiveCount())

	rm.grants.listErr = errors.New("db down")
	_, err = s.AggregateStatus(context.Background(), "u1")
	require.ErrorContains(t, err, "db down")
}

func TestTabEntitlement_PicksLatestEndingGrant(t *testing.T) {
	s, rm, _ := newService(t)
	rm.grants.byUser["u1"] = []entitlements.SubscriptionGrant{
		grant("short", "selling-monthly", []entitlements.TabID{entitlements.TabSelling}, now.AddDate(0, 0, -1), now.AddDate(0, 0, 5)),
		grant("long", "all-monthly", entitlements.Tabs(), now.AddDate(0, 0, -1), now.AddDate(0, 0, 20)),
	}

	e, err := s.TabEntitlement(context.Background(), "u1", entitlements.TabSelling)
	require.NoError(t, err)
	require.True(t, e.HasValidSubscription())
	require.Equal(t, "long", e.ActiveGrant.ID)
	require.Len(t, e.AvailableOffers, 2)
	require.Equal(t, now, e.LastFetched)

	e, err = s.TabEntitlement(context.Background(), "u2", entitlements.TabPurchase)
	require.NoError(t, err)
	require.False(t, e.HasValidSubscription())
	require.Equal(t, []string{"all-monthly"}, []string{e.AvailableOffers[0].ID})

	_, err = s.TabEntitlement(context.Background(), "u1", "ledger")
	require.ErrorIs(t, err, entitlements.ErrUnknownTab)
}

func TestOffers(t *testing.T) {
	s, rm, _ := newService(t)

	all, err := s.Offers(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	sel, err := s.Offers(context.Background(), entitlements.TabPurchase)
	require.NoError(t, err)
	require.Len(t, sel, 1)
	require.Equal(t, entitlements.TabPurchase, rm.offers.lastTab)

	_, err = s.Offers(context.Background(), "ledger")
	require.ErrorIs(t, err, entitlements.ErrUnknownTab)
}

func TestPurchase_NewGrant(t *testing.T) {
	s, rm, mock := newService(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	g, err := s.Purchase(context.Background(), "u1", entitlements.PurchaseRequest{
		OfferID: "selling-monthly", QuantityMultiplier: 2, PaymentMethod: entitlements.PaymentUPI, TransactionRef: "upi-77",
	})
	require.NoError(t, err)
	require.Equal(t, now, g.StartDate)
	require.Equal(t, now.AddDate(0, 0, 60), g.EndDate)
	require.Equal(t, int64(39800), g.AmountPaid)
	require.Equal(t, "INR", g.Currency)
	require.Equal(t, "Milk selling", g.OfferName)
	require.Equal(t, entitlements.GrantActive, g.Status)
	require.Equal(t, "upi-77", g.TransactionRef)
	_, err = uuid.Parse(g.ID)
	require.NoError(t, err)
	require.Len(t, rm.grants.created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchase_ExtendsRunningGrantOfSameOffer(t *testing.T) {
	s, rm, mock := newService(t)
	runningEnd := now.AddDate(0, 0, 10)
	rm.grants.byUser["u1"] = []entitlements.SubscriptionGrant{
		grant("a", "selling-monthly", []entitlements.TabID{entitlements.TabSelling}, now.AddDate(0, 0, -20), runningEnd),
		grant("b", "all-monthly", entitlements.Tabs(), now.AddDate(0, 0, -1), now.AddDate(0, 0, 29)),
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	g, err := s.Purchase(context.Background(), "u1", entitlements.PurchaseRequest{
		OfferID: "selling-monthly", QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentFree,
	})
	require.NoError(t, err)
	require.Equal(t, runningEnd, g.StartDate)
	require.Equal(t, runningEnd.AddDate(0, 0, 30), g.EndDate)
	require.Zero(t, g.AmountPaid)
	require.NotEmpty(t, g.TransactionRef)
}

func TestPurchase_RepeatedTransactionRefIsIdempotent(t *testing.T) {
	s, rm, mock := newService(t)
	prior := grant("a", "selling-monthly", []entitlements.TabID{entitlements.TabSelling}, now, now.AddDate(0, 0, 30))
	rm.grants.byUser["u1"] = []entitlements.SubscriptionGrant{prior}
	mock.ExpectBegin()
	mock.ExpectCommit()

	g, err := s.Purchase(context.Background(), "u1", entitlements.PurchaseRequest{
		OfferID: "selling-monthly", QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentCash, TransactionRef: prior.TransactionRef,
	})
	require.NoError(t, err)
	require.Equal(t, "a", g.ID)
	require.Empty(t, rm.grants.created)
}

func TestPurchase_ConcurrentSameReferenceReturnsWinner(t *testing.T) {
	s, rm, mock := newService(t)
	winner := grant("w", "selling-monthly", []entitlements.TabID{entitlements.TabSelling}, now, now.AddDate(0, 0, 30))
	winner.TransactionRef = "upi-9"
	rm.grants.beforeCreate = func() {
		rm.grants.byUser["u1"] = append(rm.grants.byUser["u1"], winner)
	}
	rm.grants.createErr = fmt.Errorf("db error: %w", common.ErrorAlreadyExists)
	mock.ExpectBegin()
	mock.ExpectRollback()

	g, err := s.Purchase(context.Background(), "u1", entitlements.PurchaseRequest{
		OfferID: "selling-monthly", QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentUPI, TransactionRef: "upi-9",
	})
	require.NoError(t, err)
	require.Equal(t, "w", g.ID)
	require.Empty(t, rm.grants.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewGrant_RejectsOverflow(t *testing.T) {
	o := &entitlements.SubscriptionOffer{ID: "all-yearly", Price: 49900, DurationDays: 30}
	_, err := newGrant(o, entitlements.PurchaseRequest{QuantityMultiplier: 1 << 30, PaymentMethod: entitlements.PaymentCash}, now)
	require.ErrorIs(t, err, entitlements.ErrInvalidPurchase)

	o = &entitlements.SubscriptionOffer{ID: "gold", Price: math.MaxInt64 / 2, DurationDays: 30}
	_, err = newGrant(o, entitlements.PurchaseRequest{QuantityMultiplier: 3, PaymentMethod: entitlements.PaymentCash}, now)
	require.ErrorIs(t, err, entitlements.ErrInvalidPurchase)

	o = &entitlements.SubscriptionOffer{ID: "broken", Price: 100}
	_, err = newGrant(o, entitlements.PurchaseRequest{QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentCash}, now)
	require.ErrorIs(t, err, entitlements.ErrInvalidPurchase)

	o = &entitlements.SubscriptionOffer{ID: "all-yearly", Price: 449900, DurationDays: 365}
	g, err := newGrant(o, entitlements.PurchaseRequest{QuantityMultiplier: entitlements.MaxQuantityMultiplier, PaymentMethod: entitlements.PaymentCard}, now)
	require.NoError(t, err)
	require.Equal(t, int64(449900*entitlements.MaxQuantityMultiplier), g.AmountPaid)
	require.True(t, g.EndDate.After(g.StartDate))
}

func TestPurchase_Failures(t *testing.T) {
	tests := []struct {
		name    string
		req     entitlements.PurchaseRequest
		setup   func(*fakeRM, sqlmock.Sqlmock)
		wantErr error
		wantMsg string
	}{
		{
			name:    "invalid request touches nothing",
			req:     entitlements.PurchaseRequest{OfferID: "selling-monthly"},
			setup:   func(*fakeRM, sqlmock.Sqlmock) {},
			wantErr: entitlements.ErrInvalidPurchase,
		},
		{
			name:    "multiplier above cap touches nothing",
			req:     entitlements.PurchaseRequest{OfferID: "selling-monthly", QuantityMultiplier: 1 << 30, PaymentMethod: entitlements.PaymentCash},
			setup:   func(*fakeRM, sqlmock.Sqlmock) {},
			wantErr: entitlements.ErrInvalidPurchase,
		},
		{
			name: "overflowing price rolls back",
			req:  entitlements.PurchaseRequest{OfferID: "gold", QuantityMultiplier: 3, PaymentMethod: entitlements.PaymentCash},
			setup: func(rm *fakeRM, m sqlmock.Sqlmock) {
				rm.offers.all = append(slices.Clone(catalog), entitlements.SubscriptionOffer{ID: "gold", Tabs: entitlements.Tabs(), DurationDays: 30, Price: math.MaxInt64 / 2})
				m.ExpectBegin()
				m.ExpectRollback()
			},
			wantErr: entitlements.ErrInvalidPurchase,
		},
		{
			name: "unknown offer rolls back",
			req:  entitlements.PurchaseRequest{OfferID: "nope", QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentCash},
			setup: func(_ *fakeRM, m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback()
			},
			wantErr: common.ErrorNotFound,
		},
		{
			name: "lookup error rolls back",
			req:  entitlements.PurchaseRequest{OfferID: "selling-monthly", QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentCash},
			setup: func(rm *fakeRM, m sqlmock.Sqlmock) {
				rm.grants.findErr = errors.New("db down")
				m.ExpectBegin()
				m.ExpectRollback()
			},
			wantMsg: "error searching transaction",
		},
		{
			name: "insert error rolls back",
			req:  entitlements.PurchaseRequest{OfferID: "selling-monthly", QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentCash},
			setup: func(rm *fakeRM, m sqlmock.Sqlmock) {
				rm.grants.createErr = errors.New("duplicate key")
				m.ExpectBegin()
				m.ExpectRollback()
			},
			wantMsg: "error creating grant",
		},
		{
			name: "begin error",
			req:  entitlements.PurchaseRequest{OfferID: "selling-monthly", QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentCash},
			setup: func(_ *fakeRM, m sqlmock.Sqlmock) {
				m.ExpectBegin().WillReturnError(errors.New("no conn"))
			},
			wantMsg: "no conn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rm, mock := newService(t)
			tt.setup(rm, mock)

			_, err := s.Purchase(context.Background(), "u1", tt.req)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				require.ErrorContains(t, err, tt.wantMsg)
			}
			require.Empty(t, rm.grants.created)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
