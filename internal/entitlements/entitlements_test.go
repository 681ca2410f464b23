package entitlements

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTab(t *testing.T) {
	tests := []struct {
		in      string
		want    TabID
		wantErr bool
	}{
		{in: "purchase", want: TabPurchase},
		{in: " Selling ", want: TabSelling},
		{in: "REGISTER", want: TabRegister},
		{in: "ledger", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTab(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownTab)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTabs_ReturnsCopy(t *testing.T) {
	tabs := Tabs()
	tabs[0] = "mutated"
	assert.Equal(t, TabPurchase, Tabs()[0])
}

func TestNewAggregateStatus_DerivesProjections(t *testing.T) {
	s := NewAggregateStatus(2, []TabID{TabSelling, TabPurchase, TabSelling, "bogus"}, nil)

	assert.True(t, s.HasAnySubscription())
	assert.Equal(t, 2, s.ActiveCount())
	assert.True(t, s.HasPurchase())
	assert.True(t, s.HasSelling())
	assert.False(t, s.HasRegister())
	assert.Equal(t, []TabID{TabPurchase, TabSelling}, s.CoveredTabs())
}

func TestNewAggregateStatus_ActiveCountFromGrants(t *testing.T) {
	subs := []SubscriptionGrant{
		{ID: "g1", Status: GrantActive},
		{ID: "g2", Status: GrantExpired},
		{ID: "g3", Status: GrantActive},
	}
	s := NewAggregateStatus(0, nil, subs)
	assert.Equal(t, 2, s.ActiveCount())
	assert.True(t, s.HasAnySubscription())

	empty := NewAggregateStatus(-3, nil, nil)
	assert.Equal(t, 0, empty.ActiveCount())
	assert.False(t, empty.HasAnySubscription())
}

func TestAggregateStatus_NilIsClosed(t *testing.T) {
	var s *AggregateStatus
	assert.False(t, s.HasAnySubscription())
	assert.False(t, s.HasTab(TabPurchase))
	assert.Nil(t, s.CoveredTabs())
	assert.Nil(t, s.Clone())
}

func TestAggregateStatus_UnmarshalMergesFlagsAndList(t *testing.T) {
	payload := `{
		"hasAnySubscription": true,
		"activeCount": 1,
		"coveredTabs": ["purchase"],
		"hasPurchase": false,
		"hasSelling": false,
		"hasRegister": true,
		"subscriptions": [{"id": "g1", "offerId": "o1", "tabs": ["purchase", "register"], "status": "active"}]
	}`

	var s AggregateStatus
	require.NoError(t, json.Unmarshal([]byte(payload), &s))

	assert.True(t, s.HasPurchase())
	assert.False(t, s.HasSelling())
	assert.True(t, s.HasRegister())
	require.Len(t, s.Subscriptions(), 1)
	assert.Equal(t, "g1", s.Subscriptions()[0].ID)
}

func TestAggregateStatus_MarshalKeepsFlagsInAgreement(t *testing.T) {
	s := NewAggregateStatus(1, []TabID{TabSelling}, nil)

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var w map[string]any
	require.NoError(t, json.Unmarshal(b, &w))
	assert.Equal(t, true, w["hasAnySubscription"])
	assert.Equal(t, false, w["hasPurchase"])
	assert.Equal(t, true, w["hasSelling"])
	assert.Equal(t, false, w["hasRegister"])
	assert.Equal(t, []any{"selling"}, w["coveredTabs"])
	assert.Equal(t, []any{}, w["subscriptions"])
}

func TestAggregateStatus_CloneIsDeep(t *testing.T) {
	s := NewAggregateStatus(1, []TabID{TabPurchase}, []SubscriptionGrant{{ID: "g1", Tabs: []TabID{TabPurchase}}})
	c := s.Clone()
	c.covered[TabSelling] = true
	c.subscriptions[0].Tabs[0] = TabRegister

	assert.False(t, s.HasSelling())
	assert.Equal(t, TabPurchase, s.Subscriptions()[0].Tabs[0])
}

func TestGrant_ActiveAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := SubscriptionGrant{Status: GrantActive, StartDate: start, EndDate: start.Add(24 * time.Hour)}

	assert.False(t, g.ActiveAt(start.Add(-time.Second)))
	assert.True(t, g.ActiveAt(start))
	assert.True(t, g.ActiveAt(start.Add(23*time.Hour)))
	assert.False(t, g.ActiveAt(start.Add(24*time.Hour)))

	g.Status = GrantCancelled
	assert.False(t, g.ActiveAt(start.Add(time.Hour)))
}

func TestTabEntitlement_DerivedFields(t *testing.T) {
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	e := &TabEntitlement{Tab: TabSelling, ActiveGrant: &SubscriptionGrant{ID: "g1", EndDate: end}}

	assert.True(t, e.HasValidSubscription())
	exp, ok := e.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, end, exp)

	var none *TabEntitlement
	assert.False(t, none.HasValidSubscription())
	_, ok = none.ExpiresAt()
	assert.False(t, ok)
}

func TestTabEntitlement_NormalizeDropsEndedGrant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ended := &TabEntitlement{ActiveGrant: &SubscriptionGrant{EndDate: now}}
	ended.Normalize(now)
	assert.False(t, ended.HasValidSubscription())

	live := &TabEntitlement{ActiveGrant: &SubscriptionGrant{EndDate: now.Add(time.Minute)}}
	live.Normalize(now)
	assert.True(t, live.HasValidSubscription())
}

func TestTabEntitlement_UnmarshalFailsClosed(t *testing.T) {
	var e TabEntitlement
	payload := `{"tab":"purchase","hasValidSubscription":false,"activeGrant":{"id":"g1","endDate":"2030-01-01T00:00:00Z"}}`
	require.NoError(t, json.Unmarshal([]byte(payload), &e))
	assert.False(t, e.HasValidSubscription())

	payload = `{"tab":"purchase","hasValidSubscription":true,"activeGrant":null}`
	require.NoError(t, json.Unmarshal([]byte(payload), &e))
	assert.False(t, e.HasValidSubscription())
}

func TestTabEntitlement_UnmarshalTakesExpiresAtForMissingEndDate(t *testing.T) {
	var e TabEntitlement
	payload := `{"tab":"register","hasValidSubscription":true,"activeGrant":{"id":"g1"},"expiresAt":"2030-01-01T00:00:00Z"}`
	require.NoError(t, json.Unmarshal([]byte(payload), &e))

	exp, ok := e.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), exp)
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 5, 10, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Status:          NewAggregateStatus(1, []TabID{TabPurchase}, nil),
		StatusFetchedAt: at,
		PerTab: map[TabID]*TabEntitlement{
			TabPurchase: {
				Tab:             TabPurchase,
				ActiveGrant:     &SubscriptionGrant{ID: "g1", Tabs: []TabID{TabPurchase}, EndDate: at.Add(720 * time.Hour), Status: GrantActive},
				AvailableOffers: []SubscriptionOffer{{ID: "o1", Tabs: []TabID{TabPurchase}, DurationDays: 30, Price: 19900}},
				LastFetched:     at,
			},
		},
		LastFetched: at,
	}

	b, err := json.Marshal(snap)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(b, &got))

	assert.True(t, got.Status.HasPurchase())
	assert.Equal(t, 1, got.Status.ActiveCount())
	assert.True(t, got.StatusFetchedAt.Equal(at))
	require.Contains(t, got.PerTab, TabPurchase)
	assert.True(t, got.PerTab[TabPurchase].HasValidSubscription())
	assert.Equal(t, "o1", got.PerTab[TabPurchase].AvailableOffers[0].ID)
	assert.True(t, got.LastFetched.Equal(at))
}

func TestSnapshot_IsEmptyAndClone(t *testing.T) {
	assert.True(t, Snapshot{}.IsEmpty())

	s := Snapshot{PerTab: map[TabID]*TabEntitlement{TabSelling: {Tab: TabSelling}}}
	assert.False(t, s.IsEmpty())

	c := s.Clone()
	c.PerTab[TabSelling].Tab = TabRegister
	assert.Equal(t, TabSelling, s.PerTab[TabSelling].Tab)
}

func TestPurchaseRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  PurchaseRequest
		ok   bool
	}{
		{name: "valid", req: PurchaseRequest{OfferID: "o1", QuantityMultiplier: 2, PaymentMethod: PaymentUPI}, ok: true},
		{name: "missing offer", req: PurchaseRequest{QuantityMultiplier: 1, PaymentMethod: PaymentCash}},
		{name: "zero multiplier", req: PurchaseRequest{OfferID: "o1", PaymentMethod: PaymentCash}},
		{name: "ten years of monthly", req: PurchaseRequest{OfferID: "o1", QuantityMultiplier: MaxQuantityMultiplier, PaymentMethod: PaymentCash}, ok: true},
		{name: "multiplier above cap", req: PurchaseRequest{OfferID: "o1", QuantityMultiplier: MaxQuantityMultiplier + 1, PaymentMethod: PaymentCash}},
		{name: "huge multiplier", req: PurchaseRequest{OfferID: "o1", QuantityMultiplier: 1 << 30, PaymentMethod: PaymentCash}},
		{name: "bad method", req: PurchaseRequest{OfferID: "o1", QuantityMultiplier: 1, PaymentMethod: "barter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPurchase))
		})
	}
}

func TestTabList(t *testing.T) {
	require.Equal(t, "purchase,register", FormatTabList([]TabID{TabRegister, TabPurchase, TabRegister, "ledger"}))
	require.Equal(t, "", FormatTabList(nil))

	got, err := ParseTabList(" Register, purchase,,")
	require.NoError(t, err)
	require.Equal(t, []TabID{TabPurchase, TabRegister}, got)

	_, err = ParseTabList("purchase,ledger")
	require.ErrorIs(t, err, ErrUnknownTab)
}
