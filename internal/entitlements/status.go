package entitlements

import (
	"encoding/json"
)

// AggregateStatus summarizes every entitlement a user currently holds.
//
// The per-tab coverage is kept in a single map built once at construction or
// decode time; HasPurchase, HasSelling, HasRegister and CoveredTabs are
// projections of it, so they cannot disagree with each other.
type AggregateStatus struct {
	activeCount   int
	covered       map[TabID]bool
	subscriptions []SubscriptionGrant
}

// NewAggregateStatus builds a normalized status. A negative activeCount is
// treated as zero; if it is zero the number of active grants in subs is used.
func NewAggregateStatus(activeCount int, covered []TabID, subs []SubscriptionGrant) *AggregateStatus {
	s := &AggregateStatus{
		covered:       tabSet(covered),
		subscriptions: cloneGrants(subs),
	}
	s.activeCount = normalizeActiveCount(activeCount, s.subscriptions)
	return s
}

func normalizeActiveCount(n int, subs []SubscriptionGrant) int {
	if n > 0 {
		return n
	}
	active := 0
	for _, g := range subs {
		if g.Status == GrantActive {
			active++
		}
	}
	return active
}

// HasAnySubscription is true exactly when ActiveCount is positive.
func (s *AggregateStatus) HasAnySubscription() bool {
	return s != nil && s.activeCount > 0
}

func (s *AggregateStatus) ActiveCount() int {
	if s == nil {
		return 0
	}
	return s.activeCount
}

// HasTab reports whether the status covers tab. Nil status covers nothing.
func (s *AggregateStatus) HasTab(tab TabID) bool {
	return s != nil && s.covered[tab]
}

func (s *AggregateStatus) HasPurchase() bool { return s.HasTab(TabPurchase) }
func (s *AggregateStatus) HasSelling() bool  { return s.HasTab(TabSelling) }
func (s *AggregateStatus) HasRegister() bool { return s.HasTab(TabRegister) }

// CoveredTabs returns the covered tabs in display order.
func (s *AggregateStatus) CoveredTabs() []TabID {
	if s == nil {
		return nil
	}
	return orderedTabs(s.covered)
}

// Subscriptions returns a copy of the user's grant list.
func (s *AggregateStatus) Subscriptions() []SubscriptionGrant {
	if s == nil {
		return nil
	}
	return cloneGrants(s.subscriptions)
}

// Clone returns a deep copy of s.
func (s *AggregateStatus) Clone() *AggregateStatus {
	if s == nil {
		return nil
	}
	covered := make(map[TabID]bool, len(s.covered))
	for k, v := range s.covered {
		covered[k] = v
	}
	return &AggregateStatus{
		activeCount:   s.activeCount,
		covered:       covered,
		subscriptions: cloneGrants(s.subscriptions),
	}
}

type aggregateStatusJSON struct {
	HasAnySubscription bool                `json:"hasAnySubscription"`
	ActiveCount        int                 `json:"activeCount"`
	CoveredTabs        []TabID             `json:"coveredTabs"`
	HasPurchase        bool                `json:"hasPurchase"`
	HasSelling         bool                `json:"hasSelling"`
	HasRegister        bool                `json:"hasRegister"`
	Subscriptions      []SubscriptionGrant `json:"subscriptions"`
}

// MarshalJSON emits the denormalized wire form, including the per-tab booleans
// for consumers that still read them.
func (s *AggregateStatus) MarshalJSON() ([]byte, error) {
	subs := s.subscriptions
	if subs == nil {
		subs = []SubscriptionGrant{}
	}
	return json.Marshal(aggregateStatusJSON{
		HasAnySubscription: s.HasAnySubscription(),
		ActiveCount:        s.activeCount,
		CoveredTabs:        s.CoveredTabs(),
		HasPurchase:        s.HasPurchase(),
		HasSelling:         s.HasSelling(),
		HasRegister:        s.HasRegister(),
		Subscriptions:      subs,
	})
}

// UnmarshalJSON accepts the wire form. A tab counts as covered if it is listed
// in coveredTabs or its has<Tab> flag is set.
func (s *AggregateStatus) UnmarshalJSON(data []byte) error {
	var w aggregateStatusJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	tabs := append([]TabID(nil), w.CoveredTabs...)
	if w.HasPurchase {
		tabs = append(tabs, TabPurchase)
	}
	if w.HasSelling {
		tabs = append(tabs, TabSelling)
	}
	if w.HasRegister {
		tabs = append(tabs, TabRegister)
	}
	*s = *NewAggregateStatus(w.ActiveCount, tabs, w.Subscriptions)
	return nil
}
