package entitlements

import (
	"encoding/json"
	"time"
)

// TabEntitlement is the fine-grained entitlement of a single tab.
//
// HasValidSubscription and ExpiresAt are derived from ActiveGrant, which keeps
// the invariant hasValidSubscription == (activeGrant != nil) and
// expiresAt == activeGrant.endDate true by construction.
type TabEntitlement struct {
	Tab             TabID
	ActiveGrant     *SubscriptionGrant
	AvailableOffers []SubscriptionOffer

	// LastFetched is the wall-clock time of the last successful refresh of this entry.
	LastFetched time.Time
}

// HasValidSubscription reports whether a grant currently satisfies the tab.
func (e *TabEntitlement) HasValidSubscription() bool {
	return e != nil && e.ActiveGrant != nil
}

// ExpiresAt returns the end date of the active grant, if any.
func (e *TabEntitlement) ExpiresAt() (time.Time, bool) {
	if !e.HasValidSubscription() {
		return time.Time{}, false
	}
	return e.ActiveGrant.EndDate, true
}

// Normalize drops an active grant that has already ended at now, so a fetched
// entitlement never claims access through an expired grant.
func (e *TabEntitlement) Normalize(now time.Time) {
	if e == nil || e.ActiveGrant == nil {
		return
	}
	if !e.ActiveGrant.EndDate.After(now) {
		e.ActiveGrant = nil
	}
}

// Clone returns a deep copy of e.
func (e *TabEntitlement) Clone() *TabEntitlement {
	if e == nil {
		return nil
	}
	out := &TabEntitlement{
		Tab:             e.Tab,
		AvailableOffers: cloneOffers(e.AvailableOffers),
		LastFetched:     e.LastFetched,
	}
	if e.ActiveGrant != nil {
		g := e.ActiveGrant.Clone()
		out.ActiveGrant = &g
	}
	return out
}

type tabEntitlementJSON struct {
	Tab                  TabID               `json:"tab"`
	HasValidSubscription bool                `json:"hasValidSubscription"`
	ActiveGrant          *SubscriptionGrant  `json:"activeGrant"`
	AvailableOffers      []SubscriptionOffer `json:"availableOffers"`
	ExpiresAt            *time.Time          `json:"expiresAt"`
	LastFetched          time.Time           `json:"lastFetched,omitempty"`
}

func (e *TabEntitlement) MarshalJSON() ([]byte, error) {
	w := tabEntitlementJSON{
		Tab:                  e.Tab,
		HasValidSubscription: e.HasValidSubscription(),
		ActiveGrant:          e.ActiveGrant,
		AvailableOffers:      e.AvailableOffers,
		LastFetched:          e.LastFetched,
	}
	if w.AvailableOffers == nil {
		w.AvailableOffers = []SubscriptionOffer{}
	}
	if exp, ok := e.ExpiresAt(); ok {
		w.ExpiresAt = &exp
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the wire form and fails closed: a grant is kept only if
// the payload also claims hasValidSubscription. A grant without an end date
// takes it from expiresAt.
func (e *TabEntitlement) UnmarshalJSON(data []byte) error {
	var w tabEntitlementJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := TabEntitlement{
		Tab:             w.Tab,
		AvailableOffers: w.AvailableOffers,
		LastFetched:     w.LastFetched,
	}
	if w.HasValidSubscription && w.ActiveGrant != nil {
		g := *w.ActiveGrant
		if g.EndDate.IsZero() && w.ExpiresAt != nil {
			g.EndDate = *w.ExpiresAt
		}
		out.ActiveGrant = &g
	}
	*e = out
	return nil
}
