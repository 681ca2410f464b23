package entitlements

import (
	"slices"
	"time"
)

// GrantStatus is the lifecycle state of a grant as recorded by the server.
type GrantStatus string

const (
	GrantActive    GrantStatus = "active"
	GrantExpired   GrantStatus = "expired"
	GrantCancelled GrantStatus = "cancelled"
)

// SubscriptionGrant is a concrete, time-bounded entitlement issued to a user,
// either through a purchase or a free allocation.
type SubscriptionGrant struct {
	ID        string      `json:"id"`
	OfferID   string      `json:"offerId"`
	OfferName string      `json:"offerName,omitempty"`
	Tabs      []TabID     `json:"tabs"`
	StartDate time.Time   `json:"startDate"`
	EndDate   time.Time   `json:"endDate"`
	Status    GrantStatus `json:"status"`

	// AmountPaid is in minor currency units (paise for INR).
	AmountPaid     int64         `json:"amountPaid"`
	Currency       string        `json:"currency,omitempty"`
	PaymentMethod  PaymentMethod `json:"paymentMethod,omitempty"`
	TransactionRef string        `json:"transactionRef,omitempty"`
}

// Covers reports whether the grant unlocks tab.
func (g SubscriptionGrant) Covers(tab TabID) bool {
	return slices.Contains(g.Tabs, tab)
}

// ActiveAt reports whether the grant is in force at now: status active and
// now within [StartDate, EndDate).
func (g SubscriptionGrant) ActiveAt(now time.Time) bool {
	return g.Status == GrantActive && !now.Before(g.StartDate) && now.Before(g.EndDate)
}

// Clone returns a deep copy of g.
func (g SubscriptionGrant) Clone() SubscriptionGrant {
	g.Tabs = slices.Clone(g.Tabs)
	return g
}

// SubscriptionOffer is a purchasable plan definition.
type SubscriptionOffer struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Tabs         []TabID `json:"tabs"`
	DurationDays int     `json:"durationDays"`
	Price        int64   `json:"price"`
	Currency     string  `json:"currency,omitempty"`
}

// Covers reports whether purchasing the offer unlocks tab.
func (o SubscriptionOffer) Covers(tab TabID) bool {
	return slices.Contains(o.Tabs, tab)
}

// Clone returns a deep copy of o.
func (o SubscriptionOffer) Clone() SubscriptionOffer {
	o.Tabs = slices.Clone(o.Tabs)
	return o
}

func cloneGrants(in []SubscriptionGrant) []SubscriptionGrant {
	if in == nil {
		return nil
	}
	out := make([]SubscriptionGrant, len(in))
	for i, g := range in {
		out[i] = g.Clone()
	}
	return out
}

func cloneOffers(in []SubscriptionOffer) []SubscriptionOffer {
	if in == nil {
		return nil
	}
	out := make([]SubscriptionOffer, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}
