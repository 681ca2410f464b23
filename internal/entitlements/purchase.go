package entitlements

import (
	"fmt"
	"strings"
)

// PaymentMethod is how a purchase was paid for.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentUPI          PaymentMethod = "upi"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentFree         PaymentMethod = "free"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentUPI, PaymentCard, PaymentBankTransfer, PaymentFree:
		return true
	}
	return false
}

// MaxQuantityMultiplier caps how many periods one purchase may buy.
const MaxQuantityMultiplier = 120

// PurchaseRequest asks the entitlement source to grant an offer.
// QuantityMultiplier buys that many consecutive periods of the offer.
type PurchaseRequest struct {
	OfferID            string        `json:"offerId"`
	QuantityMultiplier int           `json:"quantityMultiplier"`
	PaymentMethod      PaymentMethod `json:"paymentMethod"`
	TransactionRef     string        `json:"transactionRef,omitempty"`
}

// Validate checks the request; failures wrap ErrInvalidPurchase.
func (r PurchaseRequest) Validate() error {
	if strings.TrimSpace(r.OfferID) == "" {
		return fmt.Errorf("%w: offer id is required", ErrInvalidPurchase)
	}
	if r.QuantityMultiplier < 1 {
		return fmt.Errorf("%w: quantity multiplier must be at least 1, got %d", ErrInvalidPurchase, r.QuantityMultiplier)
	}
	if r.QuantityMultiplier > MaxQuantityMultiplier {
		return fmt.Errorf("%w: quantity multiplier must be at most %d, got %d", ErrInvalidPurchase, MaxQuantityMultiplier, r.QuantityMultiplier)
	}
	if !r.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidPurchase, r.PaymentMethod)
	}
	return nil
}
