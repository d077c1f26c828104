package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage applies a percentage-based discount to the order subtotal.
	TypePercentage Type = "percentage"
	// TypeFixed applies a fixed monetary discount capped at the subtotal.
	TypeFixed Type = "fixed"
	// TypeFreeShipping waives the shipping cost. It contributes nothing to
	// the line discount amount.
	TypeFreeShipping Type = "free_shipping"
)

// Validation errors. Each maps to a distinct rejection reason so callers can
// surface the exact problem instead of a generic "invalid coupon".
var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been deactivated.
	ErrInactive = errors.New("coupon inactive")
	// ErrExpired is returned when now is outside the coupon's validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when the coupon has reached its usage limit.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrMinimumNotMet is returned when the order subtotal is below the
	// coupon's minimum order amount.
	ErrMinimumNotMet = errors.New("order amount below coupon minimum")
	// ErrNotEligible is returned when the coupon is restricted to specific
	// customers and the requester is not one of them.
	ErrNotEligible = errors.New("coupon not available to this customer")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code        string
	Description string
	Type        Type
	Value       decimal.Decimal

	// MinimumOrderAmount gates applicability on the order subtotal.
	// Nil means no minimum.
	MinimumOrderAmount *decimal.Decimal
	// MaximumDiscountAmount caps the computed discount. Nil means no cap.
	MaximumDiscountAmount *decimal.Decimal

	// UsageLimit is the global number of confirmed applications allowed.
	// Nil means unlimited. UsedCount only ever grows, and only inside the
	// checkout transaction.
	UsageLimit *int
	UsedCount  int

	// ApplicableCustomerIDs restricts the coupon to the listed customers.
	// Empty means available to everyone.
	ApplicableCustomerIDs []string

	ValidFrom  time.Time
	ValidUntil time.Time
	Active     bool
}

// Repository provides lookup and consumption of coupon rules.
type Repository interface {
	// FindByCode looks up a coupon by its code (case-insensitive).
	// Returns ErrNotFound when no coupon exists.
	FindByCode(ctx context.Context, code string) (*Rule, error)
}
