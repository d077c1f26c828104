package coupon

import (
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate checks whether the rule may be applied by the given customer to an
// order of the given subtotal at the given instant. It is a pure function:
// same inputs always yield the same verdict, and nothing is mutated.
// Consumption of a use (used_count increment) is the checkout transaction's
// job, not the engine's.
func Validate(rule *Rule, now time.Time, customerID string, orderAmount decimal.Decimal) error {
	if !rule.Active {
		return ErrInactive
	}
	if now.Before(rule.ValidFrom) || now.After(rule.ValidUntil) {
		return ErrExpired
	}
	if rule.UsageLimit != nil && rule.UsedCount >= *rule.UsageLimit {
		return ErrExhausted
	}
	if len(rule.ApplicableCustomerIDs) > 0 && !slices.Contains(rule.ApplicableCustomerIDs, customerID) {
		return ErrNotEligible
	}
	if rule.MinimumOrderAmount != nil && orderAmount.LessThan(*rule.MinimumOrderAmount) {
		return ErrMinimumNotMet
	}
	return nil
}

// Discount computes the discount amount for the rule against the given order
// subtotal. It does not re-run eligibility checks; call Validate first.
// The result is rounded to 2 decimal places, clamped to the rule's maximum
// discount when set, and never exceeds the subtotal.
func Discount(rule *Rule, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal

	switch rule.Type {
	case TypePercentage:
		amount = orderAmount.Mul(rule.Value).Div(hundred)
	case TypeFixed:
		amount = rule.Value
	case TypeFreeShipping:
		// Shipping is waived as a side channel at checkout; the line
		// discount stays zero.
		return decimal.Zero, nil
	default:
		return decimal.Zero, errors.Errorf("unsupported coupon type: %q", rule.Type)
	}

	if rule.MaximumDiscountAmount != nil && amount.GreaterThan(*rule.MaximumDiscountAmount) {
		amount = *rule.MaximumDiscountAmount
	}
	amount = decimal.Min(amount, orderAmount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2), nil
}
