// Package fees computes the platform fee taken on top of a sponsor's
// donation. All arithmetic is exact decimal; conversion to integer minor
// units happens exactly once per amount.
package fees

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNegativeFee   = errors.New("fee policy produced a negative fee")
)

// Policy maps a donation amount to the platform fee, both in major
// currency units. Policies are injected configuration, not arithmetic
// owned by the calculator.
type Policy interface {
	Fee(amount decimal.Decimal) decimal.Decimal
}

// FlatFee charges the same fee regardless of amount.
type FlatFee struct {
	Amount decimal.Decimal
}

func (f FlatFee) Fee(decimal.Decimal) decimal.Decimal { return f.Amount }

// PercentFee charges a proportional fee, e.g. Rate 0.05 for 5%.
type PercentFee struct {
	Rate decimal.Decimal
}

func (p PercentFee) Fee(amount decimal.Decimal) decimal.Decimal { return amount.Mul(p.Rate) }

// Tier is one band of a TieredFee schedule. A zero UpTo means unbounded.
type Tier struct {
	UpTo decimal.Decimal
	Rate decimal.Decimal
}

// TieredFee applies the rate of the first tier whose UpTo the amount does
// not exceed. Tiers must be ordered by ascending UpTo with an unbounded
// final tier.
type TieredFee struct {
	Tiers []Tier
}

func (t TieredFee) Fee(amount decimal.Decimal) decimal.Decimal {
	for _, tier := range t.Tiers {
		if tier.UpTo.IsZero() || amount.LessThanOrEqual(tier.UpTo) {
			return amount.Mul(tier.Rate)
		}
	}
	return decimal.Zero
}

// Calculation is the full fee breakdown for one donation. The decimal
// fields satisfy Total = SponsorAmount + PlatformFee exactly, and the
// minor-unit fields satisfy TotalMinorUnits = SponsorMinorUnits +
// FeeMinorUnits exactly; each decimal is rounded once and never again.
type Calculation struct {
	SponsorAmount decimal.Decimal
	PlatformFee   decimal.Decimal
	Total         decimal.Decimal

	SponsorMinorUnits int64
	FeeMinorUnits     int64
	TotalMinorUnits   int64
}

type Calculator struct {
	policy   Policy
	exponent int32
}

// NewCalculator builds a calculator for a currency with the given
// minor-unit exponent (2 for cents/øre).
func NewCalculator(policy Policy, exponent int32) *Calculator {
	return &Calculator{policy: policy, exponent: exponent}
}

func (c *Calculator) Calculate(sponsorAmount decimal.Decimal) (Calculation, error) {
	if sponsorAmount.Sign() <= 0 {
		return Calculation{}, ErrInvalidAmount
	}

	fee := c.policy.Fee(sponsorAmount)
	if fee.Sign() < 0 {
		return Calculation{}, ErrNegativeFee
	}

	sponsorMinor := c.MinorUnits(sponsorAmount)
	feeMinor := c.MinorUnits(fee)

	return Calculation{
		SponsorAmount:     sponsorAmount,
		PlatformFee:       fee,
		Total:             sponsorAmount.Add(fee),
		SponsorMinorUnits: sponsorMinor,
		FeeMinorUnits:     feeMinor,
		TotalMinorUnits:   sponsorMinor + feeMinor,
	}, nil
}

// MinorUnits converts a major-unit amount to integer minor units with a
// single round-half-away-from-zero step at the calculator's exponent.
func (c *Calculator) MinorUnits(d decimal.Decimal) int64 {
	return d.Round(c.exponent).Shift(c.exponent).IntPart()
}
