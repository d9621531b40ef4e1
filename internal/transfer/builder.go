// Package transfer decides whether a donation can be routed to a team's
// connected account and, when it can, produces the split instructions for
// the outbound payment-creation request.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"teampay/internal/fees"
	"teampay/internal/store"
)

const (
	// ReasonNoAccount: the team has no connected account configured.
	ReasonNoAccount = "no_account"
	// ReasonNotReady: onboarding exists but payments are not enabled yet.
	ReasonNotReady = "not_ready"
)

// IneligibleError is a routing decision, not a failure: the caller uses
// Reason to pick user-facing messaging.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("transfer ineligible: %s", e.Reason)
}

// Metadata echoes the inputs of the split for reconciliation.
type Metadata struct {
	TeamID                string          `json:"team_id"`
	SponsorAmount         decimal.Decimal `json:"sponsor_amount"`
	PlatformFee           decimal.Decimal `json:"platform_fee"`
	PlatformFeeMinorUnits int64           `json:"platform_fee_minor_units"`
	TotalMinorUnits       int64           `json:"total_minor_units"`
}

// Request is merged into the payment-creation call owned by the checkout
// collaborator. DestinationAmountMinorUnits is the sponsor's amount: the
// platform fee stays with the platform, it is never routed to the team.
type Request struct {
	DestinationAccountID        string   `json:"destination_account_id"`
	DestinationAmountMinorUnits int64    `json:"destination_amount_minor_units"`
	Metadata                    Metadata `json:"metadata"`
}

// Builder is read-only with respect to account state.
type Builder struct {
	store store.TeamAccountStore
	calc  *fees.Calculator
}

func NewBuilder(st store.TeamAccountStore, calc *fees.Calculator) *Builder {
	return &Builder{store: st, calc: calc}
}

// Build routes sponsorAmount to teamID's connected account. It returns an
// *IneligibleError when the team cannot receive money yet, and
// fees.ErrInvalidAmount when sponsorAmount is not positive.
func (b *Builder) Build(ctx context.Context, teamID string, sponsorAmount decimal.Decimal) (Request, error) {
	record, err := b.store.Get(ctx, teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Request{}, &IneligibleError{Reason: ReasonNoAccount}
		}
		return Request{}, fmt.Errorf("lookup team %s: %w", teamID, err)
	}
	if record.AccountID == "" {
		return Request{}, &IneligibleError{Reason: ReasonNoAccount}
	}
	if record.Status != store.StatusComplete {
		return Request{}, &IneligibleError{Reason: ReasonNotReady}
	}

	calc, err := b.calc.Calculate(sponsorAmount)
	if err != nil {
		return Request{}, err
	}

	return Request{
		DestinationAccountID:        record.AccountID,
		DestinationAmountMinorUnits: calc.SponsorMinorUnits,
		Metadata: Metadata{
			TeamID:                teamID,
			SponsorAmount:         calc.SponsorAmount,
			PlatformFee:           calc.PlatformFee,
			PlatformFeeMinorUnits: calc.FeeMinorUnits,
			TotalMinorUnits:       calc.TotalMinorUnits,
		},
	}, nil
}
