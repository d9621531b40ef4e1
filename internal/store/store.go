package store

import (
	"context"
	"time"
)

// TeamAccountStore is the only writer surface for team account state.
// Mutations are atomic per team and last-write-wins keyed by observed_at:
// an observation older than the stored last_checked_at leaves status and
// capability flags untouched and returns the current record.
type TeamAccountStore interface {
	Get(ctx context.Context, teamID string) (TeamAccount, error)
	FindByAccountID(ctx context.Context, accountID string) (TeamAccount, error)

	// AssignAccount is the single creation path: it attaches a platform
	// account id to a team, creating the record when onboarding starts.
	// Returns ErrAccountTaken when the account id belongs to another team.
	AssignAccount(ctx context.Context, teamID, accountID string, observedAt time.Time) (TeamAccount, error)

	// UpsertStatus applies a status observation to an existing record.
	// Returns ErrNotFound when the team has no record.
	UpsertStatus(ctx context.Context, input UpsertStatusInput) (TeamAccount, error)

	// ClearAccount is the deauthorization transition: it wipes the account
	// id, resets status to not_started and clears capability flags. The
	// record itself is kept.
	ClearAccount(ctx context.Context, teamID string, observedAt time.Time) (TeamAccount, error)
}
