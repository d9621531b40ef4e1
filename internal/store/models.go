package store

import "time"

const (
	StatusNotStarted = "not_started"
	StatusPending    = "pending"
	StatusComplete   = "complete"
)

// TeamAccount tracks a team's connected account on the payment platform
// and the onboarding state derived from the platform's notifications.
type TeamAccount struct {
	TeamID           string
	AccountID        string
	Status           string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	LastCheckedAt    time.Time
	CreatedAt        time.Time
}

type UpsertStatusInput struct {
	TeamID           string
	Status           string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	ObservedAt       time.Time
}
