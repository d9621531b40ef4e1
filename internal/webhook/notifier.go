package webhook

import "context"

// Correlation carries the identifiers a downstream collaborator needs to
// match a platform object back to an order and team. Fields may be empty;
// the platform does not guarantee metadata on every object.
type Correlation struct {
	ObjectID string
	TeamID   string
	OrderID  string
}

// Notifier receives the side effects of event processing that are owned by
// external collaborators: status refreshes, order fulfillment and
// reconciliation. Implementations must be safe for concurrent use.
type Notifier interface {
	StatusRefreshRequested(ctx context.Context, teamID, accountID string)
	PaymentSucceeded(ctx context.Context, c Correlation)
	TransferCreated(ctx context.Context, c Correlation)
}

type NopNotifier struct{}

func (NopNotifier) StatusRefreshRequested(context.Context, string, string) {}
func (NopNotifier) PaymentSucceeded(context.Context, Correlation)          {}
func (NopNotifier) TransferCreated(context.Context, Correlation)           {}

// LogNotifier records notifications on the service log. It stands in until
// a real refresh/fulfillment collaborator is wired up.
type LogNotifier struct {
	Logger Logger
}

func (n LogNotifier) StatusRefreshRequested(_ context.Context, teamID, accountID string) {
	n.Logger.Printf("status refresh requested: team=%s account=%s", teamID, accountID)
}

func (n LogNotifier) PaymentSucceeded(_ context.Context, c Correlation) {
	n.Logger.Printf("payment succeeded: object=%s team=%s order=%s", c.ObjectID, c.TeamID, c.OrderID)
}

func (n LogNotifier) TransferCreated(_ context.Context, c Correlation) {
	n.Logger.Printf("transfer created: object=%s team=%s order=%s", c.ObjectID, c.TeamID, c.OrderID)
}
