// Package webhook verifies and applies the payment platform's asynchronous
// event notifications. Events may be redelivered and arrive out of order;
// nothing in an event is trusted before its signature checks out.
package webhook

import "encoding/json"

const (
	TypeAccountUpdated      = "account.updated"
	TypeAccountAuthorized   = "account.application.authorized"
	TypeAccountDeauthorized = "account.application.deauthorized"
	TypeCapabilityUpdated   = "capability.updated"
	TypePaymentSucceeded    = "payment_intent.succeeded"
	TypeTransferCreated     = "transfer.created"
)

// Event is one verified platform notification. Account names the connected
// account the event was emitted for; Created is the platform's emission
// time in unix seconds.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Account string    `json:"account,omitempty"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

// AccountObject is the data.object shape of account.updated events.
type AccountObject struct {
	ID               string `json:"id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// CapabilityObject is the data.object shape of capability.updated events.
type CapabilityObject struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Account string `json:"account"`
}

// PaymentIntentObject carries the correlation metadata of
// payment_intent.succeeded events.
type PaymentIntentObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// TransferObject carries the correlation metadata of transfer.created
// events.
type TransferObject struct {
	ID          string            `json:"id"`
	Destination string            `json:"destination"`
	Metadata    map[string]string `json:"metadata"`
}
