package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"teampay/internal/store"
)

// CapabilityCardPayments is the capability whose activation triggers a full
// account-status refresh request.
const CapabilityCardPayments = "card_payments"

const capabilityStatusActive = "active"

type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type handlerFunc func(ctx context.Context, evt Event) error

// Processor applies verified events to the team account store. Every
// transition is a function of the event's account snapshot, never a delta,
// so redelivered events converge on the same record. Unrecognized event
// types are accepted and dropped.
type Processor struct {
	store    store.TeamAccountStore
	notifier Notifier
	logger   Logger
	now      func() time.Time

	handlers map[string]handlerFunc
}

func NewProcessor(st store.TeamAccountStore, notifier Notifier, logger Logger) *Processor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	p := &Processor{
		store:    st,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	p.handlers = map[string]handlerFunc{
		TypeAccountUpdated:      p.handleAccountUpdated,
		TypeAccountAuthorized:   p.handleAccountAuthorized,
		TypeAccountDeauthorized: p.handleAccountDeauthorized,
		TypeCapabilityUpdated:   p.handleCapabilityUpdated,
		TypePaymentSucceeded:    p.handlePaymentSucceeded,
		TypeTransferCreated:     p.handleTransferCreated,
	}
	return p
}

// Process dispatches evt to its handler. A nil return acknowledges the
// delivery; any other error tells the transport to answer non-2xx so the
// platform redelivers.
func (p *Processor) Process(ctx context.Context, evt Event) error {
	handler, ok := p.handlers[evt.Type]
	if !ok {
		p.logger.Printf("webhook: accepted unhandled event type %s (%s)", evt.Type, evt.ID)
		return nil
	}
	return handler(ctx, evt)
}

func (p *Processor) handleAccountUpdated(ctx context.Context, evt Event) error {
	var obj AccountObject
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil {
		return fmt.Errorf("%w: account object: %v", ErrMalformedPayload, err)
	}

	record, err := p.store.FindByAccountID(ctx, obj.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The account belongs to an integration this deployment does
			// not track. Acknowledge so the platform stops redelivering.
			p.logger.Printf("webhook: account.updated for untracked account %s (%s)", obj.ID, evt.ID)
			return nil
		}
		return fmt.Errorf("lookup account %s: %w", obj.ID, err)
	}

	_, err = p.store.UpsertStatus(ctx, store.UpsertStatusInput{
		TeamID:           record.TeamID,
		Status:           deriveStatus(obj),
		ChargesEnabled:   obj.ChargesEnabled,
		PayoutsEnabled:   obj.PayoutsEnabled,
		DetailsSubmitted: obj.DetailsSubmitted,
		ObservedAt:       p.observedAt(evt),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("persist status for team %s: %w", record.TeamID, err)
	}
	return nil
}

func (p *Processor) handleAccountDeauthorized(ctx context.Context, evt Event) error {
	record, err := p.store.FindByAccountID(ctx, evt.Account)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup account %s: %w", evt.Account, err)
	}

	if _, err := p.store.ClearAccount(ctx, record.TeamID, p.observedAt(evt)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("clear account for team %s: %w", record.TeamID, err)
	}
	p.logger.Printf("webhook: account %s deauthorized, team %s reset", evt.Account, record.TeamID)
	return nil
}

func (p *Processor) handleAccountAuthorized(_ context.Context, evt Event) error {
	p.logger.Printf("webhook: account %s authorized (%s)", evt.Account, evt.ID)
	return nil
}

func (p *Processor) handleCapabilityUpdated(ctx context.Context, evt Event) error {
	var obj CapabilityObject
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil {
		return fmt.Errorf("%w: capability object: %v", ErrMalformedPayload, err)
	}
	if obj.ID != CapabilityCardPayments || obj.Status != capabilityStatusActive {
		return nil
	}

	accountID := obj.Account
	if accountID == "" {
		accountID = evt.Account
	}
	record, err := p.store.FindByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup account %s: %w", accountID, err)
	}

	p.notifier.StatusRefreshRequested(ctx, record.TeamID, accountID)
	return nil
}

func (p *Processor) handlePaymentSucceeded(ctx context.Context, evt Event) error {
	var obj PaymentIntentObject
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil {
		return fmt.Errorf("%w: payment intent object: %v", ErrMalformedPayload, err)
	}
	p.notifier.PaymentSucceeded(ctx, correlationFrom(obj.ID, obj.Metadata))
	return nil
}

func (p *Processor) handleTransferCreated(ctx context.Context, evt Event) error {
	var obj TransferObject
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil {
		return fmt.Errorf("%w: transfer object: %v", ErrMalformedPayload, err)
	}
	p.notifier.TransferCreated(ctx, correlationFrom(obj.ID, obj.Metadata))
	return nil
}

func (p *Processor) observedAt(evt Event) time.Time {
	if evt.Created > 0 {
		return time.Unix(evt.Created, 0).UTC()
	}
	return p.now().UTC()
}

// deriveStatus maps an account snapshot to an onboarding status. Both
// "details submitted, capabilities off" and "nothing submitted yet" land in
// pending: onboarding has started either way.
func deriveStatus(obj AccountObject) string {
	if obj.ChargesEnabled && obj.PayoutsEnabled {
		return store.StatusComplete
	}
	return store.StatusPending
}

func correlationFrom(objectID string, metadata map[string]string) Correlation {
	return Correlation{
		ObjectID: objectID,
		TeamID:   metadata["team_id"],
		OrderID:  metadata["order_id"],
	}
}
