package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"teampay/internal/webhook"
)

// SignatureHeader carries the platform's timestamped HMAC over the raw
// request body.
const SignatureHeader = "Payments-Signature"

const maxWebhookBody = 1 << 20

type webhookAckResponse struct {
	Received   bool   `json:"received"`
	DeliveryID string `json:"delivery_id"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	deliveryID := uuid.NewString()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		s.logEvent("webhook_rejected", map[string]any{
			"delivery_id": deliveryID,
			"reason":      "unreadable_body",
		})
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(body) > maxWebhookBody {
		s.logEvent("webhook_rejected", map[string]any{
			"delivery_id": deliveryID,
			"reason":      "payload_too_large",
		})
		writeError(w, http.StatusBadRequest, "payload_too_large")
		return
	}

	evt, err := s.verifier.Verify(body, r.Header.Get(SignatureHeader))
	if err != nil {
		reason := verificationReason(err)
		s.logEvent("webhook_rejected", map[string]any{
			"delivery_id": deliveryID,
			"reason":      reason,
		})
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	if err := s.processor.Process(r.Context(), evt); err != nil {
		if webhook.IsVerificationError(err) {
			s.logEvent("webhook_rejected", map[string]any{
				"delivery_id": deliveryID,
				"event_id":    evt.ID,
				"event_type":  evt.Type,
				"reason":      "malformed_payload",
			})
			writeError(w, http.StatusBadRequest, "malformed_payload")
			return
		}
		// Non-2xx tells the platform to redeliver.
		s.logger.Printf("process webhook error: %v", err)
		s.logEvent("webhook_failed", map[string]any{
			"delivery_id": deliveryID,
			"event_id":    evt.ID,
			"event_type":  evt.Type,
		})
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	s.logEvent("webhook_processed", map[string]any{
		"delivery_id": deliveryID,
		"event_id":    evt.ID,
		"event_type":  evt.Type,
	})
	writeJSON(w, http.StatusOK, webhookAckResponse{Received: true, DeliveryID: deliveryID})
}

func verificationReason(err error) string {
	switch {
	case errors.Is(err, webhook.ErrNoSecretConfigured):
		return "no_secret_configured"
	case errors.Is(err, webhook.ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, webhook.ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "signature_mismatch"
	}
}
