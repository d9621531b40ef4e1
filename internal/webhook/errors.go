package webhook

import "errors"

var (
	ErrNoSecretConfigured = errors.New("webhook secret not configured")
	ErrMissingSignature   = errors.New("missing signature header")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrMalformedPayload   = errors.New("malformed payload")
)

// IsVerificationError reports whether err is terminal for a delivery: the
// payload can never be accepted and the platform should not redeliver it
// unchanged.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrNoSecretConfigured) ||
		errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrMalformedPayload)
}
