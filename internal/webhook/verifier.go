package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how old a signed timestamp may be before the
// delivery is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

const signatureScheme = "v1"

// Verifier checks the platform's timestamped HMAC-SHA256 signature over the
// raw request body. The signature header has the form
// "t=<unix>,v1=<hex>", and the signed message is "<unix>.<body>".
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance, now: time.Now}
}

// Verify authenticates payload against sigHeader and decodes it into an
// Event. An unconfigured secret fails closed before anything else is
// looked at.
func (v *Verifier) Verify(payload []byte, sigHeader string) (Event, error) {
	if v.secret == "" {
		return Event{}, ErrNoSecretConfigured
	}
	if strings.TrimSpace(sigHeader) == "" {
		return Event{}, ErrMissingSignature
	}

	ts, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return Event{}, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureMismatch)
	}

	expected := computeSignature(v.secret, ts, payload)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
		}
	}
	if !matched {
		return Event{}, ErrSignatureMismatch
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event id or type", ErrMalformedPayload)
	}
	return evt, nil
}

// SignPayload produces a signature header for payload as the platform
// would. Used by tests and local delivery tooling.
func SignPayload(secret string, t time.Time, payload []byte) string {
	ts := t.Unix()
	return fmt.Sprintf("t=%d,%s=%s", ts, signatureScheme, computeSignature(secret, ts, payload))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var ts int64
	var haveTS bool
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, fmt.Errorf("malformed element %q", part)
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed timestamp %q", value)
			}
			ts = parsed
			haveTS = true
		case signatureScheme:
			signatures = append(signatures, value)
		default:
			// Unknown schemes are skipped for forward compatibility.
		}
	}

	if !haveTS {
		return 0, nil, fmt.Errorf("missing timestamp element")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("missing %s signature element", signatureScheme)
	}
	return ts, signatures, nil
}

func computeSignature(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
