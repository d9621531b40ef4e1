package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"teampay/internal/api"
	"teampay/internal/fees"
	"teampay/internal/store"
	"teampay/internal/transfer"
	"teampay/internal/webhook"
)

const (
	testAuthToken = "test-token"
	testSecret    = "whsec_test"
)

type testEnv struct {
	store  *store.Memory
	server *httptest.Server
	client *http.Client
	secret string
}

type errorResponse struct {
	Error string `json:"error"`
}

func setupTest(t *testing.T) *testEnv {
	return setupTestWithSecret(t, testSecret)
}

func setupTestWithSecret(t *testing.T, secret string) *testEnv {
	t.Helper()

	st := store.NewMemory()
	calc := fees.NewCalculator(fees.PercentFee{Rate: decimal.RequireFromString("0.05")}, 2)
	verifier := webhook.NewVerifier(secret, webhook.DefaultTolerance)
	processor := webhook.NewProcessor(st, webhook.NopNotifier{}, nil)
	builder := transfer.NewBuilder(st, calc)

	srv := api.NewServer(st, verifier, processor, builder, testAuthToken, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &testEnv{
		store:  st,
		server: ts,
		client: &http.Client{Timeout: 3 * time.Second},
		secret: secret,
	}
}

func (e *testEnv) doRequest(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAuthToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func (e *testEnv) postWebhook(t *testing.T, body, signature string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/v1/webhooks/payments", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(api.SignatureHeader, signature)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func (e *testEnv) sign(body string) string {
	return webhook.SignPayload(e.secret, time.Now(), []byte(body))
}

func (e *testEnv) seedAccount(t *testing.T, teamID, accountID string) {
	t.Helper()
	if _, err := e.store.AssignAccount(context.Background(), teamID, accountID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var got errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return got.Error
}

func accountUpdatedBody(accountID string, charges, payouts, details bool) string {
	return fmt.Sprintf(
		`{"id":"evt_1","type":"account.updated","account":%[1]q,"created":%[2]d,"data":{"object":{"id":%[1]q,"charges_enabled":%[3]t,"payouts_enabled":%[4]t,"details_submitted":%[5]t}}}`,
		accountID, time.Now().Unix(), charges, payouts, details,
	)
}

func TestWebhookAccountUpdated(t *testing.T) {
	env := setupTest(t)
	env.seedAccount(t, "team-1", "acct_1")

	body := accountUpdatedBody("acct_1", true, true, true)
	resp := env.postWebhook(t, body, env.sign(body))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var ack struct {
		Received   bool   `json:"received"`
		DeliveryID string `json:"delivery_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Received || ack.DeliveryID == "" {
		t.Fatalf("unexpected ack %+v", ack)
	}

	got, err := env.store.Get(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusComplete {
		t.Fatalf("expected status %s, got %s", store.StatusComplete, got.Status)
	}
}

func TestWebhookMissingSignature(t *testing.T) {
	env := setupTest(t)

	resp := env.postWebhook(t, accountUpdatedBody("acct_1", true, true, true), "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
	if got := decodeError(t, resp); got != "missing_signature" {
		t.Fatalf("expected missing_signature, got %s", got)
	}
}

func TestWebhookBadSignature(t *testing.T) {
	env := setupTest(t)

	body := accountUpdatedBody("acct_1", true, true, true)
	sig := webhook.SignPayload("whsec_other", time.Now(), []byte(body))
	resp := env.postWebhook(t, body, sig)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
	if got := decodeError(t, resp); got != "signature_mismatch" {
		t.Fatalf("expected signature_mismatch, got %s", got)
	}
}

func TestWebhookNoSecretConfigured(t *testing.T) {
	env := setupTestWithSecret(t, "")

	body := accountUpdatedBody("acct_1", true, true, true)
	sig := webhook.SignPayload(testSecret, time.Now(), []byte(body))
	resp := env.postWebhook(t, body, sig)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
	if got := decodeError(t, resp); got != "no_secret_configured" {
		t.Fatalf("expected no_secret_configured, got %s", got)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	env := setupTest(t)

	body := `{"oops":`
	resp := env.postWebhook(t, body, env.sign(body))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
	if got := decodeError(t, resp); got != "malformed_payload" {
		t.Fatalf("expected malformed_payload, got %s", got)
	}
}

func TestWebhookUnknownEventTypeAccepted(t *testing.T) {
	env := setupTest(t)

	body := `{"id":"evt_1","type":"balance.available","data":{"object":{}}}`
	resp := env.postWebhook(t, body, env.sign(body))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestWebhookDeauthorization(t *testing.T) {
	env := setupTest(t)
	env.seedAccount(t, "team-1", "acct_1")

	body := accountUpdatedBody("acct_1", true, true, true)
	resp := env.postWebhook(t, body, env.sign(body))
	resp.Body.Close()

	deauth := fmt.Sprintf(
		`{"id":"evt_2","type":"account.application.deauthorized","account":"acct_1","created":%d}`,
		time.Now().Unix(),
	)
	resp = env.postWebhook(t, deauth, env.sign(deauth))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	got, err := env.store.Get(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusNotStarted || got.AccountID != "" {
		t.Fatalf("expected cleared record, got %+v", got)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	env := setupTest(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/webhooks/payments", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}
