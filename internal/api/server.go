package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"teampay/internal/store"
	"teampay/internal/transfer"
	"teampay/internal/webhook"
)

type Server struct {
	store     store.TeamAccountStore
	verifier  *webhook.Verifier
	processor *webhook.Processor
	builder   *transfer.Builder
	authToken string
	logger    Logger
}

type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func NewServer(st store.TeamAccountStore, verifier *webhook.Verifier, processor *webhook.Processor, builder *transfer.Builder, authToken string, logger Logger) *Server {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Server{
		store:     st,
		verifier:  verifier,
		processor: processor,
		builder:   builder,
		authToken: authToken,
		logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	// The webhook route authenticates by signature, not bearer token.
	mux.Handle("/v1/webhooks/payments", http.HandlerFunc(s.handleWebhook))
	mux.Handle("/v1/teams/", s.authMiddleware(http.HandlerFunc(s.handleTeamByID)))
	mux.Handle("/v1/transfers", s.authMiddleware(http.HandlerFunc(s.handleTransfers)))
	return mux
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if !secureCompare(token, s.authToken) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
