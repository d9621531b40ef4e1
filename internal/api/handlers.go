package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"teampay/internal/fees"
	"teampay/internal/store"
	"teampay/internal/transfer"
)

type assignAccountRequest struct {
	AccountID string `json:"account_id"`
}

type createTransferRequest struct {
	TeamID        string `json:"team_id"`
	SponsorAmount string `json:"sponsor_amount"`
}

type teamAccountResponse struct {
	TeamID           string    `json:"team_id"`
	AccountID        string    `json:"account_id,omitempty"`
	Status           string    `json:"status"`
	ChargesEnabled   bool      `json:"charges_enabled"`
	PayoutsEnabled   bool      `json:"payouts_enabled"`
	DetailsSubmitted bool      `json:"details_submitted"`
	LastCheckedAt    time.Time `json:"last_checked_at"`
	CreatedAt        time.Time `json:"created_at"`
}

func (s *Server) handleTeamByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/teams/")
	if path == "" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	parts := strings.Split(path, "/")
	if parts[0] == "" || len(parts) < 2 || parts[1] != "payments-account" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	teamID := parts[0]

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		s.handleGetAccount(w, r, teamID)
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.handleAssignAccount(w, r, teamID)
	case len(parts) == 3 && parts[2] == "deauthorize" && r.Method == http.MethodPost:
		s.handleDeauthorizeAccount(w, r, teamID)
	case len(parts) == 2 || (len(parts) == 3 && parts[2] == "deauthorize"):
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request, teamID string) {
	account, err := s.store.Get(r.Context(), teamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.logger.Printf("get team account error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, toTeamAccountResponse(account))
}

func (s *Server) handleAssignAccount(w http.ResponseWriter, r *http.Request, teamID string) {
	var req assignAccountRequest
	if err := decodeStrict(r, &req); err != nil {
		s.logEvent("account_assign_failed", map[string]any{
			"team_id": teamID,
			"reason":  "invalid_request",
		})
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	account, err := s.store.AssignAccount(r.Context(), teamID, strings.TrimSpace(req.AccountID), time.Now().UTC())
	if err != nil {
		reason := "internal_error"
		switch {
		case errors.Is(err, store.ErrInvalidInput):
			reason = "invalid_request"
			writeError(w, http.StatusBadRequest, "invalid_request")
		case errors.Is(err, store.ErrAccountTaken):
			reason = "account_taken"
			writeError(w, http.StatusConflict, "account_taken")
		case errors.Is(err, store.ErrAccountAssigned):
			reason = "account_assigned"
			writeError(w, http.StatusConflict, "account_assigned")
		default:
			s.logger.Printf("assign account error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error")
		}
		s.logEvent("account_assign_failed", map[string]any{
			"team_id":    teamID,
			"account_id": req.AccountID,
			"reason":     reason,
		})
		return
	}

	s.logEvent("account_assigned", map[string]any{
		"team_id":    account.TeamID,
		"account_id": account.AccountID,
		"status":     account.Status,
	})
	writeJSON(w, http.StatusCreated, toTeamAccountResponse(account))
}

func (s *Server) handleDeauthorizeAccount(w http.ResponseWriter, r *http.Request, teamID string) {
	account, err := s.store.ClearAccount(r.Context(), teamID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.logger.Printf("deauthorize account error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	s.logEvent("account_deauthorized", map[string]any{
		"team_id": account.TeamID,
		"status":  account.Status,
	})
	writeJSON(w, http.StatusOK, toTeamAccountResponse(account))
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	var req createTransferRequest
	if err := decodeStrict(r, &req); err != nil {
		s.logEvent("transfer_build_failed", map[string]any{
			"reason": "invalid_request",
		})
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.TeamID) == "" {
		s.logEvent("transfer_build_failed", map[string]any{
			"reason": "invalid_request",
		})
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.SponsorAmount))
	if err != nil {
		s.logEvent("transfer_build_failed", map[string]any{
			"team_id": req.TeamID,
			"reason":  "invalid_amount",
		})
		writeError(w, http.StatusBadRequest, "invalid_amount")
		return
	}

	request, err := s.builder.Build(r.Context(), req.TeamID, amount)
	if err != nil {
		reason := "internal_error"
		var ineligible *transfer.IneligibleError
		switch {
		case errors.As(err, &ineligible):
			reason = ineligible.Reason
			writeError(w, http.StatusConflict, ineligible.Reason)
		case errors.Is(err, fees.ErrInvalidAmount):
			reason = "invalid_amount"
			writeError(w, http.StatusBadRequest, "invalid_amount")
		default:
			s.logger.Printf("build transfer error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error")
		}
		s.logEvent("transfer_build_failed", map[string]any{
			"team_id":        req.TeamID,
			"sponsor_amount": req.SponsorAmount,
			"reason":         reason,
		})
		return
	}

	s.logEvent("transfer_built", map[string]any{
		"team_id":                  req.TeamID,
		"destination_account_id":   request.DestinationAccountID,
		"destination_minor_units":  request.DestinationAmountMinorUnits,
		"platform_fee_minor_units": request.Metadata.PlatformFeeMinorUnits,
	})
	writeJSON(w, http.StatusOK, request)
}

func toTeamAccountResponse(a store.TeamAccount) teamAccountResponse {
	return teamAccountResponse{
		TeamID:           a.TeamID,
		AccountID:        a.AccountID,
		Status:           a.Status,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
		LastCheckedAt:    a.LastCheckedAt,
		CreatedAt:        a.CreatedAt,
	}
}
