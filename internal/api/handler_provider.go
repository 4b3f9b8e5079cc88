package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/referearn/internal/services/rewards"
)

const (
	// AdminHeader carries the acting admin identity. The transport only
	// asserts identity equality against the configured owner; it does not
	// authenticate.
	AdminHeader = "X-Admin-ID"

	maxAccountIDLen  = 64
	defaultBoardSize = 10
	maxBoardSize     = 100
)

// HandlerProvider wraps the rewards service and exposes HTTP handlers.
type HandlerProvider struct {
	svc      *rewards.Service
	channels []string
}

// NewHandler returns a new Handler provider. channels is the list of
// memberships the external gate requires before first-time access.
func NewHandler(svc *rewards.Service, channels []string) *HandlerProvider {
	return &HandlerProvider{svc: svc, channels: channels}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		// Log the error with slog
		slog.Error("failed to encode JSON response", "error", err)

		// As best-effort, write a minimal error payload if headers not sent
		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps rewards sentinel errors to HTTP statuses with stable
// user-visible messages. Anything unmapped is treated as internal and logged
// rather than leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rewards.ErrSelfReferral):
		writeError(w, http.StatusBadRequest, "you can't refer yourself")
	case errors.Is(err, rewards.ErrInvalidPayoutID):
		writeError(w, http.StatusBadRequest, "invalid payout id format")
	case errors.Is(err, rewards.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, rewards.ErrUnknownReferrer):
		writeError(w, http.StatusNotFound, "unknown referrer")
	case errors.Is(err, rewards.ErrReferralAlreadyUsed):
		writeError(w, http.StatusConflict, "referral already used")
	case errors.Is(err, rewards.ErrDuplicateReferral):
		writeError(w, http.StatusConflict, "already referred by this user")
	case errors.Is(err, rewards.ErrBonusAlreadyClaimed):
		writeError(w, http.StatusConflict, "daily bonus already claimed today")
	case errors.Is(err, rewards.ErrWithdrawalPending):
		writeError(w, http.StatusConflict, "a withdrawal is already pending")
	case errors.Is(err, rewards.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "balance below minimum withdrawal")
	case errors.Is(err, rewards.ErrPayoutNotSet):
		writeError(w, http.StatusConflict, "payout destination not set")
	case errors.Is(err, rewards.ErrNoPendingWithdrawal):
		writeError(w, http.StatusConflict, "no pending withdrawal")
	default:
		slog.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseAccountIDFromPath reads `{accountId}` from chi routes like:
//
//	GET  /account/{accountId}/balance
//	POST /account/{accountId}/withdrawal
//
// Ids are opaque transport-assigned identifiers, so only shape is checked.
func parseAccountIDFromPath(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "accountId"))
	if id == "" {
		return "", fmt.Errorf("missing accountId")
	}
	if len(id) > maxAccountIDLen {
		return "", fmt.Errorf("accountId too long")
	}

	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	// Limit body size; disallow unknown fields
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}

		return fmt.Errorf("invalid JSON")
	}

	return nil
}

// --- Handlers ---

// TouchAccountHandler handles POST /account/{accountId}. It registers the
// account on first contact and is a no-op afterwards.
func (h *HandlerProvider) TouchAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	acc, err := h.svc.Touch(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// GetAccountInfoHandler handles GET /account/{accountId}
func (h *HandlerProvider) GetAccountInfoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	info, err := h.svc.AccountInfo(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// GetBalanceHandler handles GET /account/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	sum, err := h.svc.BalanceOf(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{
		"accountId":      id,
		"coins":          sum.Coins,
		"rupees":         sum.Rupees,
		"remainderCoins": sum.RemainderCoins,
	}
	writeJSON(w, http.StatusOK, resp)
}

type referralRequest struct {
	ReferrerID string `json:"referrerId"`
}

// ApplyReferralHandler handles POST /account/{accountId}/referral
func (h *HandlerProvider) ApplyReferralHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req referralRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	referrerID := strings.TrimSpace(req.ReferrerID)
	if referrerID == "" {
		writeError(w, http.StatusBadRequest, "referrerId required")
		return
	}

	acc, err := h.svc.ApplyReferral(r.Context(), id, referrerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// ClaimBonusHandler handles POST /account/{accountId}/bonus
func (h *HandlerProvider) ClaimBonusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	acc, err := h.svc.ClaimDailyBonus(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

type payoutRequest struct {
	PayoutID string `json:"payoutId"`
}

// SetPayoutHandler handles POST /account/{accountId}/payout
func (h *HandlerProvider) SetPayoutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	var req payoutRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := h.svc.SetPayoutID(r.Context(), id, req.PayoutID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// RequestWithdrawalHandler handles POST /account/{accountId}/withdrawal
func (h *HandlerProvider) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	rupees, err := h.svc.RequestWithdrawal(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": id,
		"rupees":    rupees,
		"status":    "pending",
	})
}

// LeaderboardHandler handles GET /leaderboard?limit=N
func (h *HandlerProvider) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultBoardSize

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxBoardSize {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		limit = n
	}

	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

// GateHandler handles GET /gate. It publishes the memberships the external
// gate must verify before letting a new account in; the ledger itself assumes
// callers were already gated.
func (h *HandlerProvider) GateHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"requiredChannels": h.channels})
}

// AdminStatsHandler handles GET /admin/stats
func (h *HandlerProvider) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), r.Header.Get(AdminHeader))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// AdminPendingWithdrawalsHandler handles GET /admin/withdrawals
func (h *HandlerProvider) AdminPendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.PendingWithdrawals(r.Context(), r.Header.Get(AdminHeader))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pendingWithdrawals": pending})
}

// ApproveWithdrawalHandler handles POST /admin/withdrawals/{accountId}/approve
func (h *HandlerProvider) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	rupees, err := h.svc.ApproveWithdrawal(r.Context(), r.Header.Get(AdminHeader), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": id,
		"rupees":    rupees,
		"status":    "completed",
	})
}
