package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/referearn/internal/services/rewards"
)

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(svc *rewards.Service, channels []string) http.Handler {
	h := NewHandler(svc, channels)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/gate", h.GateHandler)
	r.Get("/leaderboard", h.LeaderboardHandler)

	r.Route("/account/{accountId}", func(r chi.Router) {
		r.Post("/", h.TouchAccountHandler)
		r.Get("/", h.GetAccountInfoHandler)
		r.Get("/balance", h.GetBalanceHandler)
		r.Post("/referral", h.ApplyReferralHandler)
		r.Post("/bonus", h.ClaimBonusHandler)
		r.Post("/payout", h.SetPayoutHandler)
		r.Post("/withdrawal", h.RequestWithdrawalHandler)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", h.AdminStatsHandler)
		r.Get("/withdrawals", h.AdminPendingWithdrawalsHandler)
		r.Post("/withdrawals/{accountId}/approve", h.ApproveWithdrawalHandler)
	})

	return r
}
