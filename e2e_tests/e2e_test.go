package e2etests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fastprodman/referearn/internal/api"
	"github.com/fastprodman/referearn/internal/events"
	boltaccounts "github.com/fastprodman/referearn/internal/repos/accounts/bolt"
	"github.com/fastprodman/referearn/internal/services/rewards"
)

const (
	ownerID = "owner-e2e"
	timeout = 5 * time.Second
)

var httpClient = &http.Client{Timeout: timeout}

// startServer boots the full HTTP stack over a throwaway bolt file. The
// production reward constants are used, so the withdrawal minimum is 100
// coins (10 referrals).
func startServer(t *testing.T) string {
	t.Helper()

	store, err := boltaccounts.Open(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := rewards.New(store, events.LogPublisher{}, rewards.Config{
		OwnerID:                 ownerID,
		ReferralReward:          10,
		ReferralBonus:           5,
		ConversionRate:          10,
		DailyBonus:              5,
		MinWithdrawalMultiplier: 10,
	})

	srv := httptest.NewServer(api.NewRouter(svc, []string{"@community"}))
	t.Cleanup(srv.Close)

	return srv.URL
}

func TestE2E_ReferralToWithdrawalFlow(t *testing.T) {
	baseURL := startServer(t)

	t.Run("earner_initial_balance_zero", func(t *testing.T) {
		coins, rupees := getBalance(t, baseURL, "earner")
		if coins != 0 || rupees != 0 {
			t.Fatalf("initial balance: want 0/0, got %d/%d", coins, rupees)
		}
	})

	t.Run("referrals_accumulate_balance", func(t *testing.T) {
		// Ten distinct accounts join through earner's link: 10 coins each.
		for i := 0; i < 10; i++ {
			code, body := postJSON(t, baseURL,
				fmt.Sprintf("/account/friend-%d/referral", i),
				map[string]string{"referrerId": "earner"}, "")
			if code != http.StatusOK {
				t.Fatalf("referral %d: want 200, got %d (%s)", i, code, body)
			}
		}

		coins, rupees := getBalance(t, baseURL, "earner")
		if coins != 100 || rupees != 10 {
			t.Fatalf("after referrals: want 100 coins / 10 rupees, got %d/%d", coins, rupees)
		}
	})

	t.Run("repeat_referral_conflict", func(t *testing.T) {
		code, body := postJSON(t, baseURL, "/account/friend-0/referral",
			map[string]string{"referrerId": "earner"}, "")
		if code != http.StatusConflict {
			t.Fatalf("repeat referral: want 409, got %d (%s)", code, body)
		}

		// Balance applied only once.
		coins, _ := getBalance(t, baseURL, "earner")
		if coins != 100 {
			t.Fatalf("after repeat: want 100 coins, got %d", coins)
		}
	})

	t.Run("daily_bonus_once_per_day", func(t *testing.T) {
		code, body := postJSON(t, baseURL, "/account/earner/bonus", nil, "")
		if code != http.StatusOK {
			t.Fatalf("bonus: want 200, got %d (%s)", code, body)
		}

		code, body = postJSON(t, baseURL, "/account/earner/bonus", nil, "")
		if code != http.StatusConflict {
			t.Fatalf("second bonus: want 409, got %d (%s)", code, body)
		}

		coins, _ := getBalance(t, baseURL, "earner")
		if coins != 105 {
			t.Fatalf("after bonus: want 105 coins, got %d", coins)
		}
	})

	t.Run("withdrawal_requires_payout_destination", func(t *testing.T) {
		code, body := postJSON(t, baseURL, "/account/earner/withdrawal", nil, "")
		if code != http.StatusConflict {
			t.Fatalf("withdrawal without payout: want 409, got %d (%s)", code, body)
		}

		code, body = postJSON(t, baseURL, "/account/earner/payout",
			map[string]string{"payoutId": "@earner-pay"}, "")
		if code != http.StatusOK {
			t.Fatalf("set payout: want 200, got %d (%s)", code, body)
		}
	})

	t.Run("withdrawal_drains_whole_rupees", func(t *testing.T) {
		code, body := postJSON(t, baseURL, "/account/earner/withdrawal", nil, "")
		if code != http.StatusOK {
			t.Fatalf("withdrawal: want 200, got %d (%s)", code, body)
		}

		var resp struct {
			Rupees int64  `json:"rupees"`
			Status string `json:"status"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Rupees != 10 || resp.Status != "pending" {
			t.Fatalf("withdrawal: want 10 rupees pending, got %+v", resp)
		}

		// 105 coins -> 10 rupees requested, 5 coins remain.
		coins, _ := getBalance(t, baseURL, "earner")
		if coins != 5 {
			t.Fatalf("after withdrawal: want 5 coins, got %d", coins)
		}

		code, body = postJSON(t, baseURL, "/account/earner/withdrawal", nil, "")
		if code != http.StatusConflict {
			t.Fatalf("second withdrawal: want 409, got %d (%s)", code, body)
		}
	})

	t.Run("owner_approves_withdrawal", func(t *testing.T) {
		code, body := postJSON(t, baseURL, "/admin/withdrawals/earner/approve", nil, "intruder")
		if code != http.StatusForbidden {
			t.Fatalf("intruder approve: want 403, got %d (%s)", code, body)
		}

		code, body = postJSON(t, baseURL, "/admin/withdrawals/earner/approve", nil, ownerID)
		if code != http.StatusOK {
			t.Fatalf("owner approve: want 200, got %d (%s)", code, body)
		}

		var resp struct {
			Rupees int64  `json:"rupees"`
			Status string `json:"status"`
		}
		mustUnmarshal(t, body, &resp)
		if resp.Rupees != 10 || resp.Status != "completed" {
			t.Fatalf("approve: want 10 rupees completed, got %+v", resp)
		}

		code, body = postJSON(t, baseURL, "/admin/withdrawals/earner/approve", nil, ownerID)
		if code != http.StatusConflict {
			t.Fatalf("re-approve: want 409, got %d (%s)", code, body)
		}
	})

	t.Run("owner_sees_totals", func(t *testing.T) {
		code, body := getJSON(t, baseURL, "/admin/stats", ownerID)
		if code != http.StatusOK {
			t.Fatalf("stats: want 200, got %d (%s)", code, body)
		}

		var stats struct {
			TotalAccounts    int `json:"totalAccounts"`
			TotalReferrals   int `json:"totalReferrals"`
			TotalWithdrawals int `json:"totalWithdrawals"`
		}
		mustUnmarshal(t, body, &stats)

		if stats.TotalAccounts != 11 {
			t.Fatalf("stats accounts: want 11, got %d", stats.TotalAccounts)
		}
		if stats.TotalReferrals != 10 {
			t.Fatalf("stats referrals: want 10, got %d", stats.TotalReferrals)
		}
		if stats.TotalWithdrawals != 1 {
			t.Fatalf("stats withdrawals: want 1, got %d", stats.TotalWithdrawals)
		}
	})

	t.Run("leaderboard_ranks_earner_first", func(t *testing.T) {
		code, body := getJSON(t, baseURL, "/leaderboard?limit=3", "")
		if code != http.StatusOK {
			t.Fatalf("leaderboard: want 200, got %d (%s)", code, body)
		}

		var resp struct {
			Leaderboard []struct {
				Rank      int    `json:"rank"`
				AccountID string `json:"accountId"`
				Balance   int64  `json:"balance"`
			} `json:"leaderboard"`
		}
		mustUnmarshal(t, body, &resp)

		if len(resp.Leaderboard) != 3 {
			t.Fatalf("leaderboard size: want 3, got %d", len(resp.Leaderboard))
		}
		top := resp.Leaderboard[0]
		if top.AccountID != "earner" || top.Rank != 1 || top.Balance != 5 {
			t.Fatalf("leaderboard top: want earner rank 1 balance 5, got %+v", top)
		}
	})
}

func TestE2E_GateAndValidation(t *testing.T) {
	baseURL := startServer(t)

	t.Run("gate_lists_required_channels", func(t *testing.T) {
		code, body := getJSON(t, baseURL, "/gate", "")
		if code != http.StatusOK {
			t.Fatalf("gate: want 200, got %d (%s)", code, body)
		}

		var resp struct {
			RequiredChannels []string `json:"requiredChannels"`
		}
		mustUnmarshal(t, body, &resp)
		if len(resp.RequiredChannels) != 1 || resp.RequiredChannels[0] != "@community" {
			t.Fatalf("gate channels: got %v", resp.RequiredChannels)
		}
	})

	t.Run("self_referral_rejected", func(t *testing.T) {
		code, _ := postJSON(t, baseURL, "/account/me/referral",
			map[string]string{"referrerId": "me"}, "")
		if code != http.StatusBadRequest {
			t.Fatalf("self referral: want 400, got %d", code)
		}
	})

	t.Run("unknown_referrer_rejected", func(t *testing.T) {
		code, _ := postJSON(t, baseURL, "/account/me/referral",
			map[string]string{"referrerId": "ghost"}, "")
		if code != http.StatusNotFound {
			t.Fatalf("unknown referrer: want 404, got %d", code)
		}
	})

	t.Run("payout_without_at_prefix_rejected", func(t *testing.T) {
		code, _ := postJSON(t, baseURL, "/account/me/payout",
			map[string]string{"payoutId": "plain"}, "")
		if code != http.StatusBadRequest {
			t.Fatalf("bad payout id: want 400, got %d", code)
		}
	})

	t.Run("admin_requires_owner_identity", func(t *testing.T) {
		code, _ := getJSON(t, baseURL, "/admin/stats", "")
		if code != http.StatusForbidden {
			t.Fatalf("stats without identity: want 403, got %d", code)
		}
	})
}

/* -------------------- helpers -------------------- */

func getBalance(t *testing.T, baseURL, accountID string) (coins, rupees int64) {
	t.Helper()

	code, body := getJSON(t, baseURL, "/account/"+accountID+"/balance", "")
	if code != http.StatusOK {
		t.Fatalf("GET balance: want 200, got %d (%s)", code, body)
	}

	var payload struct {
		AccountID string `json:"accountId"`
		Coins     int64  `json:"coins"`
		Rupees    int64  `json:"rupees"`
	}
	mustUnmarshal(t, body, &payload)

	if payload.AccountID != accountID {
		t.Fatalf("accountId mismatch: want %s, got %s", accountID, payload.AccountID)
	}

	return payload.Coins, payload.Rupees
}

func postJSON(t *testing.T, baseURL, path string, payload map[string]string, adminID string) (int, string) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if adminID != "" {
		req.Header.Set(api.AdminHeader, adminID)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, string(b)
}

func getJSON(t *testing.T, baseURL, path, adminID string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if adminID != "" {
		req.Header.Set(api.AdminHeader, adminID)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, string(b)
}

func mustUnmarshal(t *testing.T, body string, dst any) {
	t.Helper()

	err := json.Unmarshal([]byte(body), dst)
	if err != nil {
		t.Fatalf("decode json %q: %v", body, err)
	}
}
