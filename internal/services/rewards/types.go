package rewards

import (
	"errors"

	"github.com/fastprodman/referearn/internal/repos/accounts"
)

// Validation errors. All of them leave ledger state unchanged and map to a
// specific user-visible message at the transport layer.
var (
	ErrSelfReferral        = errors.New("cannot refer yourself")
	ErrReferralAlreadyUsed = errors.New("referral already used")
	ErrUnknownReferrer     = errors.New("unknown referrer")
	ErrDuplicateReferral   = errors.New("duplicate referral")
	ErrInsufficientBalance = errors.New("insufficient balance for withdrawal")
	ErrPayoutNotSet        = errors.New("payout destination not set")
	ErrWithdrawalPending   = errors.New("withdrawal already pending")
	ErrNoPendingWithdrawal = errors.New("no pending withdrawal")
	ErrBonusAlreadyClaimed = errors.New("daily bonus already claimed today")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInvalidPayoutID     = errors.New("invalid payout id")
)

// BalanceSummary is the coin balance with its rupee conversion.
type BalanceSummary struct {
	Coins          int64 `json:"coins"`
	Rupees         int64 `json:"rupees"`
	RemainderCoins int64 `json:"remainderCoins"`
}

// AccountInfo is the "my info" view: the account snapshot plus derived fields.
type AccountInfo struct {
	Account        accounts.Account `json:"account"`
	ReferralCount  int              `json:"referralCount"`
	BonusAvailable bool             `json:"bonusAvailable"`
}

// LeaderboardEntry is one row of the balance ranking.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
}

// Stats are the owner-facing global aggregates.
type Stats struct {
	TotalAccounts    int   `json:"totalAccounts"`
	TotalBalance     int64 `json:"totalBalance"`
	TotalReferrals   int   `json:"totalReferrals"`
	TotalWithdrawals int   `json:"totalWithdrawals"`
}

// PendingWithdrawal is one outstanding payout request awaiting approval.
type PendingWithdrawal struct {
	AccountID string `json:"accountId"`
	Rupees    int64  `json:"rupees"`
	PayoutID  string `json:"payoutId"`
}
