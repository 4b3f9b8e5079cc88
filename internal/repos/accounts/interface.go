package accounts

import "context"

// Account is the persisted ledger record for one external user id.
// Balance is in coins; PendingWithdrawal and WithdrawalHistory are in rupees.
type Account struct {
	ID                string   `json:"id"`
	Balance           int64    `json:"balance"`
	ReferredBy        string   `json:"referredBy,omitempty"`
	UsedReferral      bool     `json:"usedReferral"`
	Referrals         []string `json:"referrals,omitempty"`
	PayoutID          string   `json:"payoutId,omitempty"`
	PendingWithdrawal int64    `json:"pendingWithdrawal,omitempty"`
	WithdrawalHistory []int64  `json:"withdrawalHistory,omitempty"`
	LastBonusDate     string   `json:"lastBonusDate,omitempty"`

	// Seq is the first-seen creation order, assigned by the store.
	// Leaderboard ties break on it so rankings stay deterministic.
	Seq uint64 `json:"seq"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// aliasing the slices held inside an update closure.
func (a Account) Clone() Account {
	c := a
	if a.Referrals != nil {
		c.Referrals = append([]string(nil), a.Referrals...)
	}
	if a.WithdrawalHistory != nil {
		c.WithdrawalHistory = append([]int64(nil), a.WithdrawalHistory...)
	}

	return c
}

// HasReferred reports whether id already appears in the account's referral set.
func (a Account) HasReferred(id string) bool {
	for _, r := range a.Referrals {
		if r == id {
			return true
		}
	}

	return false
}

// UpdateFunc mutates a single account inside an atomic update. Returning an
// error aborts the update with no observable mutation.
type UpdateFunc func(acc *Account) error

// PairFunc mutates two accounts inside one atomic update. aFound/bFound report
// whether each account existed before this call; accounts created by the call
// are persisted only when fn returns nil.
type PairFunc func(a, b *Account, aFound, bFound bool) error

// Store is the sole mutation path for account records. Every successful
// Update/UpdatePair is persisted before the call returns. Updates to the same
// account serialize; reads in All observe one consistent snapshot.
type Store interface {
	// Get returns a snapshot of the account, creating and persisting a
	// default record on first contact.
	Get(ctx context.Context, id string) (Account, error)

	// Update applies fn to the current state of the account (default state
	// if absent) and persists the result atomically. The returned snapshot
	// is the post-update state.
	Update(ctx context.Context, id string, fn UpdateFunc) (Account, error)

	// UpdatePair applies fn to two distinct accounts under one atomic
	// update. Implementations that lock per account do so in lexicographic
	// id order regardless of argument order.
	UpdatePair(ctx context.Context, idA, idB string, fn PairFunc) error

	// All returns a consistent snapshot of every account.
	All(ctx context.Context) ([]Account, error)

	Close() error
}
