package rewards

import (
	"context"
	"fmt"
	"sort"

	"github.com/fastprodman/referearn/internal/repos/accounts"
)

// Touch ensures the account exists, returning its snapshot. First contact
// creates a default record.
func (s *Service) Touch(ctx context.Context, id string) (accounts.Account, error) {
	acc, err := s.store.Get(ctx, id)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("touch account: %w", err)
	}

	return acc, nil
}

// BalanceOf returns the coin balance with its rupee conversion.
func (s *Service) BalanceOf(ctx context.Context, id string) (BalanceSummary, error) {
	acc, err := s.store.Get(ctx, id)
	if err != nil {
		return BalanceSummary{}, fmt.Errorf("balance of: %w", err)
	}

	return BalanceSummary{
		Coins:          acc.Balance,
		Rupees:         acc.Balance / s.cfg.ConversionRate,
		RemainderCoins: acc.Balance % s.cfg.ConversionRate,
	}, nil
}

// AccountInfo returns the account snapshot with derived view fields.
func (s *Service) AccountInfo(ctx context.Context, id string) (AccountInfo, error) {
	acc, err := s.store.Get(ctx, id)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("account info: %w", err)
	}

	return AccountInfo{
		Account:        acc,
		ReferralCount:  len(acc.Referrals),
		BonusAvailable: acc.LastBonusDate != s.today(),
	}, nil
}

// Leaderboard returns the top n accounts by balance. Ties rank the account
// seen first higher, keeping the ordering deterministic.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Balance != all[j].Balance {
			return all[i].Balance > all[j].Balance
		}

		return all[i].Seq < all[j].Seq
	})

	if n > 0 && len(all) > n {
		all = all[:n]
	}

	entries := make([]LeaderboardEntry, 0, len(all))
	for i, acc := range all {
		entries = append(entries, LeaderboardEntry{
			Rank:      i + 1,
			AccountID: acc.ID,
			Balance:   acc.Balance,
		})
	}

	return entries, nil
}

// Stats computes the owner-facing global aggregates from one consistent
// snapshot of the account set.
func (s *Service) Stats(ctx context.Context, adminID string) (Stats, error) {
	if adminID != s.cfg.OwnerID {
		return Stats{}, ErrNotAuthorized
	}

	all, err := s.store.All(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	st := Stats{TotalAccounts: len(all)}
	for _, acc := range all {
		st.TotalBalance += acc.Balance
		st.TotalReferrals += len(acc.Referrals)
		st.TotalWithdrawals += len(acc.WithdrawalHistory)
	}

	return st, nil
}

// PendingWithdrawals lists every account currently awaiting approval.
func (s *Service) PendingWithdrawals(ctx context.Context, adminID string) ([]PendingWithdrawal, error) {
	if adminID != s.cfg.OwnerID {
		return nil, ErrNotAuthorized
	}

	all, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending withdrawals: %w", err)
	}

	var out []PendingWithdrawal

	for _, acc := range all {
		if acc.PendingWithdrawal != 0 {
			out = append(out, PendingWithdrawal{
				AccountID: acc.ID,
				Rupees:    acc.PendingWithdrawal,
				PayoutID:  acc.PayoutID,
			})
		}
	}

	return out, nil
}
