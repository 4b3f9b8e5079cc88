package rewards

import (
	"context"
	"fmt"

	"github.com/fastprodman/referearn/internal/repos/accounts"
)

// ClaimDailyBonus credits the daily bonus at most once per UTC calendar date.
// The claimed-today check and the credit share one atomic update, so for a
// fixed date exactly one of any number of concurrent claims succeeds.
func (s *Service) ClaimDailyBonus(ctx context.Context, id string) (accounts.Account, error) {
	today := s.today()

	acc, err := s.store.Update(ctx, id, func(acc *accounts.Account) error {
		// ISO dates compare lexicographically; >= keeps LastBonusDate
		// monotone even if the clock steps backwards.
		if acc.LastBonusDate >= today {
			return ErrBonusAlreadyClaimed
		}

		acc.Balance += s.cfg.DailyBonus
		acc.LastBonusDate = today

		return nil
	})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("claim daily bonus: %w", err)
	}

	return acc, nil
}
