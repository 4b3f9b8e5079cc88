package rewards

import (
	"context"
	"fmt"

	"github.com/fastprodman/referearn/internal/repos/accounts"
)

// ApplyReferral records the one-time referral edge from referrerID to newID
// and credits both parties. The whole transition happens inside a single
// atomic pair update, so concurrent retries can never double-credit: whichever
// call commits first flips UsedReferral and every later call fails on it.
func (s *Service) ApplyReferral(ctx context.Context, newID, referrerID string) (accounts.Account, error) {
	if newID == referrerID {
		return accounts.Account{}, ErrSelfReferral
	}

	var referred accounts.Account

	err := s.store.UpdatePair(ctx, referrerID, newID,
		func(referrer, joiner *accounts.Account, referrerFound, _ bool) error {
			if joiner.UsedReferral {
				return ErrReferralAlreadyUsed
			}

			if !referrerFound {
				return ErrUnknownReferrer
			}

			if referrer.HasReferred(newID) {
				return ErrDuplicateReferral
			}

			referrer.Referrals = append(referrer.Referrals, newID)
			referrer.Balance += s.cfg.ReferralReward

			joiner.Balance += s.cfg.ReferralBonus
			joiner.ReferredBy = referrerID
			joiner.UsedReferral = true

			referred = joiner.Clone()

			return nil
		})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("apply referral: %w", err)
	}

	return referred, nil
}
