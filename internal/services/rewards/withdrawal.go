package rewards

import (
	"context"
	"fmt"
	"strings"

	"github.com/fastprodman/referearn/internal/events"
	"github.com/fastprodman/referearn/internal/repos/accounts"
)

// SetPayoutID stores the payout destination (UPI-style handle). It may be
// overwritten at any time.
func (s *Service) SetPayoutID(ctx context.Context, id, payoutID string) (accounts.Account, error) {
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" || !strings.Contains(payoutID, "@") {
		return accounts.Account{}, ErrInvalidPayoutID
	}

	acc, err := s.store.Update(ctx, id, func(acc *accounts.Account) error {
		acc.PayoutID = payoutID

		return nil
	})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("set payout id: %w", err)
	}

	return acc, nil
}

// RequestWithdrawal converts the whole withdrawable balance to rupees and
// records the pending request. Coins not evenly divisible by the conversion
// rate stay on the balance. The WithdrawalRequested event is published after
// the update commits, outside any store lock.
func (s *Service) RequestWithdrawal(ctx context.Context, id string) (int64, error) {
	var ev events.WithdrawalRequested

	_, err := s.store.Update(ctx, id, func(acc *accounts.Account) error {
		// The pending check comes first: a request while one is
		// outstanding always reports the pending state, not the
		// drained balance it left behind.
		if acc.PendingWithdrawal != 0 {
			return ErrWithdrawalPending
		}

		if acc.Balance < s.cfg.MinWithdrawal() {
			return ErrInsufficientBalance
		}

		if acc.PayoutID == "" {
			return ErrPayoutNotSet
		}

		rupees := acc.Balance / s.cfg.ConversionRate
		acc.Balance %= s.cfg.ConversionRate
		acc.PendingWithdrawal = rupees

		ev = events.WithdrawalRequested{
			EventID:     events.NewEventID(),
			AccountID:   id,
			Rupees:      rupees,
			PayoutID:    acc.PayoutID,
			RequestedAt: s.now().UTC(),
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("request withdrawal: %w", err)
	}

	s.emitRequested(ctx, ev)

	return ev.Rupees, nil
}

// ApproveWithdrawal completes the pending request for targetID. Only the
// configured owner identity may approve; the supplied admin id is compared,
// never authenticated here.
func (s *Service) ApproveWithdrawal(ctx context.Context, adminID, targetID string) (int64, error) {
	if adminID != s.cfg.OwnerID {
		return 0, ErrNotAuthorized
	}

	var ev events.WithdrawalCompleted

	_, err := s.store.Update(ctx, targetID, func(acc *accounts.Account) error {
		if acc.PendingWithdrawal == 0 {
			return ErrNoPendingWithdrawal
		}

		amount := acc.PendingWithdrawal
		acc.WithdrawalHistory = append(acc.WithdrawalHistory, amount)
		acc.PendingWithdrawal = 0

		ev = events.WithdrawalCompleted{
			EventID:     events.NewEventID(),
			AccountID:   targetID,
			Rupees:      amount,
			CompletedAt: s.now().UTC(),
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("approve withdrawal: %w", err)
	}

	s.emitCompleted(ctx, ev)

	return ev.Rupees, nil
}
