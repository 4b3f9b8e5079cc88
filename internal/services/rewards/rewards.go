package rewards

import (
	"context"
	"log/slog"
	"time"

	"github.com/fastprodman/referearn/internal/events"
	"github.com/fastprodman/referearn/internal/repos/accounts"
)

// Config holds the owner identity and the reward constants, fixed at startup.
type Config struct {
	OwnerID                 string
	ReferralReward          int64
	ReferralBonus           int64
	ConversionRate          int64
	DailyBonus              int64
	MinWithdrawalMultiplier int64
}

// MinWithdrawal is the smallest coin balance that can be withdrawn.
func (c Config) MinWithdrawal() int64 {
	return c.ConversionRate * c.MinWithdrawalMultiplier
}

// Service implements the reward ledger operations. All mutations go through
// the account store's atomic update path; the service itself is stateless and
// safe for concurrent use.
type Service struct {
	store  accounts.Store
	events events.Publisher
	cfg    Config

	now func() time.Time
}

func New(store accounts.Store, publisher events.Publisher, cfg Config) *Service {
	return &Service{
		store:  store,
		events: publisher,
		cfg:    cfg,
		now:    time.Now,
	}
}

// today is the current calendar date in UTC, the granularity of the daily bonus.
func (s *Service) today() string {
	return s.now().UTC().Format(time.DateOnly)
}

func (s *Service) emitRequested(ctx context.Context, ev events.WithdrawalRequested) {
	err := s.events.PublishWithdrawalRequested(ctx, ev)
	if err != nil {
		// The ledger mutation already committed; notification is
		// best-effort and must not be rolled back.
		slog.Warn("failed to publish withdrawal requested event",
			"account_id", ev.AccountID, "rupees", ev.Rupees, "error", err)
	}
}

func (s *Service) emitCompleted(ctx context.Context, ev events.WithdrawalCompleted) {
	err := s.events.PublishWithdrawalCompleted(ctx, ev)
	if err != nil {
		slog.Warn("failed to publish withdrawal completed event",
			"account_id", ev.AccountID, "rupees", ev.Rupees, "error", err)
	}
}
