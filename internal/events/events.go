package events

import (
	"context"
	"log/slog"
	"time"
)

// WithdrawalRequested is emitted after a withdrawal request commits. The
// external notification path delivers it to the payout operator.
type WithdrawalRequested struct {
	EventID     string    `json:"eventId"`
	AccountID   string    `json:"accountId"`
	Rupees      int64     `json:"rupees"`
	PayoutID    string    `json:"payoutId"`
	RequestedAt time.Time `json:"requestedAt"`
}

// WithdrawalCompleted is emitted after the owner approves a withdrawal.
type WithdrawalCompleted struct {
	EventID     string    `json:"eventId"`
	AccountID   string    `json:"accountId"`
	Rupees      int64     `json:"rupees"`
	CompletedAt time.Time `json:"completedAt"`
}

// Publisher delivers withdrawal domain events to the external notification
// path. Delivery is best-effort and at-least-once; a failed publish must never
// roll back the committed ledger mutation that produced the event.
type Publisher interface {
	PublishWithdrawalRequested(ctx context.Context, ev WithdrawalRequested) error
	PublishWithdrawalCompleted(ctx context.Context, ev WithdrawalCompleted) error
	Close() error
}

// LogPublisher records events in the service log. It stands in for the broker
// when no AMQP endpoint is configured or the broker is unreachable at startup.
type LogPublisher struct{}

func (LogPublisher) PublishWithdrawalRequested(_ context.Context, ev WithdrawalRequested) error {
	slog.Info("withdrawal requested",
		"event_id", ev.EventID, "account_id", ev.AccountID,
		"rupees", ev.Rupees, "payout_id", ev.PayoutID)

	return nil
}

func (LogPublisher) PublishWithdrawalCompleted(_ context.Context, ev WithdrawalCompleted) error {
	slog.Info("withdrawal completed",
		"event_id", ev.EventID, "account_id", ev.AccountID, "rupees", ev.Rupees)

	return nil
}

func (LogPublisher) Close() error { return nil }
