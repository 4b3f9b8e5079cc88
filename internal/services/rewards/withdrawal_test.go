package rewards

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetPayoutID(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.SetPayoutID(ctx, "1", " user@bank ")
	require.NoError(t, err)
	require.Equal(t, "user@bank", acc.PayoutID)

	// overwritable any time
	acc, err = svc.SetPayoutID(ctx, "1", "other@bank")
	require.NoError(t, err)
	require.Equal(t, "other@bank", acc.PayoutID)

	_, err = svc.SetPayoutID(ctx, "1", "no-at-sign")
	require.ErrorIs(t, err, ErrInvalidPayoutID)

	_, err = svc.SetPayoutID(ctx, "1", "   ")
	require.ErrorIs(t, err, ErrInvalidPayoutID)
}

func TestRequestWithdrawal_ConvertsAndKeepsRemainder(t *testing.T) {
	t.Parallel()

	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetPayoutID(ctx, "A", "a@upi")
	require.NoError(t, err)
	setBalance(t, svc, "A", 105)

	rupees, err := svc.RequestWithdrawal(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, int64(10), rupees)

	acc, err := svc.Touch(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, int64(5), acc.Balance)
	require.Equal(t, int64(10), acc.PendingWithdrawal)

	reqs := pub.requestedEvents()
	require.Len(t, reqs, 1)
	require.Equal(t, "A", reqs[0].AccountID)
	require.Equal(t, int64(10), reqs[0].Rupees)
	require.Equal(t, "a@upi", reqs[0].PayoutID)
	require.NotEmpty(t, reqs[0].EventID)
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	// below minimum
	setBalance(t, svc, "low", 99)

	_, err := svc.RequestWithdrawal(ctx, "low")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// no payout destination
	setBalance(t, svc, "nopayout", 200)

	_, err = svc.RequestWithdrawal(ctx, "nopayout")
	require.ErrorIs(t, err, ErrPayoutNotSet)

	// balance untouched by the failed attempts
	acc, err := svc.Touch(ctx, "nopayout")
	require.NoError(t, err)
	require.Equal(t, int64(200), acc.Balance)
}

func TestRequestWithdrawal_SecondRequestWhilePending(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetPayoutID(ctx, "A", "a@upi")
	require.NoError(t, err)
	setBalance(t, svc, "A", 250)

	rupees, err := svc.RequestWithdrawal(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, int64(25), rupees)

	_, err = svc.RequestWithdrawal(ctx, "A")
	require.ErrorIs(t, err, ErrWithdrawalPending)

	// exactly one deduction of rupees * rate
	acc, err := svc.Touch(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, int64(0), acc.Balance)
	require.Equal(t, int64(25), acc.PendingWithdrawal)
}

func TestApproveWithdrawal_FullCycle(t *testing.T) {
	t.Parallel()

	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetPayoutID(ctx, "A", "a@upi")
	require.NoError(t, err)
	setBalance(t, svc, "A", 105)

	_, err = svc.RequestWithdrawal(ctx, "A")
	require.NoError(t, err)

	// only the owner may approve
	_, err = svc.ApproveWithdrawal(ctx, "impostor", "A")
	require.ErrorIs(t, err, ErrNotAuthorized)

	amount, err := svc.ApproveWithdrawal(ctx, testConfig.OwnerID, "A")
	require.NoError(t, err)
	require.Equal(t, int64(10), amount)

	acc, err := svc.Touch(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, []int64{10}, acc.WithdrawalHistory)
	require.Zero(t, acc.PendingWithdrawal)

	comps := pub.completedEvents()
	require.Len(t, comps, 1)
	require.Equal(t, int64(10), comps[0].Rupees)

	// terminal per request
	_, err = svc.ApproveWithdrawal(ctx, testConfig.OwnerID, "A")
	require.ErrorIs(t, err, ErrNoPendingWithdrawal)

	// the account can enter Pending again
	setBalance(t, svc, "A", 100)

	_, err = svc.RequestWithdrawal(ctx, "A")
	require.NoError(t, err)

	amount, err = svc.ApproveWithdrawal(ctx, testConfig.OwnerID, "A")
	require.NoError(t, err)
	require.Equal(t, int64(10), amount)

	acc, err = svc.Touch(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, []int64{10, 10}, acc.WithdrawalHistory)
}

func TestApproveWithdrawal_NoPendingForUnknownTarget(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.ApproveWithdrawal(context.Background(), testConfig.OwnerID, "ghost")
	require.ErrorIs(t, err, ErrNoPendingWithdrawal)
}

func TestRequestWithdrawal_PublishFailureKeepsCommit(t *testing.T) {
	t.Parallel()

	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetPayoutID(ctx, "A", "a@upi")
	require.NoError(t, err)
	setBalance(t, svc, "A", 105)

	pub.failWith = errors.New("broker unreachable")

	rupees, err := svc.RequestWithdrawal(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, int64(10), rupees)

	// the ledger mutation stands even though the notification was dropped
	acc, err := svc.Touch(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, int64(10), acc.PendingWithdrawal)
}
