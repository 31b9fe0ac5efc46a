package revenue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_Credit(t *testing.T) {
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	a := NewAccount("creator", jan)

	require.NoError(t, a.Credit(210, false, jan))
	require.NoError(t, a.Credit(70, true, jan))

	assert.Equal(t, int64(210), a.Available)
	assert.Equal(t, int64(70), a.Pending)
	assert.Equal(t, int64(280), a.LifetimeEarnings)
	assert.Equal(t, int64(280), a.CurrentMonthEarnings)
	assert.Equal(t, int64(3), a.Version)

	assert.ErrorIs(t, a.Credit(0, false, jan), ErrInvalidAmount)
}

func TestAccount_MonthRollover(t *testing.T) {
	jan := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	a := NewAccount("creator", jan)
	require.NoError(t, a.Credit(100, false, jan))

	feb := time.Date(2025, 2, 1, 1, 0, 0, 0, time.UTC)
	require.NoError(t, a.Credit(40, false, feb))
	assert.Equal(t, "2025-02", a.CurrentMonth)
	assert.Equal(t, int64(40), a.CurrentMonthEarnings)
	assert.Equal(t, int64(100), a.LastMonthEarnings)

	// skipping a month clears last month
	apr := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.Credit(5, false, apr))
	assert.Equal(t, int64(0), a.LastMonthEarnings)
	assert.Equal(t, int64(5), a.CurrentMonthEarnings)

	// year boundary
	dec := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.Credit(9, false, dec))
	nextJan := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, a.Credit(1, false, nextJan))
	assert.Equal(t, int64(9), a.LastMonthEarnings)
	assert.Equal(t, int64(155), a.LifetimeEarnings)
}

func TestAccount_Withdraw(t *testing.T) {
	at := time.Now().UTC()

	t.Run("RequiresVerifiedPaymentInfo", func(t *testing.T) {
		a := NewAccount("creator", at)
		require.NoError(t, a.Credit(500, false, at))
		_, err := a.Withdraw(100, at)
		assert.ErrorIs(t, err, ErrPaymentInfoNotVerified)
	})

	t.Run("RequiresAvailable", func(t *testing.T) {
		a := NewAccount("creator", at)
		a.PaymentInfoVerified = true
		require.NoError(t, a.Credit(500, true, at))
		_, err := a.Withdraw(100, at)
		assert.ErrorIs(t, err, ErrInsufficientAvailable)
	})

	t.Run("MovesAvailableToWithdrawn", func(t *testing.T) {
		a := NewAccount("creator", at)
		a.PaymentInfoVerified = true
		require.NoError(t, a.Credit(500, false, at))

		w, err := a.Withdraw(200, at)
		require.NoError(t, err)
		assert.Equal(t, WithdrawalPending, w.Status)
		assert.Equal(t, int64(200), w.Amount)
		assert.Equal(t, int64(300), a.Available)
		assert.Equal(t, int64(200), a.Withdrawn)

		a.ReturnWithdrawal(200, at)
		assert.Equal(t, int64(500), a.Available)
		assert.Equal(t, int64(0), a.Withdrawn)
	})
}

func TestAccount_SettlePending(t *testing.T) {
	at := time.Now().UTC()
	a := NewAccount("creator", at)
	require.NoError(t, a.Credit(300, true, at))

	moved, err := a.SettlePending(100, at)
	require.NoError(t, err)
	assert.Equal(t, int64(100), moved)
	assert.Equal(t, int64(200), a.Pending)
	assert.Equal(t, int64(100), a.Available)

	moved, err = a.SettlePending(0, at)
	require.NoError(t, err)
	assert.Equal(t, int64(200), moved)
	assert.Equal(t, int64(0), a.Pending)

	_, err = a.SettlePending(1, at)
	assert.ErrorIs(t, err, ErrInsufficientPending)
}

func TestAccount_Debit(t *testing.T) {
	at := time.Now().UTC()
	a := NewAccount("creator", at)
	require.NoError(t, a.Credit(210, false, at))

	require.NoError(t, a.Debit(210, at, at))
	assert.Equal(t, int64(0), a.Available)
	assert.Equal(t, int64(0), a.LifetimeEarnings)
	assert.Equal(t, int64(0), a.CurrentMonthEarnings)
	assert.ErrorIs(t, a.Debit(1, at, at), ErrInsufficientAvailable)
}

func TestAccount_DebitTakesHeldEarningsFirst(t *testing.T) {
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	a := NewAccount("creator", at)
	require.NoError(t, a.Credit(100, false, at))
	require.NoError(t, a.Credit(210, true, at))

	require.NoError(t, a.Debit(250, at, at))
	assert.Equal(t, int64(0), a.Pending)
	assert.Equal(t, int64(60), a.Available)
	assert.Equal(t, int64(60), a.CurrentMonthEarnings)
	assert.ErrorIs(t, a.Debit(61, at, at), ErrInsufficientAvailable)
}

func TestAccount_DebitOfEarlierMonthKeepsCurrentRollup(t *testing.T) {
	feb := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	a := NewAccount("creator", feb)
	require.NoError(t, a.Credit(700, false, feb))
	require.NoError(t, a.Credit(70, false, mar))

	require.NoError(t, a.Debit(700, feb, mar))
	assert.Equal(t, "2025-03", a.CurrentMonth)
	assert.Equal(t, int64(70), a.CurrentMonthEarnings)
	assert.Equal(t, int64(70), a.LifetimeEarnings)
	assert.Equal(t, int64(70), a.Available)
}
