package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-coin-ledger/internal/data/memory"
	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/logger"
	"github.com/creator-coin-ledger/internal/platform/metrics"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	svc       *Service
	mem       *memory.Store
	audit     *memory.AuditRepository
	collector *metrics.Collector
}

func newEnv() *env {
	mem := memory.NewStore()
	rec := memory.NewAuditRepository()
	collector := metrics.NewCollector()
	svc := NewService(logger.Discard(), mem, rec, collector).WithClock(func() time.Time { return testNow })
	return &env{svc: svc, mem: mem, audit: rec, collector: collector}
}

func (e *env) wallet(t *testing.T, owner string) *wallet.Wallet {
	t.Helper()
	w, err := e.mem.Repositories().Wallets.Get(context.Background(), owner)
	require.NoError(t, err)
	return w
}

func (e *env) transaction(t *testing.T, id uuid.UUID) *ledger.Transaction {
	t.Helper()
	tx, err := e.mem.Repositories().Transactions.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func (e *env) deposit(t *testing.T, owner string, amount int64) *ledger.Transaction {
	t.Helper()
	tx, err := e.svc.RequestDeposit(context.Background(), DepositRequest{OwnerID: owner, Amount: amount, Provider: "stripe"})
	require.NoError(t, err)
	return tx
}

func (e *env) confirm(t *testing.T, id uuid.UUID, ref string, outcome Outcome) *ConfirmResult {
	t.Helper()
	res, err := e.svc.ConfirmProviderTransaction(context.Background(), Confirmation{TransactionID: id, ProviderTxID: ref, Outcome: outcome})
	require.NoError(t, err)
	return res
}

func TestRequestDeposit(t *testing.T) {
	e := newEnv()

	tx := e.deposit(t, "fan", 1000)
	assert.Equal(t, ledger.StatusPending, tx.Status)
	assert.Equal(t, ledger.KindDeposit, tx.Kind)
	assert.Equal(t, int64(1000), tx.Amount)
	assert.Equal(t, int64(0), e.wallet(t, "fan").Balance)

	records := e.audit.All()
	require.Len(t, records, 1)
	assert.Equal(t, audit.ActionDepositRequested, records[0].Action)

	t.Run("InvalidRequests", func(t *testing.T) {
		_, err := e.svc.RequestDeposit(context.Background(), DepositRequest{OwnerID: "fan", Amount: 0, Provider: "stripe"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = e.svc.RequestDeposit(context.Background(), DepositRequest{OwnerID: "fan", Amount: 10})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestConfirm_Deposit(t *testing.T) {
	t.Run("SucceededCreditsWallet", func(t *testing.T) {
		e := newEnv()
		tx := e.deposit(t, "fan", 1000)

		res := e.confirm(t, tx.ID, "pi_1", OutcomeSucceeded)
		assert.False(t, res.Duplicate)
		assert.Equal(t, ledger.StatusCompleted, res.Transaction.Status)
		assert.Equal(t, "pi_1", res.Transaction.ProviderRef)
		assert.Equal(t, int64(1000), res.Transaction.BalanceAfter)

		w := e.wallet(t, "fan")
		assert.Equal(t, int64(1000), w.Balance)
		assert.Equal(t, int64(1000), w.TotalDeposited)

		msgs, err := e.mem.Repositories().Outbox.GetPending(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, outbox.EventDepositCompleted, msgs[0].EventType)
		assert.Equal(t, 1.0, e.collector.Value("creator_ledger_payment_confirmations_total", map[string]string{"outcome": "succeeded"}))
	})

	t.Run("RepeatedConfirmationIsNoop", func(t *testing.T) {
		e := newEnv()
		tx := e.deposit(t, "fan", 1000)
		e.confirm(t, tx.ID, "pi_1", OutcomeSucceeded)

		again := e.confirm(t, tx.ID, "pi_1", OutcomeSucceeded)
		assert.True(t, again.Duplicate)
		assert.Equal(t, int64(1000), e.wallet(t, "fan").Balance)
		assert.Equal(t, 1.0, e.collector.Value("creator_ledger_payment_confirmations_total", map[string]string{"outcome": "duplicate"}))
	})

	t.Run("ConcurrentConfirmationsCreditOnce", func(t *testing.T) {
		e := newEnv()
		tx := e.deposit(t, "fan", 1000)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = e.svc.ConfirmProviderTransaction(context.Background(), Confirmation{TransactionID: tx.ID, ProviderTxID: "pi_1", Outcome: OutcomeSucceeded})
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1000), e.wallet(t, "fan").Balance)
		assert.Equal(t, ledger.StatusCompleted, e.transaction(t, tx.ID).Status)
	})

	t.Run("FailedLeavesWalletUntouched", func(t *testing.T) {
		e := newEnv()
		tx := e.deposit(t, "fan", 1000)

		res, err := e.svc.ConfirmProviderTransaction(context.Background(), Confirmation{TransactionID: tx.ID, ProviderTxID: "pi_2", Outcome: OutcomeFailed, Reason: "card declined"})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusFailed, res.Transaction.Status)
		assert.Equal(t, "card declined", res.Transaction.FailureReason)
		assert.Equal(t, int64(0), e.wallet(t, "fan").Balance)
	})

	t.Run("ReferenceOfAnotherTransaction", func(t *testing.T) {
		e := newEnv()
		first := e.deposit(t, "fan", 1000)
		second := e.deposit(t, "fan", 500)
		e.confirm(t, first.ID, "pi_1", OutcomeSucceeded)

		_, err := e.svc.ConfirmProviderTransaction(context.Background(), Confirmation{TransactionID: second.ID, ProviderTxID: "pi_1", Outcome: OutcomeSucceeded})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Equal(t, ledger.StatusPending, e.transaction(t, second.ID).Status)
	})

	t.Run("AlreadySettledWithOtherReference", func(t *testing.T) {
		e := newEnv()
		tx := e.deposit(t, "fan", 1000)
		e.confirm(t, tx.ID, "pi_1", OutcomeSucceeded)

		_, err := e.svc.ConfirmProviderTransaction(context.Background(), Confirmation{TransactionID: tx.ID, ProviderTxID: "pi_9", Outcome: OutcomeSucceeded})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Equal(t, int64(1000), e.wallet(t, "fan").Balance)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		e := newEnv()
		_, err := e.svc.ConfirmProviderTransaction(context.Background(), Confirmation{TransactionID: uuid.New(), ProviderTxID: "pi_1", Outcome: OutcomeSucceeded})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("UnknownOutcome", func(t *testing.T) {
		e := newEnv()
		tx := e.deposit(t, "fan", 1000)
		_, err := e.svc.ConfirmProviderTransaction(context.Background(), Confirmation{TransactionID: tx.ID, ProviderTxID: "pi_1", Outcome: "maybe"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestWithdrawal(t *testing.T) {
	fund := func(t *testing.T, e *env, amount int64) {
		t.Helper()
		tx := e.deposit(t, "fan", amount)
		e.confirm(t, tx.ID, "dep-"+tx.ID.String(), OutcomeSucceeded)
	}

	t.Run("DebitsImmediately", func(t *testing.T) {
		e := newEnv()
		fund(t, e, 1000)

		tx, err := e.svc.RequestWithdrawal(context.Background(), WithdrawalRequest{OwnerID: "fan", Amount: 400, Destination: "iban:DE00"})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, tx.Status)
		assert.Equal(t, int64(-400), tx.Amount)
		assert.Equal(t, int64(600), tx.BalanceAfter)
		assert.Equal(t, int64(600), e.wallet(t, "fan").Balance)

		res := e.confirm(t, tx.ID, "po_1", OutcomeSucceeded)
		assert.Equal(t, ledger.StatusCompleted, res.Transaction.Status)
		assert.Equal(t, int64(600), e.wallet(t, "fan").Balance)
	})

	t.Run("FailedPayoutIsReturned", func(t *testing.T) {
		e := newEnv()
		fund(t, e, 1000)

		tx, err := e.svc.RequestWithdrawal(context.Background(), WithdrawalRequest{OwnerID: "fan", Amount: 400, Destination: "iban:DE00"})
		require.NoError(t, err)

		res := e.confirm(t, tx.ID, "po_1", OutcomeFailed)
		assert.Equal(t, ledger.StatusFailed, res.Transaction.Status)
		assert.Equal(t, int64(1000), e.wallet(t, "fan").Balance)

		refunds, err := e.mem.Repositories().Transactions.ListByReference(context.Background(), tx.ID.String())
		require.NoError(t, err)
		require.Len(t, refunds, 1)
		assert.Equal(t, ledger.KindRefund, refunds[0].Kind)
		assert.Equal(t, int64(400), refunds[0].Amount)

		again := e.confirm(t, tx.ID, "po_1", OutcomeFailed)
		assert.True(t, again.Duplicate)
		assert.Equal(t, int64(1000), e.wallet(t, "fan").Balance)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		e := newEnv()
		fund(t, e, 100)

		_, err := e.svc.RequestWithdrawal(context.Background(), WithdrawalRequest{OwnerID: "fan", Amount: 400, Destination: "iban:DE00"})
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
		assert.Equal(t, int64(100), e.wallet(t, "fan").Balance)
	})
}
