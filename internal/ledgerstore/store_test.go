package ledgerstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-coin-ledger/internal/data/memory"
	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/logger"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (r *recorder) Record(_ context.Context, rec audit.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func newTestStore() (*Store, *memory.Store, *recorder) {
	mem := memory.NewStore()
	rec := &recorder{}
	s := New(logger.Discard(), mem, rec).WithClock(func() time.Time { return testNow })
	return s, mem, rec
}

func TestStore_GetOrCreate(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	w, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)
	assert.Equal(t, wallet.StatusActive, w.Status)

	again, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, w.CreatedAt, again.CreatedAt)

	_, err = s.GetOrCreate(ctx, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestPost(t *testing.T) {
	s, mem, _ := newTestStore()
	ctx := context.Background()

	err := mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, _, err := Post(ctx, repos, Entry{OwnerID: "alice", Kind: ledger.KindDeposit, Amount: 1000, Stat: wallet.StatDeposited}, testNow)
		return err
	})
	require.NoError(t, err)

	var tx *ledger.Transaction
	err = mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		tx, _, err = Post(ctx, repos, Entry{OwnerID: "alice", Kind: ledger.KindPurchase, Amount: -300, Stat: wallet.StatSpent, ReferenceID: "evt-1"}, testNow)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), tx.BalanceBefore)
	assert.Equal(t, int64(700), tx.BalanceAfter)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)

	w, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(700), w.Balance)
	assert.Equal(t, int64(300), w.TotalSpent)
	assert.Equal(t, int64(1000), w.TotalDeposited)

	t.Run("RefusalIsInsufficientBalance", func(t *testing.T) {
		err := mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
			_, _, err := Post(ctx, repos, Entry{OwnerID: "alice", Kind: ledger.KindPurchase, Amount: -701}, testNow)
			return err
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
		assert.ErrorIs(t, err, wallet.ErrInsufficientFundsOrInactive{})
	})

	t.Run("ZeroAmountRejected", func(t *testing.T) {
		err := mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
			_, _, err := Post(ctx, repos, Entry{OwnerID: "alice", Kind: ledger.KindAdjustment}, testNow)
			return err
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestStore_FreezeUnfreeze(t *testing.T) {
	s, mem, rec := newTestStore()
	ctx := context.Background()

	require.NoError(t, mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, _, err := Post(ctx, repos, Entry{OwnerID: "bob", Kind: ledger.KindDeposit, Amount: 500, Stat: wallet.StatDeposited}, testNow)
		return err
	}))

	changed, err := s.Freeze(ctx, "bob", "chargeback", "admin-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Freeze(ctx, "bob", "chargeback", "admin-1")
	require.NoError(t, err)
	assert.False(t, changed, "freezing twice is a no-op")

	err = mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, _, err := Post(ctx, repos, Entry{OwnerID: "bob", Kind: ledger.KindPurchase, Amount: -10}, testNow)
		return err
	})
	assert.ErrorIs(t, err, shared.ErrUnauthorized, "frozen wallets cannot be debited")

	err = mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, _, err := Post(ctx, repos, Entry{OwnerID: "bob", Kind: ledger.KindRefund, Amount: 10}, testNow)
		return err
	})
	assert.NoError(t, err, "frozen wallets still accept credits")

	changed, err = s.Unfreeze(ctx, "bob", "resolved", "admin-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Unfreeze(ctx, "bob", "resolved", "admin-1")
	require.NoError(t, err)
	assert.False(t, changed)

	require.Len(t, rec.records, 2)
	assert.Equal(t, audit.ActionWalletFrozen, rec.records[0].Action)
	assert.Equal(t, "chargeback", rec.records[0].Reason)
	assert.Equal(t, audit.ActionWalletUnfrozen, rec.records[1].Action)
	assert.Equal(t, wallet.StatusFrozen, rec.records[1].Before["status"])
}

func TestStore_FreezeClosedWallet(t *testing.T) {
	s, mem, _ := newTestStore()
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "carol")
	require.NoError(t, err)
	_, err = mem.Repositories().Wallets.SetStatus(ctx, "carol", []wallet.Status{wallet.StatusActive}, wallet.StatusClosed, "closed", testNow)
	require.NoError(t, err)

	_, err = s.Freeze(ctx, "carol", "fraud", "admin")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
