package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/creator-coin-ledger/internal/data/memory"
	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/revenue"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/idempotency"
	"github.com/creator-coin-ledger/internal/ledgerstore"
	"github.com/creator-coin-ledger/internal/logger"
	"github.com/creator-coin-ledger/internal/risk"
)

const platformWallet = "platform"

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	proc    *Processor
	mem     *memory.Store
	audit   *memory.AuditRepository
	clock   *clock
	wallets *ledgerstore.Store
}

type option func(*Options)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	return newFixtureWithRisk(t, nil, opts...)
}

// newFixtureWithRisk wires the real risk engine unless engine is given
func newFixtureWithRisk(t *testing.T, engine RiskEngine, opts ...option) *fixture {
	t.Helper()
	mem := memory.NewStore()
	rec := memory.NewAuditRepository()
	c := &clock{t: testStart}
	log := logger.Discard()

	wallets := ledgerstore.New(log, mem, rec).WithClock(c.now)
	guard := idempotency.NewGuard(log, memory.NewIdempotencyRepository(), time.Hour).WithClock(c.now)
	if engine == nil {
		engine = risk.NewEngine(log, memory.NewCounterStore(), rec, nil).WithClock(c.now)
	}

	o := Options{PlatformWalletID: platformWallet, RenewalCooldown: time.Hour, AutoFreeze: true}
	for _, opt := range opts {
		opt(&o)
	}
	proc := New(log, mem, wallets, guard, engine, rec, nil, o).WithClock(c.now)
	return &fixture{proc: proc, mem: mem, audit: rec, clock: c, wallets: wallets}
}

func (f *fixture) fund(t *testing.T, owner string, amount int64) {
	t.Helper()
	err := f.mem.ExecuteTx(context.Background(), func(ctx context.Context, repos store.Repositories) error {
		_, _, err := ledgerstore.Post(ctx, repos, ledgerstore.Entry{
			OwnerID: owner,
			Kind:    ledger.KindDeposit,
			Amount:  amount,
			Stat:    wallet.StatDeposited,
		}, f.clock.now())
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) publish(t *testing.T, id, owner string, price int64, subscriberOnly bool) {
	t.Helper()
	item := &content.Item{
		ID:             id,
		OwnerID:        owner,
		Price:          price,
		Published:      true,
		SubscriberOnly: subscriberOnly,
		CreatedAt:      testStart,
	}
	require.NoError(t, f.mem.Repositories().Content.Upsert(context.Background(), item))
}

func (f *fixture) wallet(t *testing.T, owner string) *wallet.Wallet {
	t.Helper()
	w, err := f.mem.Repositories().Wallets.Get(context.Background(), owner)
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, owner string) int64 {
	t.Helper()
	return f.wallet(t, owner).Balance
}

func (f *fixture) account(t *testing.T, creator string) *revenue.Account {
	t.Helper()
	a, err := f.mem.Repositories().Revenue.Get(context.Background(), creator)
	require.NoError(t, err)
	return a
}

func (f *fixture) hasAccess(t *testing.T, contentID, user string) bool {
	t.Helper()
	ok, err := f.mem.Repositories().Content.HasAccess(context.Background(), contentID, user)
	require.NoError(t, err)
	return ok
}

func (f *fixture) pendingEvents(t *testing.T) []*outbox.Message {
	t.Helper()
	msgs, err := f.mem.Repositories().Outbox.GetPending(context.Background(), 1000)
	require.NoError(t, err)
	return msgs
}

func (f *fixture) auditActions() []audit.Action {
	var out []audit.Action
	for _, r := range f.audit.All() {
		out = append(out, r.Action)
	}
	return out
}

func (f *fixture) transactionsOf(t *testing.T, owner string, kind ledger.Kind) []*ledger.Transaction {
	t.Helper()
	all, err := f.mem.Repositories().Transactions.ListByOwner(context.Background(), owner, 1000, 0)
	require.NoError(t, err)
	var out []*ledger.Transaction
	for _, tx := range all {
		if tx.Kind == kind {
			out = append(out, tx)
		}
	}
	return out
}

// stubRisk returns fixed decisions
type stubRisk struct {
	decision *risk.Decision
}

func (s *stubRisk) CheckUnlock(context.Context, risk.UnlockCheck) (*risk.Decision, error) {
	return s.decision, nil
}

func (s *stubRisk) CheckSubscribe(context.Context, risk.SubscribeCheck) (*risk.Decision, error) {
	return s.decision, nil
}

func (s *stubRisk) RecordUnlock(context.Context, string, string) error { return nil }

func (s *stubRisk) RecordCancellation(context.Context, string) error { return nil }
