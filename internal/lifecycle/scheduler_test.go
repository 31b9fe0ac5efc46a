package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/creator-coin-ledger/internal/data/memory"
	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/idempotency"
	"github.com/creator-coin-ledger/internal/ledgerstore"
	"github.com/creator-coin-ledger/internal/logger"
	"github.com/creator-coin-ledger/internal/platform/metrics"
	"github.com/creator-coin-ledger/internal/processor"
	"github.com/creator-coin-ledger/internal/risk"
)

type MockRenewer struct {
	mock.Mock
}

func (m *MockRenewer) Renew(ctx context.Context, req processor.RenewRequest) (*processor.RenewResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*processor.RenewResult)
	return res, args.Error(1)
}

func forSubscription(sub *monetization.Subscription) any {
	return mock.MatchedBy(func(req processor.RenewRequest) bool { return req.SubscriptionID == sub.ID })
}

func TestScheduler_RenewDue(t *testing.T) {
	e := newEnv(10)
	jan1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	paid := e.subscribe(t, "fan-1", jan1, true)
	broke := e.subscribe(t, "fan-2", jan1, true)
	e.subscribe(t, "fan-3", sweepAt.Add(-time.Hour), true)
	e.subscribe(t, "fan-4", jan1, false)

	renewer := new(MockRenewer)
	renewer.On("Renew", mock.Anything, forSubscription(paid)).
		Return(&processor.RenewResult{SubscriptionID: paid.ID, ExpiresAt: paid.NextExpiry(), RenewalCount: 1}, nil).Once()
	renewer.On("Renew", mock.Anything, forSubscription(broke)).
		Return(nil, shared.NewError(shared.CodeInsufficientBalance, "no funds")).Once()

	collector := metrics.NewCollector()
	s := NewScheduler(logger.Discard(), e.m, renewer, e.mem, collector, time.Minute)

	summary, err := s.RenewDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RenewalSummary{Renewed: 1, Failed: 1}, summary)
	renewer.AssertExpectations(t)

	assert.Equal(t, 1.0, collector.Value("creator_ledger_subscription_renewals_total", map[string]string{"outcome": metrics.OutcomeOK}))
	assert.Equal(t, 1.0, collector.Value("creator_ledger_subscription_renewals_total", map[string]string{"outcome": string(shared.CodeInsufficientBalance)}))
}

type lapseEnv struct {
	mem     *memory.Store
	wallets *ledgerstore.Store
	proc    *processor.Processor
	now     *time.Time
	sub     *processor.SubscribeResult
}

// newLapseEnv subscribes "fan" to "creator" monthly for 500 coins on
// 2025-01-01 with a real processor and a subscriber-only post.
func newLapseEnv(t *testing.T, deposit int64) *lapseEnv {
	t.Helper()
	ctx := context.Background()
	mem := memory.NewStore()
	rec := memory.NewAuditRepository()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	log := logger.Discard()

	wallets := ledgerstore.New(log, mem, rec).WithClock(clock)
	guard := idempotency.NewGuard(log, memory.NewIdempotencyRepository(), time.Hour).WithClock(clock)
	engine := risk.NewEngine(log, memory.NewCounterStore(), rec, nil).WithClock(clock)
	proc := processor.New(log, mem, wallets, guard, engine, rec, nil, processor.Options{PlatformWalletID: "platform", RenewalCooldown: time.Hour}).WithClock(clock)

	require.NoError(t, mem.Repositories().Content.Upsert(ctx, &content.Item{
		ID: "members-1", OwnerID: "creator", Price: 100, Published: true, SubscriberOnly: true, CreatedAt: now,
	}))
	require.NoError(t, mem.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, _, err := ledgerstore.Post(ctx, repos, ledgerstore.Entry{OwnerID: "fan", Kind: ledger.KindDeposit, Amount: deposit, Stat: wallet.StatDeposited}, now)
		return err
	}))

	sub, err := proc.Subscribe(ctx, processor.SubscribeRequest{SubscriberID: "fan", CreatorID: "creator", Tier: monetization.TierMonthly, Price: 500})
	require.NoError(t, err)

	return &lapseEnv{mem: mem, wallets: wallets, proc: proc, now: &now, sub: sub}
}

// tickAt runs one scheduler pass with the clock set to at
func (e *lapseEnv) tickAt(ctx context.Context, at time.Time) {
	*e.now = at
	clock := func() time.Time { return *e.now }
	manager := NewManager(logger.Discard(), e.mem, memory.NewAuditRepository(), nil, 10).WithClock(clock)
	NewScheduler(logger.Discard(), manager, e.proc, e.mem, nil, time.Minute).tick(ctx)
}

func (e *lapseEnv) assertLapsed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	got, err := e.mem.Repositories().Subscriptions.Get(ctx, e.sub.SubscriptionID)
	require.NoError(t, err)
	assert.False(t, got.AutoRenew)
	assert.Equal(t, monetization.SubscriptionExpired, got.Status)

	ok, err := e.mem.Repositories().Content.HasAccess(ctx, "members-1", "fan")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Unpaid renewal followed by the sweep, against the real processor
func TestScheduler_UnpaidRenewalLapses(t *testing.T) {
	e := newLapseEnv(t, 500)
	e.tickAt(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	e.assertLapsed(t)
}

func TestScheduler_FrozenSubscriberLapses(t *testing.T) {
	ctx := context.Background()
	e := newLapseEnv(t, 5000)

	frozen, err := e.wallets.Freeze(ctx, "fan", "chargeback", "admin")
	require.NoError(t, err)
	require.True(t, frozen)

	e.tickAt(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	e.assertLapsed(t)

	w, err := e.mem.Repositories().Wallets.Get(ctx, "fan")
	require.NoError(t, err)
	assert.Equal(t, int64(4500), w.Balance)
}
