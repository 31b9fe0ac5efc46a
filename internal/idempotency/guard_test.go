package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-coin-ledger/internal/data/memory"
	"github.com/creator-coin-ledger/internal/domain/idempotency"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/logger"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGuard() (*Guard, *clock) {
	c := &clock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	g := NewGuard(logger.Discard(), memory.NewIdempotencyRepository(), 24*time.Hour).WithClock(c.now)
	return g, c
}

func TestKey(t *testing.T) {
	assert.Equal(t, "unlock:alice:k1", Key("unlock", "alice", "k1"))
	assert.NotEqual(t, Key("unlock", "alice", "k1"), Key("unlock", "bob", "k1"))
}

func TestGuard_Lifecycle(t *testing.T) {
	g, _ := newTestGuard()
	ctx := context.Background()

	d, err := g.Begin(ctx, "unlock:alice:k1")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d.Outcome)

	d, err = g.Begin(ctx, "unlock:alice:k1")
	require.NoError(t, err)
	assert.Equal(t, InProgress, d.Outcome)

	require.NoError(t, g.Complete(ctx, "unlock:alice:k1", map[string]int{"amount": 300}))

	d, err = g.Begin(ctx, "unlock:alice:k1")
	require.NoError(t, err)
	assert.Equal(t, Replay, d.Outcome)
	assert.JSONEq(t, `{"amount":300}`, string(d.Result))
}

func TestGuard_FailedKeyCanBeRetried(t *testing.T) {
	g, _ := newTestGuard()
	ctx := context.Background()

	_, err := g.Begin(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, g.Fail(ctx, "k", shared.NewError(shared.CodeInsufficientBalance, "need 300")))

	d, err := g.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d.Outcome)
}

func TestGuard_ExpiredKeyIsReclaimed(t *testing.T) {
	g, c := newTestGuard()
	ctx := context.Background()

	_, err := g.Begin(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, g.Complete(ctx, "k", json.RawMessage(`{}`)))

	c.advance(24 * time.Hour)
	d, err := g.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Proceed, d.Outcome)
}

func TestGuard_ConcurrentBeginSingleWinner(t *testing.T) {
	g, _ := newTestGuard()
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Begin(ctx, "shared")
			if err == nil {
				outcomes <- d.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[Proceed])
	assert.Equal(t, callers-1, counts[InProgress])
}

func TestGuard_Cleanup(t *testing.T) {
	g, c := newTestGuard()
	ctx := context.Background()

	_, err := g.Begin(ctx, "old")
	require.NoError(t, err)
	c.advance(25 * time.Hour)
	_, err = g.Begin(ctx, "fresh")
	require.NoError(t, err)

	n, err := g.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

type brokenRepo struct{ idempotency.Repository }

func (brokenRepo) Acquire(context.Context, string, time.Time, time.Time) (*idempotency.Record, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestGuard_BeginStoreError(t *testing.T) {
	g := NewGuard(logger.Discard(), brokenRepo{}, time.Hour)
	_, err := g.Begin(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
