// Package idempotency deduplicates logical operations by client-supplied key:
// of any number of concurrent or retried calls sharing a key, at most one
// runs, and later callers receive its cached outcome.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/creator-coin-ledger/internal/domain/idempotency"
	"github.com/creator-coin-ledger/internal/domain/shared"
)

// Outcome tells the caller what to do with a key
type Outcome int

const (
	// Proceed means the caller now holds the key and must Complete or Fail it
	Proceed Outcome = iota
	// InProgress means another caller holds the key
	InProgress
	// Replay means the key already completed; Decision.Result holds the outcome
	Replay
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case InProgress:
		return "in_progress"
	case Replay:
		return "replay"
	}
	return "unknown"
}

// Decision is the result of Begin
type Decision struct {
	Outcome Outcome
	Key     string
	Result  json.RawMessage
}

// Key namespaces a client key by operation and actor so one client key can
// never collide across users or operations.
func Key(operation, actorID, clientKey string) string {
	return strings.Join([]string{operation, actorID, clientKey}, ":")
}

// Guard is the Idempotency Guard
type Guard struct {
	repo   idempotency.Repository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewGuard(logger *slog.Logger, repo idempotency.Repository, ttl time.Duration) *Guard {
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Begin claims key. A failed or expired record is taken over.
func (g *Guard) Begin(ctx context.Context, key string) (Decision, error) {
	now := g.now()
	rec, acquired, err := g.repo.Acquire(ctx, key, now, now.Add(g.ttl))
	if err != nil {
		g.logger.Error("Failed to acquire idempotency key", "idempotency_key", key, "error", err)
		return Decision{}, fmt.Errorf("failed to acquire idempotency key %s: %w", key, err)
	}
	if acquired {
		return Decision{Outcome: Proceed, Key: key}, nil
	}

	if rec.Status == idempotency.StatusCompleted {
		g.logger.Debug("Replaying completed idempotency key", "idempotency_key", key)
		return Decision{Outcome: Replay, Key: key, Result: rec.Result}, nil
	}
	return Decision{Outcome: InProgress, Key: key}, nil
}

// Complete caches result as the single outcome of key
func (g *Guard) Complete(ctx context.Context, key string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for idempotency key %s: %w", key, err)
	}
	// the money already moved; a cancelled request must not leave the key processing
	if err := g.repo.Complete(context.WithoutCancel(ctx), key, raw, g.now()); err != nil {
		g.logger.Error("Failed to complete idempotency key", "idempotency_key", key, "error", err)
		return fmt.Errorf("failed to complete idempotency key %s: %w", key, err)
	}
	return nil
}

// Fail releases key so a retry may run again
func (g *Guard) Fail(ctx context.Context, key string, cause error) error {
	reason := ""
	if cause != nil {
		reason = string(shared.CodeOf(cause))
		if e, ok := shared.AsError(cause); ok && e.Message != "" {
			reason += ": " + e.Message
		}
	}
	if err := g.repo.Fail(context.WithoutCancel(ctx), key, reason, g.now()); err != nil {
		g.logger.Error("Failed to mark idempotency key failed", "idempotency_key", key, "error", err)
		return fmt.Errorf("failed to fail idempotency key %s: %w", key, err)
	}
	return nil
}

// Cleanup deletes expired records. Expiry only frees storage: a completed
// operation stays completed in the ledger.
func (g *Guard) Cleanup(ctx context.Context) (int64, error) {
	n, err := g.repo.DeleteExpired(ctx, g.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}
	return n, nil
}

// Janitor runs Cleanup on a fixed interval
type Janitor struct {
	guard    *Guard
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(logger *slog.Logger, guard *Guard, interval time.Duration) *Janitor {
	return &Janitor{guard: guard, interval: interval, logger: logger}
}

// Start blocks until ctx is cancelled
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting idempotency janitor", "interval", j.interval.String())
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Idempotency janitor stopping due to context cancellation.")
			return
		case <-ticker.C:
			n, err := j.guard.Cleanup(ctx)
			if err != nil {
				j.logger.Error("Idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Info("Deleted expired idempotency records", "count", n)
			}
		}
	}
}
