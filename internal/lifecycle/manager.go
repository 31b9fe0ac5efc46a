// Package lifecycle expires lapsed subscriptions and drives scheduled renewals.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/platform/metrics"
)

const defaultBatchSize = 200

// errSkipped marks a subscription that no longer qualifies once re-read inside the transaction
var errSkipped = errors.New("subscription no longer lapsed")

// SweepResult summarizes one expiry sweep
type SweepResult struct {
	ProcessedCount     int   `json:"processed_count"`
	RevokedAccessCount int64 `json:"revoked_access_count"`
}

// Manager expires active, non-renewing subscriptions past their expiry
type Manager struct {
	uow       store.UnitOfWork
	recorder  audit.Recorder
	metrics   *metrics.Collector
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

func NewManager(logger *slog.Logger, uow store.UnitOfWork, recorder audit.Recorder, collector *metrics.Collector, batchSize int) *Manager {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Manager{
		uow:       uow,
		recorder:  recorder,
		metrics:   collector,
		logger:    logger,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Sweep expires every lapsed subscription in batches and revokes the access
// each one granted. Running it again finds nothing left to do.
func (m *Manager) Sweep(ctx context.Context) (*SweepResult, error) {
	now := m.now()
	result := &SweepResult{}
	seen := make(map[uuid.UUID]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := m.uow.Repositories().Subscriptions.ListLapsed(ctx, now, m.batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to list lapsed subscriptions: %w", err)
		}

		progressed := false
		for _, sub := range batch {
			if _, ok := seen[sub.ID]; ok {
				continue
			}
			seen[sub.ID] = struct{}{}
			progressed = true

			revoked, err := m.expire(ctx, sub.ID, now)
			if errors.Is(err, errSkipped) {
				continue
			}
			if err != nil {
				m.logger.Error("Failed to expire subscription", "subscription_id", sub.ID.String(), "error", err)
				continue
			}
			result.ProcessedCount++
			result.RevokedAccessCount += revoked
		}

		// A batch with only already-attempted rows means the rest keep failing
		if len(batch) < m.batchSize || !progressed {
			break
		}
	}

	m.metrics.SubscriptionsExpired(result.ProcessedCount, int(result.RevokedAccessCount))
	if result.ProcessedCount > 0 {
		m.logger.Info("Expired lapsed subscriptions", "processed_count", result.ProcessedCount, "revoked_access_count", result.RevokedAccessCount)
	}
	return result, nil
}

func (m *Manager) expire(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	var before, after *monetization.Subscription
	var revoked int64
	err := m.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		current, err := tx.Subscriptions.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != monetization.SubscriptionActive || current.AutoRenew || !current.ExpiresAt.Before(now) {
			return errSkipped
		}
		snapshot := *current
		before = &snapshot

		current.Expire(now)
		if err := tx.Subscriptions.Update(ctx, current); err != nil {
			return err
		}
		if revoked, err = tx.Content.RevokeBySource(ctx, id.String()); err != nil {
			return fmt.Errorf("failed to revoke access of %s: %w", id, err)
		}
		after = current

		msg, err := outbox.NewMessage(outbox.EventSubscriptionExpired, id.String(), "", current, now)
		if err != nil {
			return fmt.Errorf("failed to create outbox message payload for %s: %w", id, err)
		}
		return tx.Outbox.Create(ctx, msg)
	})
	if err != nil {
		return 0, err
	}

	m.recorder.Record(ctx, audit.Record{
		TransactionID: id.String(),
		Action:        audit.ActionSubscriptionExpired,
		EntityType:    audit.EntitySubscription,
		EntityID:      id.String(),
		ActorID:       shared.ActorScheduler,
		Before:        map[string]any{"status": before.Status, "expires_at": before.ExpiresAt},
		After:         map[string]any{"status": after.Status, "revoked_grants": revoked},
		Reason:        "subscription lapsed without renewal",
	})
	return revoked, nil
}
