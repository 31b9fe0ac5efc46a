package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/platform/metrics"
	"github.com/creator-coin-ledger/internal/processor"
)

// Renewer charges the next period of a subscription
type Renewer interface {
	Renew(ctx context.Context, req processor.RenewRequest) (*processor.RenewResult, error)
}

// RenewalSummary counts the outcomes of one renewal pass
type RenewalSummary struct {
	Renewed int
	Failed  int
}

// Scheduler periodically renews due subscriptions and sweeps lapsed ones.
// Renewal runs first so a subscription that can still be paid for is never
// expired in the same tick.
type Scheduler struct {
	manager   *Manager
	renewer   Renewer
	uow       store.UnitOfWork
	metrics   *metrics.Collector
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewScheduler(logger *slog.Logger, manager *Manager, renewer Renewer, uow store.UnitOfWork, collector *metrics.Collector, interval time.Duration) *Scheduler {
	return &Scheduler{
		manager:   manager,
		renewer:   renewer,
		uow:       uow,
		metrics:   collector,
		logger:    logger,
		interval:  interval,
		batchSize: manager.batchSize,
	}
}

// Start runs one pass immediately and then one per interval until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting subscription scheduler", "interval", s.interval.String(), "batch_size", s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Subscription scheduler stopping due to context cancellation.")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RenewDue(ctx); err != nil {
		s.logger.Error("Renewal pass failed", "error", err)
	}
	if _, err := s.manager.Sweep(ctx); err != nil {
		s.logger.Error("Expiry sweep failed", "error", err)
	}
}

// RenewDue attempts one batch of auto-renewing subscriptions whose period has
// ended. A renewal the subscriber's wallet refuses, for lack of funds or
// because it is frozen, turns auto-renew off, which hands the subscription to
// the next expiry sweep.
func (s *Scheduler) RenewDue(ctx context.Context) (*RenewalSummary, error) {
	due, err := s.uow.Repositories().Subscriptions.ListDueForRenewal(ctx, s.manager.now(), s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions due for renewal: %w", err)
	}

	summary := &RenewalSummary{}
	for _, sub := range due {
		logger := s.logger.With("subscription_id", sub.ID.String())
		res, err := s.renewer.Renew(ctx, processor.RenewRequest{
			SubscriptionID: sub.ID,
			Context:        processor.RequestContext{CorrelationID: "renewal-" + sub.ID.String()},
		})
		if err != nil {
			summary.Failed++
			s.metrics.Renewal(string(shared.CodeOf(err)))
			if code := shared.CodeOf(err); code == shared.CodeInsufficientBalance || code == shared.CodeUnauthorized {
				logger.Info("Scheduled renewal declined, auto renew disabled", "error", err)
			} else {
				logger.Warn("Scheduled renewal failed", "error", err)
			}
			continue
		}
		summary.Renewed++
		s.metrics.Renewal(metrics.OutcomeOK)
		logger.Debug("Scheduled renewal succeeded", "expires_at", res.ExpiresAt)
	}
	return summary, nil
}
