package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/platform/messaging/producers"
	"github.com/creator-coin-ledger/internal/platform/metrics"
)

// Outbox message outcomes reported to metrics
const (
	outboxPublished = "published"
	outboxRetry     = "retry"
	outboxDead      = "failed_to_publish"
)

// Poller publishes pending outbox messages to the events topic
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        producers.EventPublisher
	metrics          *metrics.Collector
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher producers.EventPublisher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		metrics:          collector,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.ProcessPending(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

// ProcessPending publishes one batch in creation order
func (p *Poller) ProcessPending(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}
	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "event_type", msg.EventType, "aggregate_id", msg.AggregateID)
		if event, err := msg.Event(); err == nil && event.CorrelationID != "" {
			logger = logger.With("correlation_id", event.CorrelationID)
		}

		if err := p.publisher.PublishEvent(ctx, msg.AggregateID, msg.EventType, msg.Payload); err != nil {
			p.recordFailure(ctx, msg, err, logger)
			continue
		}

		if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusProcessed); err != nil {
			// the event may be published twice; consumers dedupe on the event id
			logger.Error("Event published but failed to mark outbox message as PROCESSED", "error", err)
			continue
		}
		p.metrics.OutboxMessage(outboxPublished)
		logger.Debug("Published outbox message")
	}
	return nil
}

func (p *Poller) recordFailure(ctx context.Context, msg *outbox.Message, cause error, logger *slog.Logger) {
	logger.Error("Failed to publish outbox message", "current_attempts", msg.Attempts, "error", cause)

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		logger.Error("Failed to increment attempts for outbox message", "error", err)
		return
	}
	if msg.Attempts+1 < p.maxRetryAttempts {
		p.metrics.OutboxMessage(outboxRetry)
		return
	}

	logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH", "attempts_made", msg.Attempts+1)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", err)
		return
	}
	p.metrics.OutboxMessage(outboxDead)
}
