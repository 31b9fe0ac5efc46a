package worker

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/creator-coin-ledger/internal/payments"
)

// PoolService bounds how many confirmations are applied concurrently. Each
// call blocks until its task finished so the consumer commits in order.
type PoolService struct {
	base   ConfirmationService
	pool   *ants.Pool
	logger *slog.Logger
}

func NewPoolService(base ConfirmationService, size int, logger *slog.Logger) (*PoolService, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &PoolService{base: base, pool: pool, logger: logger}, nil
}

// ConfirmProviderTransaction runs the confirmation on a pooled worker
func (s *PoolService) ConfirmProviderTransaction(ctx context.Context, c payments.Confirmation) (*payments.ConfirmResult, error) {
	logger := s.logger
	if c.CorrelationID != "" {
		logger = s.logger.With("correlation_id", c.CorrelationID)
	}

	type outcome struct {
		res *payments.ConfirmResult
		err error
	}
	done := make(chan outcome, 1)

	err := s.pool.Submit(func() {
		res, err := s.base.ConfirmProviderTransaction(ctx, c)
		done <- outcome{res: res, err: err}
	})
	if err != nil {
		logger.Error("Failed to submit confirmation to worker pool", "transaction_id", c.TransactionID.String(), "error", err)
		return nil, err
	}

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown releases the pool
func (s *PoolService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

func (s *PoolService) Running() int {
	return s.pool.Running()
}

func (s *PoolService) Capacity() int {
	return s.pool.Cap()
}
