package worker

import (
	"log/slog"

	"github.com/creator-coin-ledger/internal/config"
)

// CreateConfirmationService bounds base with a worker pool sized from config.
// When the pool cannot be created it falls back to base.
func CreateConfirmationService(base ConfirmationService, cfg *config.WorkerPoolConfig, logger *slog.Logger) ConfirmationService {
	pooled, err := NewPoolService(base, cfg.Size, logger.With("component", "worker_pool"))
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return base
	}

	logger.Info("Created worker pool confirmation service", "pool_size", cfg.Size)
	return pooled
}
