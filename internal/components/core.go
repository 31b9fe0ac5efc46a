// Package components assembles the monetization core from configuration and
// storage handles, shared by the API gateway and the background worker.
package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/data/memory"
	redisstore "github.com/creator-coin-ledger/internal/data/redis"
	"github.com/creator-coin-ledger/internal/domain/audit"
	idempotencyrepo "github.com/creator-coin-ledger/internal/domain/idempotency"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/idempotency"
	"github.com/creator-coin-ledger/internal/ledgerstore"
	"github.com/creator-coin-ledger/internal/lifecycle"
	"github.com/creator-coin-ledger/internal/payments"
	"github.com/creator-coin-ledger/internal/platform/metrics"
	"github.com/creator-coin-ledger/internal/platform/persistence"
	"github.com/creator-coin-ledger/internal/processor"
	"github.com/creator-coin-ledger/internal/revenue"
	"github.com/creator-coin-ledger/internal/risk"
)

// Infrastructure holds the storage handles the core runs on
type Infrastructure struct {
	UnitOfWork  store.UnitOfWork
	Idempotency idempotencyrepo.Repository
	Counters    risk.CounterStore
	Recorder    audit.Recorder
	Metrics     *metrics.Collector
}

// Core is the wired set of monetization services
type Core struct {
	Wallets   *ledgerstore.Store
	Guard     *idempotency.Guard
	Risk      *risk.Engine
	Processor *processor.Processor
	Revenue   *revenue.Service
	Payments  *payments.Service
	Lifecycle *lifecycle.Manager
}

// NewCore creates every core service over the given infrastructure
func NewCore(logger *slog.Logger, cfg *config.Config, infra Infrastructure) *Core {
	wallets := ledgerstore.New(logger.With("component", "ledger_store"), infra.UnitOfWork, infra.Recorder)
	guard := idempotency.NewGuard(logger.With("component", "idempotency"), infra.Idempotency, cfg.Idempotency.TTL)
	engine := risk.NewEngine(logger.With("component", "risk"), infra.Counters, infra.Recorder, infra.Metrics)

	proc := processor.New(
		logger.With("component", "processor"),
		infra.UnitOfWork,
		wallets,
		guard,
		engine,
		infra.Recorder,
		infra.Metrics,
		processor.OptionsFromConfig(cfg),
	)

	return &Core{
		Wallets:   wallets,
		Guard:     guard,
		Risk:      engine,
		Processor: proc,
		Revenue:   revenue.NewService(logger.With("component", "revenue"), infra.UnitOfWork, infra.Recorder),
		Payments:  payments.NewService(logger.With("component", "payments"), infra.UnitOfWork, infra.Recorder, infra.Metrics),
		Lifecycle: lifecycle.NewManager(logger.With("component", "lifecycle"), infra.UnitOfWork, infra.Recorder, infra.Metrics, cfg.Lifecycle.BatchSize),
	}
}

// NewCounterStore picks the risk velocity counter backend. The returned
// close function releases the backend and is never nil.
func NewCounterStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) (risk.CounterStore, func() error, error) {
	switch cfg.Risk.CounterBackend {
	case "redis":
		client, err := persistence.NewRedisClient(ctx, logger, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewCounterStore(client, logger.With("component", "risk_counters")), client.Close, nil
	case "memory", "":
		logger.Warn("Using in-process risk counters; velocity limits are per instance")
		return memory.NewCounterStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown risk counter backend %q", cfg.Risk.CounterBackend)
	}
}
