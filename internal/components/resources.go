package components

import (
	"context"
	"fmt"
	"log/slog"

	auditlog "github.com/creator-coin-ledger/internal/audit"
	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/data/mongo"
	"github.com/creator-coin-ledger/internal/data/postgres"
	"github.com/creator-coin-ledger/internal/platform/metrics"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

// Resources are the live connections behind a process
type Resources struct {
	Postgres      *persistence.PostgresDB
	MongoDB       *persistence.MongoDB
	Store         *postgres.Store
	AuditLog      *auditlog.Logger
	Metrics       *metrics.Collector
	Infra         Infrastructure
	closeCounters func() error
	logger        *slog.Logger
}

// OpenResources connects to PostgreSQL (running migrations), MongoDB and the
// risk counter backend, and starts the async audit writer
func OpenResources(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*Resources, error) {
	postgresDB, err := persistence.NewPostgresDB(ctx, logger, &cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	mongoDB, err := persistence.NewMongoDB(ctx, logger, &cfg.MongoDB)
	if err != nil {
		postgresDB.Close()
		return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	auditRepo := mongo.NewAuditRepository(logger, mongoDB.Database())
	if err := auditRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure audit indexes", "error", err)
	}

	counters, closeCounters, err := NewCounterStore(ctx, logger, cfg)
	if err != nil {
		postgresDB.Close()
		_ = mongoDB.Close(ctx)
		return nil, fmt.Errorf("failed to initialize risk counters: %w", err)
	}

	collector := metrics.NewCollector()
	auditLog := auditlog.NewLogger(logger.With("component", "audit"), auditRepo, collector, cfg.Audit)
	auditLog.Start()

	pgStore := postgres.NewStore(logger, postgresDB)
	return &Resources{
		Postgres: postgresDB,
		MongoDB:  mongoDB,
		Store:    pgStore,
		AuditLog: auditLog,
		Metrics:  collector,
		Infra: Infrastructure{
			UnitOfWork:  pgStore,
			Idempotency: postgres.NewIdempotencyRepository(logger, postgresDB),
			Counters:    counters,
			Recorder:    auditLog,
			Metrics:     collector,
		},
		closeCounters: closeCounters,
		logger:        logger,
	}, nil
}

// Close drains the audit queue before closing connections
func (r *Resources) Close(ctx context.Context) {
	r.AuditLog.Close()

	if err := r.closeCounters(); err != nil {
		r.logger.Error("Error closing risk counter store", "error", err)
	}

	r.Postgres.Close()

	if err := r.MongoDB.Close(ctx); err != nil {
		r.logger.Error("Error closing MongoDB connection", "error", err)
	}
}
