// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every money-moving unit of work runs in one serializable transaction.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

// Store implements store.UnitOfWork on PostgreSQL
type Store struct {
	db     *persistence.PostgresDB
	logger *slog.Logger
}

var _ store.UnitOfWork = (*Store)(nil)

// NewStore creates a new PostgreSQL unit of work
func NewStore(logger *slog.Logger, db *persistence.PostgresDB) *Store {
	return &Store{db: db, logger: logger}
}

// Repositories returns repositories bound to the pool
func (s *Store) Repositories() store.Repositories {
	return s.bind(s.db.Querier())
}

// ExecuteTx runs fn in a serializable transaction. Serialization conflicts
// and deadlocks surface as TRANSACTION_ABORTED so the caller can retry with
// the same idempotency key.
func (s *Store) ExecuteTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	err := s.db.ExecuteTxWithOptions(ctx, persistence.Serializable, func(tx pgx.Tx) error {
		return fn(ctx, s.bind(tx))
	})
	if err != nil && persistence.IsSerializationFailure(err) {
		s.logger.WarnContext(ctx, "Transaction aborted by concurrent update", "error", err)
		return shared.WrapError(shared.CodeTransactionAborted, err, "transaction aborted by a concurrent update, retry with the same idempotency key")
	}
	return err
}

func (s *Store) bind(q persistence.Querier) store.Repositories {
	return store.Repositories{
		Wallets:       &WalletRepository{querier: q, logger: s.logger},
		Transactions:  &TransactionRepository{querier: q, logger: s.logger},
		Unlocks:       &UnlockRepository{querier: q, logger: s.logger},
		Subscriptions: &SubscriptionRepository{querier: q, logger: s.logger},
		Revenue:       &RevenueRepository{querier: q, logger: s.logger},
		Content:       &ContentRepository{querier: q, logger: s.logger},
		Outbox:        &OutboxRepository{querier: q, logger: s.logger},
	}
}
