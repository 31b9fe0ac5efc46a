package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

const transactionColumns = `id, owner_id, kind, amount, status, balance_before, balance_after, paired_id,
		COALESCE(provider_ref, ''), COALESCE(idempotency_key, ''), reference_id, description, failure_reason,
		created_at, completed_at`

// TransactionRepository implements the ledger.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a ledger transaction repository bound to the pool
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransactionRepository {
	return &TransactionRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx returns a repository that runs on tx
func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{querier: tx, logger: r.logger}
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.OwnerID,
		&tx.Kind,
		&tx.Amount,
		&tx.Status,
		&tx.BalanceBefore,
		&tx.BalanceAfter,
		&tx.PairedID,
		&tx.ProviderRef,
		&tx.IdempotencyKey,
		&tx.ReferenceID,
		&tx.Description,
		&tx.FailureReason,
		&tx.CreatedAt,
		&tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Create stores a ledger transaction. Empty provider references and
// idempotency keys are stored as NULL so the unique constraints ignore them.
func (r *TransactionRepository) Create(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (id, owner_id, kind, amount, status, balance_before, balance_after,
			paired_id, provider_ref, idempotency_key, reference_id, description, failure_reason, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.OwnerID,
		tx.Kind,
		tx.Amount,
		tx.Status,
		tx.BalanceBefore,
		tx.BalanceAfter,
		tx.PairedID,
		tx.ProviderRef,
		tx.IdempotencyKey,
		tx.ReferenceID,
		tx.Description,
		tx.FailureReason,
		tx.CreatedAt,
		tx.CompletedAt,
	)
	if err != nil {
		switch {
		case persistence.IsUniqueViolation(err, "ledger_transactions_provider_ref_key"):
			return ledger.ErrDuplicateProviderRef{ProviderRef: tx.ProviderRef}
		case persistence.IsUniqueViolation(err, "ledger_transactions_idempotency_key_key"):
			return ledger.ErrDuplicateIdempotencyKey{Key: tx.IdempotencyKey}
		}
		r.logger.Error("Failed to create ledger transaction", "id", tx.ID.String(), "kind", string(tx.Kind), "error", err)
		return fmt.Errorf("failed to create ledger transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE id = $1`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{ID: id}
		}
		r.logger.Error("Failed to get ledger transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger transaction: %w", err)
	}
	return tx, nil
}

// GetByProviderRef returns nil, nil when no transaction carries the reference
func (r *TransactionRepository) GetByProviderRef(ctx context.Context, providerRef string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE provider_ref = $1`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, providerRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get ledger transaction by provider ref", "provider_ref", providerRef, "error", err)
		return nil, fmt.Errorf("failed to get ledger transaction by provider ref: %w", err)
	}
	return tx, nil
}

// ListByOwner returns a page of the owner's history, newest first
func (r *TransactionRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, "owner", query, ownerID, limit, offset)
}

// CountByOwner returns the size of the owner's history
func (r *TransactionRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	query := `SELECT COUNT(*) FROM ledger_transactions WHERE owner_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		r.logger.Error("Failed to count ledger transactions", "owner_id", ownerID, "error", err)
		return 0, fmt.Errorf("failed to count ledger transactions: %w", err)
	}
	return count, nil
}

// ListByReference returns every leg recorded for one monetization event
func (r *TransactionRepository) ListByReference(ctx context.Context, referenceID string) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE reference_id = $1
		ORDER BY created_at DESC, id
	`
	return r.list(ctx, "reference", query, referenceID)
}

func (r *TransactionRepository) list(ctx context.Context, by, query string, args ...any) ([]*ledger.Transaction, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list ledger transactions", "by", by, "error", err)
		return nil, fmt.Errorf("failed to list ledger transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan ledger transaction", "error", err)
			return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger transactions", "error", err)
		return nil, fmt.Errorf("error iterating over ledger transactions: %w", err)
	}
	return txs, nil
}

// UpdateStatus applies change only while the record is still in change.From
func (r *TransactionRepository) UpdateStatus(ctx context.Context, change ledger.StatusChange) error {
	query := `
		UPDATE ledger_transactions
		SET status = $3,
			provider_ref = COALESCE(NULLIF($4, ''), provider_ref),
			balance_after = COALESCE($5, balance_after),
			failure_reason = $6,
			completed_at = CASE WHEN $3 = 'completed' THEN $7 ELSE completed_at END
		WHERE id = $1 AND status = $2
	`

	result, err := r.querier.Exec(ctx, query,
		change.ID,
		change.From,
		change.To,
		change.ProviderRef,
		change.BalanceAfter,
		change.FailureReason,
		change.At,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err, "ledger_transactions_provider_ref_key") {
			return ledger.ErrDuplicateProviderRef{ProviderRef: change.ProviderRef}
		}
		r.logger.Error("Failed to update ledger transaction status", "id", change.ID.String(), "status", string(change.To), "error", err)
		return fmt.Errorf("failed to update ledger transaction status: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, change.ID); err != nil {
			return err
		}
		return ledger.ErrStatusConflict{ID: change.ID, From: change.From}
	}
	return nil
}
