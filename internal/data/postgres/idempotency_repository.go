package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/creator-coin-ledger/internal/domain/idempotency"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

// IdempotencyRepository implements the idempotency.Repository interface for PostgreSQL
type IdempotencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

var _ idempotency.Repository = (*IdempotencyRepository)(nil)

// NewIdempotencyRepository creates an idempotency repository bound to the pool
func NewIdempotencyRepository(logger *slog.Logger, db *persistence.PostgresDB) *IdempotencyRepository {
	return &IdempotencyRepository{querier: db.Querier(), logger: logger}
}

// Acquire takes the key with a single upsert. The conflict branch only
// overwrites a failed or expired record, so exactly one concurrent caller
// gets a row back.
func (r *IdempotencyRepository) Acquire(ctx context.Context, key string, now, expiresAt time.Time) (*idempotency.Record, bool, error) {
	query := `
		INSERT INTO idempotency_keys (key, status, result, error, created_at, updated_at, expires_at)
		VALUES ($1, 'processing', NULL, '', $2, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET status = 'processing', result = NULL, error = '', created_at = $2, updated_at = $2, expires_at = $3
		WHERE idempotency_keys.status = 'failed' OR idempotency_keys.expires_at <= $2
		RETURNING key, status, result, error, created_at, updated_at, expires_at
	`

	rows, err := r.querier.Query(ctx, query, key, now, expiresAt)
	if err != nil {
		r.logger.Error("Failed to acquire idempotency key", "key", key, "error", err)
		return nil, false, fmt.Errorf("failed to acquire idempotency key: %w", err)
	}
	rec, acquired, err := scanOptionalRecord(rows)
	if err != nil {
		r.logger.Error("Failed to read acquired idempotency key", "key", key, "error", err)
		return nil, false, fmt.Errorf("failed to acquire idempotency key: %w", err)
	}
	if acquired {
		return rec, true, nil
	}

	existing, err := r.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func scanOptionalRecord(rows pgx.Rows) (*idempotency.Record, bool, error) {
	defer rows.Close()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	var rec idempotency.Record
	var result []byte
	if err := rows.Scan(&rec.Key, &rec.Status, &result, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt); err != nil {
		return nil, false, err
	}
	rec.Result = json.RawMessage(result)
	return &rec, true, rows.Err()
}

func (r *IdempotencyRepository) get(ctx context.Context, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, status, result, error, created_at, updated_at, expires_at
		FROM idempotency_keys
		WHERE key = $1
	`

	rows, err := r.querier.Query(ctx, query, key)
	if err != nil {
		r.logger.Error("Failed to get idempotency key", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	rec, found, err := scanOptionalRecord(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	if !found {
		return nil, idempotency.ErrRecordNotFound{Key: key}
	}
	return rec, nil
}

// Complete stores the result of the operation holding the key
func (r *IdempotencyRepository) Complete(ctx context.Context, key string, result json.RawMessage, now time.Time) error {
	query := `
		UPDATE idempotency_keys
		SET status = 'completed', result = $2, error = '', updated_at = $3
		WHERE key = $1 AND status = 'processing'
	`
	return r.finish(ctx, query, key, []byte(result), now)
}

// Fail releases the key so the caller may retry
func (r *IdempotencyRepository) Fail(ctx context.Context, key string, reason string, now time.Time) error {
	query := `
		UPDATE idempotency_keys
		SET status = 'failed', error = $2, updated_at = $3
		WHERE key = $1 AND status = 'processing'
	`
	return r.finish(ctx, query, key, reason, now)
}

func (r *IdempotencyRepository) finish(ctx context.Context, query, key string, value any, now time.Time) error {
	result, err := r.querier.Exec(ctx, query, key, value, now)
	if err != nil {
		r.logger.Error("Failed to finish idempotency key", "key", key, "error", err)
		return fmt.Errorf("failed to finish idempotency key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return idempotency.ErrRecordNotFound{Key: key}
	}
	return nil
}

// DeleteExpired removes records past their expiry
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.querier.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, now)
	if err != nil {
		r.logger.Error("Failed to delete expired idempotency keys", "error", err)
		return 0, fmt.Errorf("failed to delete expired idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}
