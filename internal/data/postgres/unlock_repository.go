package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

// UnlockRepository implements the monetization.UnlockRepository interface for PostgreSQL
type UnlockRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewUnlockRepository creates an unlock repository bound to the pool
func NewUnlockRepository(logger *slog.Logger, db *persistence.PostgresDB) *UnlockRepository {
	return &UnlockRepository{querier: db.Querier(), logger: logger}
}

// Create stores a new unlock event
func (r *UnlockRepository) Create(ctx context.Context, u *monetization.Unlock) error {
	query := `
		INSERT INTO unlocks (id, buyer_id, content_id, creator_id, amount, creator_share, platform_share,
			processing_fee, status, idempotency_key, failure_reason, created_at, completed_at, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		u.ID,
		u.BuyerID,
		u.ContentID,
		u.CreatorID,
		u.Amount,
		u.Split.CreatorShare,
		u.Split.PlatformShare,
		u.Split.ProcessingFee,
		u.Status,
		u.IdempotencyKey,
		u.FailureReason,
		u.CreatedAt,
		u.CompletedAt,
		u.RefundedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create unlock", "id", u.ID.String(), "error", err)
		return fmt.Errorf("failed to create unlock: %w", err)
	}
	return nil
}

// Get retrieves an unlock event by ID
func (r *UnlockRepository) Get(ctx context.Context, id uuid.UUID) (*monetization.Unlock, error) {
	query := `
		SELECT id, buyer_id, content_id, creator_id, amount, creator_share, platform_share, processing_fee,
			status, idempotency_key, failure_reason, created_at, completed_at, refunded_at
		FROM unlocks
		WHERE id = $1
	`

	var u monetization.Unlock
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.BuyerID,
		&u.ContentID,
		&u.CreatorID,
		&u.Amount,
		&u.Split.CreatorShare,
		&u.Split.PlatformShare,
		&u.Split.ProcessingFee,
		&u.Status,
		&u.IdempotencyKey,
		&u.FailureReason,
		&u.CreatedAt,
		&u.CompletedAt,
		&u.RefundedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, monetization.ErrUnlockNotFound{ID: id}
		}
		r.logger.Error("Failed to get unlock", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get unlock: %w", err)
	}
	return &u, nil
}

// UpdateStatus transitions the event only while it is still in from
func (r *UnlockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to monetization.UnlockStatus, reason string, at time.Time) error {
	query := `
		UPDATE unlocks
		SET status = $3,
			failure_reason = $4,
			completed_at = CASE WHEN $3 = 'completed' THEN $5 ELSE completed_at END,
			refunded_at = CASE WHEN $3 = 'refunded' THEN $5 ELSE refunded_at END
		WHERE id = $1 AND status = $2
	`

	result, err := r.querier.Exec(ctx, query, id, from, to, reason, at)
	if err != nil {
		if persistence.IsUniqueViolation(err, "unlocks_buyer_content_completed_key") {
			return monetization.ErrStatusConflict{ID: id, From: from}
		}
		r.logger.Error("Failed to update unlock status", "id", id.String(), "status", string(to), "error", err)
		return fmt.Errorf("failed to update unlock status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return monetization.ErrStatusConflict{ID: id, From: from}
	}
	return nil
}

// HasCompleted reports whether the buyer already owns the content through a completed unlock
func (r *UnlockRepository) HasCompleted(ctx context.Context, buyerID, contentID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM unlocks WHERE buyer_id = $1 AND content_id = $2 AND status = 'completed'
		)
	`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, buyerID, contentID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check completed unlock", "buyer_id", buyerID, "content_id", contentID, "error", err)
		return false, fmt.Errorf("failed to check completed unlock: %w", err)
	}
	return exists, nil
}
