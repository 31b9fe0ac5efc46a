package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/creator-coin-ledger/internal/domain/revenue"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

// RevenueRepository implements the revenue.Repository interface for PostgreSQL
type RevenueRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRevenueRepository creates a revenue repository bound to the pool
func NewRevenueRepository(logger *slog.Logger, db *persistence.PostgresDB) *RevenueRepository {
	return &RevenueRepository{querier: db.Querier(), logger: logger}
}

// Get retrieves a creator's revenue account
func (r *RevenueRepository) Get(ctx context.Context, creatorID string) (*revenue.Account, error) {
	query := `
		SELECT creator_id, available, pending, withdrawn, lifetime_earnings, current_month,
			current_month_earnings, last_month_earnings, payment_info_verified, version, created_at, updated_at
		FROM revenue_accounts
		WHERE creator_id = $1
	`

	var a revenue.Account
	err := r.querier.QueryRow(ctx, query, creatorID).Scan(
		&a.CreatorID,
		&a.Available,
		&a.Pending,
		&a.Withdrawn,
		&a.LifetimeEarnings,
		&a.CurrentMonth,
		&a.CurrentMonthEarnings,
		&a.LastMonthEarnings,
		&a.PaymentInfoVerified,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, revenue.ErrAccountNotFound{CreatorID: creatorID}
		}
		r.logger.Error("Failed to get revenue account", "creator_id", creatorID, "error", err)
		return nil, fmt.Errorf("failed to get revenue account: %w", err)
	}
	return &a, nil
}

// Create inserts the account unless one already exists
func (r *RevenueRepository) Create(ctx context.Context, a *revenue.Account) error {
	query := `
		INSERT INTO revenue_accounts (creator_id, available, pending, withdrawn, lifetime_earnings, current_month,
			current_month_earnings, last_month_earnings, payment_info_verified, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (creator_id) DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query,
		a.CreatorID,
		a.Available,
		a.Pending,
		a.Withdrawn,
		a.LifetimeEarnings,
		a.CurrentMonth,
		a.CurrentMonthEarnings,
		a.LastMonthEarnings,
		a.PaymentInfoVerified,
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create revenue account", "creator_id", a.CreatorID, "error", err)
		return fmt.Errorf("failed to create revenue account: %w", err)
	}
	return nil
}

// Update writes a when the stored version is a.Version-1
func (r *RevenueRepository) Update(ctx context.Context, a *revenue.Account) error {
	query := `
		UPDATE revenue_accounts
		SET available = $1, pending = $2, withdrawn = $3, lifetime_earnings = $4, current_month = $5,
			current_month_earnings = $6, last_month_earnings = $7, payment_info_verified = $8,
			version = $9, updated_at = $10
		WHERE creator_id = $11 AND version = $12
	`

	result, err := r.querier.Exec(ctx, query,
		a.Available,
		a.Pending,
		a.Withdrawn,
		a.LifetimeEarnings,
		a.CurrentMonth,
		a.CurrentMonthEarnings,
		a.LastMonthEarnings,
		a.PaymentInfoVerified,
		a.Version,
		a.UpdatedAt,
		a.CreatorID,
		a.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update revenue account", "creator_id", a.CreatorID, "error", err)
		return fmt.Errorf("failed to update revenue account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return revenue.ErrConcurrentModification{CreatorID: a.CreatorID}
	}
	return nil
}

// CreateWithdrawal stores a payout request
func (r *RevenueRepository) CreateWithdrawal(ctx context.Context, w *revenue.Withdrawal) error {
	query := `
		INSERT INTO revenue_withdrawals (id, creator_id, amount, status, failure_reason, requested_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query, w.ID, w.CreatorID, w.Amount, w.Status, w.FailureReason, w.RequestedAt, w.ProcessedAt)
	if err != nil {
		r.logger.Error("Failed to create withdrawal", "id", w.ID.String(), "error", err)
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

const withdrawalColumns = `id, creator_id, amount, status, failure_reason, requested_at, processed_at`

func scanWithdrawal(row pgx.Row) (*revenue.Withdrawal, error) {
	var w revenue.Withdrawal
	if err := row.Scan(&w.ID, &w.CreatorID, &w.Amount, &w.Status, &w.FailureReason, &w.RequestedAt, &w.ProcessedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWithdrawal retrieves a payout request by ID
func (r *RevenueRepository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*revenue.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM revenue_withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, revenue.ErrWithdrawalNotFound{ID: id}
		}
		r.logger.Error("Failed to get withdrawal", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// UpdateWithdrawal records the outcome of a payout request
func (r *RevenueRepository) UpdateWithdrawal(ctx context.Context, w *revenue.Withdrawal) error {
	query := `
		UPDATE revenue_withdrawals
		SET status = $1, failure_reason = $2, processed_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, w.Status, w.FailureReason, w.ProcessedAt, w.ID)
	if err != nil {
		r.logger.Error("Failed to update withdrawal", "id", w.ID.String(), "error", err)
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return revenue.ErrWithdrawalNotFound{ID: w.ID}
	}
	return nil
}

// ListWithdrawals returns the creator's requests, oldest first
func (r *RevenueRepository) ListWithdrawals(ctx context.Context, creatorID string) ([]*revenue.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM revenue_withdrawals
		WHERE creator_id = $1
		ORDER BY requested_at ASC
	`

	rows, err := r.querier.Query(ctx, query, creatorID)
	if err != nil {
		r.logger.Error("Failed to list withdrawals", "creator_id", creatorID, "error", err)
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []*revenue.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			r.logger.Error("Failed to scan withdrawal", "error", err)
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over withdrawals: %w", err)
	}
	return out, nil
}
