package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

const walletColumns = `owner_id, balance, status, version, total_deposited, total_withdrawn,
		total_spent, total_earned, frozen_reason, last_activity_at, created_at, updated_at`

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a wallet repository bound to the pool
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) *WalletRepository {
	return &WalletRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx returns a repository that runs on tx
func (r *WalletRepository) WithTx(tx pgx.Tx) *WalletRepository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(
		&w.OwnerID,
		&w.Balance,
		&w.Status,
		&w.Version,
		&w.TotalDeposited,
		&w.TotalWithdrawn,
		&w.TotalSpent,
		&w.TotalEarned,
		&w.FrozenReason,
		&w.LastActivityAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Get retrieves a wallet by owner
func (r *WalletRepository) Get(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`

	w, err := scanWallet(r.querier.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{OwnerID: ownerID}
		}
		r.logger.Error("Failed to get wallet", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// Create inserts the wallet unless the owner already has one
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (owner_id, balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query, w.OwnerID, w.Balance, w.Status, w.Version, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create wallet", "owner_id", w.OwnerID, "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// Adjust applies a signed delta in a single conditional statement. The row
// is only touched when the balance stays non-negative and the status allows
// the direction of the move; otherwise the current state is reported back.
func (r *WalletRepository) Adjust(ctx context.Context, adj wallet.Adjustment) (*wallet.Wallet, error) {
	dep, wd, spent, earned := adj.StatDeltas()
	query := `
		UPDATE wallets
		SET balance = balance + $2,
			total_deposited = total_deposited + $3,
			total_withdrawn = total_withdrawn + $4,
			total_spent = total_spent + $5,
			total_earned = total_earned + $6,
			version = version + 1,
			last_activity_at = $7,
			updated_at = $7
		WHERE owner_id = $1
			AND balance + $2 >= 0
			AND (status = 'active' OR ($2 > 0 AND status <> 'closed'))
		RETURNING ` + walletColumns

	w, err := scanWallet(r.querier.QueryRow(ctx, query, adj.OwnerID, adj.Delta, dep, wd, spent, earned, adj.At))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("Failed to adjust wallet", "owner_id", adj.OwnerID, "delta", adj.Delta, "error", err)
		return nil, fmt.Errorf("failed to adjust wallet: %w", err)
	}

	current, getErr := r.Get(ctx, adj.OwnerID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, wallet.ErrInsufficientFundsOrInactive{
		OwnerID: adj.OwnerID,
		Delta:   adj.Delta,
		Balance: current.Balance,
		Status:  current.Status,
	}
}

// SetStatus moves the wallet to status to when it is currently in one of from
func (r *WalletRepository) SetStatus(ctx context.Context, ownerID string, from []wallet.Status, to wallet.Status, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE wallets
		SET status = $2, frozen_reason = $3, version = version + 1, updated_at = $4
		WHERE owner_id = $1 AND status = ANY($5)
	`

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	result, err := r.querier.Exec(ctx, query, ownerID, to, reason, at, allowed)
	if err != nil {
		r.logger.Error("Failed to set wallet status", "owner_id", ownerID, "status", string(to), "error", err)
		return false, fmt.Errorf("failed to set wallet status: %w", err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	if _, err := r.Get(ctx, ownerID); err != nil {
		return false, err
	}
	return false, nil
}
