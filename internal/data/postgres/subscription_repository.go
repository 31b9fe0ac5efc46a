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

const subscriptionColumns = `id, subscriber_id, creator_id, tier, price, creator_share, platform_share,
		processing_fee, status, auto_renew, renewal_count, started_at, expires_at, last_renewed_at,
		cancelled_at, cancel_reason, version, created_at, updated_at`

// SubscriptionRepository implements the monetization.SubscriptionRepository interface for PostgreSQL
type SubscriptionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSubscriptionRepository creates a subscription repository bound to the pool
func NewSubscriptionRepository(logger *slog.Logger, db *persistence.PostgresDB) *SubscriptionRepository {
	return &SubscriptionRepository{querier: db.Querier(), logger: logger}
}

func scanSubscription(row pgx.Row) (*monetization.Subscription, error) {
	var s monetization.Subscription
	err := row.Scan(
		&s.ID,
		&s.SubscriberID,
		&s.CreatorID,
		&s.Tier,
		&s.Price,
		&s.Split.CreatorShare,
		&s.Split.PlatformShare,
		&s.Split.ProcessingFee,
		&s.Status,
		&s.AutoRenew,
		&s.RenewalCount,
		&s.StartedAt,
		&s.ExpiresAt,
		&s.LastRenewedAt,
		&s.CancelledAt,
		&s.CancelReason,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create stores a new subscription. A second active subscription for the
// same pair is rejected by the partial unique index.
func (r *SubscriptionRepository) Create(ctx context.Context, s *monetization.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.querier.Exec(ctx, query,
		s.ID,
		s.SubscriberID,
		s.CreatorID,
		s.Tier,
		s.Price,
		s.Split.CreatorShare,
		s.Split.PlatformShare,
		s.Split.ProcessingFee,
		s.Status,
		s.AutoRenew,
		s.RenewalCount,
		s.StartedAt,
		s.ExpiresAt,
		s.LastRenewedAt,
		s.CancelledAt,
		s.CancelReason,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err, "subscriptions_active_pair_key") {
			return monetization.ErrDuplicateActiveSubscription{SubscriberID: s.SubscriberID, CreatorID: s.CreatorID}
		}
		r.logger.Error("Failed to create subscription", "id", s.ID.String(), "error", err)
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// Get retrieves a subscription by ID
func (r *SubscriptionRepository) Get(ctx context.Context, id uuid.UUID) (*monetization.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	s, err := scanSubscription(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, monetization.ErrSubscriptionNotFound{ID: id}
		}
		r.logger.Error("Failed to get subscription", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return s, nil
}

// FindActive returns nil, nil when the pair has no active subscription
func (r *SubscriptionRepository) FindActive(ctx context.Context, subscriberID, creatorID string) (*monetization.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE subscriber_id = $1 AND creator_id = $2 AND status = 'active'
	`

	s, err := scanSubscription(r.querier.QueryRow(ctx, query, subscriberID, creatorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find active subscription", "subscriber_id", subscriberID, "creator_id", creatorID, "error", err)
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	return s, nil
}

// Update writes s when the stored version is s.Version-1
func (r *SubscriptionRepository) Update(ctx context.Context, s *monetization.Subscription) error {
	query := `
		UPDATE subscriptions
		SET price = $1, creator_share = $2, platform_share = $3, processing_fee = $4, status = $5,
			auto_renew = $6, renewal_count = $7, expires_at = $8, last_renewed_at = $9, cancelled_at = $10,
			cancel_reason = $11, version = $12, updated_at = $13
		WHERE id = $14 AND version = $15
	`

	result, err := r.querier.Exec(ctx, query,
		s.Price,
		s.Split.CreatorShare,
		s.Split.PlatformShare,
		s.Split.ProcessingFee,
		s.Status,
		s.AutoRenew,
		s.RenewalCount,
		s.ExpiresAt,
		s.LastRenewedAt,
		s.CancelledAt,
		s.CancelReason,
		s.Version,
		s.UpdatedAt,
		s.ID,
		s.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update subscription", "id", s.ID.String(), "error", err)
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return monetization.ErrConcurrentModification{Entity: "subscription", ID: s.ID.String()}
	}
	return nil
}

// ListLapsed returns active, non-renewing subscriptions that expired before now
func (r *SubscriptionRepository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]*monetization.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND auto_renew = FALSE AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	return r.list(ctx, "lapsed", query, now, limit)
}

// ListDueForRenewal returns active, auto-renewing subscriptions expiring before until
func (r *SubscriptionRepository) ListDueForRenewal(ctx context.Context, until time.Time, limit int) ([]*monetization.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND auto_renew = TRUE AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	return r.list(ctx, "due_for_renewal", query, until, limit)
}

func (r *SubscriptionRepository) list(ctx context.Context, name, query string, args ...any) ([]*monetization.Subscription, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list subscriptions", "list", name, "error", err)
		return nil, fmt.Errorf("failed to list %s subscriptions: %w", name, err)
	}
	defer rows.Close()

	var subs []*monetization.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			r.logger.Error("Failed to scan subscription", "error", err)
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over subscriptions", "error", err)
		return nil, fmt.Errorf("error iterating over subscriptions: %w", err)
	}
	return subs, nil
}
