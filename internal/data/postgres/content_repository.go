package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

const contentColumns = `id, owner_id, price, published, deleted, subscriber_only, unlock_count, revenue_total, created_at, updated_at`

// ContentRepository implements the content.Repository interface for PostgreSQL
type ContentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewContentRepository creates a content repository bound to the pool
func NewContentRepository(logger *slog.Logger, db *persistence.PostgresDB) *ContentRepository {
	return &ContentRepository{querier: db.Querier(), logger: logger}
}

func scanItem(row pgx.Row) (*content.Item, error) {
	var it content.Item
	err := row.Scan(
		&it.ID,
		&it.OwnerID,
		&it.Price,
		&it.Published,
		&it.Deleted,
		&it.SubscriberOnly,
		&it.UnlockCount,
		&it.RevenueTotal,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Upsert writes the catalog view of an item. Counters are owned by RecordUnlock
// and left untouched. catalog_version holds the snapshot time, so a snapshot
// older than the stored one is ignored.
func (r *ContentRepository) Upsert(ctx context.Context, item *content.Item) error {
	query := `
		INSERT INTO content_items (id, owner_id, price, published, deleted, subscriber_only, catalog_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $8, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id, price = EXCLUDED.price, published = EXCLUDED.published,
			deleted = EXCLUDED.deleted, subscriber_only = EXCLUDED.subscriber_only,
			catalog_version = EXCLUDED.catalog_version, updated_at = EXCLUDED.updated_at
		WHERE content_items.catalog_version <= EXCLUDED.catalog_version
	`

	_, err := r.querier.Exec(ctx, query,
		item.ID,
		item.OwnerID,
		item.Price,
		item.Published,
		item.Deleted,
		item.SubscriberOnly,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert content item", "id", item.ID, "error", err)
		return fmt.Errorf("failed to upsert content item: %w", err)
	}
	return nil
}

// Get retrieves a content item by ID
func (r *ContentRepository) Get(ctx context.Context, id string) (*content.Item, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1`

	it, err := scanItem(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, content.ErrContentNotFound{ID: id}
		}
		r.logger.Error("Failed to get content item", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return it, nil
}

// ListSubscriberOnly returns the creator's live subscriber-only items
func (r *ContentRepository) ListSubscriberOnly(ctx context.Context, ownerID string) ([]*content.Item, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM content_items
		WHERE owner_id = $1 AND subscriber_only AND NOT deleted
		ORDER BY id
	`

	rows, err := r.querier.Query(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("Failed to list subscriber-only content", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to list subscriber-only content: %w", err)
	}
	defer rows.Close()

	var items []*content.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			r.logger.Error("Failed to scan content item", "error", err)
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over content items: %w", err)
	}
	return items, nil
}

// GrantAccess adds an allow-list entry. Repeating a grant is a no-op.
func (r *ContentRepository) GrantAccess(ctx context.Context, grant content.Grant) error {
	query := `
		INSERT INTO content_access_grants (content_id, user_id, source, source_id, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id, user_id, source_id) DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query, grant.ContentID, grant.UserID, grant.Source, grant.SourceID, grant.GrantedAt)
	if err != nil {
		r.logger.Error("Failed to grant content access",
			"content_id", grant.ContentID,
			"user_id", grant.UserID,
			"source_id", grant.SourceID,
			"error", err,
		)
		return fmt.Errorf("failed to grant content access: %w", err)
	}
	return nil
}

// HasAccess reports whether the user holds at least one grant for the item
func (r *ContentRepository) HasAccess(ctx context.Context, contentID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM content_access_grants WHERE content_id = $1 AND user_id = $2)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, contentID, userID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check content access", "content_id", contentID, "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to check content access: %w", err)
	}
	return exists, nil
}

// RevokeBySource removes every grant issued by the source
func (r *ContentRepository) RevokeBySource(ctx context.Context, sourceID string) (int64, error) {
	query := `DELETE FROM content_access_grants WHERE source_id = $1`

	result, err := r.querier.Exec(ctx, query, sourceID)
	if err != nil {
		r.logger.Error("Failed to revoke content access", "source_id", sourceID, "error", err)
		return 0, fmt.Errorf("failed to revoke content access: %w", err)
	}
	return result.RowsAffected(), nil
}

// RecordUnlock bumps the unlock counter and revenue total
func (r *ContentRepository) RecordUnlock(ctx context.Context, contentID string, countDelta, revenueDelta int64, at time.Time) error {
	query := `
		UPDATE content_items
		SET unlock_count = unlock_count + $2, revenue_total = revenue_total + $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, contentID, countDelta, revenueDelta, at)
	if err != nil {
		r.logger.Error("Failed to record content unlock", "content_id", contentID, "error", err)
		return fmt.Errorf("failed to record content unlock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return content.ErrContentNotFound{ID: contentID}
	}
	return nil
}
