package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/platform/messaging/producers"
)

// CatalogEvent is the catalog service's snapshot of one content item
type CatalogEvent struct {
	ID             string    `json:"id" validate:"required,max=128"`
	OwnerID        string    `json:"owner_id" validate:"required,max=128"`
	Price          int64     `json:"price" validate:"gte=0"`
	Published      bool      `json:"published"`
	Deleted        bool      `json:"deleted"`
	SubscriberOnly bool      `json:"subscriber_only"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CatalogHandler keeps the local content catalog in sync with the catalog topic
type CatalogHandler struct {
	catalog  CatalogWriter
	dlq      producers.DeadLetterPublisher
	logger   *slog.Logger
	validate *validator.Validate
}

func NewCatalogHandler(logger *slog.Logger, catalog CatalogWriter, dlq producers.DeadLetterPublisher) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, dlq: dlq, logger: logger, validate: validator.New()}
}

// HandleMessage upserts one catalog snapshot. Snapshots older than the stored
// item are ignored by the repository, so redelivery and reordering are safe.
func (h *CatalogHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var ev CatalogEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		h.logger.Error("Failed to unmarshal catalog event", "message_key", string(key), "error", err)
		return deadLetter(ctx, h.logger, h.dlq, key, value, fmt.Sprintf("unmarshal catalog event: %v", err), err)
	}
	err := h.validate.Struct(ev)
	if err == nil && ev.UpdatedAt.IsZero() {
		err = errors.New("updated_at is required")
	}
	if err != nil {
		h.logger.Warn("Catalog event rejected", "message_key", string(key), "content_id", ev.ID, "error", err)
		return deadLetter(ctx, h.logger, h.dlq, key, value, fmt.Sprintf("invalid catalog event: %v", err), err)
	}

	item := &content.Item{
		ID:             ev.ID,
		OwnerID:        ev.OwnerID,
		Price:          ev.Price,
		Published:      ev.Published,
		Deleted:        ev.Deleted,
		SubscriberOnly: ev.SubscriberOnly,
		CreatedAt:      ev.UpdatedAt.UTC(),
		UpdatedAt:      ev.UpdatedAt.UTC(),
	}
	if err := h.catalog.Upsert(ctx, item); err != nil {
		h.logger.Error("Failed to store catalog item", "content_id", ev.ID, "error", err)
		return fmt.Errorf("storing catalog item %s failed: %w", ev.ID, err)
	}

	h.logger.Info("Catalog item synced",
		"content_id", ev.ID,
		"owner_id", ev.OwnerID,
		"price", ev.Price,
		"published", ev.Published,
		"deleted", ev.Deleted,
	)
	return nil
}
