// Package worker holds the background worker's moving parts: the Kafka
// consumers for payment confirmations and catalog updates, the confirmation
// worker pool, and the outbox poller.
package worker

import (
	"context"

	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/payments"
)

// ConfirmationService applies one provider confirmation
type ConfirmationService interface {
	ConfirmProviderTransaction(ctx context.Context, c payments.Confirmation) (*payments.ConfirmResult, error)
}

// CatalogWriter stores the catalog view of a content item
type CatalogWriter interface {
	Upsert(ctx context.Context, item *content.Item) error
}
