// Package store defines the transactional boundary shared by all storage adapters.
package store

import (
	"context"

	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/revenue"
	"github.com/creator-coin-ledger/internal/domain/wallet"
)

// Repositories is the set of repositories bound to one connection or transaction
type Repositories struct {
	Wallets       wallet.Repository
	Transactions  ledger.Repository
	Unlocks       monetization.UnlockRepository
	Subscriptions monetization.SubscriptionRepository
	Revenue       revenue.Repository
	Content       content.Repository
	Outbox        outbox.Repository
}

// UnitOfWork runs multi-entity mutations as one serializable, all-or-nothing unit
type UnitOfWork interface {
	// Repositories returns repositories that run outside any transaction
	Repositories() Repositories
	// ExecuteTx commits when fn returns nil and rolls back otherwise.
	// A serialization conflict is reported as a TRANSACTION_ABORTED error.
	ExecuteTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
