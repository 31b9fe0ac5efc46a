package processor

import (
	"context"
	"fmt"

	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/wallet"
)

const maxPerPage = 100

// Balance is the caller-facing view of a wallet
type Balance struct {
	OwnerID      string        `json:"owner_id"`
	Balance      int64         `json:"balance"`
	BalanceMajor float64       `json:"balance_major"`
	Status       wallet.Status `json:"status"`
}

// GetBalance returns the owner's balance, creating an empty wallet if absent
func (p *Processor) GetBalance(ctx context.Context, ownerID string) (*Balance, error) {
	w, err := p.wallets.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &Balance{
		OwnerID:      w.OwnerID,
		Balance:      w.Balance,
		BalanceMajor: wallet.MajorUnits(w.Balance),
		Status:       w.Status,
	}, nil
}

// Freeze blocks every debit of the owner's wallet. It reports whether the
// status changed.
func (p *Processor) Freeze(ctx context.Context, ownerID, reason, actorID string) (bool, error) {
	if ownerID == "" {
		return false, shared.NewError(shared.CodeInvalidInput, "owner id is required")
	}
	return p.wallets.Freeze(ctx, ownerID, reason, actorID)
}

// Unfreeze reactivates a frozen wallet. It reports whether the status changed.
func (p *Processor) Unfreeze(ctx context.Context, ownerID, reason, actorID string) (bool, error) {
	if ownerID == "" {
		return false, shared.NewError(shared.CodeInvalidInput, "owner id is required")
	}
	return p.wallets.Unfreeze(ctx, ownerID, reason, actorID)
}

// TransactionPage is one page of an owner's ledger history, newest first
type TransactionPage struct {
	Items   []*ledger.Transaction `json:"items"`
	Total   int64                 `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// GetTransactions pages through the owner's ledger transactions
func (p *Processor) GetTransactions(ctx context.Context, ownerID string, page, perPage int) (*TransactionPage, error) {
	if ownerID == "" {
		return nil, shared.NewError(shared.CodeInvalidInput, "owner id is required")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = 20
	}

	repo := p.uow.Repositories().Transactions
	total, err := repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions of %s: %w", ownerID, err)
	}
	items, err := repo.ListByOwner(ctx, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of %s: %w", ownerID, err)
	}
	return &TransactionPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}
