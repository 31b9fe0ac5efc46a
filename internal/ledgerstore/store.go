// Package ledgerstore owns wallet balances. Every balance change goes through
// the conditional adjust of the wallet repository and leaves a signed ledger
// transaction behind.
package ledgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
)

// Store is the Ledger Store
type Store struct {
	uow      store.UnitOfWork
	recorder audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Entry describes one signed balance change to post
type Entry struct {
	OwnerID        string
	Kind           ledger.Kind
	Amount         int64 // signed
	Stat           wallet.Stat
	Status         ledger.Status // defaults to completed
	ReferenceID    string
	IdempotencyKey string
	Description    string
}

func New(logger *slog.Logger, uow store.UnitOfWork, recorder audit.Recorder) *Store {
	return &Store{
		uow:      uow,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// GetOrCreate returns the owner's wallet, creating an empty active one if absent
func (s *Store) GetOrCreate(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	if ownerID == "" {
		return nil, shared.NewError(shared.CodeInvalidInput, "owner id is required")
	}
	return GetOrCreate(ctx, s.uow.Repositories().Wallets, ownerID, s.now())
}

// GetOrCreate is the repository-scoped form, usable inside a unit of work
func GetOrCreate(ctx context.Context, repo wallet.Repository, ownerID string, now time.Time) (*wallet.Wallet, error) {
	w, err := repo.Get(ctx, ownerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, wallet.ErrWalletNotFound{OwnerID: ownerID}) {
		return nil, err
	}

	// Create is a no-op when a concurrent caller won the insert
	if err := repo.Create(ctx, wallet.New(ownerID, now)); err != nil {
		return nil, fmt.Errorf("failed to create wallet %s: %w", ownerID, err)
	}
	return repo.Get(ctx, ownerID)
}

// Adjust applies one conditional balance change. A refusal is reported as
// INSUFFICIENT_BALANCE, or UNAUTHORIZED when the wallet status forbids it.
// The store never retries a refusal.
func Adjust(ctx context.Context, repo wallet.Repository, adj wallet.Adjustment) (*wallet.Wallet, error) {
	if _, err := GetOrCreate(ctx, repo, adj.OwnerID, adj.At); err != nil {
		return nil, err
	}

	w, err := repo.Adjust(ctx, adj)
	if err == nil {
		return w, nil
	}

	var refused wallet.ErrInsufficientFundsOrInactive
	if errors.As(err, &refused) {
		if refused.Inactive() {
			return nil, shared.WrapError(shared.CodeUnauthorized, err, "wallet %s is %s", adj.OwnerID, refused.Status)
		}
		return nil, shared.WrapError(shared.CodeInsufficientBalance, err,
			"wallet %s has %d coins, %d required", adj.OwnerID, refused.Balance, -adj.Delta)
	}
	return nil, err
}

// Post adjusts the wallet and records the matching ledger transaction with
// its before/after balance snapshot. Call it inside a unit of work so both
// writes commit together.
func Post(ctx context.Context, repos store.Repositories, e Entry, at time.Time) (*ledger.Transaction, *wallet.Wallet, error) {
	if e.Amount == 0 {
		return nil, nil, shared.NewError(shared.CodeInvalidInput, "ledger amount must not be zero")
	}

	w, err := Adjust(ctx, repos.Wallets, wallet.Adjustment{OwnerID: e.OwnerID, Delta: e.Amount, Stat: e.Stat, At: at})
	if err != nil {
		return nil, nil, err
	}

	status := e.Status
	if status == "" {
		status = ledger.StatusCompleted
	}
	tx := ledger.NewTransaction(e.OwnerID, e.Kind, e.Amount, status, at)
	tx.BalanceAfter = w.Balance
	tx.BalanceBefore = w.Balance - e.Amount
	tx.ReferenceID = e.ReferenceID
	tx.IdempotencyKey = e.IdempotencyKey
	tx.Description = e.Description

	if err := repos.Transactions.Create(ctx, tx); err != nil {
		return nil, nil, fmt.Errorf("failed to record %s transaction for %s: %w", e.Kind, e.OwnerID, err)
	}
	return tx, w, nil
}

// Freeze moves an active wallet to frozen. Freezing a frozen wallet is a no-op
// and reports false.
func (s *Store) Freeze(ctx context.Context, ownerID, reason, actorID string) (bool, error) {
	return s.transition(ctx, ownerID, []wallet.Status{wallet.StatusActive}, wallet.StatusFrozen, audit.ActionWalletFrozen, reason, actorID)
}

// Unfreeze moves a frozen wallet back to active. Unfreezing an active wallet
// is a no-op and reports false.
func (s *Store) Unfreeze(ctx context.Context, ownerID, reason, actorID string) (bool, error) {
	return s.transition(ctx, ownerID, []wallet.Status{wallet.StatusFrozen}, wallet.StatusActive, audit.ActionWalletUnfrozen, reason, actorID)
}

func (s *Store) transition(ctx context.Context, ownerID string, from []wallet.Status, to wallet.Status, action audit.Action, reason, actorID string) (bool, error) {
	before, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return false, err
	}
	if before.Status == to {
		return false, nil
	}

	changed, err := s.uow.Repositories().Wallets.SetStatus(ctx, ownerID, from, to, reason, s.now())
	if err != nil {
		s.logger.Error("Failed to change wallet status", "owner_id", ownerID, "to", to, "error", err)
		return false, fmt.Errorf("failed to set wallet %s to %s: %w", ownerID, to, err)
	}
	if !changed {
		current, err := s.uow.Repositories().Wallets.Get(ctx, ownerID)
		if err == nil && current.Status == to {
			return false, nil
		}
		return false, shared.NewError(shared.CodeInvalidInput, "wallet %s cannot move from %s to %s", ownerID, before.Status, to)
	}

	s.recorder.Record(ctx, audit.Record{
		Action:     action,
		EntityType: audit.EntityWallet,
		EntityID:   ownerID,
		ActorID:    actorID,
		Before:     map[string]any{"status": before.Status, "balance": before.Balance},
		After:      map[string]any{"status": to, "balance": before.Balance},
		Reason:     reason,
	})
	s.logger.Info("Wallet status changed", "owner_id", ownerID, "from", before.Status, "to", to, "actor_id", actorID)
	return true, nil
}
