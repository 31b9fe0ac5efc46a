package wallet

import (
	"context"
	"fmt"
	"time"
)

// Repository persists wallets. Adjust is the only path that changes Balance.
type Repository interface {
	Get(ctx context.Context, ownerID string) (*Wallet, error)
	// Create inserts the wallet unless one already exists for the owner
	Create(ctx context.Context, w *Wallet) error
	// Adjust applies the delta iff CanApply holds, atomically with the check
	Adjust(ctx context.Context, adj Adjustment) (*Wallet, error)
	// SetStatus moves the wallet to status when it is currently in one of from.
	// It reports false without error when the wallet is not in an allowed state.
	SetStatus(ctx context.Context, ownerID string, from []Status, to Status, reason string, at time.Time) (bool, error)
}

// ErrWalletNotFound indicates missing wallet
type ErrWalletNotFound struct {
	OwnerID string
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found: " + e.OwnerID
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	return t.OwnerID == "" || t.OwnerID == e.OwnerID
}

// ErrInsufficientFundsOrInactive indicates the conditional adjust was refused.
// Balance and Status describe the wallet as it was when refused.
type ErrInsufficientFundsOrInactive struct {
	OwnerID string
	Delta   int64
	Balance int64
	Status  Status
}

func (e ErrInsufficientFundsOrInactive) Error() string {
	return fmt.Sprintf("wallet %s cannot apply %d (balance %d, status %s)", e.OwnerID, e.Delta, e.Balance, e.Status)
}

// Is implements the errors.Is interface for ErrInsufficientFundsOrInactive
func (e ErrInsufficientFundsOrInactive) Is(target error) bool {
	t, ok := target.(ErrInsufficientFundsOrInactive)
	if !ok {
		return false
	}
	return t.OwnerID == "" || t.OwnerID == e.OwnerID
}

// Inactive reports whether the refusal came from the wallet status rather than the balance
func (e ErrInsufficientFundsOrInactive) Inactive() bool {
	if e.Delta > 0 {
		return e.Status == StatusClosed
	}
	return e.Status != StatusActive
}
