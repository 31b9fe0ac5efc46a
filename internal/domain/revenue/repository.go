package revenue

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists revenue accounts and withdrawal requests
type Repository interface {
	Get(ctx context.Context, creatorID string) (*Account, error)
	// Create inserts the account unless one already exists
	Create(ctx context.Context, a *Account) error
	// Update writes a when the stored version is a.Version-1
	Update(ctx context.Context, a *Account) error
	CreateWithdrawal(ctx context.Context, w *Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *Withdrawal) error
	// ListWithdrawals returns the creator's requests, oldest first
	ListWithdrawals(ctx context.Context, creatorID string) ([]*Withdrawal, error)
}

// ErrAccountNotFound indicates missing revenue account
type ErrAccountNotFound struct {
	CreatorID string
}

func (e ErrAccountNotFound) Error() string {
	return "revenue account not found: " + e.CreatorID
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.CreatorID == "" || t.CreatorID == e.CreatorID
}

// ErrWithdrawalNotFound indicates missing withdrawal request
type ErrWithdrawalNotFound struct {
	ID uuid.UUID
}

func (e ErrWithdrawalNotFound) Error() string {
	return "withdrawal not found: " + e.ID.String()
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	CreatorID string
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for revenue account: " + e.CreatorID
}
