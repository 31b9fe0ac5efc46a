package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusChange is a conditional transition of one transaction
type StatusChange struct {
	ID            uuid.UUID
	From          Status
	To            Status
	ProviderRef   string // set when non-empty
	BalanceAfter  *int64
	FailureReason string
	At            time.Time
}

// Repository persists ledger transactions
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// GetByProviderRef returns nil, nil when no transaction carries the reference
	GetByProviderRef(ctx context.Context, providerRef string) (*Transaction, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Transaction, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	ListByReference(ctx context.Context, referenceID string) ([]*Transaction, error)
	// UpdateStatus applies the change only when the record is still in From
	UpdateStatus(ctx context.Context, change StatusChange) error
}

// ErrTransactionNotFound indicates missing ledger transaction
type ErrTransactionNotFound struct {
	ID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "ledger transaction not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}

// ErrDuplicateProviderRef indicates the provider reference is already recorded
type ErrDuplicateProviderRef struct {
	ProviderRef string
}

func (e ErrDuplicateProviderRef) Error() string {
	return "duplicate provider reference: " + e.ProviderRef
}

// Is implements the errors.Is interface for ErrDuplicateProviderRef
func (e ErrDuplicateProviderRef) Is(target error) bool {
	t, ok := target.(ErrDuplicateProviderRef)
	if !ok {
		return false
	}
	return t.ProviderRef == "" || t.ProviderRef == e.ProviderRef
}

// ErrDuplicateIdempotencyKey indicates a second record with the same key
type ErrDuplicateIdempotencyKey struct {
	Key string
}

func (e ErrDuplicateIdempotencyKey) Error() string {
	return "duplicate ledger idempotency key: " + e.Key
}

// ErrStatusConflict indicates the record was not in the expected state
type ErrStatusConflict struct {
	ID   uuid.UUID
	From Status
}

func (e ErrStatusConflict) Error() string {
	return "ledger transaction " + e.ID.String() + " is not " + string(e.From)
}

// Is implements the errors.Is interface for ErrStatusConflict
func (e ErrStatusConflict) Is(target error) bool {
	t, ok := target.(ErrStatusConflict)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}
