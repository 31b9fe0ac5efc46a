package monetization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UnlockRepository persists unlock events
type UnlockRepository interface {
	Create(ctx context.Context, u *Unlock) error
	Get(ctx context.Context, id uuid.UUID) (*Unlock, error)
	// UpdateStatus transitions the event only when it is still in from
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to UnlockStatus, reason string, at time.Time) error
	HasCompleted(ctx context.Context, buyerID, contentID string) (bool, error)
}

// SubscriptionRepository persists subscriptions
type SubscriptionRepository interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// FindActive returns nil, nil when the pair has no active subscription
	FindActive(ctx context.Context, subscriberID, creatorID string) (*Subscription, error)
	// Update writes s when the stored version is s.Version-1
	Update(ctx context.Context, s *Subscription) error
	// ListLapsed returns active, non-renewing subscriptions that expired before now
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)
	// ListDueForRenewal returns active, auto-renewing subscriptions expiring before until
	ListDueForRenewal(ctx context.Context, until time.Time, limit int) ([]*Subscription, error)
}

// ErrUnlockNotFound indicates missing unlock event
type ErrUnlockNotFound struct {
	ID uuid.UUID
}

func (e ErrUnlockNotFound) Error() string {
	return "unlock not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrUnlockNotFound
func (e ErrUnlockNotFound) Is(target error) bool {
	t, ok := target.(ErrUnlockNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}

// ErrSubscriptionNotFound indicates missing subscription
type ErrSubscriptionNotFound struct {
	ID uuid.UUID
}

func (e ErrSubscriptionNotFound) Error() string {
	return "subscription not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrSubscriptionNotFound
func (e ErrSubscriptionNotFound) Is(target error) bool {
	t, ok := target.(ErrSubscriptionNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}

// ErrConcurrentModification indicates an optimistic lock failure
type ErrConcurrentModification struct {
	Entity string
	ID     string
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for " + e.Entity + ": " + e.ID
}

// ErrStatusConflict indicates the event was no longer in the expected state
type ErrStatusConflict struct {
	ID   uuid.UUID
	From UnlockStatus
}

func (e ErrStatusConflict) Error() string {
	return "unlock " + e.ID.String() + " is not " + string(e.From)
}

// ErrDuplicateActiveSubscription indicates the pair already has an active subscription
type ErrDuplicateActiveSubscription struct {
	SubscriberID string
	CreatorID    string
}

func (e ErrDuplicateActiveSubscription) Error() string {
	return "active subscription already exists: " + e.SubscriberID + " -> " + e.CreatorID
}
