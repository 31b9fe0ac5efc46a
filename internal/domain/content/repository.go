package content

import (
	"context"
	"time"
)

// Repository persists catalog items and allow-lists
type Repository interface {
	// Upsert stores the catalog view of an item, ignoring snapshots older than
	// the stored one. Unlock counters are kept.
	Upsert(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	ListSubscriberOnly(ctx context.Context, ownerID string) ([]*Item, error)
	// GrantAccess is a no-op when the same grant already exists
	GrantAccess(ctx context.Context, grant Grant) error
	HasAccess(ctx context.Context, contentID, userID string) (bool, error)
	// RevokeBySource removes every grant issued by the source and reports how many
	RevokeBySource(ctx context.Context, sourceID string) (int64, error)
	// RecordUnlock bumps the unlock counter and revenue total by delta
	RecordUnlock(ctx context.Context, contentID string, countDelta, revenueDelta int64, at time.Time) error
}

// ErrContentNotFound indicates missing content item
type ErrContentNotFound struct {
	ID string
}

func (e ErrContentNotFound) Error() string {
	return "content not found: " + e.ID
}

// Is implements the errors.Is interface for ErrContentNotFound
func (e ErrContentNotFound) Is(target error) bool {
	t, ok := target.(ErrContentNotFound)
	if !ok {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}
