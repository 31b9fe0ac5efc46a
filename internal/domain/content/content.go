// Package content holds the purchasable catalog items and their access allow-lists.
package content

import (
	"errors"
	"time"
)

// Reasons an item cannot be bought
var (
	ErrNotPublished = errors.New("content is not published")
	ErrDeleted      = errors.New("content has been deleted")
	ErrFree         = errors.New("content is free")
)

// Item is the catalog view of one paid content item
type Item struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Price          int64     `json:"price"`
	Published      bool      `json:"published"`
	Deleted        bool      `json:"deleted"`
	SubscriberOnly bool      `json:"subscriber_only"`
	UnlockCount    int64     `json:"unlock_count"`
	RevenueTotal   int64     `json:"revenue_total"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Purchasable returns nil when the item can be unlocked for its price
func (i *Item) Purchasable() error {
	switch {
	case i.Deleted:
		return ErrDeleted
	case !i.Published:
		return ErrNotPublished
	case i.Price <= 0:
		return ErrFree
	}
	return nil
}

// GrantSource records why a user has access
type GrantSource string

const (
	SourceUnlock       GrantSource = "unlock"
	SourceSubscription GrantSource = "subscription"
)

// Grant is one allow-list entry. A user may hold several grants for the same
// item, one per source, so revoking one source leaves the others intact.
type Grant struct {
	ContentID string      `json:"content_id"`
	UserID    string      `json:"user_id"`
	Source    GrantSource `json:"source"`
	SourceID  string      `json:"source_id"` // unlock event id or subscription id
	GrantedAt time.Time   `json:"granted_at"`
}
