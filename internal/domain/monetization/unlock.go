package monetization

import (
	"time"

	"github.com/google/uuid"
)

// UnlockStatus is the lifecycle of a one-time content purchase
type UnlockStatus string

const (
	UnlockPending   UnlockStatus = "pending"
	UnlockCompleted UnlockStatus = "completed"
	UnlockFailed    UnlockStatus = "failed"
	UnlockRefunded  UnlockStatus = "refunded"
)

// Unlock is a one-time purchase of access to one content item
type Unlock struct {
	ID             uuid.UUID    `json:"id"`
	BuyerID        string       `json:"buyer_id"`
	ContentID      string       `json:"content_id"`
	CreatorID      string       `json:"creator_id"`
	Amount         int64        `json:"amount"`
	Split          Split        `json:"split"`
	Status         UnlockStatus `json:"status"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	FailureReason  string       `json:"failure_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	RefundedAt     *time.Time   `json:"refunded_at,omitempty"`
}

// NewUnlock returns a pending unlock with its split computed
func NewUnlock(buyerID, contentID, creatorID string, amount int64, idempotencyKey string, at time.Time) *Unlock {
	return &Unlock{
		ID:             uuid.New(),
		BuyerID:        buyerID,
		ContentID:      contentID,
		CreatorID:      creatorID,
		Amount:         amount,
		Split:          ComputeSplit(amount),
		Status:         UnlockPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      at,
	}
}
