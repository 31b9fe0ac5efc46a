package revenue

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the settlement state of a payout request
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// Withdrawal is a payout request awaiting external settlement
type Withdrawal struct {
	ID            uuid.UUID        `json:"id"`
	CreatorID     string           `json:"creator_id"`
	Amount        int64            `json:"amount"`
	Status        WithdrawalStatus `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	RequestedAt   time.Time        `json:"requested_at"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
}
