// Package ledger holds the immutable balance-change records.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies what caused a balance change
type Kind string

const (
	KindDeposit      Kind = "deposit"
	KindWithdraw     Kind = "withdraw"
	KindTransferOut  Kind = "transfer_out"
	KindTransferIn   Kind = "transfer_in"
	KindPurchase     Kind = "purchase"
	KindEarnings     Kind = "earnings"
	KindPlatformFee  Kind = "platform_fee"
	KindSubscription Kind = "subscription"
	KindRefund       Kind = "refund"
	KindAdjustment   Kind = "adjustment"
)

// Status is the processing state of a ledger transaction
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusReversed   Status = "reversed"
)

// Terminal reports whether no further transition is allowed, except the
// explicit admin reversal of a completed record.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusReversed:
		return true
	}
	return false
}

// Transaction is one signed balance change of one owner
type Transaction struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Kind           Kind       `json:"kind"`
	Amount         int64      `json:"amount"` // signed, coins
	Status         Status     `json:"status"`
	BalanceBefore  int64      `json:"balance_before"`
	BalanceAfter   int64      `json:"balance_after"`
	PairedID       *uuid.UUID `json:"paired_id,omitempty"`
	ProviderRef    string     `json:"provider_ref,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	ReferenceID    string     `json:"reference_id,omitempty"` // monetization event or subscription id
	Description    string     `json:"description,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// NewTransaction returns a record with a fresh id in the given status
func NewTransaction(ownerID string, kind Kind, amount int64, status Status, at time.Time) *Transaction {
	tx := &Transaction{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Amount:    amount,
		Status:    status,
		CreatedAt: at,
	}
	if status == StatusCompleted {
		tx.CompletedAt = &at
	}
	return tx
}

// Pair links two sides of a transfer
func Pair(a, b *Transaction) {
	aID, bID := a.ID, b.ID
	a.PairedID = &bID
	b.PairedID = &aID
}
