// Package audit holds the append-only trail of balance-affecting changes.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names what was done
type Action string

const (
	ActionWalletFrozen          Action = "wallet.frozen"
	ActionWalletUnfrozen        Action = "wallet.unfrozen"
	ActionUnlockCompleted       Action = "unlock.completed"
	ActionUnlockRefunded        Action = "unlock.refunded"
	ActionSubscriptionCreated   Action = "subscription.created"
	ActionSubscriptionRenewed   Action = "subscription.renewed"
	ActionSubscriptionCancelled Action = "subscription.cancelled"
	ActionSubscriptionExpired   Action = "subscription.expired"
	ActionRenewalDisabled       Action = "subscription.auto_renew_disabled"
	ActionRiskBlocked           Action = "risk.blocked"
	ActionRiskFlagged           Action = "risk.flagged"
	ActionPayoutRequested       Action = "revenue.payout_requested"
	ActionPayoutSettled         Action = "revenue.payout_settled"
	ActionEarningsSettled       Action = "revenue.earnings_settled"
	ActionDepositRequested      Action = "payment.deposit_requested"
	ActionWithdrawRequested     Action = "payment.withdraw_requested"
	ActionProviderConfirmed     Action = "payment.provider_confirmed"
)

// Entity types referenced by audit records
const (
	EntityWallet       = "wallet"
	EntityUnlock       = "unlock"
	EntitySubscription = "subscription"
	EntityRevenue      = "revenue_account"
	EntityTransaction  = "ledger_transaction"
	EntityRiskProfile  = "risk_profile"
)

// Record is one append-only audit entry
type Record struct {
	ID            uuid.UUID      `json:"id" bson:"_id"`
	TransactionID string         `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Action        Action         `json:"action" bson:"action"`
	EntityType    string         `json:"entity_type" bson:"entity_type"`
	EntityID      string         `json:"entity_id" bson:"entity_id"`
	ActorID       string         `json:"actor_id" bson:"actor_id"`
	Before        map[string]any `json:"before,omitempty" bson:"before,omitempty"`
	After         map[string]any `json:"after,omitempty" bson:"after,omitempty"`
	Reason        string         `json:"reason,omitempty" bson:"reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}

// Snapshot flattens a value into a generic document for Before/After.
// Values that cannot be encoded yield nil.
func Snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Repository appends and reads audit records
type Repository interface {
	Append(ctx context.Context, rec *Record) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Record, error)
}

// Recorder accepts audit records without ever failing the caller
type Recorder interface {
	Record(ctx context.Context, rec Record)
}
