package handler

import "strings"

// IdempotencyKeyHeader may carry the client key instead of the request body
const IdempotencyKeyHeader = "Idempotency-Key"

// UnlockRequest represents a request to buy access to one content item
type UnlockRequest struct {
	ContentID      string `json:"content_id" binding:"required,max=128"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
}

// SubscribeRequest represents a request to subscribe to a creator
type SubscribeRequest struct {
	CreatorID      string `json:"creator_id" binding:"required,max=128"`
	Tier           string `json:"tier" binding:"required,oneof=monthly quarterly yearly"`
	Price          int64  `json:"price" binding:"required,gt=0"`
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
}

// RenewRequest represents a manual renewal
type RenewRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
}

// ReasonRequest carries the free-text reason of cancels, refunds and freezes
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=512"`
}

// DepositRequest represents a top-up through the payment provider
type DepositRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Provider string `json:"provider" binding:"required,max=64"`
}

// WithdrawalRequest represents a cash-out of wallet coins
type WithdrawalRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Destination string `json:"destination" binding:"required,max=256"`
}

// AmountRequest carries the amount of revenue settlements and payouts
type AmountRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// SettleWithdrawalRequest reports the bank outcome of a creator payout
type SettleWithdrawalRequest struct {
	Succeeded *bool  `json:"succeeded" binding:"required"`
	Reason    string `json:"reason" binding:"max=512"`
}

// ProviderWebhookRequest is the payment provider callback body
type ProviderWebhookRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,uuid"`
	ProviderTxID  string `json:"provider_tx_id" binding:"required,max=128"`
	Outcome       string `json:"outcome" binding:"required,oneof=succeeded failed"`
	Reason        string `json:"reason" binding:"max=512"`
}

// FreezeResponse reports whether a freeze or unfreeze changed the wallet
type FreezeResponse struct {
	OwnerID string `json:"owner_id"`
	Changed bool   `json:"changed"`
}

// SettlePendingResponse reports how much pending revenue became available
type SettlePendingResponse struct {
	CreatorID string `json:"creator_id"`
	Settled   int64  `json:"settled"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// idempotencyKey prefers the body value and falls back to the header
func idempotencyKey(body, header string) string {
	if key := strings.TrimSpace(body); key != "" {
		return key
	}
	return strings.TrimSpace(header)
}
