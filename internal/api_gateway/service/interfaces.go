// Package service declares what the HTTP layer needs from the monetization core.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/revenue"
	"github.com/creator-coin-ledger/internal/payments"
	"github.com/creator-coin-ledger/internal/processor"
)

// MonetizationService runs unlocks and subscriptions
type MonetizationService interface {
	Unlock(ctx context.Context, req processor.UnlockRequest) (*processor.UnlockResult, error)
	RefundUnlock(ctx context.Context, req processor.RefundRequest) (*monetization.Unlock, error)
	Subscribe(ctx context.Context, req processor.SubscribeRequest) (*processor.SubscribeResult, error)
	Renew(ctx context.Context, req processor.RenewRequest) (*processor.RenewResult, error)
	CancelSubscription(ctx context.Context, req processor.CancelRequest) (*monetization.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (*monetization.Subscription, error)
}

// WalletService exposes balances, history and admin freezes
type WalletService interface {
	GetBalance(ctx context.Context, ownerID string) (*processor.Balance, error)
	GetTransactions(ctx context.Context, ownerID string, page, perPage int) (*processor.TransactionPage, error)
	// Freeze and Unfreeze report whether the status changed
	Freeze(ctx context.Context, ownerID, reason, actorID string) (bool, error)
	Unfreeze(ctx context.Context, ownerID, reason, actorID string) (bool, error)
}

// PaymentService moves coins in and out through the payment provider
type PaymentService interface {
	RequestDeposit(ctx context.Context, req payments.DepositRequest) (*ledger.Transaction, error)
	RequestWithdrawal(ctx context.Context, req payments.WithdrawalRequest) (*ledger.Transaction, error)
	ConfirmProviderTransaction(ctx context.Context, c payments.Confirmation) (*payments.ConfirmResult, error)
}

// RevenueService manages creator earnings and payouts
type RevenueService interface {
	GetAccount(ctx context.Context, creatorID string) (*revenue.Account, error)
	ListWithdrawals(ctx context.Context, creatorID string) ([]*revenue.Withdrawal, error)
	VerifyPaymentInfo(ctx context.Context, creatorID, actorID string) (*revenue.Account, error)
	SettlePending(ctx context.Context, creatorID string, amount int64, actorID string) (int64, error)
	RequestPayout(ctx context.Context, creatorID string, amount int64, actorID string) (*revenue.Withdrawal, error)
	SettleWithdrawal(ctx context.Context, id uuid.UUID, succeeded bool, reason, actorID string) (*revenue.Withdrawal, error)
}
