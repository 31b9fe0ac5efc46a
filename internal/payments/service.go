// Package payments moves coins between wallets and the outside world:
// deposit and withdrawal intents, settled by provider confirmations.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/ledgerstore"
	"github.com/creator-coin-ledger/internal/platform/metrics"
)

// Outcome is the provider's verdict on a deposit or withdrawal
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// DepositRequest announces coins the provider is about to collect
type DepositRequest struct {
	OwnerID       string `json:"owner_id" validate:"required,max=128"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	Provider      string `json:"provider" validate:"required,max=64"`
	CorrelationID string `json:"-"`
}

// WithdrawalRequest pays coins out of a wallet through the provider
type WithdrawalRequest struct {
	OwnerID       string `json:"owner_id" validate:"required,max=128"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	Destination   string `json:"destination" validate:"required,max=256"`
	CorrelationID string `json:"-"`
}

// Confirmation is the provider webhook payload, delivered over HTTP or Kafka
type Confirmation struct {
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
	ProviderTxID  string    `json:"provider_tx_id" validate:"required,max=128"`
	Outcome       Outcome   `json:"outcome" validate:"required,oneof=succeeded failed"`
	Reason        string    `json:"reason,omitempty" validate:"max=512"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// ConfirmResult is the settled transaction. Duplicate is true when the
// provider reference had already been applied.
type ConfirmResult struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Duplicate   bool                `json:"duplicate"`
}

// Service handles deposits, wallet withdrawals and their confirmations
type Service struct {
	uow      store.UnitOfWork
	recorder audit.Recorder
	metrics  *metrics.Collector
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(logger *slog.Logger, uow store.UnitOfWork, recorder audit.Recorder, collector *metrics.Collector) *Service {
	return &Service{
		uow:      uow,
		recorder: recorder,
		metrics:  collector,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) loggerFor(correlationID string) *slog.Logger {
	if correlationID == "" {
		return s.logger
	}
	return s.logger.With("correlation_id", correlationID)
}

// RequestDeposit records a pending deposit. The wallet is credited only when
// the provider confirms it.
func (s *Service) RequestDeposit(ctx context.Context, req DepositRequest) (*ledger.Transaction, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewError(shared.CodeInvalidInput, "invalid deposit request: %v", err)
	}
	logger := s.loggerFor(req.CorrelationID)
	now := s.now()

	var created *ledger.Transaction
	err := s.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		w, err := ledgerstore.GetOrCreate(ctx, tx.Wallets, req.OwnerID, now)
		if err != nil {
			return err
		}
		if w.Status == wallet.StatusClosed {
			return shared.NewError(shared.CodeUnauthorized, "wallet %s is closed", req.OwnerID)
		}

		created = ledger.NewTransaction(req.OwnerID, ledger.KindDeposit, req.Amount, ledger.StatusPending, now)
		created.BalanceBefore = w.Balance
		created.BalanceAfter = w.Balance
		created.Description = "deposit via " + req.Provider
		if err := tx.Transactions.Create(ctx, created); err != nil {
			return fmt.Errorf("failed to record deposit for %s: %w", req.OwnerID, err)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Deposit request rejected", "owner_id", req.OwnerID, "amount", req.Amount, "error", err)
		return nil, err
	}

	s.recorder.Record(ctx, audit.Record{
		TransactionID: created.ID.String(),
		Action:        audit.ActionDepositRequested,
		EntityType:    audit.EntityTransaction,
		EntityID:      created.ID.String(),
		ActorID:       req.OwnerID,
		After:         audit.Snapshot(created),
		Metadata:      map[string]any{"provider": req.Provider},
	})
	logger.Info("Deposit requested", "transaction_id", created.ID.String(), "owner_id", req.OwnerID, "amount", req.Amount)
	return created, nil
}

// RequestWithdrawal debits the wallet immediately and leaves a pending
// withdraw transaction for the provider to settle.
func (s *Service) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*ledger.Transaction, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewError(shared.CodeInvalidInput, "invalid withdrawal request: %v", err)
	}
	logger := s.loggerFor(req.CorrelationID)
	now := s.now()

	var created *ledger.Transaction
	err := s.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		var err error
		created, _, err = ledgerstore.Post(ctx, tx, ledgerstore.Entry{
			OwnerID:     req.OwnerID,
			Kind:        ledger.KindWithdraw,
			Amount:      -req.Amount,
			Stat:        wallet.StatWithdrawn,
			Status:      ledger.StatusPending,
			Description: "withdrawal to " + req.Destination,
		}, now)
		return err
	})
	if err != nil {
		logger.Warn("Withdrawal request rejected", "owner_id", req.OwnerID, "amount", req.Amount, "error", err)
		return nil, err
	}

	s.recorder.Record(ctx, audit.Record{
		TransactionID: created.ID.String(),
		Action:        audit.ActionWithdrawRequested,
		EntityType:    audit.EntityWallet,
		EntityID:      req.OwnerID,
		ActorID:       req.OwnerID,
		Before:        map[string]any{"balance": created.BalanceBefore},
		After:         map[string]any{"balance": created.BalanceAfter},
		Metadata:      map[string]any{"destination": req.Destination},
	})
	logger.Info("Withdrawal requested", "transaction_id", created.ID.String(), "owner_id", req.OwnerID, "amount", req.Amount)
	return created, nil
}

// ConfirmProviderTransaction settles a pending deposit or withdrawal. It is
// idempotent on the provider transaction id: a repeated confirmation returns
// the already settled transaction without moving money again.
func (s *Service) ConfirmProviderTransaction(ctx context.Context, c Confirmation) (*ConfirmResult, error) {
	if err := s.validate.Struct(c); err != nil {
		s.metrics.PaymentConfirmation(string(shared.CodeInvalidInput))
		return nil, shared.NewError(shared.CodeInvalidInput, "invalid confirmation: %v", err)
	}
	logger := s.loggerFor(c.CorrelationID).With("transaction_id", c.TransactionID.String(), "provider_tx_id", c.ProviderTxID)

	res, err := s.confirm(ctx, c, logger)
	if err != nil {
		s.metrics.PaymentConfirmation(string(shared.CodeOf(err)))
		return nil, err
	}
	if res.Duplicate {
		s.metrics.PaymentConfirmation("duplicate")
		logger.Info("Provider confirmation already applied")
		return res, nil
	}
	s.metrics.PaymentConfirmation(string(c.Outcome))
	return res, nil
}

func (s *Service) confirm(ctx context.Context, c Confirmation, logger *slog.Logger) (*ConfirmResult, error) {
	repo := s.uow.Repositories().Transactions

	// 1. Dedup on the provider reference
	if res, err := s.alreadyApplied(ctx, c); res != nil || err != nil {
		return res, err
	}

	// 2. Validate the target
	target, err := repo.GetByID(ctx, c.TransactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound{ID: c.TransactionID}) {
			return nil, shared.WrapError(shared.CodeNotFound, err, "transaction %s not found", c.TransactionID)
		}
		return nil, fmt.Errorf("failed to load transaction %s: %w", c.TransactionID, err)
	}
	if target.Kind != ledger.KindDeposit && target.Kind != ledger.KindWithdraw {
		return nil, shared.NewError(shared.CodeInvalidInput, "transaction %s is a %s, not a provider payment", target.ID, target.Kind)
	}
	if target.Status != ledger.StatusPending {
		return nil, shared.NewError(shared.CodeInvalidInput, "transaction %s is already %s", target.ID, target.Status)
	}

	// 3. Settle
	now := s.now()
	var settled *ledger.Transaction
	err = s.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		var err error
		settled, err = s.settle(ctx, tx, target, c, now)
		return err
	})
	if err != nil {
		var dup ledger.ErrDuplicateProviderRef
		if errors.As(err, &dup) {
			// A concurrent confirmation with the same reference won
			if res, lookupErr := s.alreadyApplied(ctx, c); res != nil || lookupErr != nil {
				return res, lookupErr
			}
		}
		var conflict ledger.ErrStatusConflict
		if errors.As(err, &conflict) {
			return nil, shared.WrapError(shared.CodeTransactionAborted, err, "transaction %s was settled concurrently", target.ID)
		}
		logger.Error("Failed to settle provider transaction", "error", err)
		return nil, err
	}

	s.recorder.Record(ctx, audit.Record{
		TransactionID: settled.ID.String(),
		Action:        audit.ActionProviderConfirmed,
		EntityType:    audit.EntityTransaction,
		EntityID:      settled.ID.String(),
		ActorID:       shared.ActorSystem,
		Before:        map[string]any{"status": target.Status},
		After:         map[string]any{"status": settled.Status, "provider_ref": settled.ProviderRef, "balance_after": settled.BalanceAfter},
		Reason:        c.Reason,
		Metadata:      map[string]any{"outcome": c.Outcome, "kind": settled.Kind},
	})
	logger.Info("Provider transaction settled", "owner_id", settled.OwnerID, "kind", settled.Kind, "status", settled.Status)
	return &ConfirmResult{Transaction: settled}, nil
}

// alreadyApplied returns a duplicate result when the provider reference is
// recorded on the same transaction, and INVALID_INPUT when it is on another
func (s *Service) alreadyApplied(ctx context.Context, c Confirmation) (*ConfirmResult, error) {
	existing, err := s.uow.Repositories().Transactions.GetByProviderRef(ctx, c.ProviderTxID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up provider reference %s: %w", c.ProviderTxID, err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.ID != c.TransactionID {
		return nil, shared.NewError(shared.CodeInvalidInput, "provider reference %s belongs to transaction %s", c.ProviderTxID, existing.ID)
	}
	return &ConfirmResult{Transaction: existing, Duplicate: true}, nil
}

func (s *Service) settle(ctx context.Context, tx store.Repositories, target *ledger.Transaction, c Confirmation, now time.Time) (*ledger.Transaction, error) {
	change := ledger.StatusChange{
		ID:          target.ID,
		From:        ledger.StatusPending,
		ProviderRef: c.ProviderTxID,
		At:          now,
	}
	var event string

	switch {
	case target.Kind == ledger.KindDeposit && c.Outcome == OutcomeSucceeded:
		w, err := ledgerstore.Adjust(ctx, tx.Wallets, wallet.Adjustment{OwnerID: target.OwnerID, Delta: target.Amount, Stat: wallet.StatDeposited, At: now})
		if err != nil {
			return nil, err
		}
		balance := w.Balance
		change.To = ledger.StatusCompleted
		change.BalanceAfter = &balance
		event = outbox.EventDepositCompleted

	case target.Kind == ledger.KindWithdraw && c.Outcome == OutcomeSucceeded:
		change.To = ledger.StatusCompleted
		event = outbox.EventWithdrawCompleted

	case target.Kind == ledger.KindWithdraw:
		// The coins left the wallet at request time; give them back
		if _, _, err := ledgerstore.Post(ctx, tx, ledgerstore.Entry{
			OwnerID:     target.OwnerID,
			Kind:        ledger.KindRefund,
			Amount:      -target.Amount,
			Stat:        wallet.StatNone,
			ReferenceID: target.ID.String(),
			Description: "returned failed withdrawal",
		}, now); err != nil {
			return nil, err
		}
		change.To = ledger.StatusFailed
		change.FailureReason = c.Reason

	default:
		change.To = ledger.StatusFailed
		change.FailureReason = c.Reason
	}

	if err := tx.Transactions.UpdateStatus(ctx, change); err != nil {
		return nil, err
	}
	settled, err := tx.Transactions.GetByID(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	if event != "" {
		msg, err := outbox.NewMessage(event, settled.ID.String(), c.CorrelationID, settled, now)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox message payload for %s: %w", settled.ID, err)
		}
		if err := tx.Outbox.Create(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to create outbox message for %s: %w", settled.ID, err)
		}
	}
	return settled, nil
}
