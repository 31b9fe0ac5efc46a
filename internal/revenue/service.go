// Package revenue credits creator earnings and runs the payout flow.
package revenue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/revenue"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
)

// Service is the Revenue Account Store and payout flow
type Service struct {
	uow      store.UnitOfWork
	recorder audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(logger *slog.Logger, uow store.UnitOfWork, recorder audit.Recorder) *Service {
	return &Service{
		uow:      uow,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddEarnings credits the creator's available or pending bucket. It runs
// against the repositories of the caller's unit of work.
func AddEarnings(ctx context.Context, repo revenue.Repository, creatorID string, amount int64, toPending bool, at time.Time) (*revenue.Account, error) {
	account, err := getOrCreate(ctx, repo, creatorID, at)
	if err != nil {
		return nil, err
	}
	if err := account.Credit(amount, toPending, at); err != nil {
		return nil, mapError(err, creatorID)
	}
	if err := repo.Update(ctx, account); err != nil {
		return nil, mapError(err, creatorID)
	}
	return account, nil
}

// TakeBackEarnings debits earnings credited at earnedAt, held ones first, as
// an unlock refund does
func TakeBackEarnings(ctx context.Context, repo revenue.Repository, creatorID string, amount int64, earnedAt, at time.Time) (*revenue.Account, error) {
	account, err := repo.Get(ctx, creatorID)
	if err != nil {
		return nil, mapError(err, creatorID)
	}
	if err := account.Debit(amount, earnedAt, at); err != nil {
		return nil, mapError(err, creatorID)
	}
	if err := repo.Update(ctx, account); err != nil {
		return nil, mapError(err, creatorID)
	}
	return account, nil
}

// GetAccount returns the creator's account, creating an empty one if absent
func (s *Service) GetAccount(ctx context.Context, creatorID string) (*revenue.Account, error) {
	if creatorID == "" {
		return nil, shared.NewError(shared.CodeInvalidInput, "creator id is required")
	}
	return getOrCreate(ctx, s.uow.Repositories().Revenue, creatorID, s.now())
}

// ListWithdrawals returns the creator's payout requests, oldest first
func (s *Service) ListWithdrawals(ctx context.Context, creatorID string) ([]*revenue.Withdrawal, error) {
	withdrawals, err := s.uow.Repositories().Revenue.ListWithdrawals(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals for %s: %w", creatorID, err)
	}
	return withdrawals, nil
}

// VerifyPaymentInfo marks the creator as allowed to withdraw
func (s *Service) VerifyPaymentInfo(ctx context.Context, creatorID, actorID string) (*revenue.Account, error) {
	var account *revenue.Account
	err := s.uow.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		now := s.now()
		a, err := getOrCreate(ctx, repos.Revenue, creatorID, now)
		if err != nil {
			return err
		}
		if a.PaymentInfoVerified {
			account = a
			return nil
		}
		a.PaymentInfoVerified = true
		a.Version++
		a.UpdatedAt = now
		if err := repos.Revenue.Update(ctx, a); err != nil {
			return mapError(err, creatorID)
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Creator payment info verified", "creator_id", creatorID, "actor_id", actorID)
	return account, nil
}

// SettlePending moves held earnings to available. Zero settles everything.
func (s *Service) SettlePending(ctx context.Context, creatorID string, amount int64, actorID string) (int64, error) {
	var moved int64
	var before, after revenue.Account
	err := s.uow.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		now := s.now()
		a, err := repos.Revenue.Get(ctx, creatorID)
		if err != nil {
			return mapError(err, creatorID)
		}
		before = *a
		moved, err = a.SettlePending(amount, now)
		if err != nil {
			return mapError(err, creatorID)
		}
		if moved == 0 {
			after = *a
			return nil
		}
		if err := repos.Revenue.Update(ctx, a); err != nil {
			return mapError(err, creatorID)
		}
		after = *a
		return nil
	})
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		s.recorder.Record(ctx, audit.Record{
			Action:     audit.ActionEarningsSettled,
			EntityType: audit.EntityRevenue,
			EntityID:   creatorID,
			ActorID:    actorID,
			Before:     balances(&before),
			After:      balances(&after),
			Metadata:   map[string]any{"amount": moved},
		})
	}
	return moved, nil
}

// RequestPayout moves available earnings to withdrawn and opens a pending
// withdrawal for external settlement
func (s *Service) RequestPayout(ctx context.Context, creatorID string, amount int64, actorID string) (*revenue.Withdrawal, error) {
	if amount <= 0 {
		return nil, shared.NewError(shared.CodeInvalidInput, "payout amount must be positive")
	}

	var withdrawal *revenue.Withdrawal
	var before, after revenue.Account
	err := s.uow.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		now := s.now()
		a, err := repos.Revenue.Get(ctx, creatorID)
		if err != nil {
			return mapError(err, creatorID)
		}
		before = *a
		w, err := a.Withdraw(amount, now)
		if err != nil {
			return mapError(err, creatorID)
		}
		if err := repos.Revenue.Update(ctx, a); err != nil {
			return mapError(err, creatorID)
		}
		if err := repos.Revenue.CreateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("failed to record withdrawal for %s: %w", creatorID, err)
		}
		withdrawal, after = w, *a
		return nil
	})
	if err != nil {
		s.logger.Warn("Payout request refused", "creator_id", creatorID, "amount", amount, "error", err)
		return nil, err
	}

	s.recorder.Record(ctx, audit.Record{
		TransactionID: withdrawal.ID.String(),
		Action:        audit.ActionPayoutRequested,
		EntityType:    audit.EntityRevenue,
		EntityID:      creatorID,
		ActorID:       actorID,
		Before:        balances(&before),
		After:         balances(&after),
		Metadata:      map[string]any{"amount": amount},
	})
	s.logger.Info("Payout requested", "creator_id", creatorID, "withdrawal_id", withdrawal.ID.String(), "amount", amount)
	return withdrawal, nil
}

// SettleWithdrawal closes a pending payout. A failed payout returns the
// amount to available.
func (s *Service) SettleWithdrawal(ctx context.Context, id uuid.UUID, succeeded bool, reason, actorID string) (*revenue.Withdrawal, error) {
	var withdrawal *revenue.Withdrawal
	err := s.uow.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		now := s.now()
		w, err := repos.Revenue.GetWithdrawal(ctx, id)
		if err != nil {
			return mapError(err, "")
		}
		if w.Status != revenue.WithdrawalPending {
			return shared.WrapError(shared.CodeInvalidInput, revenue.ErrWithdrawalNotPending, "withdrawal %s is %s", id, w.Status)
		}

		w.ProcessedAt = &now
		if succeeded {
			w.Status = revenue.WithdrawalCompleted
		} else {
			w.Status = revenue.WithdrawalFailed
			w.FailureReason = reason
			a, err := repos.Revenue.Get(ctx, w.CreatorID)
			if err != nil {
				return mapError(err, w.CreatorID)
			}
			a.ReturnWithdrawal(w.Amount, now)
			if err := repos.Revenue.Update(ctx, a); err != nil {
				return mapError(err, w.CreatorID)
			}
		}
		if err := repos.Revenue.UpdateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("failed to update withdrawal %s: %w", id, err)
		}
		withdrawal = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Record{
		TransactionID: withdrawal.ID.String(),
		Action:        audit.ActionPayoutSettled,
		EntityType:    audit.EntityRevenue,
		EntityID:      withdrawal.CreatorID,
		ActorID:       actorID,
		After:         map[string]any{"status": withdrawal.Status, "amount": withdrawal.Amount},
		Reason:        reason,
	})
	return withdrawal, nil
}

func getOrCreate(ctx context.Context, repo revenue.Repository, creatorID string, at time.Time) (*revenue.Account, error) {
	a, err := repo.Get(ctx, creatorID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, revenue.ErrAccountNotFound{CreatorID: creatorID}) {
		return nil, fmt.Errorf("failed to load revenue account %s: %w", creatorID, err)
	}
	if err := repo.Create(ctx, revenue.NewAccount(creatorID, at)); err != nil {
		return nil, fmt.Errorf("failed to create revenue account %s: %w", creatorID, err)
	}
	return repo.Get(ctx, creatorID)
}

// mapError tags domain errors with the caller-facing taxonomy
func mapError(err error, creatorID string) error {
	var notFound revenue.ErrAccountNotFound
	var withdrawalNotFound revenue.ErrWithdrawalNotFound
	var conflict revenue.ErrConcurrentModification
	switch {
	case errors.As(err, &notFound):
		return shared.WrapError(shared.CodeNotFound, err, "revenue account %s not found", creatorID)
	case errors.As(err, &withdrawalNotFound):
		return shared.WrapError(shared.CodeNotFound, err, "withdrawal %s not found", withdrawalNotFound.ID)
	case errors.As(err, &conflict):
		return shared.WrapError(shared.CodeTransactionAborted, err, "revenue account %s changed concurrently", creatorID)
	case errors.Is(err, revenue.ErrInvalidAmount):
		return shared.WrapError(shared.CodeInvalidInput, err, "amount must be positive")
	case errors.Is(err, revenue.ErrPaymentInfoNotVerified):
		return shared.WrapError(shared.CodeUnauthorized, err, "creator %s has not verified payment information", creatorID)
	case errors.Is(err, revenue.ErrInsufficientAvailable):
		return shared.WrapError(shared.CodeInsufficientBalance, err, "creator %s has insufficient available earnings", creatorID)
	case errors.Is(err, revenue.ErrInsufficientPending):
		return shared.WrapError(shared.CodeInsufficientBalance, err, "creator %s has insufficient pending earnings", creatorID)
	}
	return err
}

func balances(a *revenue.Account) map[string]any {
	return map[string]any{"available": a.Available, "pending": a.Pending, "withdrawn": a.Withdrawn}
}
