package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/ledgerstore"
	"github.com/creator-coin-ledger/internal/revenue"
	"github.com/creator-coin-ledger/internal/risk"
)

const operationUnlock = "unlock"

// UnlockRequest buys access to one content item
type UnlockRequest struct {
	BuyerID        string `validate:"required,max=128"`
	ContentID      string `validate:"required,max=128"`
	IdempotencyKey string `validate:"omitempty,max=128"`
	Context        RequestContext
}

// UnlockResult describes a completed unlock
type UnlockResult struct {
	EventID       uuid.UUID `json:"event_id"`
	ContentID     string    `json:"content_id"`
	AmountTotal   int64     `json:"amount_total"`
	CreatorShare  int64     `json:"creator_share"`
	PlatformShare int64     `json:"platform_share"`
	ProcessingFee int64     `json:"processing_fee"`
	BalanceAfter  int64     `json:"balance_after"`
	Idempotent    bool      `json:"idempotent"`
}

// Unlock charges the buyer the content price, pays the creator and platform
// shares and grants access, all or nothing
func (p *Processor) Unlock(ctx context.Context, req UnlockRequest) (result *UnlockResult, err error) {
	started := time.Now()
	defer func() { p.observe(operationUnlock, started, err) }()

	if err := p.validate.Struct(req); err != nil {
		return nil, invalidRequest(err)
	}

	res, replayed, err := runIdempotent(ctx, p, operationUnlock, req.BuyerID, req.IdempotencyKey, func() (*UnlockResult, error) {
		return p.unlock(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	res.Idempotent = replayed
	return res, nil
}

func (p *Processor) unlock(ctx context.Context, req UnlockRequest) (*UnlockResult, error) {
	logger := p.loggerFor(req.Context)
	repos := p.uow.Repositories()
	now := p.now()

	// 1. Validate the content and the buyer's right to buy it
	item, err := repos.Content.Get(ctx, req.ContentID)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound{ID: req.ContentID}) {
			return nil, shared.WrapError(shared.CodeNotFound, err, "content %s not found", req.ContentID)
		}
		return nil, fmt.Errorf("failed to load content %s: %w", req.ContentID, err)
	}
	if err := item.Purchasable(); err != nil {
		return nil, shared.WrapError(shared.CodeContentNotAvailable, err, "content %s cannot be unlocked", item.ID)
	}
	if item.OwnerID == req.BuyerID {
		return nil, shared.NewError(shared.CodeInvalidInput, "creators already have access to their own content")
	}
	unlocked, err := repos.Unlocks.HasCompleted(ctx, req.BuyerID, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior unlocks: %w", err)
	}
	if unlocked {
		return nil, shared.NewError(shared.CodeAlreadyUnlocked, "content %s is already unlocked", item.ID)
	}

	// 2. Consult the risk engine
	buyer, err := p.wallets.GetOrCreate(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	decision, err := p.risk.CheckUnlock(ctx, risk.UnlockCheck{UserID: req.BuyerID, ContentID: item.ID, Price: item.Price, Wallet: buyer})
	if err != nil {
		return nil, fmt.Errorf("risk check failed: %w", err)
	}
	if _, err := p.screen(ctx, req.BuyerID, decision, logger); err != nil {
		return nil, err
	}

	// 3. Verify funds
	if buyer.Status != wallet.StatusActive {
		return nil, shared.NewError(shared.CodeUnauthorized, "wallet %s is %s", req.BuyerID, buyer.Status)
	}
	if buyer.Balance < item.Price {
		return nil, shared.NewError(shared.CodeInsufficientBalance, "wallet %s has %d coins, %d required", req.BuyerID, buyer.Balance, item.Price)
	}

	// 4. Record the pending event
	u := monetization.NewUnlock(req.BuyerID, item.ID, item.OwnerID, item.Price, req.IdempotencyKey, now)
	if err := repos.Unlocks.Create(ctx, u); err != nil {
		logger.Error("Failed to record unlock", "buyer_id", req.BuyerID, "content_id", item.ID, "error", err)
		return nil, fmt.Errorf("failed to record unlock: %w", err)
	}

	// 5. Move the money and grant access as one unit
	var balanceAfter int64
	err = p.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		done, err := tx.Unlocks.HasCompleted(ctx, req.BuyerID, item.ID)
		if err != nil {
			return err
		}
		if done {
			return shared.NewError(shared.CodeAlreadyUnlocked, "content %s is already unlocked", item.ID)
		}

		_, w, err := ledgerstore.Post(ctx, tx, ledgerstore.Entry{
			OwnerID:        req.BuyerID,
			Kind:           ledger.KindPurchase,
			Amount:         -u.Amount,
			Stat:           wallet.StatSpent,
			ReferenceID:    u.ID.String(),
			IdempotencyKey: ledgerKey(operationUnlock, req.BuyerID, req.IdempotencyKey),
			Description:    "unlock " + item.ID,
		}, now)
		if err != nil {
			return err
		}
		balanceAfter = w.Balance

		if err := p.distribute(ctx, tx, item.OwnerID, u.Split, u.ID.String(), now); err != nil {
			return err
		}
		grant := content.Grant{ContentID: item.ID, UserID: req.BuyerID, Source: content.SourceUnlock, SourceID: u.ID.String(), GrantedAt: now}
		if err := tx.Content.GrantAccess(ctx, grant); err != nil {
			return fmt.Errorf("failed to grant access to %s: %w", item.ID, err)
		}
		if err := tx.Content.RecordUnlock(ctx, item.ID, 1, u.Amount, now); err != nil {
			return fmt.Errorf("failed to update counters of %s: %w", item.ID, err)
		}
		if err := tx.Unlocks.UpdateStatus(ctx, u.ID, monetization.UnlockPending, monetization.UnlockCompleted, "", now); err != nil {
			return err
		}
		u.Status = monetization.UnlockCompleted
		u.CompletedAt = &now
		return p.emit(ctx, tx, outbox.EventUnlockCompleted, u.ID.String(), req.Context.CorrelationID, u, now)
	})
	if err != nil {
		err = classify(err)
		logger.Warn("Unlock aborted", "event_id", u.ID.String(), "buyer_id", req.BuyerID, "error", err)
		if markErr := repos.Unlocks.UpdateStatus(context.WithoutCancel(ctx), u.ID, monetization.UnlockPending, monetization.UnlockFailed, string(shared.CodeOf(err)), p.now()); markErr != nil {
			logger.Error("Failed to mark unlock failed", "event_id", u.ID.String(), "error", markErr)
		}
		return nil, err
	}

	// 6. Side effects that never fail the unlock
	if err := p.risk.RecordUnlock(ctx, req.BuyerID, item.ID); err != nil {
		logger.Warn("Failed to record unlock for risk checks", "buyer_id", req.BuyerID, "error", err)
	}
	p.recorder.Record(ctx, audit.Record{
		TransactionID: u.ID.String(),
		Action:        audit.ActionUnlockCompleted,
		EntityType:    audit.EntityUnlock,
		EntityID:      u.ID.String(),
		ActorID:       req.BuyerID,
		Before:        map[string]any{"balance": buyer.Balance},
		After:         audit.Snapshot(u),
		Metadata:      req.Context.metadata(),
	})
	logger.Info("Unlock completed", "event_id", u.ID.String(), "buyer_id", req.BuyerID, "content_id", item.ID, "amount", u.Amount)

	return &UnlockResult{
		EventID:       u.ID,
		ContentID:     item.ID,
		AmountTotal:   u.Amount,
		CreatorShare:  u.Split.CreatorShare,
		PlatformShare: u.Split.PlatformShare,
		ProcessingFee: u.Split.ProcessingFee,
		BalanceAfter:  balanceAfter,
	}, nil
}

// RefundRequest reverses one completed unlock
type RefundRequest struct {
	UnlockID uuid.UUID `validate:"required"`
	ActorID  string    `validate:"required"`
	Reason   string    `validate:"max=512"`
	Context  RequestContext
}

// RefundUnlock returns the full amount to the buyer, takes the creator and
// platform shares back, revokes access and marks the original ledger records
// reversed
func (p *Processor) RefundUnlock(ctx context.Context, req RefundRequest) (result *monetization.Unlock, err error) {
	started := time.Now()
	defer func() { p.observe("refund", started, err) }()

	if err := p.validate.Struct(req); err != nil {
		return nil, invalidRequest(err)
	}
	logger := p.loggerFor(req.Context)

	u, err := p.uow.Repositories().Unlocks.Get(ctx, req.UnlockID)
	if err != nil {
		if errors.Is(err, monetization.ErrUnlockNotFound{ID: req.UnlockID}) {
			return nil, shared.WrapError(shared.CodeNotFound, err, "unlock %s not found", req.UnlockID)
		}
		return nil, fmt.Errorf("failed to load unlock %s: %w", req.UnlockID, err)
	}
	if u.Status != monetization.UnlockCompleted {
		return nil, shared.NewError(shared.CodeInvalidInput, "unlock %s is %s, only completed unlocks can be refunded", u.ID, u.Status)
	}

	var revoked int64
	now := p.now()
	err = p.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		ref := u.ID.String()

		// 1. Void the original records before the compensating ones exist
		originals, err := tx.Transactions.ListByReference(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to list transactions of %s: %w", ref, err)
		}
		for _, original := range originals {
			if original.Status != ledger.StatusCompleted {
				continue
			}
			change := ledger.StatusChange{ID: original.ID, From: ledger.StatusCompleted, To: ledger.StatusReversed, FailureReason: req.Reason, At: now}
			if err := tx.Transactions.UpdateStatus(ctx, change); err != nil {
				return err
			}
		}

		// 2. Move the money back
		if _, _, err := ledgerstore.Post(ctx, tx, ledgerstore.Entry{
			OwnerID:     u.BuyerID,
			Kind:        ledger.KindRefund,
			Amount:      u.Amount,
			ReferenceID: ref,
			Description: "refund of unlock " + u.ContentID,
		}, now); err != nil {
			return err
		}
		if _, err := revenue.TakeBackEarnings(ctx, tx.Revenue, u.CreatorID, u.Split.CreatorShare, u.CreatedAt, now); err != nil {
			return err
		}
		if u.Split.PlatformShare > 0 {
			if _, _, err := ledgerstore.Post(ctx, tx, ledgerstore.Entry{
				OwnerID:     p.opts.PlatformWalletID,
				Kind:        ledger.KindRefund,
				Amount:      -u.Split.PlatformShare,
				ReferenceID: ref,
				Description: "platform share refund",
			}, now); err != nil {
				return err
			}
		}

		// 3. Take access away and roll back the counters
		n, err := tx.Content.RevokeBySource(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to revoke access of %s: %w", ref, err)
		}
		revoked = n
		if err := tx.Content.RecordUnlock(ctx, u.ContentID, -1, -u.Amount, now); err != nil {
			return fmt.Errorf("failed to update counters of %s: %w", u.ContentID, err)
		}
		if err := tx.Unlocks.UpdateStatus(ctx, u.ID, monetization.UnlockCompleted, monetization.UnlockRefunded, req.Reason, now); err != nil {
			return err
		}
		u.Status = monetization.UnlockRefunded
		u.FailureReason = req.Reason
		u.RefundedAt = &now
		return p.emit(ctx, tx, outbox.EventUnlockRefunded, ref, req.Context.CorrelationID, u, now)
	})
	if err != nil {
		err = classify(err)
		logger.Warn("Refund aborted", "event_id", u.ID.String(), "error", err)
		return nil, err
	}

	p.metrics.AccessRevoked(revoked)
	p.recorder.Record(ctx, audit.Record{
		TransactionID: u.ID.String(),
		Action:        audit.ActionUnlockRefunded,
		EntityType:    audit.EntityUnlock,
		EntityID:      u.ID.String(),
		ActorID:       req.ActorID,
		Before:        map[string]any{"status": monetization.UnlockCompleted},
		After:         audit.Snapshot(u),
		Reason:        req.Reason,
		Metadata:      req.Context.metadata(),
	})
	logger.Info("Unlock refunded", "event_id", u.ID.String(), "buyer_id", u.BuyerID, "amount", u.Amount, "actor_id", req.ActorID)
	return u, nil
}
