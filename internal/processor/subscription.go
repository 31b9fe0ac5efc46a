package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
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
	"github.com/creator-coin-ledger/internal/risk"
)

const (
	operationSubscribe = "subscribe"
	operationRenew     = "renew"
	operationCancel    = "cancel"
)

// SubscribeRequest starts a timed subscription to a creator
type SubscribeRequest struct {
	SubscriberID   string            `validate:"required,max=128"`
	CreatorID      string            `validate:"required,max=128"`
	Tier           monetization.Tier `validate:"required,oneof=monthly quarterly yearly"`
	Price          int64             `validate:"gt=0"`
	IdempotencyKey string            `validate:"omitempty,max=128"`
	Context        RequestContext
}

// SubscribeResult describes a started subscription
type SubscribeResult struct {
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	ExpiresAt      time.Time          `json:"expires_at"`
	RevenueSplit   monetization.Split `json:"revenue_split"`
	BalanceAfter   int64              `json:"balance_after"`
	GrantedCount   int                `json:"granted_count"`
	Idempotent     bool               `json:"idempotent"`
}

// Subscribe charges the first period, pays the shares and grants access to
// every subscriber-only item of the creator, all or nothing
func (p *Processor) Subscribe(ctx context.Context, req SubscribeRequest) (result *SubscribeResult, err error) {
	started := time.Now()
	defer func() { p.observe(operationSubscribe, started, err) }()

	if err := p.validate.Struct(req); err != nil {
		return nil, invalidRequest(err)
	}

	res, replayed, err := runIdempotent(ctx, p, operationSubscribe, req.SubscriberID, req.IdempotencyKey, func() (*SubscribeResult, error) {
		return p.subscribe(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	res.Idempotent = replayed
	return res, nil
}

func (p *Processor) subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	logger := p.loggerFor(req.Context)
	repos := p.uow.Repositories()

	// 1. Validate the pair
	if req.SubscriberID == req.CreatorID {
		return nil, shared.NewError(shared.CodeInvalidInput, "cannot subscribe to yourself")
	}
	existing, err := repos.Subscriptions.FindActive(ctx, req.SubscriberID, req.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active subscription: %w", err)
	}

	// 2. Consult the risk engine. A duplicate still gets scored so it feeds
	// the identity's risk profile, but the caller sees the precise reason.
	subscriber, err := p.wallets.GetOrCreate(ctx, req.SubscriberID)
	if err != nil {
		return nil, err
	}
	decision, err := p.risk.CheckSubscribe(ctx, risk.SubscribeCheck{
		UserID:            req.SubscriberID,
		CreatorID:         req.CreatorID,
		Price:             req.Price,
		Wallet:            subscriber,
		AlreadySubscribed: existing != nil,
	})
	if err != nil {
		return nil, fmt.Errorf("risk check failed: %w", err)
	}
	action, screenErr := p.screen(ctx, req.SubscriberID, decision, logger)
	if existing != nil {
		e := shared.NewError(shared.CodeAlreadySubscribed, "already subscribed to creator %s until %s", req.CreatorID, existing.ExpiresAt.Format(time.RFC3339))
		e.RiskScore = decision.Score
		e.Action = action
		return nil, e
	}
	if screenErr != nil {
		return nil, screenErr
	}

	// 3. Verify funds
	if subscriber.Status != wallet.StatusActive {
		return nil, shared.NewError(shared.CodeUnauthorized, "wallet %s is %s", req.SubscriberID, subscriber.Status)
	}
	if subscriber.Balance < req.Price {
		return nil, shared.NewError(shared.CodeInsufficientBalance, "wallet %s has %d coins, %d required", req.SubscriberID, subscriber.Balance, req.Price)
	}

	// 4. Charge, pay out and grant as one unit
	now := p.now()
	sub := monetization.NewSubscription(req.SubscriberID, req.CreatorID, req.Tier, req.Price, now)
	var balanceAfter int64
	var granted int
	err = p.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		ref := sub.ID.String()
		_, w, err := ledgerstore.Post(ctx, tx, ledgerstore.Entry{
			OwnerID:        req.SubscriberID,
			Kind:           ledger.KindSubscription,
			Amount:         -sub.Price,
			Stat:           wallet.StatSpent,
			ReferenceID:    ref,
			IdempotencyKey: ledgerKey(operationSubscribe, req.SubscriberID, req.IdempotencyKey),
			Description:    fmt.Sprintf("%s subscription to %s", sub.Tier, sub.CreatorID),
		}, now)
		if err != nil {
			return err
		}
		balanceAfter = w.Balance

		if err := p.distribute(ctx, tx, sub.CreatorID, sub.Split, ref, now); err != nil {
			return err
		}
		if err := tx.Subscriptions.Create(ctx, sub); err != nil {
			return err
		}
		if granted, err = grantSubscriberAccess(ctx, tx, sub, now); err != nil {
			return err
		}
		return p.emit(ctx, tx, outbox.EventSubscriptionCreated, ref, req.Context.CorrelationID, sub, now)
	})
	if err != nil {
		err = classify(err)
		logger.Warn("Subscription aborted", "subscriber_id", req.SubscriberID, "creator_id", req.CreatorID, "error", err)
		return nil, err
	}

	p.recorder.Record(ctx, audit.Record{
		TransactionID: sub.ID.String(),
		Action:        audit.ActionSubscriptionCreated,
		EntityType:    audit.EntitySubscription,
		EntityID:      sub.ID.String(),
		ActorID:       req.SubscriberID,
		Before:        map[string]any{"balance": subscriber.Balance},
		After:         audit.Snapshot(sub),
		Metadata:      req.Context.metadata(),
	})
	logger.Info("Subscription created", "subscription_id", sub.ID.String(), "subscriber_id", req.SubscriberID, "creator_id", req.CreatorID, "tier", sub.Tier)

	return &SubscribeResult{
		SubscriptionID: sub.ID,
		ExpiresAt:      sub.ExpiresAt,
		RevenueSplit:   sub.Split,
		BalanceAfter:   balanceAfter,
		GrantedCount:   granted,
	}, nil
}

// grantSubscriberAccess adds the subscriber to every subscriber-only item of
// the creator. Existing grants from the same subscription are left alone.
func grantSubscriberAccess(ctx context.Context, tx store.Repositories, sub *monetization.Subscription, at time.Time) (int, error) {
	items, err := tx.Content.ListSubscriberOnly(ctx, sub.CreatorID)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscriber-only content of %s: %w", sub.CreatorID, err)
	}
	for _, item := range items {
		grant := content.Grant{
			ContentID: item.ID,
			UserID:    sub.SubscriberID,
			Source:    content.SourceSubscription,
			SourceID:  sub.ID.String(),
			GrantedAt: at,
		}
		if err := tx.Content.GrantAccess(ctx, grant); err != nil {
			return 0, fmt.Errorf("failed to grant access to %s: %w", item.ID, err)
		}
	}
	return len(items), nil
}

// RenewRequest charges the next period of an auto-renewing subscription
type RenewRequest struct {
	SubscriptionID uuid.UUID `validate:"required"`
	IdempotencyKey string    `validate:"omitempty,max=128"`
	Context        RequestContext
}

// RenewResult describes a renewed subscription
type RenewResult struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	RenewalCount   int       `json:"renewal_count"`
	Charged        int64     `json:"charged"`
	Idempotent     bool      `json:"idempotent"`
}

// Renew extends an active auto-renewing subscription by one tier period from
// its previous expiry. A charge the wallet refuses, for lack of funds or
// because the wallet is frozen or closed, turns auto-renew off and fails.
func (p *Processor) Renew(ctx context.Context, req RenewRequest) (result *RenewResult, err error) {
	started := time.Now()
	defer func() { p.observe(operationRenew, started, err) }()

	if err := p.validate.Struct(req); err != nil {
		return nil, invalidRequest(err)
	}
	logger := p.loggerFor(req.Context)

	sub, err := p.loadSubscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != monetization.SubscriptionActive || !sub.AutoRenew {
		return nil, shared.NewError(shared.CodeInvalidInput, "subscription %s is not renewable (status %s, auto renew %t)", sub.ID, sub.Status, sub.AutoRenew)
	}
	if sub.InCooldown(p.now(), p.opts.RenewalCooldown) {
		return nil, shared.NewError(shared.CodeRateLimitExceeded, "subscription %s was renewed less than %s ago", sub.ID, p.opts.RenewalCooldown)
	}

	// Without a client key one renewal per billing period is allowed
	key := req.IdempotencyKey
	if key == "" {
		key = "period-" + strconv.FormatInt(sub.ExpiresAt.Unix(), 10)
	}

	res, replayed, err := runIdempotent(ctx, p, operationRenew, sub.ID.String(), key, func() (*RenewResult, error) {
		return p.renew(ctx, sub, key, req.Context, logger)
	})
	if err != nil {
		return nil, err
	}
	res.Idempotent = replayed
	return res, nil
}

func (p *Processor) renew(ctx context.Context, sub *monetization.Subscription, key string, rc RequestContext, logger *slog.Logger) (*RenewResult, error) {
	now := p.now()
	var renewed *monetization.Subscription
	err := p.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		current, err := tx.Subscriptions.Get(ctx, sub.ID)
		if err != nil {
			return err
		}
		if current.Version != sub.Version {
			return monetization.ErrConcurrentModification{Entity: "subscription", ID: sub.ID.String()}
		}

		ref := sub.ID.String()
		if _, _, err := ledgerstore.Post(ctx, tx, ledgerstore.Entry{
			OwnerID:        current.SubscriberID,
			Kind:           ledger.KindSubscription,
			Amount:         -current.Price,
			Stat:           wallet.StatSpent,
			ReferenceID:    ref,
			IdempotencyKey: ledgerKey(operationRenew, ref, key),
			Description:    fmt.Sprintf("%s renewal of %s", current.Tier, current.CreatorID),
		}, now); err != nil {
			return err
		}

		current.Renewed(now)
		if err := p.distribute(ctx, tx, current.CreatorID, current.Split, ref, now); err != nil {
			return err
		}
		if err := tx.Subscriptions.Update(ctx, current); err != nil {
			return err
		}
		if _, err := grantSubscriberAccess(ctx, tx, current, now); err != nil {
			return err
		}
		renewed = current
		return p.emit(ctx, tx, outbox.EventSubscriptionRenewed, ref, rc.CorrelationID, current, now)
	})
	if err != nil {
		err = classify(err)
		if chargeRefused(err) {
			p.disableAutoRenew(ctx, sub.ID, err, logger)
		}
		logger.Warn("Renewal failed", "subscription_id", sub.ID.String(), "error", err)
		return nil, err
	}

	p.recorder.Record(ctx, audit.Record{
		TransactionID: sub.ID.String(),
		Action:        audit.ActionSubscriptionRenewed,
		EntityType:    audit.EntitySubscription,
		EntityID:      sub.ID.String(),
		ActorID:       renewed.SubscriberID,
		Before:        map[string]any{"expires_at": sub.ExpiresAt, "renewal_count": sub.RenewalCount},
		After:         map[string]any{"expires_at": renewed.ExpiresAt, "renewal_count": renewed.RenewalCount},
		Metadata:      rc.metadata(),
	})
	logger.Info("Subscription renewed", "subscription_id", sub.ID.String(), "expires_at", renewed.ExpiresAt)

	return &RenewResult{
		SubscriptionID: renewed.ID,
		ExpiresAt:      renewed.ExpiresAt,
		RenewalCount:   renewed.RenewalCount,
		Charged:        renewed.Price,
	}, nil
}

// chargeRefused reports whether the subscriber's wallet refused the renewal
// charge. Retrying such a charge on a later tick cannot succeed on its own.
func chargeRefused(err error) bool {
	switch shared.CodeOf(err) {
	case shared.CodeInsufficientBalance, shared.CodeUnauthorized:
		return true
	}
	return false
}

// disableAutoRenew turns renewal off after a failed charge. The subscription
// keeps its access until it lapses and the sweep expires it.
func (p *Processor) disableAutoRenew(ctx context.Context, id uuid.UUID, cause error, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	err := p.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		s, err := tx.Subscriptions.Get(ctx, id)
		if err != nil {
			return err
		}
		if !s.AutoRenew {
			return nil
		}
		s.DisableAutoRenew(p.now())
		return tx.Subscriptions.Update(ctx, s)
	})
	if err != nil {
		logger.Error("Failed to disable auto renew", "subscription_id", id.String(), "error", err)
		return
	}
	p.recorder.Record(ctx, audit.Record{
		TransactionID: id.String(),
		Action:        audit.ActionRenewalDisabled,
		EntityType:    audit.EntitySubscription,
		EntityID:      id.String(),
		ActorID:       shared.ActorSystem,
		After:         map[string]any{"auto_renew": false},
		Reason:        string(shared.CodeOf(cause)),
	})
}

// CancelRequest stops a subscription immediately
type CancelRequest struct {
	SubscriptionID uuid.UUID `validate:"required"`
	ActorID        string    `validate:"required,max=128"`
	Reason         string    `validate:"max=512"`
	Context        RequestContext
}

// CancelSubscription stops the subscription and revokes the access it
// granted. Only the subscriber or the creator may cancel.
func (p *Processor) CancelSubscription(ctx context.Context, req CancelRequest) (result *monetization.Subscription, err error) {
	started := time.Now()
	defer func() { p.observe(operationCancel, started, err) }()

	if err := p.validate.Struct(req); err != nil {
		return nil, invalidRequest(err)
	}
	logger := p.loggerFor(req.Context)

	sub, err := p.loadSubscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if req.ActorID != sub.SubscriberID && req.ActorID != sub.CreatorID {
		return nil, shared.NewError(shared.CodeUnauthorized, "%s may not cancel subscription %s", req.ActorID, sub.ID)
	}
	if sub.Status != monetization.SubscriptionActive {
		return nil, shared.NewError(shared.CodeInvalidInput, "subscription %s is %s", sub.ID, sub.Status)
	}

	now := p.now()
	var cancelled *monetization.Subscription
	var revoked int64
	err = p.uow.ExecuteTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		current, err := tx.Subscriptions.Get(ctx, sub.ID)
		if err != nil {
			return err
		}
		if current.Status != monetization.SubscriptionActive {
			return shared.NewError(shared.CodeInvalidInput, "subscription %s is %s", sub.ID, current.Status)
		}
		current.Cancel(req.Reason, now)
		if err := tx.Subscriptions.Update(ctx, current); err != nil {
			return err
		}
		if revoked, err = tx.Content.RevokeBySource(ctx, current.ID.String()); err != nil {
			return fmt.Errorf("failed to revoke access of %s: %w", current.ID, err)
		}
		cancelled = current
		return p.emit(ctx, tx, outbox.EventSubscriptionCancelled, current.ID.String(), req.Context.CorrelationID, current, now)
	})
	if err != nil {
		err = classify(err)
		logger.Warn("Cancellation failed", "subscription_id", sub.ID.String(), "error", err)
		return nil, err
	}

	if req.ActorID == sub.SubscriberID {
		if err := p.risk.RecordCancellation(ctx, sub.SubscriberID); err != nil {
			logger.Warn("Failed to record cancellation for risk checks", "subscriber_id", sub.SubscriberID, "error", err)
		}
	}
	p.metrics.AccessRevoked(revoked)
	p.recorder.Record(ctx, audit.Record{
		TransactionID: sub.ID.String(),
		Action:        audit.ActionSubscriptionCancelled,
		EntityType:    audit.EntitySubscription,
		EntityID:      sub.ID.String(),
		ActorID:       req.ActorID,
		Before:        map[string]any{"status": sub.Status, "auto_renew": sub.AutoRenew},
		After:         map[string]any{"status": cancelled.Status, "auto_renew": cancelled.AutoRenew, "revoked_grants": revoked},
		Reason:        req.Reason,
		Metadata:      req.Context.metadata(),
	})
	logger.Info("Subscription cancelled", "subscription_id", sub.ID.String(), "actor_id", req.ActorID, "revoked_grants", revoked)
	return cancelled, nil
}

// GetSubscription returns one subscription
func (p *Processor) GetSubscription(ctx context.Context, id uuid.UUID) (*monetization.Subscription, error) {
	return p.loadSubscription(ctx, id)
}

func (p *Processor) loadSubscription(ctx context.Context, id uuid.UUID) (*monetization.Subscription, error) {
	sub, err := p.uow.Repositories().Subscriptions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, monetization.ErrSubscriptionNotFound{ID: id}) {
			return nil, shared.WrapError(shared.CodeNotFound, err, "subscription %s not found", id)
		}
		return nil, fmt.Errorf("failed to load subscription %s: %w", id, err)
	}
	return sub, nil
}
