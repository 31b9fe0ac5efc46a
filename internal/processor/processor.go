// Package processor runs each monetization event as one atomic multi-account
// mutation: unlocks, subscriptions, renewals, cancellations and refunds.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/idempotency"
	"github.com/creator-coin-ledger/internal/ledgerstore"
	"github.com/creator-coin-ledger/internal/platform/metrics"
	"github.com/creator-coin-ledger/internal/revenue"
	"github.com/creator-coin-ledger/internal/risk"
)

// IdempotencyGuard deduplicates logical operations by key
type IdempotencyGuard interface {
	Begin(ctx context.Context, key string) (idempotency.Decision, error)
	Complete(ctx context.Context, key string, result any) error
	Fail(ctx context.Context, key string, cause error) error
}

// RiskEngine scores a request before any money moves
type RiskEngine interface {
	CheckUnlock(ctx context.Context, req risk.UnlockCheck) (*risk.Decision, error)
	CheckSubscribe(ctx context.Context, req risk.SubscribeCheck) (*risk.Decision, error)
	RecordUnlock(ctx context.Context, userID, contentID string) error
	RecordCancellation(ctx context.Context, userID string) error
}

// Wallets is the part of the Ledger Store used outside a unit of work
type Wallets interface {
	GetOrCreate(ctx context.Context, ownerID string) (*wallet.Wallet, error)
	Freeze(ctx context.Context, ownerID, reason, actorID string) (bool, error)
	Unfreeze(ctx context.Context, ownerID, reason, actorID string) (bool, error)
}

// Options tunes how money moves
type Options struct {
	PlatformWalletID string
	HoldEarnings     bool
	RenewalCooldown  time.Duration
	AutoFreeze       bool
}

// OptionsFromConfig picks the processor settings out of the process config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PlatformWalletID: cfg.Monetization.PlatformWalletID,
		HoldEarnings:     cfg.Monetization.HoldEarnings,
		RenewalCooldown:  cfg.Monetization.RenewalCooldown,
		AutoFreeze:       cfg.Risk.AutoFreezeEnable,
	}
}

// RequestContext carries caller metadata into audit records and events
type RequestContext struct {
	CorrelationID string
	IP            string
	UserAgent     string
}

func (c RequestContext) metadata() map[string]any {
	m := map[string]any{}
	if c.CorrelationID != "" {
		m["correlation_id"] = c.CorrelationID
	}
	if c.IP != "" {
		m["ip"] = c.IP
	}
	if c.UserAgent != "" {
		m["user_agent"] = c.UserAgent
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Processor is the Transaction Processor
type Processor struct {
	uow      store.UnitOfWork
	wallets  Wallets
	guard    IdempotencyGuard
	risk     RiskEngine
	recorder audit.Recorder
	metrics  *metrics.Collector
	logger   *slog.Logger
	validate *validator.Validate
	opts     Options
	now      func() time.Time
}

func New(
	logger *slog.Logger,
	uow store.UnitOfWork,
	wallets Wallets,
	guard IdempotencyGuard,
	engine RiskEngine,
	recorder audit.Recorder,
	collector *metrics.Collector,
	opts Options,
) *Processor {
	return &Processor{
		uow:      uow,
		wallets:  wallets,
		guard:    guard,
		risk:     engine,
		recorder: recorder,
		metrics:  collector,
		logger:   logger,
		validate: validator.New(),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

func (p *Processor) loggerFor(rc RequestContext) *slog.Logger {
	if rc.CorrelationID != "" {
		return p.logger.With("correlation_id", rc.CorrelationID)
	}
	return p.logger
}

func (p *Processor) observe(operation string, started time.Time, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = string(shared.CodeOf(err))
	}
	p.metrics.ObserveOperation(operation, outcome, time.Since(started))
}

// runIdempotent runs fn at most once per key. A replay decodes the stored
// result and reports true. Without a client key fn always runs.
func runIdempotent[T any](ctx context.Context, p *Processor, operation, actorID, clientKey string, fn func() (*T, error)) (*T, bool, error) {
	if clientKey == "" {
		res, err := fn()
		return res, false, err
	}

	key := idempotency.Key(operation, actorID, clientKey)
	decision, err := p.guard.Begin(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	switch decision.Outcome {
	case idempotency.InProgress:
		return nil, false, shared.NewError(shared.CodeOperationInProgress, "operation with key %q is still in progress", clientKey)
	case idempotency.Replay:
		var cached T
		if err := json.Unmarshal(decision.Result, &cached); err != nil {
			return nil, false, fmt.Errorf("failed to decode stored result for key %s: %w", key, err)
		}
		p.metrics.IdempotentReplay(operation)
		return &cached, true, nil
	}

	res, err := fn()
	if err != nil {
		if failErr := p.guard.Fail(ctx, key, err); failErr != nil {
			p.logger.Error("Failed to release idempotency key", "key", key, "error", failErr)
		}
		return nil, false, err
	}
	if completeErr := p.guard.Complete(ctx, key, res); completeErr != nil {
		p.logger.Error("Failed to store idempotent result", "key", key, "error", completeErr)
	}
	return res, false, nil
}

// ledgerKey namespaces the client key stored on the debit record
func ledgerKey(operation, actorID, clientKey string) string {
	if clientKey == "" {
		return ""
	}
	return idempotency.Key(operation, actorID, clientKey)
}

// distribute pays out the creator and platform shares of a charge. The
// processing fee stays with the platform operator outside any wallet.
func (p *Processor) distribute(ctx context.Context, repos store.Repositories, creatorID string, split monetization.Split, referenceID string, at time.Time) error {
	if split.CreatorShare > 0 {
		if _, err := revenue.AddEarnings(ctx, repos.Revenue, creatorID, split.CreatorShare, p.opts.HoldEarnings, at); err != nil {
			return err
		}
	}
	if split.PlatformShare > 0 {
		_, _, err := ledgerstore.Post(ctx, repos, ledgerstore.Entry{
			OwnerID:     p.opts.PlatformWalletID,
			Kind:        ledger.KindPlatformFee,
			Amount:      split.PlatformShare,
			Stat:        wallet.StatEarned,
			ReferenceID: referenceID,
			Description: "platform share",
		}, at)
		if err != nil {
			return err
		}
	}
	return nil
}

// emit stores an event in the outbox of the running unit of work
func (p *Processor) emit(ctx context.Context, repos store.Repositories, eventType, aggregateID, correlationID string, data any, at time.Time) error {
	msg, err := outbox.NewMessage(eventType, aggregateID, correlationID, data, at)
	if err != nil {
		return fmt.Errorf("failed to create outbox message payload for %s: %w", aggregateID, err)
	}
	if err := repos.Outbox.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to create outbox message for %s: %w", aggregateID, err)
	}
	return nil
}

// screen applies the risk decision: it freezes the identity when the score
// calls for it and turns a refusal into a tagged error
func (p *Processor) screen(ctx context.Context, userID string, d *risk.Decision, logger *slog.Logger) (string, error) {
	var action string
	if d.ShouldFreeze && p.opts.AutoFreeze {
		reason := fmt.Sprintf("risk score %d (%v)", d.Score, d.Failed())
		if _, err := p.wallets.Freeze(ctx, userID, reason, shared.ActorRiskEngine); err != nil {
			logger.Error("Failed to auto-freeze wallet", "owner_id", userID, "risk_score", d.Score, "error", err)
		} else {
			action = shared.ActionAccountFrozen
		}
	}
	if d.Allowed {
		return action, nil
	}
	e := d.Error()
	e.Action = action
	return action, e
}

// classify tags storage-level failures with the caller-facing taxonomy
func classify(err error) error {
	if _, ok := shared.AsError(err); ok {
		return err
	}
	var conflict monetization.ErrConcurrentModification
	var unlockConflict monetization.ErrStatusConflict
	var ledgerConflict ledger.ErrStatusConflict
	var duplicate monetization.ErrDuplicateActiveSubscription
	var usedKey ledger.ErrDuplicateIdempotencyKey
	switch {
	case errors.As(err, &conflict), errors.As(err, &unlockConflict), errors.As(err, &ledgerConflict):
		return shared.WrapError(shared.CodeTransactionAborted, err, "concurrent update, retry the request")
	case errors.As(err, &duplicate):
		return shared.WrapError(shared.CodeAlreadySubscribed, err, "already subscribed to creator %s", duplicate.CreatorID)
	case errors.As(err, &usedKey):
		return shared.WrapError(shared.CodeInvalidInput, err, "idempotency key was already used")
	}
	return err
}

func invalidRequest(err error) error {
	return shared.NewError(shared.CodeInvalidInput, "invalid request: %v", err)
}
