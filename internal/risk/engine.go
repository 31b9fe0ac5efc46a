// Package risk is the FraudGuard: sliding-window velocity counters plus a
// weighted score that can block a request or recommend freezing the identity.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/platform/metrics"
)

// CounterStore holds per-key event timestamps. The in-memory store is local
// to one node; the redis store is shared by every node.
type CounterStore interface {
	Hit(ctx context.Context, key string, at time.Time, retention time.Duration) error
	Count(ctx context.Context, key string, since time.Time) (int64, error)
}

// Thresholds and weights
const (
	BlockScore  = 80
	FreezeScore = 90
	FlagScore   = 40

	unlockShortWindow    = time.Minute
	unlockShortLimit     = 10
	unlockShortWeight    = 30
	unlockLongWindow     = time.Hour
	unlockLongLimit      = 50
	unlockLongWeight     = 25
	duplicateWindow      = time.Minute
	duplicateWeight      = 40
	highValueThreshold   = 10_000
	highValueWeight      = 20
	walletRiskCap        = 40
	subscribeWindow      = 24 * time.Hour
	subscribeLimit       = 5
	subscribeWeight      = 40
	cancelWindow         = 7 * 24 * time.Hour
	cancelLimit          = 3
	cancelWeight         = 50
	duplicateSubWeight   = 30
	newWalletAge         = 24 * time.Hour
	earlySpendWalletAge  = 7 * 24 * time.Hour
	largeDepositAmount   = 10_000
	earlySpendAmount     = 50_000
	lowBalanceRemainder  = 100
	lowBalanceWeight     = 10
	largeDepositWeight   = 15
	highEarlySpendWeight = 15
)

// Check names
const (
	CheckVelocityMinute        = "velocity_60s"
	CheckVelocityHour          = "velocity_3600s"
	CheckHighValue             = "high_value"
	CheckDuplicateAttempt      = "duplicate_attempt"
	CheckWalletRisk            = "wallet_risk"
	CheckSubscriptionVelocity  = "subscription_velocity"
	CheckRapidCancel           = "rapid_cancel"
	CheckDuplicateSubscription = "duplicate_subscription"
)

// Check is one evaluated rule. Failed checks block regardless of the score.
type Check struct {
	Name   string `json:"name"`
	Failed bool   `json:"failed"`
	Score  int    `json:"score"`
	Detail string `json:"detail,omitempty"`
}

// Decision is the derived risk profile of one request
type Decision struct {
	Allowed      bool    `json:"allowed"`
	Score        int     `json:"score"`
	ShouldFreeze bool    `json:"should_freeze"`
	Checks       []Check `json:"checks"`
}

// Failed returns the names of the failed checks
func (d *Decision) Failed() []string {
	var names []string
	for _, c := range d.Checks {
		if c.Failed {
			names = append(names, c.Name)
		}
	}
	return names
}

// Error is the tagged failure for a blocked decision: RATE_LIMIT_EXCEEDED when
// only velocity checks failed, FRAUD_BLOCKED otherwise.
func (d *Decision) Error() *shared.Error {
	if d.Allowed {
		return nil
	}
	failed := d.Failed()
	code := shared.CodeFraudBlocked
	if len(failed) > 0 && onlyVelocity(failed) {
		code = shared.CodeRateLimitExceeded
	}
	reason := "risk score too high"
	if len(failed) > 0 {
		reason = "failed checks: " + strings.Join(failed, ", ")
	}
	return &shared.Error{Code: code, Message: reason, RiskScore: d.Score}
}

func onlyVelocity(names []string) bool {
	for _, n := range names {
		switch n {
		case CheckVelocityMinute, CheckVelocityHour, CheckSubscriptionVelocity:
		default:
			return false
		}
	}
	return true
}

func (d *Decision) add(c Check) {
	d.Checks = append(d.Checks, c)
	d.Score += c.Score
}

func (d *Decision) finish() {
	d.Allowed = d.Score < BlockScore && len(d.Failed()) == 0
	d.ShouldFreeze = d.Score >= FreezeScore
}

// UnlockCheck describes an unlock attempt
type UnlockCheck struct {
	UserID    string
	ContentID string
	Price     int64
	Wallet    *wallet.Wallet
}

// SubscribeCheck describes a subscription attempt
type SubscribeCheck struct {
	UserID            string
	CreatorID         string
	Price             int64
	Wallet            *wallet.Wallet
	AlreadySubscribed bool
}

// Engine is the Risk Engine
type Engine struct {
	counters CounterStore
	recorder audit.Recorder
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(logger *slog.Logger, counters CounterStore, recorder audit.Recorder, collector *metrics.Collector) *Engine {
	return &Engine{
		counters: counters,
		recorder: recorder,
		metrics:  collector,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CheckUnlock counts the attempt against the velocity windows and scores it
func (e *Engine) CheckUnlock(ctx context.Context, req UnlockCheck) (*Decision, error) {
	now := e.now()
	velocityKey := unlockKey(req.UserID)
	if err := e.counters.Hit(ctx, velocityKey, now, unlockLongWindow); err != nil {
		return nil, fmt.Errorf("failed to count unlock attempt: %w", err)
	}

	minute, err := e.counters.Count(ctx, velocityKey, now.Add(-unlockShortWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read unlock velocity: %w", err)
	}
	hour, err := e.counters.Count(ctx, velocityKey, now.Add(-unlockLongWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read unlock velocity: %w", err)
	}
	recent, err := e.counters.Count(ctx, duplicateKey(req.UserID, req.ContentID), now.Add(-duplicateWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read duplicate attempts: %w", err)
	}

	d := &Decision{}
	d.add(limitCheck(CheckVelocityMinute, minute, unlockShortLimit, unlockShortWeight))
	d.add(limitCheck(CheckVelocityHour, hour, unlockLongLimit, unlockLongWeight))
	d.add(highValueCheck(req.Price))
	if recent > 0 {
		d.add(Check{Name: CheckDuplicateAttempt, Failed: true, Score: duplicateWeight, Detail: "content unlocked within the last minute"})
	} else {
		d.add(Check{Name: CheckDuplicateAttempt})
	}
	d.add(walletRisk(req.Wallet, req.Price, now))
	d.finish()

	e.report(ctx, "unlock", req.UserID, d, map[string]any{"content_id": req.ContentID, "price": req.Price})
	return d, nil
}

// CheckSubscribe counts the attempt against the daily window and scores it
func (e *Engine) CheckSubscribe(ctx context.Context, req SubscribeCheck) (*Decision, error) {
	now := e.now()
	velocityKey := subscribeKey(req.UserID)
	if err := e.counters.Hit(ctx, velocityKey, now, subscribeWindow); err != nil {
		return nil, fmt.Errorf("failed to count subscription attempt: %w", err)
	}

	day, err := e.counters.Count(ctx, velocityKey, now.Add(-subscribeWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription velocity: %w", err)
	}
	cancels, err := e.counters.Count(ctx, cancelKey(req.UserID), now.Add(-cancelWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read cancellations: %w", err)
	}

	d := &Decision{}
	d.add(limitCheck(CheckSubscriptionVelocity, day, subscribeLimit, subscribeWeight))
	if cancels >= cancelLimit {
		d.add(Check{Name: CheckRapidCancel, Failed: true, Score: cancelWeight, Detail: fmt.Sprintf("%d cancellations in 7 days", cancels)})
	} else {
		d.add(Check{Name: CheckRapidCancel})
	}
	if req.AlreadySubscribed {
		d.add(Check{Name: CheckDuplicateSubscription, Failed: true, Score: duplicateSubWeight, Detail: "already subscribed to creator"})
	} else {
		d.add(Check{Name: CheckDuplicateSubscription})
	}
	d.add(highValueCheck(req.Price))
	d.add(walletRisk(req.Wallet, req.Price, now))
	d.finish()

	e.report(ctx, "subscribe", req.UserID, d, map[string]any{"creator_id": req.CreatorID, "price": req.Price})
	return d, nil
}

// RecordUnlock remembers a completed unlock for the duplicate-attempt check
func (e *Engine) RecordUnlock(ctx context.Context, userID, contentID string) error {
	return e.counters.Hit(ctx, duplicateKey(userID, contentID), e.now(), duplicateWindow)
}

// RecordCancellation feeds the rapid-cancel check
func (e *Engine) RecordCancellation(ctx context.Context, userID string) error {
	return e.counters.Hit(ctx, cancelKey(userID), e.now(), cancelWindow)
}

// report writes an audit record for blocked and flagged decisions
func (e *Engine) report(ctx context.Context, operation, userID string, d *Decision, metadata map[string]any) {
	e.metrics.ObserveRiskScore(operation, d.Score)

	var action audit.Action
	switch {
	case !d.Allowed:
		action = audit.ActionRiskBlocked
		e.metrics.RiskBlocked(operation, string(d.Error().Code))
		e.logger.Warn("Risk check blocked request", "operation", operation, "user_id", userID, "risk_score", d.Score, "failed_checks", d.Failed())
	case d.Score > FlagScore:
		action = audit.ActionRiskFlagged
		e.logger.Info("Risk check flagged request", "operation", operation, "user_id", userID, "risk_score", d.Score)
	default:
		return
	}

	metadata["operation"] = operation
	metadata["checks"] = d.Checks
	e.recorder.Record(ctx, audit.Record{
		Action:     action,
		EntityType: audit.EntityRiskProfile,
		EntityID:   userID,
		ActorID:    shared.ActorRiskEngine,
		After:      map[string]any{"score": d.Score, "allowed": d.Allowed, "should_freeze": d.ShouldFreeze},
		Reason:     strings.Join(d.Failed(), ","),
		Metadata:   metadata,
	})
}

func limitCheck(name string, count int64, limit int64, weight int) Check {
	if count > limit {
		return Check{Name: name, Failed: true, Score: weight, Detail: fmt.Sprintf("%d attempts, limit %d", count, limit)}
	}
	return Check{Name: name}
}

// highValueCheck is informational: it adds score but never fails
func highValueCheck(price int64) Check {
	if price >= highValueThreshold {
		return Check{Name: CheckHighValue, Score: highValueWeight, Detail: "high value purchase"}
	}
	return Check{Name: CheckHighValue}
}

// walletRisk scores a low remaining balance, large deposits into a new wallet
// and heavy spending from a young wallet, capped at walletRiskCap
func walletRisk(w *wallet.Wallet, price int64, now time.Time) Check {
	c := Check{Name: CheckWalletRisk}
	if w == nil {
		return c
	}

	var reasons []string
	if w.Balance-price < lowBalanceRemainder {
		c.Score += lowBalanceWeight
		reasons = append(reasons, "low balance")
	}
	age := w.Age(now)
	if age < newWalletAge && w.TotalDeposited >= largeDepositAmount {
		c.Score += largeDepositWeight
		reasons = append(reasons, "large deposits into new wallet")
	}
	if age < earlySpendWalletAge && w.TotalSpent+price > earlySpendAmount {
		c.Score += highEarlySpendWeight
		reasons = append(reasons, "high early spend")
	}
	if c.Score > walletRiskCap {
		c.Score = walletRiskCap
	}
	c.Detail = strings.Join(reasons, ", ")
	return c
}

func unlockKey(userID string) string { return "velocity:unlock:" + userID }
func subscribeKey(userID string) string { return "velocity:subscribe:" + userID }
func cancelKey(userID string) string { return "cancel:" + userID }
func duplicateKey(userID, contentID string) string { return "duplicate:unlock:" + userID + ":" + contentID }
