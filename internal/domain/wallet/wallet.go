// Package wallet holds the per-identity coin balance and its invariants.
package wallet

import (
	"time"
)

// Status is the lifecycle state of a wallet
type Status string

const (
	StatusActive    Status = "active"
	StatusFrozen    Status = "frozen"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// CoinsPerMajorUnit converts minor units (coins) to the displayed major unit
const CoinsPerMajorUnit = 100

// Wallet is the balance of one identity, in coins.
// Balance never goes negative and only changes through a conditional adjust.
type Wallet struct {
	OwnerID        string     `json:"owner_id"`
	Balance        int64      `json:"balance"`
	Status         Status     `json:"status"`
	Version        int64      `json:"version"`
	TotalDeposited int64      `json:"total_deposited"`
	TotalWithdrawn int64      `json:"total_withdrawn"`
	TotalSpent     int64      `json:"total_spent"`
	TotalEarned    int64      `json:"total_earned"`
	FrozenReason   string     `json:"frozen_reason,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// New returns an empty active wallet
func New(ownerID string, now time.Time) *Wallet {
	return &Wallet{
		OwnerID:   ownerID,
		Status:    StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MajorUnits renders a coin amount in major units
func MajorUnits(coins int64) float64 {
	return float64(coins) / CoinsPerMajorUnit
}

// Age is how long the wallet has existed at the given instant
func (w *Wallet) Age(now time.Time) time.Duration {
	return now.Sub(w.CreatedAt)
}

// Stat names the running total an adjustment contributes to
type Stat int

const (
	StatNone Stat = iota
	StatDeposited
	StatWithdrawn
	StatSpent
	StatEarned
)

// Adjustment is one signed change to a wallet balance
type Adjustment struct {
	OwnerID string
	Delta   int64
	Stat    Stat
	At      time.Time
}

// StatDeltas spreads the absolute delta over the running totals
func (a Adjustment) StatDeltas() (deposited, withdrawn, spent, earned int64) {
	abs := a.Delta
	if abs < 0 {
		abs = -abs
	}
	switch a.Stat {
	case StatDeposited:
		deposited = abs
	case StatWithdrawn:
		withdrawn = abs
	case StatSpent:
		spent = abs
	case StatEarned:
		earned = abs
	}
	return
}

// CanApply reports whether the adjustment is allowed against the wallet:
// the result must stay non-negative and debits need an active wallet while
// credits only need a wallet that is not closed.
func CanApply(w *Wallet, delta int64) bool {
	if w.Balance+delta < 0 {
		return false
	}
	if delta > 0 {
		return w.Status != StatusClosed
	}
	return w.Status == StatusActive
}

// Apply mutates w in place. Callers check CanApply first.
func Apply(w *Wallet, a Adjustment) {
	dep, wd, spent, earned := a.StatDeltas()
	w.Balance += a.Delta
	w.TotalDeposited += dep
	w.TotalWithdrawn += wd
	w.TotalSpent += spent
	w.TotalEarned += earned
	w.Version++
	at := a.At
	w.LastActivityAt = &at
	w.UpdatedAt = at
}
