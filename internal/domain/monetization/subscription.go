package monetization

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a subscription billing period
type Tier string

const (
	TierMonthly   Tier = "monthly"
	TierQuarterly Tier = "quarterly"
	TierYearly    Tier = "yearly"
)

// Duration is the access period bought by one charge of the tier
func (t Tier) Duration() (time.Duration, bool) {
	const day = 24 * time.Hour
	switch t {
	case TierMonthly:
		return 30 * day, true
	case TierQuarterly:
		return 90 * day, true
	case TierYearly:
		return 365 * day, true
	}
	return 0, false
}

// SubscriptionStatus is the lifecycle of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionSuspended SubscriptionStatus = "suspended"
)

// Subscription is timed access to all subscriber-only content of a creator
type Subscription struct {
	ID            uuid.UUID          `json:"id"`
	SubscriberID  string             `json:"subscriber_id"`
	CreatorID     string             `json:"creator_id"`
	Tier          Tier               `json:"tier"`
	Price         int64              `json:"price"`
	Split         Split              `json:"split"`
	Status        SubscriptionStatus `json:"status"`
	AutoRenew     bool               `json:"auto_renew"`
	RenewalCount  int                `json:"renewal_count"`
	StartedAt     time.Time          `json:"started_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
	LastRenewedAt *time.Time         `json:"last_renewed_at,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NewSubscription starts an active, auto-renewing subscription at the given instant
func NewSubscription(subscriberID, creatorID string, tier Tier, price int64, at time.Time) *Subscription {
	d, _ := tier.Duration()
	return &Subscription{
		ID:           uuid.New(),
		SubscriberID: subscriberID,
		CreatorID:    creatorID,
		Tier:         tier,
		Price:        price,
		Split:        ComputeSplit(price),
		Status:       SubscriptionActive,
		AutoRenew:    true,
		StartedAt:    at,
		ExpiresAt:    at.Add(d),
		Version:      1,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// NextExpiry extends from the previous expiry, never from the renewal instant
func (s *Subscription) NextExpiry() time.Time {
	d, _ := s.Tier.Duration()
	return s.ExpiresAt.Add(d)
}

// InCooldown reports whether a renewal at the given instant is too soon after the last one
func (s *Subscription) InCooldown(at time.Time, cooldown time.Duration) bool {
	if s.LastRenewedAt == nil || cooldown <= 0 {
		return false
	}
	return at.Sub(*s.LastRenewedAt) < cooldown
}

// Renewed records a successful renewal
func (s *Subscription) Renewed(at time.Time) {
	s.ExpiresAt = s.NextExpiry()
	s.RenewalCount++
	s.LastRenewedAt = &at
	s.Split = ComputeSplit(s.Price)
	s.touch(at)
}

// Cancel stops the subscription immediately
func (s *Subscription) Cancel(reason string, at time.Time) {
	s.Status = SubscriptionCancelled
	s.AutoRenew = false
	s.CancelReason = reason
	s.CancelledAt = &at
	s.touch(at)
}

// Expire marks a lapsed subscription
func (s *Subscription) Expire(at time.Time) {
	s.Status = SubscriptionExpired
	s.touch(at)
}

// DisableAutoRenew turns off automatic renewal
func (s *Subscription) DisableAutoRenew(at time.Time) {
	s.AutoRenew = false
	s.touch(at)
}

func (s *Subscription) touch(at time.Time) {
	s.Version++
	s.UpdatedAt = at
}
