package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/monetization"
)

type unlockRepo struct{ view }

func (r unlockRepo) Create(_ context.Context, u *monetization.Unlock) error {
	return r.do(func(st *state) error {
		st.unlocks[u.ID] = *u
		return nil
	})
}

func (r unlockRepo) Get(_ context.Context, id uuid.UUID) (*monetization.Unlock, error) {
	var out monetization.Unlock
	err := r.do(func(st *state) error {
		u, ok := st.unlocks[id]
		if !ok {
			return monetization.ErrUnlockNotFound{ID: id}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r unlockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to monetization.UnlockStatus, reason string, at time.Time) error {
	return r.do(func(st *state) error {
		u, ok := st.unlocks[id]
		if !ok {
			return monetization.ErrUnlockNotFound{ID: id}
		}
		if u.Status != from {
			return monetization.ErrStatusConflict{ID: id, From: from}
		}
		u.Status = to
		u.FailureReason = reason
		switch to {
		case monetization.UnlockCompleted:
			u.CompletedAt = &at
		case monetization.UnlockRefunded:
			u.RefundedAt = &at
		}
		st.unlocks[id] = u
		return nil
	})
}

func (r unlockRepo) HasCompleted(_ context.Context, buyerID, contentID string) (bool, error) {
	found := false
	_ = r.do(func(st *state) error {
		for _, u := range st.unlocks {
			if u.BuyerID == buyerID && u.ContentID == contentID && u.Status == monetization.UnlockCompleted {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, nil
}

type subscriptionRepo struct{ view }

func (r subscriptionRepo) Create(_ context.Context, s *monetization.Subscription) error {
	return r.do(func(st *state) error {
		for _, existing := range st.subscriptions {
			if existing.Status == monetization.SubscriptionActive &&
				existing.SubscriberID == s.SubscriberID && existing.CreatorID == s.CreatorID {
				return monetization.ErrDuplicateActiveSubscription{SubscriberID: s.SubscriberID, CreatorID: s.CreatorID}
			}
		}
		st.subscriptions[s.ID] = *s
		return nil
	})
}

func (r subscriptionRepo) Get(_ context.Context, id uuid.UUID) (*monetization.Subscription, error) {
	var out monetization.Subscription
	err := r.do(func(st *state) error {
		s, ok := st.subscriptions[id]
		if !ok {
			return monetization.ErrSubscriptionNotFound{ID: id}
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r subscriptionRepo) FindActive(_ context.Context, subscriberID, creatorID string) (*monetization.Subscription, error) {
	var out *monetization.Subscription
	_ = r.do(func(st *state) error {
		for _, s := range st.subscriptions {
			if s.Status == monetization.SubscriptionActive && s.SubscriberID == subscriberID && s.CreatorID == creatorID {
				found := s
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, nil
}

func (r subscriptionRepo) Update(_ context.Context, s *monetization.Subscription) error {
	return r.do(func(st *state) error {
		current, ok := st.subscriptions[s.ID]
		if !ok {
			return monetization.ErrSubscriptionNotFound{ID: s.ID}
		}
		if current.Version != s.Version-1 {
			return monetization.ErrConcurrentModification{Entity: "subscription", ID: s.ID.String()}
		}
		st.subscriptions[s.ID] = *s
		return nil
	})
}

func (r subscriptionRepo) ListLapsed(_ context.Context, now time.Time, limit int) ([]*monetization.Subscription, error) {
	return r.list(limit, func(s monetization.Subscription) bool {
		return s.Status == monetization.SubscriptionActive && !s.AutoRenew && s.ExpiresAt.Before(now)
	})
}

func (r subscriptionRepo) ListDueForRenewal(_ context.Context, until time.Time, limit int) ([]*monetization.Subscription, error) {
	return r.list(limit, func(s monetization.Subscription) bool {
		return s.Status == monetization.SubscriptionActive && s.AutoRenew && s.ExpiresAt.Before(until)
	})
}

func (r subscriptionRepo) list(limit int, match func(monetization.Subscription) bool) ([]*monetization.Subscription, error) {
	var out []*monetization.Subscription
	_ = r.do(func(st *state) error {
		for _, s := range st.subscriptions {
			if match(s) {
				found := s
				out = append(out, &found)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
