// Package revenue holds creator earnings buckets and their payouts.
package revenue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrPaymentInfoNotVerified = errors.New("payment information is not verified")
	ErrInsufficientAvailable  = errors.New("insufficient available earnings")
	ErrWithdrawalNotPending   = errors.New("withdrawal is not pending")
	ErrInsufficientPending    = errors.New("insufficient pending earnings")
)

const monthLayout = "2006-01"

// Account is the earnings bucket of one creator, in coins
type Account struct {
	CreatorID            string    `json:"creator_id"`
	Available            int64     `json:"available"`
	Pending              int64     `json:"pending"`
	Withdrawn            int64     `json:"withdrawn"`
	LifetimeEarnings     int64     `json:"lifetime_earnings"`
	CurrentMonth         string    `json:"current_month"`
	CurrentMonthEarnings int64     `json:"current_month_earnings"`
	LastMonthEarnings    int64     `json:"last_month_earnings"`
	PaymentInfoVerified  bool      `json:"payment_info_verified"`
	Version              int64     `json:"version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewAccount returns an empty account for the creator
func NewAccount(creatorID string, at time.Time) *Account {
	return &Account{
		CreatorID:    creatorID,
		CurrentMonth: at.UTC().Format(monthLayout),
		Version:      1,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// Credit adds earnings to the available or pending bucket and the rollups
func (a *Account) Credit(amount int64, toPending bool, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.rollMonth(at)
	if toPending {
		a.Pending += amount
	} else {
		a.Available += amount
	}
	a.LifetimeEarnings += amount
	a.CurrentMonthEarnings += amount
	a.touch(at)
	return nil
}

// Debit takes back earnings credited at earnedAt, as an unlock refund does.
// Held earnings go first, then available. The monthly rollup only shrinks
// when the earnings belong to the current month.
func (a *Account) Debit(amount int64, earnedAt, at time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Pending+a.Available < amount {
		return ErrInsufficientAvailable
	}
	a.rollMonth(at)
	fromPending := min(amount, a.Pending)
	a.Pending -= fromPending
	a.Available -= amount - fromPending
	a.LifetimeEarnings -= amount
	if earnedAt.UTC().Format(monthLayout) == a.CurrentMonth {
		a.CurrentMonthEarnings = max(a.CurrentMonthEarnings-amount, 0)
	}
	a.touch(at)
	return nil
}

// SettlePending moves held earnings to available once their holding period is over.
// A zero amount settles everything pending.
func (a *Account) SettlePending(amount int64, at time.Time) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if amount == 0 {
		amount = a.Pending
	}
	if amount > a.Pending {
		return 0, ErrInsufficientPending
	}
	if amount == 0 {
		return 0, nil
	}
	a.Pending -= amount
	a.Available += amount
	a.touch(at)
	return amount, nil
}

// Withdraw moves available earnings to withdrawn and returns the pending payout request
func (a *Account) Withdraw(amount int64, at time.Time) (*Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !a.PaymentInfoVerified {
		return nil, ErrPaymentInfoNotVerified
	}
	if a.Available < amount {
		return nil, ErrInsufficientAvailable
	}
	a.Available -= amount
	a.Withdrawn += amount
	a.touch(at)
	return &Withdrawal{
		ID:          uuid.New(),
		CreatorID:   a.CreatorID,
		Amount:      amount,
		Status:      WithdrawalPending,
		RequestedAt: at,
	}, nil
}

// ReturnWithdrawal puts a failed payout back into available
func (a *Account) ReturnWithdrawal(amount int64, at time.Time) {
	a.Withdrawn -= amount
	a.Available += amount
	a.touch(at)
}

// rollMonth shifts the monthly rollup when at falls in a later month
func (a *Account) rollMonth(at time.Time) {
	month := at.UTC().Format(monthLayout)
	if month == a.CurrentMonth {
		return
	}
	prev := at.UTC().AddDate(0, 0, -at.UTC().Day()+1).AddDate(0, -1, 0).Format(monthLayout)
	if a.CurrentMonth == prev {
		a.LastMonthEarnings = a.CurrentMonthEarnings
	} else {
		a.LastMonthEarnings = 0
	}
	a.CurrentMonthEarnings = 0
	a.CurrentMonth = month
}

func (a *Account) touch(at time.Time) {
	a.Version++
	a.UpdatedAt = at
}
