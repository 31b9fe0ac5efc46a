package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/revenue"
)

type revenueRepo struct{ view }

func (r revenueRepo) Get(_ context.Context, creatorID string) (*revenue.Account, error) {
	var out revenue.Account
	err := r.do(func(st *state) error {
		a, ok := st.accounts[creatorID]
		if !ok {
			return revenue.ErrAccountNotFound{CreatorID: creatorID}
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r revenueRepo) Create(_ context.Context, a *revenue.Account) error {
	return r.do(func(st *state) error {
		if _, ok := st.accounts[a.CreatorID]; !ok {
			st.accounts[a.CreatorID] = *a
		}
		return nil
	})
}

func (r revenueRepo) Update(_ context.Context, a *revenue.Account) error {
	return r.do(func(st *state) error {
		current, ok := st.accounts[a.CreatorID]
		if !ok {
			return revenue.ErrAccountNotFound{CreatorID: a.CreatorID}
		}
		if current.Version != a.Version-1 {
			return revenue.ErrConcurrentModification{CreatorID: a.CreatorID}
		}
		st.accounts[a.CreatorID] = *a
		return nil
	})
}

func (r revenueRepo) CreateWithdrawal(_ context.Context, w *revenue.Withdrawal) error {
	return r.do(func(st *state) error {
		st.withdrawals[w.ID] = *w
		return nil
	})
}

func (r revenueRepo) GetWithdrawal(_ context.Context, id uuid.UUID) (*revenue.Withdrawal, error) {
	var out revenue.Withdrawal
	err := r.do(func(st *state) error {
		w, ok := st.withdrawals[id]
		if !ok {
			return revenue.ErrWithdrawalNotFound{ID: id}
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r revenueRepo) UpdateWithdrawal(_ context.Context, w *revenue.Withdrawal) error {
	return r.do(func(st *state) error {
		if _, ok := st.withdrawals[w.ID]; !ok {
			return revenue.ErrWithdrawalNotFound{ID: w.ID}
		}
		st.withdrawals[w.ID] = *w
		return nil
	})
}

func (r revenueRepo) ListWithdrawals(_ context.Context, creatorID string) ([]*revenue.Withdrawal, error) {
	var out []*revenue.Withdrawal
	_ = r.do(func(st *state) error {
		for _, w := range st.withdrawals {
			if w.CreatorID == creatorID {
				found := w
				out = append(out, &found)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}
