package memory

import (
	"context"
	"slices"
	"time"

	"github.com/creator-coin-ledger/internal/domain/wallet"
)

type walletRepo struct{ view }

func (r walletRepo) Get(_ context.Context, ownerID string) (*wallet.Wallet, error) {
	var out wallet.Wallet
	err := r.do(func(st *state) error {
		w, ok := st.wallets[ownerID]
		if !ok {
			return wallet.ErrWalletNotFound{OwnerID: ownerID}
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r walletRepo) Create(_ context.Context, w *wallet.Wallet) error {
	return r.do(func(st *state) error {
		if _, ok := st.wallets[w.OwnerID]; !ok {
			st.wallets[w.OwnerID] = *w
		}
		return nil
	})
}

func (r walletRepo) Adjust(_ context.Context, adj wallet.Adjustment) (*wallet.Wallet, error) {
	var out wallet.Wallet
	err := r.do(func(st *state) error {
		w, ok := st.wallets[adj.OwnerID]
		if !ok {
			return wallet.ErrWalletNotFound{OwnerID: adj.OwnerID}
		}
		if !wallet.CanApply(&w, adj.Delta) {
			return wallet.ErrInsufficientFundsOrInactive{
				OwnerID: adj.OwnerID,
				Delta:   adj.Delta,
				Balance: w.Balance,
				Status:  w.Status,
			}
		}
		wallet.Apply(&w, adj)
		st.wallets[adj.OwnerID] = w
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r walletRepo) SetStatus(_ context.Context, ownerID string, from []wallet.Status, to wallet.Status, reason string, at time.Time) (bool, error) {
	changed := false
	err := r.do(func(st *state) error {
		w, ok := st.wallets[ownerID]
		if !ok {
			return wallet.ErrWalletNotFound{OwnerID: ownerID}
		}
		if !slices.Contains(from, w.Status) {
			return nil
		}
		w.Status = to
		w.FrozenReason = reason
		w.Version++
		w.UpdatedAt = at
		st.wallets[ownerID] = w
		changed = true
		return nil
	})
	return changed, err
}
