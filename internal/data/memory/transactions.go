package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/ledger"
)

type transactionRepo struct{ view }

func (r transactionRepo) Create(_ context.Context, tx *ledger.Transaction) error {
	return r.do(func(st *state) error {
		for _, existing := range st.transactions {
			if tx.ProviderRef != "" && existing.ProviderRef == tx.ProviderRef {
				return ledger.ErrDuplicateProviderRef{ProviderRef: tx.ProviderRef}
			}
			if tx.IdempotencyKey != "" && existing.IdempotencyKey == tx.IdempotencyKey {
				return ledger.ErrDuplicateIdempotencyKey{Key: tx.IdempotencyKey}
			}
		}
		st.transactions[tx.ID] = *tx
		return nil
	})
}

func (r transactionRepo) GetByID(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var out ledger.Transaction
	err := r.do(func(st *state) error {
		tx, ok := st.transactions[id]
		if !ok {
			return ledger.ErrTransactionNotFound{ID: id}
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByProviderRef returns nil, nil when no transaction carries the reference
func (r transactionRepo) GetByProviderRef(_ context.Context, providerRef string) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.do(func(st *state) error {
		for _, tx := range st.transactions {
			if tx.ProviderRef == providerRef {
				found := tx
				out = &found
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r transactionRepo) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]*ledger.Transaction, error) {
	var all []*ledger.Transaction
	_ = r.do(func(st *state) error {
		for _, tx := range st.transactions {
			if tx.OwnerID == ownerID {
				found := tx
				all = append(all, &found)
			}
		}
		return nil
	})
	sortNewestFirst(all)
	if offset >= len(all) {
		return []*ledger.Transaction{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r transactionRepo) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	var n int64
	_ = r.do(func(st *state) error {
		for _, tx := range st.transactions {
			if tx.OwnerID == ownerID {
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (r transactionRepo) ListByReference(_ context.Context, referenceID string) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	_ = r.do(func(st *state) error {
		for _, tx := range st.transactions {
			if tx.ReferenceID == referenceID {
				found := tx
				out = append(out, &found)
			}
		}
		return nil
	})
	sortNewestFirst(out)
	return out, nil
}

func (r transactionRepo) UpdateStatus(_ context.Context, change ledger.StatusChange) error {
	return r.do(func(st *state) error {
		tx, ok := st.transactions[change.ID]
		if !ok {
			return ledger.ErrTransactionNotFound{ID: change.ID}
		}
		if tx.Status != change.From {
			return ledger.ErrStatusConflict{ID: change.ID, From: change.From}
		}
		if change.ProviderRef != "" {
			for id, other := range st.transactions {
				if id != change.ID && other.ProviderRef == change.ProviderRef {
					return ledger.ErrDuplicateProviderRef{ProviderRef: change.ProviderRef}
				}
			}
			tx.ProviderRef = change.ProviderRef
		}
		if change.BalanceAfter != nil {
			tx.BalanceAfter = *change.BalanceAfter
		}
		tx.Status = change.To
		tx.FailureReason = change.FailureReason
		if change.To == ledger.StatusCompleted {
			at := change.At
			tx.CompletedAt = &at
		}
		st.transactions[change.ID] = tx
		return nil
	})
}

func sortNewestFirst(txs []*ledger.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID.String() < txs[j].ID.String()
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
