// Package memory provides in-process implementations of the domain
// repositories. A single mutex serializes every transaction, which makes
// ExecuteTx trivially serializable: fn runs against a copy of the state and
// the copy replaces the live state only when fn succeeds.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/outbox"
	"github.com/creator-coin-ledger/internal/domain/revenue"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
)

type grantKey struct {
	contentID string
	userID    string
	sourceID  string
}

type state struct {
	wallets       map[string]wallet.Wallet
	transactions  map[uuid.UUID]ledger.Transaction
	unlocks       map[uuid.UUID]monetization.Unlock
	subscriptions map[uuid.UUID]monetization.Subscription
	accounts      map[string]revenue.Account
	withdrawals   map[uuid.UUID]revenue.Withdrawal
	items         map[string]content.Item
	itemVersions  map[string]time.Time // catalog snapshot time per item
	grants        map[grantKey]content.Grant
	outbox        map[int64]outbox.Message
	outboxSeq     int64
}

func newState() *state {
	return &state{
		wallets:       make(map[string]wallet.Wallet),
		transactions:  make(map[uuid.UUID]ledger.Transaction),
		unlocks:       make(map[uuid.UUID]monetization.Unlock),
		subscriptions: make(map[uuid.UUID]monetization.Subscription),
		accounts:      make(map[string]revenue.Account),
		withdrawals:   make(map[uuid.UUID]revenue.Withdrawal),
		items:         make(map[string]content.Item),
		itemVersions:  make(map[string]time.Time),
		grants:        make(map[grantKey]content.Grant),
		outbox:        make(map[int64]outbox.Message),
	}
}

// clone copies every map. Stored values never share mutable memory, so a
// shallow copy of each map is enough.
func (s *state) clone() *state {
	return &state{
		wallets:       maps.Clone(s.wallets),
		transactions:  maps.Clone(s.transactions),
		unlocks:       maps.Clone(s.unlocks),
		subscriptions: maps.Clone(s.subscriptions),
		accounts:      maps.Clone(s.accounts),
		withdrawals:   maps.Clone(s.withdrawals),
		items:         maps.Clone(s.items),
		itemVersions:  maps.Clone(s.itemVersions),
		grants:        maps.Clone(s.grants),
		outbox:        maps.Clone(s.outbox),
		outboxSeq:     s.outboxSeq,
	}
}

// Store is an in-memory store.UnitOfWork
type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.UnitOfWork = (*Store)(nil)

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories returns repositories that lock the store per call.
// They must not be used from inside an ExecuteTx callback.
func (s *Store) Repositories() store.Repositories {
	return s.bind(view{s: s})
}

// ExecuteTx runs fn against a private copy of the state and publishes the
// copy on success.
func (s *Store) ExecuteTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.st.clone()
	if err := fn(ctx, s.bind(view{s: s, tx: working})); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) bind(v view) store.Repositories {
	return store.Repositories{
		Wallets:       walletRepo{v},
		Transactions:  transactionRepo{v},
		Unlocks:       unlockRepo{v},
		Subscriptions: subscriptionRepo{v},
		Revenue:       revenueRepo{v},
		Content:       contentRepo{v},
		Outbox:        outboxRepo{v},
	}
}

// view routes an operation either to a transaction's working copy or to the
// live state under the store mutex.
type view struct {
	s  *Store
	tx *state
}

func (v view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.st)
}
