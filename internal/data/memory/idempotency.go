package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/creator-coin-ledger/internal/domain/idempotency"
)

// IdempotencyRepository keeps idempotency records in process memory
type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]idempotency.Record
}

var _ idempotency.Repository = (*IdempotencyRepository)(nil)

// NewIdempotencyRepository returns an empty repository
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{records: make(map[string]idempotency.Record)}
}

func (r *IdempotencyRepository) Acquire(_ context.Context, key string, now, expiresAt time.Time) (*idempotency.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[key]; ok && !existing.Reclaimable(now) {
		return &existing, false, nil
	}

	rec := idempotency.Record{
		Key:       key,
		Status:    idempotency.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}
	r.records[key] = rec
	return &rec, true, nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, result json.RawMessage, now time.Time) error {
	return r.finish(key, func(rec *idempotency.Record) {
		rec.Status = idempotency.StatusCompleted
		rec.Result = result
		rec.Error = ""
		rec.UpdatedAt = now
	})
}

func (r *IdempotencyRepository) Fail(_ context.Context, key string, reason string, now time.Time) error {
	return r.finish(key, func(rec *idempotency.Record) {
		rec.Status = idempotency.StatusFailed
		rec.Error = reason
		rec.UpdatedAt = now
	})
}

func (r *IdempotencyRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.records {
		if rec.Expired(now) {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}

func (r *IdempotencyRepository) finish(key string, mutate func(rec *idempotency.Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok || rec.Status != idempotency.StatusProcessing {
		return idempotency.ErrRecordNotFound{Key: key}
	}
	mutate(&rec)
	r.records[key] = rec
	return nil
}
