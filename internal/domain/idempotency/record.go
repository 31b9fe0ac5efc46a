// Package idempotency holds the per-key outcome records that deduplicate
// retried or concurrent monetary operations.
package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// Status of an idempotency record
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record maps one key to its single terminal outcome
type Record struct {
	Key       string          `json:"key"`
	Status    Status          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the record no longer holds the key at now
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Reclaimable reports whether a new attempt may take over the key
func (r *Record) Reclaimable(now time.Time) bool {
	return r.Status == StatusFailed || r.Expired(now)
}

// Repository persists idempotency records
type Repository interface {
	// Acquire takes the key in processing state. When another record holds the
	// key it returns that record and false.
	Acquire(ctx context.Context, key string, now, expiresAt time.Time) (*Record, bool, error)
	Complete(ctx context.Context, key string, result json.RawMessage, now time.Time) error
	Fail(ctx context.Context, key string, reason string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ErrRecordNotFound indicates no record holds the key
type ErrRecordNotFound struct {
	Key string
}

func (e ErrRecordNotFound) Error() string {
	return "idempotency record not found: " + e.Key
}
