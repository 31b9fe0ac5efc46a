package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/audit"
)

// AuditRepository keeps audit records in process memory
type AuditRepository struct {
	mu      sync.RWMutex
	records []audit.Record
}

var (
	_ audit.Repository = (*AuditRepository)(nil)
	_ audit.Recorder   = (*AuditRepository)(nil)
)

// NewAuditRepository returns an empty repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(_ context.Context, rec *audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

// ListByEntity returns the newest records first
func (r *AuditRepository) ListByEntity(_ context.Context, entityType, entityID string, limit int) ([]*audit.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*audit.Record
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.EntityType != entityType || rec.EntityID != entityID {
			continue
		}
		out = append(out, &rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every record in append order
func (r *AuditRepository) All() []audit.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]audit.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Record appends synchronously, so the repository doubles as an
// audit.Recorder in tests and single-process tools
func (r *AuditRepository) Record(ctx context.Context, rec audit.Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_ = r.Append(ctx, &rec)
}
