// Package audit writes audit records on a bounded side channel so a slow or
// failing audit store never blocks or rolls back the operation it documents.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/platform/metrics"
)

// Logger is the asynchronous audit.Recorder.
// Records are dropped, counted and logged when the queue is full.
type Logger struct {
	repo         audit.Repository
	logger       *slog.Logger
	metrics      *metrics.Collector
	queue        chan audit.Record
	writeTimeout time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

var _ audit.Recorder = (*Logger)(nil)

// NewLogger creates a Logger. Call Start before recording.
func NewLogger(logger *slog.Logger, repo audit.Repository, collector *metrics.Collector, cfg config.AuditConfig) *Logger {
	return &Logger{
		repo:         repo,
		logger:       logger,
		metrics:      collector,
		queue:        make(chan audit.Record, cfg.QueueSize),
		writeTimeout: cfg.WriteTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		done:         make(chan struct{}),
	}
}

// Start launches the background writer
func (l *Logger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return
	}
	l.started = true
	go l.run()
}

// Record enqueues rec without blocking
func (l *Logger) Record(_ context.Context, rec audit.Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.drop(rec, "audit logger closed")
		return
	}

	select {
	case l.queue <- rec:
	default:
		l.drop(rec, "audit queue full")
	}
}

// Close stops accepting records and waits for queued ones to be written
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	started := l.started
	l.mu.Unlock()

	if started {
		<-l.done
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for rec := range l.queue {
		l.write(rec)
	}
}

func (l *Logger) write(rec audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()

	if err := l.repo.Append(ctx, &rec); err != nil {
		l.metrics.AuditDropped()
		l.logger.Error("Failed to write audit record",
			"audit_id", rec.ID.String(),
			"action", rec.Action,
			"entity_type", rec.EntityType,
			"entity_id", rec.EntityID,
			"error", err,
		)
	}
}

func (l *Logger) drop(rec audit.Record, reason string) {
	l.metrics.AuditDropped()
	l.logger.Warn("Dropped audit record",
		"reason", reason,
		"action", rec.Action,
		"entity_type", rec.EntityType,
		"entity_id", rec.EntityID,
	)
}
