// Package outbox stores monetization events in the same transaction as the
// money movement so they can be published reliably afterwards.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/creator-coin-ledger/internal/domain/shared"
)

// Event types published to the events topic
const (
	EventUnlockCompleted       = "unlock.completed"
	EventUnlockRefunded        = "unlock.refunded"
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionExpired   = "subscription.expired"
	EventDepositCompleted      = "deposit.completed"
	EventWithdrawCompleted     = "withdraw.completed"
)

// Event is the envelope published for downstream consumers
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

// Message is a pending publication of one event
type Message struct {
	ID            int64               `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	EventType     string              `json:"event_type"`
	AggregateID   string              `json:"aggregate_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps data in an Event envelope ready for the outbox
func NewMessage(eventType, aggregateID, correlationID string, data any, at time.Time) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	event := Event{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateID:   aggregateID,
		CorrelationID: correlationID,
		OccurredAt:    at,
		Data:          raw,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Message{
		EventID:     event.ID,
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		CreatedAt:   at,
	}, nil
}

// Event decodes the stored envelope
func (m *Message) Event() (*Event, error) {
	var e Event
	if err := json.Unmarshal(m.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
