package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/payments"
	"github.com/creator-coin-ledger/internal/platform/messaging/producers"
)

// PaymentHandler consumes provider confirmations from Kafka
type PaymentHandler struct {
	service ConfirmationService
	dlq     producers.DeadLetterPublisher
	logger  *slog.Logger
}

func NewPaymentHandler(logger *slog.Logger, service ConfirmationService, dlq producers.DeadLetterPublisher) *PaymentHandler {
	return &PaymentHandler{service: service, dlq: dlq, logger: logger}
}

// HandleMessage applies one confirmation. Messages that can never succeed go
// to the DLQ and are committed; anything else is returned so the offset stays
// uncommitted and the message is redelivered.
func (h *PaymentHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var c payments.Confirmation
	if err := json.Unmarshal(value, &c); err != nil {
		h.logger.Error("Failed to unmarshal payment confirmation", "message_key", string(key), "error", err)
		return deadLetter(ctx, h.logger, h.dlq, key, value, fmt.Sprintf("unmarshal payment confirmation: %v", err), err)
	}

	logger := h.logger
	if c.CorrelationID != "" {
		logger = h.logger.With("correlation_id", c.CorrelationID)
	}
	logger.Info("Received payment confirmation",
		"transaction_id", c.TransactionID.String(),
		"provider_tx_id", c.ProviderTxID,
		"outcome", c.Outcome,
	)

	res, err := h.service.ConfirmProviderTransaction(ctx, c)
	if err != nil {
		if permanent(err) {
			logger.Warn("Payment confirmation rejected", "transaction_id", c.TransactionID.String(), "error", err)
			return deadLetter(ctx, h.logger, h.dlq, key, value, err.Error(), err)
		}
		logger.Error("Failed to apply payment confirmation", "transaction_id", c.TransactionID.String(), "error", err)
		return fmt.Errorf("applying confirmation %s failed: %w", c.ProviderTxID, err)
	}

	logger.Info("Payment confirmation applied", "transaction_id", c.TransactionID.String(), "status", res.Transaction.Status, "duplicate", res.Duplicate)
	return nil
}

// deadLetter parks the message. Without a DLQ, or when the DLQ write fails,
// cause is returned so the message is retried rather than lost.
func deadLetter(ctx context.Context, logger *slog.Logger, dlq producers.DeadLetterPublisher, key, value []byte, reason string, cause error) error {
	if dlq == nil {
		return cause
	}
	if err := dlq.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		logger.Error("Failed to publish message to DLQ", "dlq_error", err, "original_error", cause, "message_key", string(key))
		return cause
	}
	logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
	return nil
}

// permanent reports whether redelivery cannot change the outcome
func permanent(err error) bool {
	switch shared.CodeOf(err) {
	case shared.CodeInvalidInput, shared.CodeNotFound, shared.CodeUnauthorized:
		return true
	}
	return false
}
