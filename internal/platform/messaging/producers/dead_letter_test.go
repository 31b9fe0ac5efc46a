package producers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/creator-coin-ledger/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("SuccessfulPublishToDLQ", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := NewDLQProducerWithWriter(logger.Discard(), writer, "payment_confirmations_dlq")
		producer.now = func() time.Time { return fixed }

		original := []byte(`{"transaction_id":"not-a-uuid"}`)
		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "prov-1" {
				return false
			}
			var env dlqEnvelope
			if err := json.Unmarshal(msgs[0].Value, &env); err != nil {
				return false
			}
			return env.OriginalKey == "prov-1" &&
				env.OriginalValue == string(original) &&
				env.DLQReason == "invalid_payload" &&
				env.Timestamp == "2025-03-01T10:00:00Z" &&
				msgs[0].Headers[0].Key == "dlq-reason"
		})).Return(nil).Once()

		require.NoError(t, producer.PublishToDLQ(ctx, "prov-1", original, "invalid_payload"))
		writer.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := NewDLQProducerWithWriter(logger.Discard(), writer, "payment_confirmations_dlq")
		writeErr := errors.New("kafka DLQ write error")
		writer.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writeErr).Once()

		err := producer.PublishToDLQ(ctx, "k", []byte("v"), "r")
		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
	})

	t.Run("DisabledProducer", func(t *testing.T) {
		var producer *DLQProducer
		err := producer.PublishToDLQ(ctx, "k", []byte("v"), "r")
		assert.ErrorIs(t, err, ErrDLQDisabled)
		assert.NoError(t, producer.Close())
	})
}

func TestDLQProducer_Close(t *testing.T) {
	t.Run("SuccessfulClose", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := NewDLQProducerWithWriter(logger.Discard(), writer, "dlq")
		writer.On("Close").Return(nil).Once()
		require.NoError(t, producer.Close())
		writer.AssertExpectations(t)
	})

	t.Run("CloseReturnsErrorOnWriterError", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := NewDLQProducerWithWriter(logger.Discard(), writer, "dlq")
		closeErr := errors.New("kafka DLQ close error")
		writer.On("Close").Return(closeErr).Once()
		assert.ErrorIs(t, producer.Close(), closeErr)
	})
}
