package producers

import (
	"context"
	"errors"
	"testing"

	"github.com/creator-coin-ledger/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEventProducer_PublishEvent(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"id":"e1","type":"unlock.completed","data":{"amount":300}}`)

	t.Run("WritesKeyedMessageWithTypeHeader", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := NewEventProducerWithWriter(logger.Discard(), writer, "monetization_events")

		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			msg := msgs[0]
			return string(msg.Key) == "content-1" &&
				string(msg.Value) == string(payload) &&
				len(msg.Headers) == 1 &&
				msg.Headers[0].Key == EventTypeHeader &&
				string(msg.Headers[0].Value) == "unlock.completed"
		})).Return(nil).Once()

		require.NoError(t, producer.PublishEvent(ctx, "content-1", "unlock.completed", payload))
		writer.AssertExpectations(t)
	})

	t.Run("RejectsInvalidPayload", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := NewEventProducerWithWriter(logger.Discard(), writer, "monetization_events")

		err := producer.PublishEvent(ctx, "k", "unlock.completed", []byte("{not json"))
		require.Error(t, err)
		writer.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("WrapsWriterError", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := NewEventProducerWithWriter(logger.Discard(), writer, "monetization_events")
		writeErr := errors.New("leader not available")
		writer.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writeErr).Once()

		err := producer.PublishEvent(ctx, "k", "unlock.completed", payload)
		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
	})
}

func TestEventProducer_Close(t *testing.T) {
	writer := new(MockKafkaWriter)
	producer := NewEventProducerWithWriter(logger.Discard(), writer, "monetization_events")
	closeErr := errors.New("close failed")
	writer.On("Close").Return(closeErr).Once()

	err := producer.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, closeErr)
}
