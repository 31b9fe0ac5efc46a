package consumers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out queued messages, then blocks until the context ends
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) committedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.committed))
	for _, m := range r.committed {
		keys = append(keys, string(m.Key))
	}
	return keys
}

func TestNewKafkaConsumer(t *testing.T) {
	cfg := &config.KafkaConfig{
		Brokers:       "localhost:9092",
		PaymentTopic:  "payment_confirmations",
		CatalogTopic:  "content_catalog",
		ConsumerGroup: "test-group",
		MinBytes:      1024,
		MaxBytes:      10240,
		MaxWait:       time.Second,
	}

	consumer := NewKafkaConsumer(context.Background(), logger.Discard(), cfg)
	require.NotNil(t, consumer)
	require.NotNil(t, consumer.reader)
	assert.Equal(t, "payment_confirmations", consumer.topic)
	assert.Equal(t, "test-group", consumer.groupID)
}

func TestNewCatalogConsumer(t *testing.T) {
	cfg := &config.KafkaConfig{
		Brokers:       "localhost:9092",
		PaymentTopic:  "payment_confirmations",
		CatalogTopic:  "content_catalog",
		ConsumerGroup: "test-group",
		MinBytes:      1024,
		MaxBytes:      10240,
		MaxWait:       time.Second,
	}

	consumer := NewCatalogConsumer(context.Background(), logger.Discard(), cfg)
	require.NotNil(t, consumer.reader)
	assert.Equal(t, "content_catalog", consumer.topic)
	assert.Equal(t, "test-group", consumer.groupID)
}

func TestKafkaConsumer_Subscribe(t *testing.T) {
	t.Run("CommitsOnlyHandledMessages", func(t *testing.T) {
		reader := &fakeReader{queue: []kafka.Message{
			{Key: []byte("ok-1"), Value: []byte(`{}`)},
			{Key: []byte("bad"), Value: []byte(`{}`)},
			{Key: []byte("ok-2"), Value: []byte(`{}`)},
		}}
		consumer := &KafkaConsumer{reader: reader, logger: logger.Discard(), topic: "t", groupID: "g", retryDelay: time.Millisecond}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var handled sync.WaitGroup
		handled.Add(3)
		err := consumer.Subscribe(ctx, func(_ context.Context, key, _ []byte) error {
			defer handled.Done()
			if string(key) == "bad" {
				return errors.New("boom")
			}
			return nil
		})
		require.NoError(t, err)

		handled.Wait()
		assert.Eventually(t, func() bool { return len(reader.committedKeys()) == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"ok-1", "ok-2"}, reader.committedKeys())
	})

	t.Run("RetriesAfterFetchError", func(t *testing.T) {
		reader := &fakeReader{
			fetchErrs: []error{errors.New("broker unavailable")},
			queue:     []kafka.Message{{Key: []byte("after-retry")}},
		}
		consumer := &KafkaConsumer{reader: reader, logger: logger.Discard(), topic: "t", groupID: "g", retryDelay: time.Millisecond}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan string, 1)
		require.NoError(t, consumer.Subscribe(ctx, func(_ context.Context, key, _ []byte) error {
			done <- string(key)
			return nil
		}))

		select {
		case key := <-done:
			assert.Equal(t, "after-retry", key)
		case <-time.After(time.Second):
			t.Fatal("handler was not called after fetch error")
		}
	})
}

func TestKafkaConsumer_Close(t *testing.T) {
	t.Run("CloseWithNilReader", func(t *testing.T) {
		consumer := &KafkaConsumer{logger: logger.Discard()}
		require.NoError(t, consumer.Close())
	})

	t.Run("ClosesReader", func(t *testing.T) {
		reader := &fakeReader{}
		consumer := &KafkaConsumer{reader: reader, logger: logger.Discard()}
		require.NoError(t, consumer.Close())
		assert.True(t, reader.closed)
	})
}
