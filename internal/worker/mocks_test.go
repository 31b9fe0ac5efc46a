package worker

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/creator-coin-ledger/internal/domain/content"
	"github.com/creator-coin-ledger/internal/payments"
)

type MockConfirmationService struct {
	mock.Mock
}

func (m *MockConfirmationService) ConfirmProviderTransaction(ctx context.Context, c payments.Confirmation) (*payments.ConfirmResult, error) {
	args := m.Called(ctx, c)
	res, _ := args.Get(0).(*payments.ConfirmResult)
	return res, args.Error(1)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	return m.Called().Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, key string, eventType string, payload []byte) error {
	args := m.Called(ctx, key, eventType, payload)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

type MockCatalogWriter struct {
	mock.Mock
}

func (m *MockCatalogWriter) Upsert(ctx context.Context, item *content.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}
