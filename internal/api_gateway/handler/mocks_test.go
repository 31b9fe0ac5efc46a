package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/creator-coin-ledger/internal/api_gateway/middleware"
	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/domain/monetization"
	"github.com/creator-coin-ledger/internal/domain/revenue"
	"github.com/creator-coin-ledger/internal/logger"
	"github.com/creator-coin-ledger/internal/payments"
	"github.com/creator-coin-ledger/internal/processor"
)

type MockMonetizationService struct {
	mock.Mock
}

func (m *MockMonetizationService) Unlock(ctx context.Context, req processor.UnlockRequest) (*processor.UnlockResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.UnlockResult), args.Error(1)
}

func (m *MockMonetizationService) RefundUnlock(ctx context.Context, req processor.RefundRequest) (*monetization.Unlock, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*monetization.Unlock), args.Error(1)
}

func (m *MockMonetizationService) Subscribe(ctx context.Context, req processor.SubscribeRequest) (*processor.SubscribeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.SubscribeResult), args.Error(1)
}

func (m *MockMonetizationService) Renew(ctx context.Context, req processor.RenewRequest) (*processor.RenewResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.RenewResult), args.Error(1)
}

func (m *MockMonetizationService) CancelSubscription(ctx context.Context, req processor.CancelRequest) (*monetization.Subscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*monetization.Subscription), args.Error(1)
}

func (m *MockMonetizationService) GetSubscription(ctx context.Context, id uuid.UUID) (*monetization.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*monetization.Subscription), args.Error(1)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetBalance(ctx context.Context, ownerID string) (*processor.Balance, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.Balance), args.Error(1)
}

func (m *MockWalletService) GetTransactions(ctx context.Context, ownerID string, page, perPage int) (*processor.TransactionPage, error) {
	args := m.Called(ctx, ownerID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.TransactionPage), args.Error(1)
}

func (m *MockWalletService) Freeze(ctx context.Context, ownerID, reason, actorID string) (bool, error) {
	args := m.Called(ctx, ownerID, reason, actorID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWalletService) Unfreeze(ctx context.Context, ownerID, reason, actorID string) (bool, error) {
	args := m.Called(ctx, ownerID, reason, actorID)
	return args.Bool(0), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RequestDeposit(ctx context.Context, req payments.DepositRequest) (*ledger.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockPaymentService) RequestWithdrawal(ctx context.Context, req payments.WithdrawalRequest) (*ledger.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockPaymentService) ConfirmProviderTransaction(ctx context.Context, c payments.Confirmation) (*payments.ConfirmResult, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.ConfirmResult), args.Error(1)
}

type MockRevenueService struct {
	mock.Mock
}

func (m *MockRevenueService) GetAccount(ctx context.Context, creatorID string) (*revenue.Account, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.Account), args.Error(1)
}

func (m *MockRevenueService) ListWithdrawals(ctx context.Context, creatorID string) ([]*revenue.Withdrawal, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*revenue.Withdrawal), args.Error(1)
}

func (m *MockRevenueService) VerifyPaymentInfo(ctx context.Context, creatorID, actorID string) (*revenue.Account, error) {
	args := m.Called(ctx, creatorID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.Account), args.Error(1)
}

func (m *MockRevenueService) SettlePending(ctx context.Context, creatorID string, amount int64, actorID string) (int64, error) {
	args := m.Called(ctx, creatorID, amount, actorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRevenueService) RequestPayout(ctx context.Context, creatorID string, amount int64, actorID string) (*revenue.Withdrawal, error) {
	args := m.Called(ctx, creatorID, amount, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.Withdrawal), args.Error(1)
}

func (m *MockRevenueService) SettleWithdrawal(ctx context.Context, id uuid.UUID, succeeded bool, reason, actorID string) (*revenue.Withdrawal, error) {
	args := m.Called(ctx, id, succeeded, reason, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.Withdrawal), args.Error(1)
}

func testLogger() *slog.Logger {
	return logger.Discard()
}

// newTestRouter wires the request middleware the real router uses in front of handlers
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.Use(middleware.RequireActor())
	return r
}

func newTestRouterWithoutActor() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	return r
}

func jsonBody(body string) io.Reader {
	return strings.NewReader(body)
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	if req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func doRequest(r http.Handler, method, path, actor, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = jsonBody(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if actor != "" {
		req.Header.Set(middleware.ActorIDHeader, actor)
	}
	return serve(r, req)
}
