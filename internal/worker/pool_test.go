package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-coin-ledger/internal/domain/ledger"
	"github.com/creator-coin-ledger/internal/logger"
	"github.com/creator-coin-ledger/internal/payments"
)

// slowService records the highest number of confirmations in flight
type slowService struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowService) ConfirmProviderTransaction(_ context.Context, c payments.Confirmation) (*payments.ConfirmResult, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	if c.ProviderTxID == "bad" {
		return nil, errors.New("provider mismatch")
	}
	return &payments.ConfirmResult{Transaction: &ledger.Transaction{ID: c.TransactionID, ProviderRef: c.ProviderTxID}}, nil
}

func TestPoolService_BoundsConcurrency(t *testing.T) {
	base := &slowService{}
	pool, err := NewPoolService(base, 2, logger.Discard())
	require.NoError(t, err)
	defer pool.Shutdown()
	assert.Equal(t, 2, pool.Capacity())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("pi_%d", i)
			res, err := pool.ConfirmProviderTransaction(context.Background(), payments.Confirmation{TransactionID: uuid.New(), ProviderTxID: ref})
			if assert.NoError(t, err) {
				assert.Equal(t, ref, res.Transaction.ProviderRef)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, base.peak.Load(), int32(2))
}

func TestPoolService_PropagatesErrors(t *testing.T) {
	pool, err := NewPoolService(&slowService{}, 1, logger.Discard())
	require.NoError(t, err)
	defer pool.Shutdown()

	_, err = pool.ConfirmProviderTransaction(context.Background(), payments.Confirmation{ProviderTxID: "bad"})
	assert.EqualError(t, err, "provider mismatch")
}
