package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/creator-coin-ledger/internal/logger"
)

func TestCreateConfirmationService(t *testing.T) {
	base := new(MockConfirmationService)

	svc := CreateConfirmationService(base, &config.WorkerPoolConfig{Size: 4}, logger.Discard())
	pooled, ok := svc.(*PoolService)
	if assert.True(t, ok) {
		assert.Equal(t, 4, pooled.Capacity())
		pooled.Shutdown()
	}
}
