package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	at := time.Now().UTC()

	completed := NewTransaction("u1", KindPurchase, -300, StatusCompleted, at)
	assert.NotEqual(t, uuid.Nil, completed.ID)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, at, *completed.CompletedAt)

	pending := NewTransaction("u1", KindDeposit, 500, StatusPending, at)
	assert.Nil(t, pending.CompletedAt)
}

func TestPair(t *testing.T) {
	a := NewTransaction("buyer", KindPurchase, -100, StatusCompleted, time.Now())
	b := NewTransaction("platform", KindPlatformFee, 25, StatusCompleted, time.Now())
	Pair(a, b)

	require.NotNil(t, a.PairedID)
	require.NotNil(t, b.PairedID)
	assert.Equal(t, b.ID, *a.PairedID)
	assert.Equal(t, a.ID, *b.PairedID)
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusReversed.Terminal())
}

func TestErrorMatching(t *testing.T) {
	id := uuid.New()
	assert.True(t, errors.Is(ErrTransactionNotFound{ID: id}, ErrTransactionNotFound{}))
	assert.False(t, errors.Is(ErrTransactionNotFound{ID: id}, ErrTransactionNotFound{ID: uuid.New()}))
	assert.True(t, errors.Is(ErrDuplicateProviderRef{ProviderRef: "p1"}, ErrDuplicateProviderRef{}))
	assert.True(t, errors.Is(ErrStatusConflict{ID: id, From: StatusPending}, ErrStatusConflict{}))
}
