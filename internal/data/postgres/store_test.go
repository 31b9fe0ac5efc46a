package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-coin-ledger/internal/domain/shared"
	"github.com/creator-coin-ledger/internal/domain/store"
	"github.com/creator-coin-ledger/internal/domain/wallet"
	"github.com/creator-coin-ledger/internal/platform/persistence"
)

func TestStore_ExecuteTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits a serializable unit", func(t *testing.T) {
		mock := newMockPool(t)
		s := NewStore(newTestLogger(), persistence.NewPostgresDBWithPool(newTestLogger(), mock))

		mock.ExpectBeginTx(persistence.Serializable)
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (owner_id) DO NOTHING")).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err := s.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
			return repos.Wallets.Create(ctx, wallet.New("fan-1", testNow))
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serialization failure becomes TRANSACTION_ABORTED", func(t *testing.T) {
		mock := newMockPool(t)
		s := NewStore(newTestLogger(), persistence.NewPostgresDBWithPool(newTestLogger(), mock))

		mock.ExpectBeginTx(persistence.Serializable)
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (owner_id) DO NOTHING")).
			WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
		mock.ExpectRollback()

		err := s.ExecuteTx(ctx, func(ctx context.Context, repos store.Repositories) error {
			return repos.Wallets.Create(ctx, wallet.New("fan-1", testNow))
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrTransactionAborted)
		e, ok := shared.AsError(err)
		require.True(t, ok)
		assert.True(t, e.Retryable())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
