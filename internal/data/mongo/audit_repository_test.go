package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/creator-coin-ledger/internal/domain/audit"
	"github.com/creator-coin-ledger/internal/logger"
)

func newRecord(entityID string, at time.Time) *audit.Record {
	return &audit.Record{
		ID:         uuid.New(),
		Action:     audit.ActionSubscriptionExpired,
		EntityType: audit.EntitySubscription,
		EntityID:   entityID,
		ActorID:    "scheduler",
		Reason:     "expired without renewal",
		CreatedAt:  at.UTC().Truncate(time.Millisecond),
	}
}

func toDoc(t *testing.T, rec *audit.Record) bson.D {
	t.Helper()
	raw, err := bson.Marshal(rec)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestAuditRepository_Append(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewAuditRepository(logger.Discard(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Append(context.Background(), newRecord("sub-1", time.Now()))
		assert.NoError(mt, err)
	})

	mt.Run("duplicate id is ignored", func(mt *mtest.T) {
		repo := NewAuditRepository(logger.Discard(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Append(context.Background(), newRecord("sub-1", time.Now()))
		assert.NoError(mt, err)
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := NewAuditRepository(logger.Discard(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    91,
			Message: "shutdown in progress",
		}))

		err := repo.Append(context.Background(), newRecord("sub-1", time.Now()))
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to append audit record")
	})
}

func TestAuditRepository_ListByEntity(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes records", func(mt *mtest.T) {
		repo := NewAuditRepository(logger.Discard(), mt.DB)
		now := time.Now()
		newer := newRecord("sub-1", now)
		older := newRecord("sub-1", now.Add(-time.Hour))
		ns := mt.DB.Name() + "." + AuditCollectionName

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, toDoc(mt.T, newer), toDoc(mt.T, older)),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		records, err := repo.ListByEntity(context.Background(), audit.EntitySubscription, "sub-1", 10)
		require.NoError(mt, err)
		require.Len(mt, records, 2)
		assert.Equal(mt, newer.ID, records[0].ID)
		assert.Equal(mt, older.ID, records[1].ID)
		assert.Equal(mt, audit.ActionSubscriptionExpired, records[0].Action)
	})

	mt.Run("find error", func(mt *mtest.T) {
		repo := NewAuditRepository(logger.Discard(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query"}))

		_, err := repo.ListByEntity(context.Background(), audit.EntitySubscription, "sub-1", 0)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to find audit records")
	})
}
