// Package mongo stores the append-only audit trail in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/creator-coin-ledger/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit collection in MongoDB
	AuditCollectionName = "audit_log"

	defaultListLimit = 100
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

var _ audit.Repository = (*AuditRepository)(nil)

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the lookup index used by ListByEntity
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "entity_type", Value: 1},
			{Key: "entity_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("entity_lookup"),
	})
	if err != nil {
		r.logger.Error("Failed to create audit index", "error", err)
		return fmt.Errorf("failed to create audit index: %w", err)
	}
	return nil
}

// Append inserts a record. Re-inserting the same record ID is a no-op so a
// retried write never duplicates history.
func (r *AuditRepository) Append(ctx context.Context, rec *audit.Record) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		r.logger.Error("Failed to append audit record",
			"action", string(rec.Action),
			"entity_id", rec.EntityID,
			"error", err)
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

// ListByEntity returns the newest records about one entity
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*audit.Record, error) {
	collection := r.db.Collection(AuditCollectionName)
	if limit <= 0 {
		limit = defaultListLimit
	}

	filter := bson.M{"entity_type": entityType, "entity_id": entityID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to find audit records",
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err)
		return nil, fmt.Errorf("failed to find audit records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*audit.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode audit records",
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err)
		return nil, fmt.Errorf("failed to decode audit records: %w", err)
	}

	return records, nil
}
