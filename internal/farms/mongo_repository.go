package farms

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// ErrNotFound is returned when no farm matches the requested id
var ErrNotFound = errors.New("farm not found")

// Repository is the farm record source
type Repository interface {
	Get(ctx context.Context, farmID string) (*calculation.FarmRecord, error)
	List(ctx context.Context) ([]*calculation.FarmRecord, error)
	Upsert(ctx context.Context, record *calculation.FarmRecord) error
}

// MongoRepository reads and writes farm records in a MongoDB collection
// keyed by farm_id
type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a farm repository over the given collection
func NewMongoRepository(collection *mongo.Collection) *MongoRepository {
	return &MongoRepository{collection: collection}
}

// Get returns one farm record by id
func (r *MongoRepository) Get(ctx context.Context, farmID string) (*calculation.FarmRecord, error) {
	var record calculation.FarmRecord
	err := r.collection.FindOne(ctx, bson.M{"farm_id": farmID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get farm %s: %w", farmID, err)
	}
	return &record, nil
}

// List returns every farm record ordered by farm_id
func (r *MongoRepository) List(ctx context.Context) ([]*calculation.FarmRecord, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "farm_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*calculation.FarmRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode farms: %w", err)
	}
	return records, nil
}

// Upsert replaces the stored record with the same farm_id or inserts it
func (r *MongoRepository) Upsert(ctx context.Context, record *calculation.FarmRecord) error {
	if record.FarmID == "" {
		return errors.New("farm_id is required to store a farm record")
	}

	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"farm_id": record.FarmID},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert farm %s: %w", record.FarmID, err)
	}
	return nil
}
