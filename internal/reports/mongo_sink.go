package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// MongoSink stores report documents next to the farm records
type MongoSink struct {
	collection *mongo.Collection
}

// NewMongoSink creates a sink writing into the given collection
func NewMongoSink(collection *mongo.Collection) *MongoSink {
	return &MongoSink{collection: collection}
}

// Name returns the sink name
func (s *MongoSink) Name() string {
	return "mongo"
}

// Store inserts the report keyed by its report id
func (s *MongoSink) Store(ctx context.Context, report *calculation.VerificationReport) error {
	doc, err := reportDocument(report)
	if err != nil {
		return err
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert report %s: %w", report.ReportID, err)
	}
	return nil
}

// reportDocument converts a report through its JSON form so the stored
// document has the same field names as the API and file output
func reportDocument(report *calculation.VerificationReport) (bson.M, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert report: %w", err)
	}
	doc["_id"] = report.ReportID.String()
	return doc, nil
}
