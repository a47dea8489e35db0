package audithook

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/accounting/id"
	"github.com/xraph/accounting/types"
)

// DefaultCollection is the collection MongoRecorder writes to.
const DefaultCollection = "accounting_audit"

type auditDocument struct {
	ID         string    `bson:"_id"`
	RecordedAt time.Time `bson:"recorded_at"`

	AuditEvent `bson:",inline"`
}

// MongoRecorder appends audit events to a MongoDB collection. Each event
// gets an "aud_" TypeID so documents sort by insertion time.
type MongoRecorder struct {
	col   *mongo.Collection
	clock types.Clock
}

// NewMongoRecorder creates a recorder writing to DefaultCollection in db.
func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{
		col:   db.Collection(DefaultCollection),
		clock: types.SystemClock(),
	}
}

// Record implements Recorder.
func (r *MongoRecorder) Record(ctx context.Context, event *AuditEvent) error {
	doc := auditDocument{
		ID:         id.NewAuditID().String(),
		RecordedAt: r.clock.Now().UTC(),
		AuditEvent: *event,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("audithook: insert %s: %w", event.Action, err)
	}
	return nil
}
