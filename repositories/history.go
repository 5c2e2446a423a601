package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-letter/models"
)

// HistoryRepository is the MongoDB backend of history.Store.
type HistoryRepository struct {
	col *mongo.Collection
}

func NewHistoryRepository(db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{col: db.Collection("history")}
}

func (r *HistoryRepository) Load(ctx context.Context) ([]models.HistoryRecord, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.HistoryRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Append upserts one document per normalized URL, keeping the latest
// delivered_at.
func (r *HistoryRepository) Append(ctx context.Context, records []models.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"normalized_url": rec.NormalizedURL}).
			SetUpdate(bson.M{"$max": bson.M{"delivered_at": rec.DeliveredAt}}).
			SetUpsert(true))
	}
	if _, err := r.col.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("history bulk write: %w", err)
	}
	return nil
}

func (r *HistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"delivered_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
