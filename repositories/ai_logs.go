package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"ai-letter/models"
)

type AILogRepository struct {
	col *mongo.Collection
}

func NewAILogRepository(db *mongo.Database) *AILogRepository {
	return &AILogRepository{col: db.Collection("ai_logs")}
}

// SaveAILog stores one reasoning call.
func (r *AILogRepository) SaveAILog(ctx context.Context, log *models.AILog) error {
	if log.RequestedAt.IsZero() {
		log.RequestedAt = time.Now()
	}
	_, err := r.col.InsertOne(ctx, log)
	return err
}
