package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"ai-letter/artifacts"
	"ai-letter/history"
	"ai-letter/reasoning"
)

var (
	_ history.Store          = (*HistoryRepository)(nil)
	_ artifacts.Store        = (*ArtifactRepository)(nil)
	_ reasoning.CallRecorder = (*AILogRepository)(nil)
)

func TestHistoryRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load decodes records", func(mt *mtest.T) {
		at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "ailetter.history", mtest.FirstBatch, bson.D{
				{Key: "normalized_url", Value: "https://example.com/a"},
				{Key: "delivered_at", Value: at},
			}),
			mtest.CreateCursorResponse(0, "ailetter.history", mtest.NextBatch),
		)

		recs, err := NewHistoryRepository(mt.DB).Load(context.Background())
		require.NoError(mt, err)
		require.Len(mt, recs, 1)
		assert.Equal(mt, "https://example.com/a", recs[0].NormalizedURL)
		assert.True(mt, at.Equal(recs[0].DeliveredAt))
	})

	mt.Run("delete before returns count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))

		n, err := NewHistoryRepository(mt.DB).DeleteBefore(context.Background(), time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, 3, n)
	})
}

func TestArtifactRepository_LatestDigestNotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("empty collection", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ailetter.digests", mtest.FirstBatch))

		_, err := NewArtifactRepository(mt.DB).LatestDigest(context.Background())
		assert.ErrorIs(mt, err, artifacts.ErrNotFound)
	})
}
