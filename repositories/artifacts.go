package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-letter/artifacts"
	"ai-letter/models"
)

// ArtifactRepository is the MongoDB backend of artifacts.Store.
type ArtifactRepository struct {
	crawls    *mongo.Collection
	curations *mongo.Collection
	digests   *mongo.Collection
}

func NewArtifactRepository(db *mongo.Database) *ArtifactRepository {
	return &ArtifactRepository{
		crawls:    db.Collection("crawl_snapshots"),
		curations: db.Collection("curation_snapshots"),
		digests:   db.Collection("digests"),
	}
}

func (r *ArtifactRepository) SaveCrawl(ctx context.Context, at time.Time, snaps []models.CrawlSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	docs := make([]any, 0, len(snaps))
	for _, s := range snaps {
		if s.Timestamp.IsZero() {
			s.Timestamp = at
		}
		docs = append(docs, s)
	}
	_, err := r.crawls.InsertMany(ctx, docs)
	return err
}

func (r *ArtifactRepository) SaveCuration(ctx context.Context, snap models.CurationSnapshot) error {
	_, err := r.curations.InsertOne(ctx, snap)
	return err
}

// SaveDigest upserts by run id so a retried publish does not create a second document.
func (r *ArtifactRepository) SaveDigest(ctx context.Context, art models.DigestArtifact) error {
	_, err := r.digests.ReplaceOne(ctx,
		bson.M{"digest.run_id": art.Digest.RunID},
		art,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *ArtifactRepository) LatestDigest(ctx context.Context) (*models.DigestArtifact, error) {
	var art models.DigestArtifact
	opts := options.FindOne().SetSort(bson.D{{Key: "digest.generated_at", Value: -1}})
	if err := r.digests.FindOne(ctx, bson.M{}, opts).Decode(&art); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, artifacts.ErrNotFound
		}
		return nil, err
	}
	return &art, nil
}

func (r *ArtifactRepository) ListDigests(ctx context.Context, limit int) ([]models.Digest, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "digest.generated_at", Value: -1}}).
		SetProjection(bson.M{"text": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.digests.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var arts []models.DigestArtifact
	if err := cur.All(ctx, &arts); err != nil {
		return nil, err
	}
	out := make([]models.Digest, 0, len(arts))
	for _, a := range arts {
		out = append(out, a.Digest)
	}
	return out, nil
}
