package models

import (
	"encoding/json"
	"time"
)

// CrawlSnapshot is the per-source listing persisted after every crawl.
// Collection: crawl_snapshots
type CrawlSnapshot struct {
	RunID         string    `bson:"run_id" json:"run_id,omitempty"`
	Source        SourceID  `bson:"source" json:"source"`
	URL           string    `bson:"url" json:"url"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
	ArticlesCount int       `bson:"articles_count" json:"articles_count"`
	Articles      []Item    `bson:"articles" json:"articles"`
	Error         string    `bson:"error,omitempty" json:"error,omitempty"`
}

// CategoryCuration holds the resolved picks for one category.
type CategoryCuration struct {
	Category         string           `bson:"category" json:"category"`
	SelectedArticles []CuratedArticle `bson:"selected_articles" json:"selected_articles"`
}

// CurationSnapshot is persisted once curation finished for all categories.
// Collection: curation_snapshots
type CurationSnapshot struct {
	RunID      string                      `bson:"run_id" json:"run_id,omitempty"`
	Timestamp  time.Time                   `bson:"timestamp" json:"timestamp"`
	Categories map[string]CategoryCuration `bson:"categories" json:"categories"`
}

// MarshalJSON flattens categories next to the timestamp:
// {"timestamp": ..., "academic": {"category": ..., "selected_articles": [...]}}.
func (s CurationSnapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Categories)+2)
	for name, c := range s.Categories {
		out[name] = c
	}
	out["timestamp"] = s.Timestamp
	if s.RunID != "" {
		out["run_id"] = s.RunID
	}
	return json.Marshal(out)
}

// DigestArtifact is the digest plus its plain-text rendering.
// Collection: digests
type DigestArtifact struct {
	Digest Digest `bson:"digest" json:"digest"`
	Text   string `bson:"text" json:"text"`
}
