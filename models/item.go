package models

import "time"

// SourceID identifies one configured article source.
type SourceID string

const (
	SourceAlphaXiv    SourceID = "alphaxiv"
	SourceHFBlog      SourceID = "hf_blog"
	SourceVentureBeat SourceID = "venturebeat"
	SourceAITimes     SourceID = "ai_times"
)

// Item is a single candidate article produced by a source adapter.
// Description is the only field filled in after the adapter returns.
type Item struct {
	Source      SourceID  `bson:"source" json:"source"`
	Title       string    `bson:"title" json:"title"`
	URL         string    `bson:"url" json:"url"`
	PublishedAt time.Time `bson:"published_at,omitempty" json:"published_at,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
}

// CategoryBatch is the ordered set of items curated together.
// Slice order is the index space the reasoning service refers to.
type CategoryBatch struct {
	Category string `json:"category"`
	Items    []Item `json:"items"`
}

// Choice is one curated pick, referencing the batch by index.
type Choice struct {
	Index     int    `json:"index"`
	Rationale string `json:"rationale"`
}

// Selection is the validated curation answer for one category.
type Selection struct {
	Category string   `json:"category"`
	Chosen   []Choice `json:"chosen"`
}

// CuratedArticle is a Choice resolved against the locally held batch.
type CuratedArticle struct {
	Category    string    `bson:"category" json:"category"`
	Index       int       `bson:"index" json:"index"`
	Source      SourceID  `bson:"source" json:"source"`
	Title       string    `bson:"title" json:"title"`
	URL         string    `bson:"url" json:"url"`
	Description string    `bson:"description" json:"description"`
	PublishedAt time.Time `bson:"published_at,omitempty" json:"published_at,omitempty"`
	Rationale   string    `bson:"reason_for_selection" json:"reason_for_selection"`
}
