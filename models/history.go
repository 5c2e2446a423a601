package models

import "time"

// HistoryRecord marks a normalized URL as delivered in a published digest.
// Collection: history
type HistoryRecord struct {
	NormalizedURL string    `bson:"normalized_url" json:"normalized_url"`
	DeliveredAt   time.Time `bson:"delivered_at" json:"delivered_at"`
}
