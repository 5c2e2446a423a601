package curation

import (
	"ai-letter/config"
	"ai-letter/models"
)

// Resolve attaches trusted fields from the local batch to every chosen index.
// Only Index and Rationale come from the selection; an index outside the batch
// is dropped with a warning.
func Resolve(batch models.CategoryBatch, sel models.Selection) []models.CuratedArticle {
	out := make([]models.CuratedArticle, 0, len(sel.Chosen))
	seen := make(map[int]struct{}, len(sel.Chosen))

	for _, c := range sel.Chosen {
		if c.Index < 0 || c.Index >= len(batch.Items) {
			config.WarnWithFields("dropping out-of-range selection", config.Fields{
				"category": batch.Category,
				"index":    c.Index,
				"size":     len(batch.Items),
			})
			continue
		}
		if _, dup := seen[c.Index]; dup {
			continue
		}
		seen[c.Index] = struct{}{}

		it := batch.Items[c.Index]
		out = append(out, models.CuratedArticle{
			Category:    batch.Category,
			Index:       c.Index,
			Source:      it.Source,
			Title:       it.Title,
			URL:         it.URL,
			Description: it.Description,
			PublishedAt: it.PublishedAt,
			Rationale:   c.Rationale,
		})
	}
	return out
}
