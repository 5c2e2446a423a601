package curation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"ai-letter/config"
	"ai-letter/metrics"
	"ai-letter/models"
	"ai-letter/reasoning"
)

// Gateway asks the reasoning service to pick items of a CategoryBatch by index.
type Gateway struct {
	reasoner  reasoning.Reasoner
	min       int
	max       int
	languages map[string]string
}

func NewGateway(r reasoning.Reasoner, cfg config.CurationConfig, categories []config.CategoryConfig) *Gateway {
	g := &Gateway{
		reasoner:  r,
		min:       cfg.MinSelected,
		max:       cfg.MaxSelected,
		languages: make(map[string]string, len(categories)),
	}
	if g.min <= 0 {
		g.min = 1
	}
	if g.max < g.min {
		g.max = g.min
	}
	for _, c := range categories {
		g.languages[c.Name] = c.RationaleLanguage
	}
	return g
}

// Curate returns a Selection whose indices are all valid for batch. An empty
// Chosen means "no selection this run" for the category. Empty batches never
// reach the service.
func (g *Gateway) Curate(ctx context.Context, batch models.CategoryBatch) (models.Selection, error) {
	sel := models.Selection{Category: batch.Category}
	if len(batch.Items) == 0 {
		return sel, nil
	}

	req := reasoning.CurationRequest{
		Category: batch.Category,
		Language: g.languages[batch.Category],
		Items:    make([]reasoning.CurationItem, len(batch.Items)),
		Min:      g.min,
		Max:      g.max,
	}
	for i, it := range batch.Items {
		req.Items[i] = reasoning.CurationItem{
			Index:       i,
			Title:       it.Title,
			Description: it.Description,
			Source:      string(it.Source),
		}
	}

	first, problems, err := g.ask(ctx, req, len(batch.Items))
	if err != nil && !errors.Is(err, reasoning.ErrMalformedOutput) {
		return sel, err
	}
	if err == nil && g.withinBounds(len(first)) {
		sel.Chosen = first
		return sel, nil
	}

	// 한 번만 교정 요청을 보낸다.
	req.Correction = g.correction(len(first), problems, err)
	metrics.CurationRetries.WithLabelValues(batch.Category).Inc()
	config.WarnWithFields("curation answer rejected, retrying once", config.Fields{
		"category":   batch.Category,
		"correction": req.Correction,
	})

	second, _, retryErr := g.ask(ctx, req, len(batch.Items))
	chosen := second
	if retryErr != nil {
		config.WarnWithFields("curation retry failed, using first answer", config.Fields{
			"category": batch.Category,
			"error":    retryErr.Error(),
		})
		chosen = first
	} else if len(second) == 0 && len(first) > g.max {
		// 교정 응답이 비면 첫 응답을 잘라 쓴다.
		chosen = first
	}

	if len(chosen) > g.max {
		chosen = chosen[:g.max]
	}
	if len(chosen) == 0 {
		config.WarnWithFields("no selection this run", config.Fields{"category": batch.Category})
	}
	sel.Chosen = chosen
	return sel, nil
}

func (g *Gateway) ask(ctx context.Context, req reasoning.CurationRequest, batchLen int) ([]models.Choice, []string, error) {
	resp, err := g.reasoner.Curate(ctx, req)
	if err != nil {
		if errors.Is(err, reasoning.ErrMalformedOutput) {
			metrics.CurationViolations.WithLabelValues(req.Category).Inc()
		}
		return nil, nil, fmt.Errorf("curate %s: %w", req.Category, err)
	}
	valid, problems := Validate(batchLen, resp.Chosen)
	for _, p := range problems {
		metrics.CurationViolations.WithLabelValues(req.Category).Inc()
		config.WarnWithFields("discarded curation choice", config.Fields{
			"category": req.Category,
			"problem":  p,
		})
	}
	if !g.withinBounds(len(valid)) {
		metrics.CurationViolations.WithLabelValues(req.Category).Inc()
	}
	return valid, problems, nil
}

func (g *Gateway) withinBounds(n int) bool {
	return n >= g.min && n <= g.max
}

func (g *Gateway) correction(valid int, problems []string, err error) string {
	var parts []string
	if err != nil {
		parts = append(parts, "the output was not valid JSON for the schema")
	}
	parts = append(parts, problems...)
	if err == nil {
		parts = append(parts, fmt.Sprintf("%d valid articles were selected but between %d and %d are required", valid, g.min, g.max))
	}
	return fmt.Sprintf("%v: %s", ErrProtocolViolation, strings.Join(parts, "; "))
}

// Result is the curation outcome for one category.
type Result struct {
	Category  string
	Selection models.Selection
	Articles  []models.CuratedArticle
	Err       error
}

// CurateAll curates every batch independently; a failing category yields an
// empty Result with Err set and never blocks the others. Results keep batch order.
func CurateAll(ctx context.Context, g *Gateway, batches []models.CategoryBatch) []Result {
	results := make([]Result, len(batches))

	var eg errgroup.Group
	for i, b := range batches {
		eg.Go(func() error {
			res := Result{Category: b.Category}
			sel, err := g.Curate(ctx, b)
			if err != nil {
				res.Err = err
				config.ErrorWithFields("curation failed", config.Fields{
					"category": b.Category,
					"error":    err.Error(),
				})
			} else {
				res.Selection = sel
				res.Articles = Resolve(b, sel)
			}
			results[i] = res
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
