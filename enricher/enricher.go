package enricher

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-letter/config"
	"ai-letter/metrics"
	"ai-letter/models"
)

// Fetcher returns an article page as markdown.
type Fetcher interface {
	FetchMarkdown(ctx context.Context, url string, render bool) (string, error)
}

// Report summarizes one Enrich call.
type Report struct {
	Attempted int `json:"attempted"`
	Filled    int `json:"filled"`
	Failed    int `json:"failed"`
}

// Enricher fills missing descriptions for sources configured with enrich: true.
type Enricher struct {
	fetcher    Fetcher
	limit      int
	timeout    time.Duration
	enabled    map[models.SourceID]bool
	render     map[models.SourceID]bool
	strategies map[models.SourceID]Strategy
}

type Option func(*Enricher)

// WithStrategy overrides the extraction strategy for one source.
func WithStrategy(source models.SourceID, s Strategy) Option {
	return func(e *Enricher) { e.strategies[source] = s }
}

func New(f Fetcher, cfg config.EnrichmentConfig, srcs []config.SourceConfig, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:    f,
		limit:      cfg.Concurrency,
		timeout:    cfg.Timeout,
		enabled:    make(map[models.SourceID]bool),
		render:     make(map[models.SourceID]bool),
		strategies: make(map[models.SourceID]Strategy),
	}
	if e.limit <= 0 {
		e.limit = 10
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}
	for _, s := range srcs {
		id := models.SourceID(s.ID)
		e.enabled[id] = s.Enrich
		e.render[id] = s.RenderContent
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns a copy of items with descriptions filled where possible. Output
// position i always corresponds to input position i. A failed fetch leaves the
// description empty and never drops the item.
func (e *Enricher) Enrich(ctx context.Context, items []models.Item) ([]models.Item, Report) {
	out := make([]models.Item, len(items))
	copy(out, items)

	bodies := make([]string, len(items))
	errs := make([]error, len(items))
	pending := make([]bool, len(items))

	var rep Report
	var g errgroup.Group
	g.SetLimit(e.limit)

	for i, it := range items {
		if !e.needs(it) {
			continue
		}
		pending[i] = true
		rep.Attempted++

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			bodies[i], errs[i] = e.fetcher.FetchMarkdown(fctx, it.URL, e.render[it.Source])
			return nil
		})
	}
	_ = g.Wait()

	// 추출은 네트워크 슬롯을 반납한 뒤 동기적으로 수행한다.
	for i := range out {
		if !pending[i] {
			continue
		}
		if errs[i] != nil {
			rep.Failed++
			metrics.EnrichmentFailures.WithLabelValues(string(out[i].Source)).Inc()
			config.WarnWithFields("enrichment failed", config.Fields{
				"source": out[i].Source,
				"url":    out[i].URL,
				"error":  errs[i].Error(),
			})
			continue
		}
		out[i].Description = e.strategyFor(out[i].Source)(bodies[i])
		if out[i].Description != "" {
			rep.Filled++
		}
	}

	config.Logger.Infof("enrichment done: attempted=%d filled=%d failed=%d", rep.Attempted, rep.Filled, rep.Failed)
	return out, rep
}

func (e *Enricher) needs(it models.Item) bool {
	return it.Description == "" && it.URL != "" && e.enabled[it.Source]
}

func (e *Enricher) strategyFor(source models.SourceID) Strategy {
	if s, ok := e.strategies[source]; ok && s != nil {
		return s
	}
	return ExtractIntroduction
}
