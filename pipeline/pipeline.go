package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai-letter/artifacts"
	"ai-letter/config"
	"ai-letter/curation"
	"ai-letter/digest"
	"ai-letter/enricher"
	"ai-letter/history"
	"ai-letter/metrics"
	"ai-letter/models"
	"ai-letter/sources"
	"ai-letter/summarizer"
)

// Enricher fills missing descriptions.
type Enricher interface {
	Enrich(ctx context.Context, items []models.Item) ([]models.Item, enricher.Report)
}

// Deps are the stage implementations a Pipeline drives.
type Deps struct {
	Adapters   []sources.Adapter
	Enricher   Enricher
	Memory     *history.Memory
	Gateway    *curation.Gateway
	Summarizer *summarizer.Summarizer
	Assembler  *digest.Assembler
	Publisher  *digest.Publisher
	Artifacts  artifacts.Store
	Categories []config.CategoryConfig
}

// Pipeline runs sources → enrich → dedup → curate → summarize → digest.
type Pipeline struct {
	Deps
	now func() time.Time
}

func New(d Deps) *Pipeline {
	return &Pipeline{Deps: d, now: time.Now}
}

// Report describes one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	NoOp       bool
	Fetched    int
	Duplicates int
	Candidates int
	Curated    int
	Summarized int
	Omitted    int
	// FailedSources and FailedCategories list stages that degraded to empty.
	FailedSources    []models.SourceID
	FailedCategories []string
	DuplicateStats   map[models.SourceID]history.DuplicateStats
	Digest           models.Digest
}

// Run executes a single pipeline run. A run where nothing survives dedup (or
// every summary failed) returns an empty digest with NoOp set and a nil error.
func (p *Pipeline) Run(ctx context.Context) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), StartedAt: p.now()}
	defer func() {
		outcome := "published"
		switch {
		case err != nil:
			outcome = "failed"
		case rep.NoOp:
			outcome = "noop"
		}
		metrics.RunDuration.WithLabelValues(outcome).Observe(p.now().Sub(rep.StartedAt).Seconds())
	}()

	config.InfoWithFields("pipeline run started", config.Fields{"run_id": rep.RunID})

	if err := p.Memory.Open(ctx); err != nil {
		metrics.HistoryDegraded.Inc()
		config.WarnWithFields("history unavailable, continuing without deduplication", config.Fields{
			"run_id": rep.RunID,
			"error":  err.Error(),
		})
	}

	// 1. 수집
	results := sources.FetchAll(ctx, p.Adapters)
	p.saveCrawl(ctx, rep, results)

	var raw []models.Item
	for _, r := range results {
		if r.Err != nil {
			rep.FailedSources = append(rep.FailedSources, r.Source)
		}
		raw = append(raw, r.Items...)
	}
	rep.Fetched = len(raw)

	// 2. 설명 보강
	enriched, er := p.Enricher.Enrich(ctx, raw)
	if er.Attempted > 0 {
		config.InfoWithFields("descriptions enriched", config.Fields{
			"run_id":    rep.RunID,
			"attempted": er.Attempted,
			"filled":    er.Filled,
			"failed":    er.Failed,
		})
	}

	// 3. 중복 제거
	kept, stats := p.Memory.Filter(enriched)
	rep.DuplicateStats = stats
	for src, s := range stats {
		rep.Duplicates += s.Duplicates
		if s.Duplicates > 0 {
			metrics.DedupHits.WithLabelValues(string(src)).Add(float64(s.Duplicates))
		}
		config.InfoWithFields("duplicate check", config.Fields{
			"run_id":     rep.RunID,
			"source":     string(src),
			"total":      s.Total,
			"duplicates": s.Duplicates,
			"new":        s.New,
		})
	}
	rep.Candidates = len(kept)
	if len(kept) == 0 {
		return p.noop(rep, "no new items after deduplication"), nil
	}

	// 4-5. 큐레이션 + 인덱스 해석
	batches := BuildBatches(p.Categories, kept)
	curated := curation.CurateAll(ctx, p.Gateway, batches)
	p.saveCuration(ctx, rep, curated)

	var articles []models.CuratedArticle
	for _, c := range curated {
		if c.Err != nil {
			rep.FailedCategories = append(rep.FailedCategories, c.Category)
		}
		articles = append(articles, c.Articles...)
	}
	rep.Curated = len(articles)
	if len(articles) == 0 {
		return p.noop(rep, "no articles selected"), nil
	}

	// 6. 요약
	out := p.Summarizer.SummarizeAll(ctx, articles)
	rep.Summarized = len(out.Summaries)
	rep.Omitted = len(out.Omitted)
	if len(out.Summaries) == 0 {
		return p.noop(rep, "every summary failed"), nil
	}

	// 7. 조립 + 발행
	d := p.Assembler.Assemble(ctx, rep.RunID, sectionInputs(curated, out.Summaries))
	rep.Digest = d
	if err := p.Publisher.Publish(ctx, d); err != nil {
		config.ErrorWithFields("digest publish failed", config.Fields{
			"run_id": rep.RunID,
			"error":  err.Error(),
		})
		return rep, fmt.Errorf("run %s: %w", rep.RunID, err)
	}

	config.InfoWithFields("pipeline run finished", config.Fields{
		"run_id":     rep.RunID,
		"fetched":    rep.Fetched,
		"duplicates": rep.Duplicates,
		"curated":    rep.Curated,
		"summarized": rep.Summarized,
		"omitted":    rep.Omitted,
	})
	return rep, nil
}

func (p *Pipeline) noop(rep Report, reason string) Report {
	rep.NoOp = true
	rep.Digest = models.Digest{RunID: rep.RunID, GeneratedAt: p.now()}
	config.InfoWithFields("pipeline run produced no digest", config.Fields{
		"run_id": rep.RunID,
		"reason": reason,
	})
	return rep
}

// BuildBatches groups items per category. Within a batch, items follow the
// category's source order and, per source, the adapter's listing order.
// A source listed under several categories only feeds the first one.
func BuildBatches(categories []config.CategoryConfig, items []models.Item) []models.CategoryBatch {
	bySource := make(map[models.SourceID][]models.Item)
	for _, it := range items {
		bySource[it.Source] = append(bySource[it.Source], it)
	}

	assigned := make(map[models.SourceID]struct{})
	batches := make([]models.CategoryBatch, 0, len(categories))
	for _, c := range categories {
		b := models.CategoryBatch{Category: c.Name}
		for _, src := range c.Sources {
			id := models.SourceID(src)
			if _, ok := assigned[id]; ok {
				config.WarnWithFields("source already assigned to another category", config.Fields{
					"source":   src,
					"category": c.Name,
				})
				continue
			}
			assigned[id] = struct{}{}
			b.Items = append(b.Items, bySource[id]...)
		}
		batches = append(batches, b)
	}
	return batches
}

// sectionInputs regroups summaries by category, keeping curation order.
func sectionInputs(curated []curation.Result, summaries []models.ArticleSummary) []digest.SectionInput {
	byURL := make(map[string]models.ArticleSummary, len(summaries))
	for _, s := range summaries {
		byURL[s.URL] = s
	}

	inputs := make([]digest.SectionInput, 0, len(curated))
	for _, c := range curated {
		in := digest.SectionInput{Category: c.Category}
		for _, a := range c.Articles {
			if s, ok := byURL[a.URL]; ok {
				in.Summaries = append(in.Summaries, s)
			}
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func (p *Pipeline) saveCrawl(ctx context.Context, rep Report, results []sources.Result) {
	snaps := make([]models.CrawlSnapshot, 0, len(results))
	for _, r := range results {
		snaps = append(snaps, r.Snapshot(rep.RunID))
	}
	if err := p.Artifacts.SaveCrawl(ctx, rep.StartedAt, snaps); err != nil {
		config.WarnWithFields("crawl snapshot not saved", config.Fields{"run_id": rep.RunID, "error": err.Error()})
	}
}

func (p *Pipeline) saveCuration(ctx context.Context, rep Report, curated []curation.Result) {
	snap := models.CurationSnapshot{
		RunID:      rep.RunID,
		Timestamp:  p.now(),
		Categories: make(map[string]models.CategoryCuration, len(curated)),
	}
	for _, c := range curated {
		selected := c.Articles
		if selected == nil {
			selected = []models.CuratedArticle{}
		}
		snap.Categories[c.Category] = models.CategoryCuration{Category: c.Category, SelectedArticles: selected}
	}
	if err := p.Artifacts.SaveCuration(ctx, snap); err != nil {
		config.WarnWithFields("curation snapshot not saved", config.Fields{"run_id": rep.RunID, "error": err.Error()})
	}
}
