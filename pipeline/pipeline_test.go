package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-letter/artifacts"
	"ai-letter/config"
	"ai-letter/curation"
	"ai-letter/digest"
	"ai-letter/enricher"
	"ai-letter/history"
	"ai-letter/models"
	"ai-letter/reasoning"
	"ai-letter/sources"
	"ai-letter/summarizer"
)

type staticAdapter struct {
	id    models.SourceID
	items []models.Item
	err   error
}

func (a staticAdapter) ID() models.SourceID { return a.id }
func (a staticAdapter) URL() string         { return "https://" + string(a.id) + ".test/" }
func (a staticAdapter) Fetch(ctx context.Context) ([]models.Item, error) {
	return a.items, a.err
}

func listing(src models.SourceID, prefix string, n int) []models.Item {
	items := make([]models.Item, n)
	for i := range items {
		items[i] = models.Item{
			Source:      src,
			Title:       fmt.Sprintf("%s%d", prefix, i+1),
			URL:         fmt.Sprintf("https://%s.test/%s%d", src, prefix, i+1),
			Description: "about " + fmt.Sprintf("%s%d", prefix, i+1),
		}
	}
	return items
}

// scriptedReasoner picks fixed indices, fails summaries for the titles in
// failing, and records what curation saw.
type scriptedReasoner struct {
	mu       sync.Mutex
	picks    []int
	failing  map[string]bool
	curated  []reasoning.CurationRequest
	summized []string
}

func (r *scriptedReasoner) Curate(ctx context.Context, req reasoning.CurationRequest) (*reasoning.CurationResponse, error) {
	r.mu.Lock()
	r.curated = append(r.curated, req)
	r.mu.Unlock()

	resp := &reasoning.CurationResponse{Category: req.Category}
	for _, i := range r.picks {
		resp.Chosen = append(resp.Chosen, reasoning.CurationChoice{Index: i, Rationale: "worth reading"})
	}
	return resp, nil
}

func (r *scriptedReasoner) Summarize(ctx context.Context, req reasoning.SummaryRequest) (*reasoning.SummaryResponse, error) {
	r.mu.Lock()
	r.summized = append(r.summized, req.Title)
	r.mu.Unlock()
	if r.failing[req.Title] {
		return nil, errors.New("service timeout")
	}
	return &reasoning.SummaryResponse{BulletPoints: []string{"One.", "Two.", "Three."}}, nil
}

func (r *scriptedReasoner) Frame(ctx context.Context, req reasoning.FramingRequest) (*reasoning.FramingResponse, error) {
	return &reasoning.FramingResponse{Greeting: "Hello", Closing: "Bye"}, nil
}

type descriptionLoader struct{}

func (descriptionLoader) Load(ctx context.Context, a models.CuratedArticle) string {
	return a.Description
}

type noFetch struct{}

func (noFetch) FetchMarkdown(ctx context.Context, url string, render bool) (string, error) {
	return "", errors.New("not expected")
}

type fixture struct {
	pipeline *Pipeline
	reasoner *scriptedReasoner
	history  *history.MemoryStore
	store    *artifacts.FileStore
}

func newFixture(t *testing.T, adapters []sources.Adapter, picks []int, failing ...string) *fixture {
	t.Helper()

	now := time.Now()
	hstore := history.NewMemoryStore(
		models.HistoryRecord{NormalizedURL: "https://hf_blog.test/a2", DeliveredAt: now.Add(-24 * time.Hour)},
		models.HistoryRecord{NormalizedURL: "https://venturebeat.test/b1", DeliveredAt: now.Add(-3 * 24 * time.Hour)},
	)
	mem := history.New(hstore, 14*24*time.Hour)

	r := &scriptedReasoner{picks: picks, failing: map[string]bool{}}
	for _, f := range failing {
		r.failing[f] = true
	}

	cats := []config.CategoryConfig{{Name: "technews", Label: "TECH NEWS", Sources: []string{"hf_blog", "venturebeat"}, RationaleLanguage: "English"}}
	store := artifacts.NewFileStore(t.TempDir())

	p := New(Deps{
		Adapters:   adapters,
		Enricher:   enricher.New(noFetch{}, config.EnrichmentConfig{}, nil),
		Memory:     mem,
		Gateway:    curation.NewGateway(r, config.CurationConfig{MinSelected: 1, MaxSelected: 3}, cats),
		Summarizer: summarizer.New(r, descriptionLoader{}, config.SummarizationConfig{Concurrency: 6, MaxAttempts: 2, Timeout: time.Second}),
		Assembler:  digest.NewAssembler(r, cats),
		Publisher:  digest.NewPublisher(store, mem),
		Artifacts:  store,
		Categories: cats,
	})
	return &fixture{pipeline: p, reasoner: r, history: hstore, store: store}
}

func defaultAdapters() []sources.Adapter {
	return []sources.Adapter{
		staticAdapter{id: models.SourceHFBlog, items: listing(models.SourceHFBlog, "a", 5)},
		staticAdapter{id: models.SourceVentureBeat, items: listing(models.SourceVentureBeat, "b", 3)},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, defaultAdapters(), []int{0, 2})

	rep, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, rep.NoOp)
	assert.Equal(t, 8, rep.Fetched)
	assert.Equal(t, 2, rep.Duplicates)
	assert.Equal(t, 6, rep.Candidates)

	// 큐레이션 요청은 중복이 제거된 6개 후보만 본다.
	require.Len(t, f.reasoner.curated, 1)
	var titles []string
	for _, it := range f.reasoner.curated[0].Items {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"a1", "a3", "a4", "a5", "b2", "b3"}, titles)

	require.Len(t, rep.Digest.Sections, 1)
	assert.Equal(t, []string{"https://hf_blog.test/a1", "https://hf_blog.test/a4"}, rep.Digest.URLs())
	assert.Equal(t, "Hello", rep.Digest.Greeting)

	// 기존 2건 + 새로 발송된 2건
	assert.Equal(t, 4, f.history.Len())

	latest, err := f.store.LatestDigest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, latest.Digest.RunID)
	assert.Contains(t, latest.Text, "Read more: https://hf_blog.test/a4")
}

func TestRun_PartialSummaryFailure(t *testing.T) {
	f := newFixture(t, defaultAdapters(), []int{0, 2}, "a4")

	rep, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Summarized)
	assert.Equal(t, 1, rep.Omitted)
	assert.Equal(t, []string{"https://hf_blog.test/a1"}, rep.Digest.URLs())
	assert.Equal(t, 3, f.history.Len())

	// 실패한 기사는 재시도 1회 포함 두 번 호출된다.
	n := 0
	for _, title := range f.reasoner.summized {
		if title == "a4" {
			n++
		}
	}
	assert.Equal(t, 2, n)
}

func TestRun_NoOpWhenEverythingIsDuplicate(t *testing.T) {
	adapters := []sources.Adapter{
		staticAdapter{id: models.SourceHFBlog, items: []models.Item{{Source: models.SourceHFBlog, Title: "old", URL: "https://HF_BLOG.test/a2/?utm_source=x"}}},
		staticAdapter{id: models.SourceVentureBeat, err: errors.New("503")},
	}
	f := newFixture(t, adapters, []int{0})

	rep, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.NoOp)
	assert.True(t, rep.Digest.IsEmpty())
	assert.Equal(t, []models.SourceID{models.SourceVentureBeat}, rep.FailedSources)
	assert.Empty(t, f.reasoner.curated)
	assert.Equal(t, 2, f.history.Len())

	_, err = f.store.LatestDigest(context.Background())
	assert.ErrorIs(t, err, artifacts.ErrNotFound)
}

func TestRun_SecondRunSeesFirstRunAsDuplicates(t *testing.T) {
	f := newFixture(t, defaultAdapters(), []int{0, 2})

	_, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)

	rep, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Candidates)
	assert.Equal(t, 4, rep.Duplicates)
}

func TestBuildBatches_FollowsCategorySourceOrder(t *testing.T) {
	items := append(listing(models.SourceVentureBeat, "b", 2), listing(models.SourceHFBlog, "a", 2)...)
	cats := []config.CategoryConfig{
		{Name: "academic", Sources: []string{"hf_blog"}},
		{Name: "technews", Sources: []string{"venturebeat", "ai_times"}},
	}

	batches := BuildBatches(cats, items)

	require.Len(t, batches, 2)
	assert.Equal(t, "a1", batches[0].Items[0].Title)
	assert.Len(t, batches[1].Items, 2)
	assert.Equal(t, "b1", batches[1].Items[0].Title)
}

func TestBuildBatches_SourceFeedsOnlyFirstCategory(t *testing.T) {
	cats := []config.CategoryConfig{
		{Name: "academic", Sources: []string{"hf_blog"}},
		{Name: "technews", Sources: []string{"hf_blog", "venturebeat"}},
	}
	items := append(listing(models.SourceHFBlog, "a", 2), listing(models.SourceVentureBeat, "b", 1)...)

	batches := BuildBatches(cats, items)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Items, 2)
	require.Len(t, batches[1].Items, 1)
	assert.Equal(t, models.SourceVentureBeat, batches[1].Items[0].Source)
}

func TestRun_SharedSourcePublishesArticleOnce(t *testing.T) {
	cats := []config.CategoryConfig{
		{Name: "academic", Sources: []string{"hf_blog"}, RationaleLanguage: "English"},
		{Name: "technews", Sources: []string{"hf_blog"}, RationaleLanguage: "English"},
	}
	r := &scriptedReasoner{picks: []int{0}, failing: map[string]bool{}}
	hstore := history.NewMemoryStore()
	mem := history.New(hstore, 14*24*time.Hour)
	store := artifacts.NewFileStore(t.TempDir())

	p := New(Deps{
		Adapters:   []sources.Adapter{staticAdapter{id: models.SourceHFBlog, items: listing(models.SourceHFBlog, "a", 3)}},
		Enricher:   enricher.New(noFetch{}, config.EnrichmentConfig{}, nil),
		Memory:     mem,
		Gateway:    curation.NewGateway(r, config.CurationConfig{MinSelected: 1, MaxSelected: 3}, cats),
		Summarizer: summarizer.New(r, descriptionLoader{}, config.SummarizationConfig{Concurrency: 6, MaxAttempts: 2, Timeout: time.Second}),
		Assembler:  digest.NewAssembler(r, cats),
		Publisher:  digest.NewPublisher(store, mem),
		Artifacts:  store,
		Categories: cats,
	})

	rep, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, r.curated, 1)
	assert.Equal(t, 1, rep.Summarized)
	assert.Equal(t, []string{"https://hf_blog.test/a1"}, rep.Digest.URLs())
	require.Len(t, rep.Digest.Sections, 1)
	assert.Equal(t, "academic", rep.Digest.Sections[0].Category)
	assert.Equal(t, 1, hstore.Len())
}

func TestRunner_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	r := NewRunner(func(ctx context.Context) (Report, error) {
		<-release
		return Report{RunID: "r1"}, nil
	}, time.Minute)

	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrRunInProgress)
	assert.True(t, r.Status().Running)

	close(release)
	r.Wait()

	st := r.Status()
	assert.False(t, st.Running)
	assert.Equal(t, "r1", st.LastRunID)
}
