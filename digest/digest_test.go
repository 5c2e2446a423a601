package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-letter/config"
	"ai-letter/eventbus"
	"ai-letter/history"
	"ai-letter/metrics"
	"ai-letter/models"
	"ai-letter/reasoning"
)

var categories = []config.CategoryConfig{
	{Name: "academic", Label: "ACADEMIC RESEARCH"},
	{Name: "technews", Label: "TECH NEWS"},
}

type fakeFramer struct {
	resp *reasoning.FramingResponse
	err  error
	req  reasoning.FramingRequest
	n    int
}

func (f *fakeFramer) Frame(ctx context.Context, req reasoning.FramingRequest) (*reasoning.FramingResponse, error) {
	f.n++
	f.req = req
	return f.resp, f.err
}

func summary(title string) models.ArticleSummary {
	return models.ArticleSummary{
		Title:        title,
		URL:          "https://example.com/" + title,
		Source:       models.SourceHFBlog,
		BulletPoints: []string{"First.", "Second.", "Third."},
	}
}

func TestAssemble_UsesFramingText(t *testing.T) {
	f := &fakeFramer{resp: &reasoning.FramingResponse{
		Greeting: "Hi all",
		Intros:   []reasoning.SectionIntro{{Category: "academic", Intro: "Papers!"}},
		Closing:  "Bye",
	}}
	a := NewAssembler(f, categories)

	d := a.Assemble(context.Background(), "run-1", []SectionInput{
		{Category: "academic", Summaries: []models.ArticleSummary{summary("A"), summary("B")}},
		{Category: "technews", Summaries: []models.ArticleSummary{summary("C")}},
	})

	assert.Equal(t, "Hi all", d.Greeting)
	assert.Equal(t, "Bye", d.Closing)
	require.Len(t, d.Sections, 2)
	assert.Equal(t, "ACADEMIC RESEARCH", d.Sections[0].Label)
	assert.Equal(t, "Papers!", d.Sections[0].Intro)
	assert.NotEmpty(t, d.Sections[1].Intro)
	assert.Equal(t, []string{"https://example.com/A", "https://example.com/B", "https://example.com/C"}, d.URLs())

	// 프레이밍 요청에는 제목과 소스만 전달된다.
	require.Len(t, f.req.Sections, 2)
	assert.Equal(t, reasoning.FramingArticle{Title: "A", Source: "hf_blog"}, f.req.Sections[0].Articles[0])
}

func TestAssemble_FramingFailureFallsBack(t *testing.T) {
	a := NewAssembler(&fakeFramer{err: errors.New("quota")}, categories)

	d := a.Assemble(context.Background(), "run-1", []SectionInput{
		{Category: "academic", Summaries: []models.ArticleSummary{summary("A")}},
	})

	assert.Equal(t, DefaultGreeting, d.Greeting)
	assert.Equal(t, DefaultClosing, d.Closing)
	require.Len(t, d.Sections, 1)
	assert.NotEmpty(t, d.Sections[0].Intro)
}

func TestAssemble_EmptySectionsSkipFraming(t *testing.T) {
	f := &fakeFramer{}
	a := NewAssembler(f, categories)

	d := a.Assemble(context.Background(), "run-1", []SectionInput{{Category: "academic"}, {Category: "technews"}})

	assert.True(t, d.IsEmpty())
	assert.Empty(t, d.Sections)
	assert.Zero(t, f.n)
}

func TestRender_PlainTextLayout(t *testing.T) {
	d := models.Digest{
		Greeting: "Hello",
		Sections: []models.Section{{Category: "technews", Label: "Tech News", Intro: "Intro text", Articles: []models.ArticleSummary{summary("A")}}},
		Closing:  "Bye",
	}

	text := Render(d)

	want := strings.Join([]string{
		"Hello", "", "====================", "",
		"TECH NEWS", "", "Intro text", "",
		"1. A", "", "• First.", "• Second.", "• Third.", "",
		"Read more: https://example.com/A", "", "----------", "",
		"====================", "", "Bye",
	}, "\n")
	assert.Equal(t, want, text)
}

type fakeStore struct {
	mu    sync.Mutex
	err   error
	saved []models.DigestArtifact
}

func (s *fakeStore) SaveCrawl(ctx context.Context, at time.Time, snaps []models.CrawlSnapshot) error {
	return nil
}
func (s *fakeStore) SaveCuration(ctx context.Context, snap models.CurationSnapshot) error {
	return nil
}
func (s *fakeStore) SaveDigest(ctx context.Context, art models.DigestArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, art)
	return nil
}
func (s *fakeStore) LatestDigest(ctx context.Context) (*models.DigestArtifact, error) {
	return nil, nil
}
func (s *fakeStore) ListDigests(ctx context.Context, limit int) ([]models.Digest, error) {
	return nil, nil
}

type fakeBus struct {
	topic  string
	events []eventbus.Event
	err    error
}

func (b *fakeBus) Publish(ctx context.Context, topic string, event eventbus.Event) error {
	b.topic = topic
	b.events = append(b.events, event)
	return b.err
}
func (b *fakeBus) Close() {}

func newMemory(t *testing.T) (*history.Memory, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore()
	now := func() time.Time { return time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC) }
	mem := history.New(store, 14*24*time.Hour, history.WithClock(now))
	require.NoError(t, mem.Open(context.Background()))
	return mem, store
}

func sampleDigest() models.Digest {
	return models.Digest{
		RunID:       "run-1",
		GeneratedAt: time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC),
		Sections: []models.Section{
			{Category: "academic", Label: "ACADEMIC RESEARCH", Articles: []models.ArticleSummary{summary("A"), summary("B")}},
		},
	}
}

func TestPublish_PersistsThenRecords(t *testing.T) {
	mem, hstore := newMemory(t)
	store := &fakeStore{}
	bus := &fakeBus{}
	p := NewPublisher(store, mem, WithEventBus(bus, eventbus.NewTopic("ai-letter.digest.events")))

	require.NoError(t, p.Publish(context.Background(), sampleDigest()))

	require.Len(t, store.saved, 1)
	assert.Contains(t, store.saved[0].Text, "Read more: https://example.com/A")
	assert.Equal(t, 2, hstore.Len())
	assert.True(t, mem.IsDuplicate(models.Item{URL: "https://example.com/B"}))

	require.Len(t, bus.events, 1)
	assert.Equal(t, "ai-letter.digest.events", bus.topic)
	assert.Equal(t, "run-1", bus.events[0].ID)
}

func TestPublish_PersistenceFailureRecordsNothing(t *testing.T) {
	mem, hstore := newMemory(t)
	bus := &fakeBus{}
	p := NewPublisher(&fakeStore{err: errors.New("disk full")}, mem, WithEventBus(bus, eventbus.NewTopic("t")))

	err := p.Publish(context.Background(), sampleDigest())

	require.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, hstore.Len())
	assert.False(t, mem.IsDuplicate(models.Item{URL: "https://example.com/A"}))
	assert.Empty(t, bus.events)
}

func TestPublish_EventFailureIsNotFatal(t *testing.T) {
	mem, _ := newMemory(t)
	p := NewPublisher(&fakeStore{}, mem, WithEventBus(&fakeBus{err: errors.New("broker down")}, eventbus.NewTopic("t")))

	assert.NoError(t, p.Publish(context.Background(), sampleDigest()))
}

type failingRecorder struct{}

func (failingRecorder) RecordDelivered(ctx context.Context, urls []string, at time.Time) error {
	return errors.New("history write failed")
}

func TestPublish_CountsOnlyRecordedDigests(t *testing.T) {
	before := testutil.ToFloat64(metrics.DigestsPublished)

	err := NewPublisher(&fakeStore{}, failingRecorder{}).Publish(context.Background(), sampleDigest())
	require.Error(t, err)
	assert.Equal(t, before, testutil.ToFloat64(metrics.DigestsPublished))

	mem, _ := newMemory(t)
	require.NoError(t, NewPublisher(&fakeStore{}, mem).Publish(context.Background(), sampleDigest()))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DigestsPublished))
}
