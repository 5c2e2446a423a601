package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-letter/models"
)

const day = 24 * time.Hour

var fixedNow = time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)

func newTestMemory(t *testing.T, store Store) *Memory {
	t.Helper()
	m := New(store, 14*day, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, m.Open(context.Background()))
	return m
}

type failingStore struct {
	MemoryStore
	loadErr   error
	appendErr error
}

func (s *failingStore) Load(ctx context.Context) ([]models.HistoryRecord, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

func (s *failingStore) Append(ctx context.Context, records []models.HistoryRecord) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.Append(ctx, records)
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"tracking and fragment", "HTTPS://Example.COM/Post/?utm_source=x&id=3#frag", "https://example.com/Post?id=3"},
		{"ref and source", "https://example.com/a?ref=tw&source=rss", "https://example.com/a"},
		{"sorted query", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"default port", "http://example.com:80/a", "http://example.com/a"},
		{"blank", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}

	assert.Equal(t, NormalizeURL("https://example.com/"), NormalizeURL("https://example.com"))
}

func TestMemory_RetentionBoundary(t *testing.T) {
	cases := []struct {
		name string
		age  time.Duration
		dup  bool
	}{
		{"day 13", 13 * day, true},
		{"exactly 14 days", 14 * day, true},
		{"just past 14 days", 14*day + time.Second, false},
		{"day 15", 15 * day, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore(models.HistoryRecord{
				NormalizedURL: "https://example.com/a",
				DeliveredAt:   fixedNow.Add(-tc.age),
			})
			m := newTestMemory(t, store)
			assert.Equal(t, tc.dup, m.IsDuplicate(models.Item{URL: "https://Example.com/a/?utm_medium=mail"}))
		})
	}
}

func TestMemory_IsDuplicateIsReadOnly(t *testing.T) {
	store := NewMemoryStore(models.HistoryRecord{
		NormalizedURL: "https://example.com/a",
		DeliveredAt:   fixedNow.Add(-3 * day),
	})
	m := newTestMemory(t, store)
	item := models.Item{URL: "https://example.com/a/?utm_source=feed"}

	assert.True(t, m.IsDuplicate(item))
	assert.True(t, m.IsDuplicate(item))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, store.Len())
}

func TestMemory_RecordDeliveredIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	m := newTestMemory(t, store)
	ctx := context.Background()
	urls := []string{"https://example.com/a", "https://example.com/a#x", "https://example.com/b"}

	require.NoError(t, m.RecordDelivered(ctx, urls, fixedNow))
	first := m.Len()
	require.NoError(t, m.RecordDelivered(ctx, urls, fixedNow))

	assert.Equal(t, 2, first)
	assert.Equal(t, first, m.Len())
	assert.Equal(t, 2, store.Len())
	assert.True(t, m.IsDuplicate(models.Item{URL: "https://example.com/b"}))

	// 재시작 후에도 동일하게 보여야 한다.
	reopened := newTestMemory(t, store)
	assert.Equal(t, 2, reopened.Len())
	assert.True(t, reopened.IsDuplicate(models.Item{URL: "https://example.com/a"}))
}

func TestMemory_OpenFailureFailsClosed(t *testing.T) {
	store := &failingStore{loadErr: errors.New("disk gone")}
	m := New(store, 14*day, WithClock(func() time.Time { return fixedNow }))

	err := m.Open(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, m.Degraded())
	assert.False(t, m.IsDuplicate(models.Item{URL: "https://example.com/a"}))
}

func TestMemory_RecordFailureLeavesMemoryUnchanged(t *testing.T) {
	store := &failingStore{appendErr: errors.New("write failed")}
	m := newTestMemory(t, store)

	err := m.RecordDelivered(context.Background(), []string{"https://example.com/a"}, fixedNow)

	require.Error(t, err)
	assert.False(t, m.IsDuplicate(models.Item{URL: "https://example.com/a"}))
}

func TestMemory_Filter(t *testing.T) {
	store := NewMemoryStore(models.HistoryRecord{NormalizedURL: "https://example.com/old", DeliveredAt: fixedNow.Add(-2 * day)})
	m := newTestMemory(t, store)

	items := []models.Item{
		{Source: models.SourceHFBlog, URL: "https://example.com/old?utm_campaign=z"},
		{Source: models.SourceHFBlog, URL: "https://example.com/new"},
		{Source: models.SourceVentureBeat, URL: "https://example.com/new/"},
		{Source: models.SourceVentureBeat, URL: "https://example.com/other"},
	}

	kept, stats := m.Filter(items)

	require.Len(t, kept, 2)
	assert.Equal(t, "https://example.com/new", kept[0].URL)
	assert.Equal(t, "https://example.com/other", kept[1].URL)
	assert.Equal(t, DuplicateStats{Total: 2, Duplicates: 1, New: 1}, stats[models.SourceHFBlog])
	assert.Equal(t, DuplicateStats{Total: 2, Duplicates: 1, New: 1}, stats[models.SourceVentureBeat])
}

func TestMemory_Prune(t *testing.T) {
	store := NewMemoryStore(
		models.HistoryRecord{NormalizedURL: "https://example.com/a", DeliveredAt: fixedNow.Add(-20 * day)},
		models.HistoryRecord{NormalizedURL: "https://example.com/b", DeliveredAt: fixedNow.Add(-3 * day)},
	)
	m := newTestMemory(t, store)

	removed, err := m.Prune(context.Background(), fixedNow)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, m.Len())
}

func TestFileStore_RoundTripAndCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	fs := NewFileStore(path)
	ctx := context.Background()

	records, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, fs.Append(ctx, []models.HistoryRecord{{NormalizedURL: "https://example.com/a", DeliveredAt: fixedNow}}))
	records, err = fs.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].DeliveredAt.Equal(fixedNow))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = fs.Load(ctx)
	assert.Error(t, err)

	m := New(fs, 14*day, WithClock(func() time.Time { return fixedNow }))
	assert.ErrorIs(t, m.Open(ctx), ErrUnavailable)

	require.NoError(t, m.RecordDelivered(ctx, []string{"https://example.com/b"}, fixedNow))
	records, err = fs.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://example.com/b", records[0].NormalizedURL)
	assert.FileExists(t, path+".corrupt")
}

func TestLocalLocker_RespectsContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock2()
}
