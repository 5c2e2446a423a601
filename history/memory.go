package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-letter/config"
	"ai-letter/models"
)

// ErrUnavailable marks a history store that could not be read. The memory then
// behaves as empty and the run continues without deduplication.
var ErrUnavailable = errors.New("history unavailable")

const lockKey = "history"

// DuplicateStats is the per-source outcome of Filter.
type DuplicateStats struct {
	Total      int `json:"total"`
	Duplicates int `json:"duplicates"`
	New        int `json:"new"`
}

// Memory 는 최근 발송된 기사 URL(정규화)을 기억해 재발송을 막는다.
// IsDuplicate/Filter 는 읽기 전용이고, 기록과 정리는 Locker 아래에서만 일어난다.
type Memory struct {
	store     Store
	locker    Locker
	retention time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	live     map[string]time.Time // normalized url -> latest delivered_at
	degraded bool
}

type Option func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

func WithLocker(l Locker) Option {
	return func(m *Memory) { m.locker = l }
}

func New(store Store, retention time.Duration, opts ...Option) *Memory {
	m := &Memory{
		store:     store,
		retention: retention,
		now:       time.Now,
		live:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.locker == nil {
		m.locker = NewLocalLocker()
	}
	return m
}

// Open loads the delivered set. On failure the memory stays empty (fail-closed
// towards "not a duplicate") and the returned error wraps ErrUnavailable.
func (m *Memory) Open(ctx context.Context) error {
	records, err := m.store.Load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.live = make(map[string]time.Time, len(records))
	if err != nil {
		m.degraded = true
		config.Logger.Warnf("history load failed, deduplication disabled for this run: %v", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.degraded = false
	for _, r := range records {
		m.remember(NormalizeURL(r.NormalizedURL), r.DeliveredAt)
	}
	return nil
}

// Degraded reports whether the last Open failed.
func (m *Memory) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// IsDuplicate reports whether the item was delivered within the retention
// window. Records older than the window are ignored even before Prune runs.
func (m *Memory) IsDuplicate(item models.Item) bool {
	key := NormalizeURL(item.URL)
	if key == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isLive(key, m.now())
}

// Filter drops items that are duplicates of history or of an earlier item in
// the same slice. Order of the kept items is preserved.
func (m *Memory) Filter(items []models.Item) ([]models.Item, map[models.SourceID]DuplicateStats) {
	now := m.now()
	stats := make(map[models.SourceID]DuplicateStats)
	seen := make(map[string]struct{}, len(items))
	kept := make([]models.Item, 0, len(items))

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, it := range items {
		st := stats[it.Source]
		st.Total++

		key := NormalizeURL(it.URL)
		dup := false
		if key != "" {
			if _, ok := seen[key]; ok {
				dup = true
			} else if m.isLive(key, now) {
				dup = true
			}
			seen[key] = struct{}{}
		}

		if dup {
			st.Duplicates++
		} else {
			st.New++
			kept = append(kept, it)
		}
		stats[it.Source] = st
	}
	return kept, stats
}

// RecordDelivered persists the given URLs as delivered at `at`. Calling it
// twice with the same input leaves the observable state unchanged.
func (m *Memory) RecordDelivered(ctx context.Context, urls []string, at time.Time) error {
	records := make([]models.HistoryRecord, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		key := NormalizeURL(u)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		records = append(records, models.HistoryRecord{NormalizedURL: key, DeliveredAt: at.UTC()})
	}
	if len(records) == 0 {
		return nil
	}

	unlock, err := m.locker.Lock(ctx, lockKey)
	if err != nil {
		return err
	}
	defer unlock()

	// 이미 같은 시각 이후로 기록된 URL 은 다시 쓰지 않는다.
	m.mu.RLock()
	fresh := records[:0]
	for _, r := range records {
		if prev, ok := m.live[r.NormalizedURL]; ok && !r.DeliveredAt.After(prev) {
			continue
		}
		fresh = append(fresh, r)
	}
	m.mu.RUnlock()
	records = fresh
	if len(records) == 0 {
		return nil
	}

	if err := m.store.Append(ctx, records); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	m.mu.Lock()
	for _, r := range records {
		m.remember(r.NormalizedURL, r.DeliveredAt)
	}
	m.mu.Unlock()

	config.Logger.Infof("history recorded %d urls", len(records))
	return nil
}

// Prune physically removes records older than the retention window.
func (m *Memory) Prune(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-m.retention)

	unlock, err := m.locker.Lock(ctx, lockKey)
	if err != nil {
		return 0, err
	}
	defer unlock()

	removed, err := m.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	m.mu.Lock()
	for k, t := range m.live {
		if t.Before(cutoff) {
			delete(m.live, k)
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		config.Logger.Infof("history pruned %d records older than %s", removed, cutoff.Format(time.RFC3339))
	}
	return removed, nil
}

// Len returns the number of URLs currently held in memory, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

func (m *Memory) isLive(key string, now time.Time) bool {
	t, ok := m.live[key]
	return ok && !t.Before(now.Add(-m.retention))
}

func (m *Memory) remember(key string, at time.Time) {
	if key == "" {
		return
	}
	if prev, ok := m.live[key]; !ok || at.After(prev) {
		m.live[key] = at
	}
}
