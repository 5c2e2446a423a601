package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ai-letter/config"
	"ai-letter/models"
)

// Store persists HistoryRecords. Implementations: MemoryStore, FileStore and
// repositories.HistoryRepository (MongoDB).
type Store interface {
	Load(ctx context.Context) ([]models.HistoryRecord, error)
	Append(ctx context.Context, records []models.HistoryRecord) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []models.HistoryRecord
}

func NewMemoryStore(records ...models.HistoryRecord) *MemoryStore {
	return &MemoryStore{records: append([]models.HistoryRecord(nil), records...)}
}

func (s *MemoryStore) Load(ctx context.Context) ([]models.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HistoryRecord(nil), s.records...), nil
}

func (s *MemoryStore) Append(ctx context.Context, records []models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if r.DeliveredAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// FileStore keeps records in a single JSON file. Writes go through a temp file
// and rename so a crash never leaves a half-written history behind.
type FileStore struct {
	path string
}

type fileDocument struct {
	Records []models.HistoryRecord `json:"records"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns no records when the file does not exist yet (first run).
func (s *FileStore) Load(ctx context.Context) ([]models.HistoryRecord, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Records, nil
}

func (s *FileStore) Append(ctx context.Context, records []models.HistoryRecord) error {
	doc, err := s.read()
	if err != nil {
		// 손상된 파일은 어차피 읽을 수 없으므로 백업 후 새로 시작한다.
		config.Logger.Warnf("history file unreadable, starting a new one (path=%s): %v", s.path, err)
		if rerr := os.Rename(s.path, s.path+".corrupt"); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			return fmt.Errorf("backup corrupt history: %w", rerr)
		}
		doc = fileDocument{}
	}
	doc.Records = append(doc.Records, records...)
	return s.write(doc)
}

func (s *FileStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	doc, err := s.read()
	if err != nil {
		return 0, err
	}
	kept := make([]models.HistoryRecord, 0, len(doc.Records))
	for _, r := range doc.Records {
		if !r.DeliveredAt.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	removed := len(doc.Records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	doc.Records = kept
	return removed, s.write(doc)
}

func (s *FileStore) read() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read history %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode history %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
