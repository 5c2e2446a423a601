package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ai-letter/models"
)

var ErrNotFound = errors.New("artifact not found")

// TimestampLayout is the run timestamp carried in file names (YYMMDD_HHMM).
const TimestampLayout = "060102_1504"

// Store persists the per-run artifacts. FileStore writes JSON files,
// repositories.ArtifactRepository writes MongoDB documents.
type Store interface {
	SaveCrawl(ctx context.Context, at time.Time, snaps []models.CrawlSnapshot) error
	SaveCuration(ctx context.Context, snap models.CurationSnapshot) error
	SaveDigest(ctx context.Context, art models.DigestArtifact) error
	LatestDigest(ctx context.Context) (*models.DigestArtifact, error)
	ListDigests(ctx context.Context, limit int) ([]models.Digest, error)
}

// FileStore lays artifacts out under dir:
//
//	crawled_data/crawler_results_<ts>.json
//	curated/curated_<ts>.json
//	newsletters/newsletter_<ts>.json, newsletter_<ts>.txt
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) SaveCrawl(ctx context.Context, at time.Time, snaps []models.CrawlSnapshot) error {
	name := fmt.Sprintf("crawler_results_%s.json", at.Format(TimestampLayout))
	return s.writeJSON(filepath.Join("crawled_data", name), snaps)
}

func (s *FileStore) SaveCuration(ctx context.Context, snap models.CurationSnapshot) error {
	name := fmt.Sprintf("curated_%s.json", snap.Timestamp.Format(TimestampLayout))
	return s.writeJSON(filepath.Join("curated", name), snap)
}

// SaveDigest writes the text rendering first and the JSON last, so a listed
// JSON file always has its text next to it.
func (s *FileStore) SaveDigest(ctx context.Context, art models.DigestArtifact) error {
	base := "newsletter_" + art.Digest.GeneratedAt.Format(TimestampLayout)
	if err := s.writeFile(filepath.Join("newsletters", base+".txt"), []byte(art.Text)); err != nil {
		return err
	}
	return s.writeJSON(filepath.Join("newsletters", base+".json"), art.Digest)
}

func (s *FileStore) LatestDigest(ctx context.Context) (*models.DigestArtifact, error) {
	files, err := s.digestFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNotFound
	}
	return s.readDigest(files[0])
}

func (s *FileStore) ListDigests(ctx context.Context, limit int) ([]models.Digest, error) {
	files, err := s.digestFiles()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	out := make([]models.Digest, 0, len(files))
	for _, f := range files {
		art, err := s.readDigest(f)
		if err != nil {
			return nil, err
		}
		out = append(out, art.Digest)
	}
	return out, nil
}

// digestFiles returns newsletter JSON files, newest first.
func (s *FileStore) digestFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "newsletters", "newsletter_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

func (s *FileStore) readDigest(jsonPath string) (*models.DigestArtifact, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read digest: %w", err)
	}
	var art models.DigestArtifact
	if err := json.Unmarshal(data, &art.Digest); err != nil {
		return nil, fmt.Errorf("decode digest %s: %w", jsonPath, err)
	}
	text, err := os.ReadFile(strings.TrimSuffix(jsonPath, ".json") + ".txt")
	if err == nil {
		art.Text = string(text)
	}
	return &art, nil
}

func (s *FileStore) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return s.writeFile(rel, data)
}

func (s *FileStore) writeFile(rel string, data []byte) error {
	path := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
