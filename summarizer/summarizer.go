package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-letter/config"
	"ai-letter/metrics"
	"ai-letter/models"
	"ai-letter/reasoning"
)

// ErrInvalidSummary marks an answer without 3 to 5 non-empty bullet points.
var ErrInvalidSummary = errors.New("invalid summary")

const (
	MinBulletPoints = 3
	MaxBulletPoints = 5
)

// Summarizer 는 큐레이션된 기사를 병렬로 요약하고 원래 순서대로 모은다.
type Summarizer struct {
	reasoner reasoning.Reasoner
	loader   ContentLoader
	limit    int
	attempts int
	timeout  time.Duration
}

func New(r reasoning.Reasoner, loader ContentLoader, cfg config.SummarizationConfig) *Summarizer {
	s := &Summarizer{
		reasoner: r,
		loader:   loader,
		limit:    cfg.Concurrency,
		attempts: cfg.MaxAttempts,
		timeout:  cfg.Timeout,
	}
	if s.limit <= 0 {
		s.limit = 6
	}
	if s.attempts <= 0 {
		s.attempts = 2
	}
	return s
}

// Outcome holds the summaries in input order and the articles that were omitted.
type Outcome struct {
	Summaries []models.ArticleSummary
	Omitted   []models.CuratedArticle
}

// SummarizeAll fans out one call per article, bounded by the worker limit, and
// fans in by input index. A failing article never cancels its siblings.
func (s *Summarizer) SummarizeAll(ctx context.Context, articles []models.CuratedArticle) Outcome {
	slots := make([]*models.ArticleSummary, len(articles))

	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, a := range articles {
		g.Go(func() error {
			sum, err := s.summarizeOne(ctx, a)
			if err != nil {
				metrics.SummaryFailures.Inc()
				config.WarnWithFields("article omitted from digest", config.Fields{
					"category": a.Category,
					"url":      a.URL,
					"error":    err.Error(),
				})
				return nil
			}
			slots[i] = sum
			return nil
		})
	}
	_ = g.Wait()

	var out Outcome
	for i, sum := range slots {
		if sum == nil {
			out.Omitted = append(out.Omitted, articles[i])
			continue
		}
		out.Summaries = append(out.Summaries, *sum)
	}
	return out
}

func (s *Summarizer) summarizeOne(ctx context.Context, a models.CuratedArticle) (*models.ArticleSummary, error) {
	content := s.loader.Load(ctx, a)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			metrics.SummaryRetries.Inc()
			config.Logger.Infof("retrying summary (%d/%d): %s", attempt, s.attempts, a.URL)
		}

		points, err := s.call(ctx, a, content)
		if err == nil {
			// 제목/URL/소스는 항상 큐레이션 결과(신뢰 데이터)에서 가져온다.
			return &models.ArticleSummary{
				Title:        a.Title,
				URL:          a.URL,
				Source:       a.Source,
				BulletPoints: points,
			}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("summarize %s after %d attempts: %w", a.URL, s.attempts, lastErr)
}

func (s *Summarizer) call(ctx context.Context, a models.CuratedArticle, content string) ([]string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	resp, err := s.reasoner.Summarize(ctx, reasoning.SummaryRequest{
		Title:   a.Title,
		Source:  string(a.Source),
		Content: content,
	})
	if err != nil {
		return nil, err
	}
	return ValidatePoints(resp.BulletPoints)
}

// ValidatePoints trims the points, drops blank ones and checks the 3..5 bound.
func ValidatePoints(points []string) ([]string, error) {
	out := make([]string, 0, len(points))
	for _, p := range points {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) < MinBulletPoints || len(out) > MaxBulletPoints {
		return nil, fmt.Errorf("%w: %d bullet points", ErrInvalidSummary, len(out))
	}
	return out, nil
}
