package summarizer

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"ai-letter/config"
	"ai-letter/models"
)

// MaxContentRunes bounds the article body sent to the reasoning service.
const MaxContentRunes = 30000

// ContentLoader returns the text to summarize for an article. It never fails:
// when the body is unavailable it falls back to the description.
type ContentLoader interface {
	Load(ctx context.Context, a models.CuratedArticle) string
}

// PageFetcher returns an article page as markdown.
type PageFetcher interface {
	FetchMarkdown(ctx context.Context, url string, render bool) (string, error)
}

// FetchLoader fetches the full article as markdown.
type FetchLoader struct {
	fetcher PageFetcher
	render  map[models.SourceID]bool
	timeout time.Duration
}

func NewFetchLoader(f PageFetcher, srcs []config.SourceConfig, timeout time.Duration) *FetchLoader {
	l := &FetchLoader{fetcher: f, render: make(map[models.SourceID]bool), timeout: timeout}
	for _, s := range srcs {
		l.render[models.SourceID(s.ID)] = s.RenderContent
	}
	return l
}

func (l *FetchLoader) Load(ctx context.Context, a models.CuratedArticle) string {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	md, err := l.fetcher.FetchMarkdown(ctx, a.URL, l.render[a.Source])
	if err != nil || strings.TrimSpace(md) == "" {
		if err != nil {
			config.Logger.Warnf("no content for %s, using description as fallback: %v", a.URL, err)
		}
		return fallbackContent(a)
	}
	if utf8.RuneCountInString(md) > MaxContentRunes {
		md = string([]rune(md)[:MaxContentRunes])
	}
	return md
}

func fallbackContent(a models.CuratedArticle) string {
	if d := strings.TrimSpace(a.Description); d != "" {
		return d
	}
	return "No content available"
}
