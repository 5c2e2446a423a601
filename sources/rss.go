package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ai-letter/models"
)

// RSSAdapter reads an RSS/Atom feed.
type RSSAdapter struct {
	id     models.SourceID
	url    string
	limit  int
	client *http.Client
}

func NewRSSAdapter(id models.SourceID, url string, limit int, client *http.Client) *RSSAdapter {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &RSSAdapter{id: id, url: url, limit: limit, client: client}
}

func (a *RSSAdapter) ID() models.SourceID { return a.id }
func (a *RSSAdapter) URL() string         { return a.url }

// Fetch returns the first `limit` feed items (all when limit <= 0).
func (a *RSSAdapter) Fetch(ctx context.Context) ([]models.Item, error) {
	body, err := Get(ctx, a.client, a.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RSS feed: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(cleanControlCharacters(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	items := make([]models.Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}

		var published time.Time
		if it.PublishedParsed != nil {
			published = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			published = *it.UpdatedParsed
		}

		items = append(items, models.Item{
			Source:      a.id,
			Title:       title,
			URL:         link,
			PublishedAt: published,
			Description: Truncate(PlainText(it.Description), DescriptionLimit),
		})
	}

	if a.limit > 0 && len(items) > a.limit {
		items = items[:a.limit]
	}
	return items, nil
}
