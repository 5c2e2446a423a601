package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-letter/config"
	"ai-letter/metrics"
	"ai-letter/models"
)

// ErrSourceUnavailable wraps any adapter failure. The run continues with zero
// items for that source.
var ErrSourceUnavailable = errors.New("source unavailable")

// Adapter 는 하나의 소스에서 후보 기사 목록을 가져온다.
type Adapter interface {
	ID() models.SourceID
	URL() string
	Fetch(ctx context.Context) ([]models.Item, error)
}

// Result is one adapter's outcome inside FetchAll.
type Result struct {
	Source    models.SourceID
	URL       string
	FetchedAt time.Time
	Items     []models.Item
	Err       error
}

// Snapshot converts the result to its persisted form.
func (r Result) Snapshot(runID string) models.CrawlSnapshot {
	s := models.CrawlSnapshot{
		RunID:         runID,
		Source:        r.Source,
		URL:           r.URL,
		Timestamp:     r.FetchedAt,
		ArticlesCount: len(r.Items),
		Articles:      r.Items,
	}
	if s.Articles == nil {
		s.Articles = []models.Item{}
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// FetchAll runs every adapter concurrently. It never fails as a whole: a
// failing adapter yields a Result with Err wrapping ErrSourceUnavailable and no
// items. Results keep the adapter order.
func FetchAll(ctx context.Context, adapters []Adapter) []Result {
	results := make([]Result, len(adapters))

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			items, err := a.Fetch(ctx)
			res := Result{Source: a.ID(), URL: a.URL(), FetchedAt: time.Now()}
			if err != nil {
				res.Err = fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, a.ID(), err)
				metrics.SourceFailures.WithLabelValues(string(a.ID())).Inc()
				config.WarnWithFields("source fetch failed", config.Fields{
					"source": a.ID(),
					"url":    a.URL(),
					"error":  err.Error(),
				})
			} else {
				res.Items = items
				metrics.SourceItems.WithLabelValues(string(a.ID())).Add(float64(len(items)))
				config.InfoWithFields("source fetched", config.Fields{
					"source": a.ID(),
					"count":  len(items),
				})
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// NewFromConfig builds adapters for the configured sources.
func NewFromConfig(cfgs []config.SourceConfig, client *http.Client, r HTMLRenderer) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(cfgs))
	for _, c := range cfgs {
		id := models.SourceID(c.ID)
		switch c.Kind {
		case "rss":
			adapters = append(adapters, NewRSSAdapter(id, c.URL, c.Limit, client))
		case "listing":
			if c.Listing.Item == "" {
				return nil, fmt.Errorf("source %s: listing.item selector is required", c.ID)
			}
			var rr HTMLRenderer
			if c.Render {
				if r == nil {
					return nil, fmt.Errorf("source %s: render requested but no renderer configured", c.ID)
				}
				rr = r
			}
			adapters = append(adapters, NewListingAdapter(id, c.URL, c.Limit, c.Listing, client, rr))
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", c.ID, c.Kind)
		}
	}
	return adapters, nil
}
