package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"ai-letter/config"
	"ai-letter/models"
)

// HTMLRenderer renders pages that build their content with JavaScript.
type HTMLRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ListingAdapter scrapes an HTML listing page with CSS selectors.
type ListingAdapter struct {
	id       models.SourceID
	url      string
	limit    int
	sel      config.ListingConfig
	client   *http.Client
	renderer HTMLRenderer // nil 이면 일반 HTTP GET
	now      func() time.Time
}

func NewListingAdapter(id models.SourceID, pageURL string, limit int, sel config.ListingConfig, client *http.Client, r HTMLRenderer) *ListingAdapter {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &ListingAdapter{
		id:       id,
		url:      pageURL,
		limit:    limit,
		sel:      sel,
		client:   client,
		renderer: r,
		now:      time.Now,
	}
}

func (a *ListingAdapter) ID() models.SourceID { return a.id }
func (a *ListingAdapter) URL() string         { return a.url }

func (a *ListingAdapter) Fetch(ctx context.Context) ([]models.Item, error) {
	doc, err := a.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(a.url)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %s: %w", a.url, err)
	}

	var items []models.Item
	doc.Find(a.sel.Item).EachWithBreak(func(i int, s *goquery.Selection) bool {
		item, ok := a.parseEntry(s, base)
		if ok {
			items = append(items, item)
		}
		return a.limit <= 0 || len(items) < a.limit
	})

	if len(items) == 0 {
		config.Logger.Warnf("listing %s matched no items (selector=%q)", a.id, a.sel.Item)
	}
	return items, nil
}

func (a *ListingAdapter) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	var page string
	if a.renderer != nil {
		html, err := a.renderer.Render(ctx, a.url)
		if err != nil {
			return nil, fmt.Errorf("render listing: %w", err)
		}
		page = html
	} else {
		body, err := Get(ctx, a.client, a.url)
		if err != nil {
			return nil, fmt.Errorf("request listing: %w", err)
		}
		page = string(body)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (a *ListingAdapter) parseEntry(s *goquery.Selection, base *url.URL) (models.Item, bool) {
	titleSel := find(s, a.sel.Title)
	title := strings.Join(strings.Fields(titleSel.Text()), " ")

	linkSel := find(s, a.sel.Link)
	href, _ := linkSel.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return models.Item{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return models.Item{}, false
	}

	item := models.Item{
		Source: a.id,
		Title:  title,
		URL:    base.ResolveReference(ref).String(),
	}

	if a.sel.Date != "" {
		dateSel := find(s, a.sel.Date)
		raw, ok := dateSel.Attr("datetime")
		if !ok {
			raw = dateSel.Text()
		}
		item.PublishedAt = a.parseDate(strings.TrimSpace(raw))
	}
	if a.sel.Description != "" {
		item.Description = Truncate(PlainText(find(s, a.sel.Description).Text()), DescriptionLimit)
	}
	return item, true
}

// parseDate uses the configured layout, otherwise dateparse. Layouts without a
// year (e.g. "01-02 15:04") get the current year.
func (a *ListingAdapter) parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if a.sel.DateLayout != "" {
		t, err := time.ParseInLocation(a.sel.DateLayout, raw, time.Local)
		if err != nil {
			return time.Time{}
		}
		if t.Year() == 0 {
			now := a.now()
			t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, t.Location())
		}
		return t
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// find returns the first match of selector under s, or s itself for an empty selector.
func find(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s
	}
	return s.Find(selector).First()
}
