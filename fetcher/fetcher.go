package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/advancedlogic/GoOse/pkg/goose"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"ai-letter/config"
	"ai-letter/sources"
)

var ErrEmptyContent = errors.New("no content extracted")

// Page 는 기사 페이지 하나의 추출 결과다.
type Page struct {
	URL       string
	Markdown  string
	Extractor string // trafilatura | readability | goose | raw
}

// PageFetcher downloads (or renders) an article and extracts its main content
// as markdown, so headings survive for the introduction heuristic.
type PageFetcher struct {
	client   *http.Client
	renderer sources.HTMLRenderer
	md       *converter.Converter
}

func New(client *http.Client, r sources.HTMLRenderer) *PageFetcher {
	if client == nil {
		client = sources.NewHTTPClient(0)
	}
	return &PageFetcher{
		client:   client,
		renderer: r,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// FetchMarkdown returns the main content of pageURL as markdown. render uses the
// headless browser when one is configured.
func (f *PageFetcher) FetchMarkdown(ctx context.Context, pageURL string, render bool) (string, error) {
	page, err := f.Fetch(ctx, pageURL, render)
	if err != nil {
		return "", err
	}
	return page.Markdown, nil
}

func (f *PageFetcher) Fetch(ctx context.Context, pageURL string, render bool) (*Page, error) {
	rawHTML, err := f.download(ctx, pageURL, render)
	if err != nil {
		return nil, err
	}
	page, err := f.Extract(rawHTML, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pageURL, err)
	}
	return page, nil
}

func (f *PageFetcher) download(ctx context.Context, pageURL string, render bool) (string, error) {
	if render && f.renderer != nil {
		h, err := f.renderer.Render(ctx, pageURL)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", pageURL, err)
		}
		return h, nil
	}
	body, err := sources.Get(ctx, f.client, pageURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Extract tries trafilatura, then readability, then goose, and finally converts
// the whole document.
func (f *PageFetcher) Extract(rawHTML, pageURL string) (*Page, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, ErrEmptyContent
	}

	if md := f.withTrafilatura(rawHTML, pageURL); md != "" {
		return &Page{URL: pageURL, Markdown: md, Extractor: "trafilatura"}, nil
	}
	if md := f.withReadability(rawHTML, pageURL); md != "" {
		return &Page{URL: pageURL, Markdown: md, Extractor: "readability"}, nil
	}
	if text := withGoose(rawHTML, pageURL); text != "" {
		return &Page{URL: pageURL, Markdown: text, Extractor: "goose"}, nil
	}
	if md := f.toMarkdown(rawHTML, pageURL); md != "" {
		return &Page{URL: pageURL, Markdown: md, Extractor: "raw"}, nil
	}
	return nil, ErrEmptyContent
}

func (f *PageFetcher) withTrafilatura(rawHTML, pageURL string) string {
	opts := trafilatura.Options{EnableFallback: true}
	if u, err := url.Parse(pageURL); err == nil {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil || result == nil || result.ContentNode == nil {
		if err != nil {
			config.Logger.Debugf("trafilatura failed (url=%s): %v", pageURL, err)
		}
		return ""
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, result.ContentNode); err != nil {
		return strings.TrimSpace(result.ContentText)
	}
	if md := f.toMarkdown(buf.String(), pageURL); md != "" {
		return md
	}
	return strings.TrimSpace(result.ContentText)
}

func (f *PageFetcher) withReadability(rawHTML, pageURL string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	u, _ := url.Parse(pageURL)
	article, err := readability.FromDocument(doc, u)
	if err != nil {
		config.Logger.Debugf("readability failed (url=%s): %v", pageURL, err)
		return ""
	}
	if md := f.toMarkdown(article.Content, pageURL); md != "" {
		return md
	}
	return strings.TrimSpace(article.TextContent)
}

func withGoose(rawHTML, pageURL string) string {
	article, err := goose.New().ExtractFromRawHTML(rawHTML, pageURL)
	if err != nil || article == nil {
		return ""
	}
	return strings.TrimSpace(article.CleanedText)
}

func (f *PageFetcher) toMarkdown(fragment, pageURL string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	md, err := f.md.ConvertString(fragment, converter.WithDomain(pageURL))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}
