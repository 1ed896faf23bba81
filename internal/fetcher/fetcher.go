// Package fetcher retrieves a single web page and extracts its content
// into a structured form: markdown text, title, metadata, and the
// images, links and videos found in the page.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/internal/markdown"
	"github.com/linkdigest/linkdigest/pkg/models"
)

// Config holds fetch configuration.
type Config struct {
	Timeout          time.Duration
	UserAgent        string
	MaxContentLength int
	EnableScreenshot bool
}

// Screenshotter captures a rendered screenshot of a page. The fetch
// pipeline treats it as best-effort: a nil screenshotter or a capture
// error never fails the fetch.
type Screenshotter interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Fetcher retrieves pages over HTTP and extracts structured content.
type Fetcher struct {
	config     Config
	screenshot Screenshotter
}

// New creates a Fetcher with the given configuration.
func New(config Config) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "linkdigest/1.0"
	}
	if config.MaxContentLength == 0 {
		config.MaxContentLength = 10000
	}
	return &Fetcher{config: config}
}

// WithScreenshotter attaches an optional screenshot capturer.
func (f *Fetcher) WithScreenshotter(s Screenshotter) *Fetcher {
	f.screenshot = s
	return f
}

// Fetch retrieves the page at the given URL and extracts its content.
// Failures are returned as classified faults: HTTP errors and
// connection failures as network faults, deadline hits as timeouts,
// and unusable page bodies as parse faults.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (models.ContentData, error) {
	slog.Debug("fetching page", "url", pageURL)

	// GitHub blob pages are served raw, which skips HTML conversion.
	fetchURL := markdown.RawVariant(pageURL)

	var (
		body        []byte
		contentType string
		fetchErr    error
	)

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(f.config.UserAgent),
	)
	c.SetRequestTimeout(f.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			fetchErr = ctx.Err()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			fetchErr = faults.New(faults.KindNetwork, "fetch", pageURL,
				fmt.Errorf("HTTP %d: %s", r.StatusCode, http.StatusText(r.StatusCode)))
			return
		}
		fetchErr = err
	})

	if err := c.Visit(fetchURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		slog.Debug("fetch failed", "url", pageURL, "error", fetchErr)
		return models.ContentData{}, faults.Classify(fetchErr, "fetch", pageURL)
	}
	if len(body) == 0 {
		return models.ContentData{}, faults.New(faults.KindParse, "fetch", pageURL,
			fmt.Errorf("empty content"))
	}

	data, err := f.extract(pageURL, string(body), contentType)
	if err != nil {
		return models.ContentData{}, faults.Classify(err, "extract", pageURL)
	}

	if f.config.EnableScreenshot && f.screenshot != nil {
		if img, err := f.screenshot.Capture(ctx, pageURL); err != nil {
			slog.Debug("screenshot capture failed", "url", pageURL, "error", err)
		} else {
			data.Screenshot = img
		}
	}

	slog.Debug("fetch complete", "url", pageURL, "title", data.Title, "size", len(data.Content))
	return data, nil
}

// extract converts the raw page body into structured content.
func (f *Fetcher) extract(pageURL, body, contentType string) (models.ContentData, error) {
	data := models.ContentData{
		URL:          pageURL,
		DeclaredType: contentType,
		FetchedAt:    time.Now().UTC(),
	}

	switch {
	case markdown.Detect(pageURL, contentType, body):
		// Already markdown, no conversion needed.
		data.Content = strings.TrimSpace(body)
		data.Title = markdown.ExtractTitle(body)
	case isHTML(contentType, body):
		extracted, err := extractHTML(pageURL, body)
		if err != nil {
			return models.ContentData{}, err
		}
		data.Title = extracted.title
		data.Content = extracted.markdown
		data.Metadata = extracted.metadata
		data.Specific = extracted.specific
	default:
		data.Content = strings.TrimSpace(body)
	}

	if strings.TrimSpace(data.Content) == "" {
		return models.ContentData{}, fmt.Errorf("empty content after extraction")
	}

	data.Content = truncate(data.Content, f.config.MaxContentLength)
	return data, nil
}

func isHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(trimmed, "<!doctype html") || strings.HasPrefix(trimmed, "<html")
}

const truncationMarker = "\n\n... (content truncated)"

// truncate caps content at max runes, cutting at the last newline
// before the limit when one is reasonably close.
func truncate(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, "\n"); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + truncationMarker
}
