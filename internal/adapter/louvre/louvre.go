// Package louvre implements the catalog adapter for the Musée du Louvre
// collection site. Discovery walks the public sitemap index; item payloads
// are the per-artwork JSON documents.
package louvre

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/edwarddgao/historium/internal/catalog"
)

const (
	sourceID   = "louvre"
	sourceName = "Musée du Louvre"

	defaultBaseURL        = "https://collections.louvre.fr/"
	defaultSitemapURL     = "https://collections.louvre.fr/sitemap.xml"
	defaultCallsPerSecond = 80
	defaultTimeout        = 30 * time.Second

	// Artwork URLs carry the ARK name authority number for the Louvre.
	arkMarker = "/ark:/53355/"
)

// Config controls the adapter's endpoints and rate.
type Config struct {
	BaseURL        string
	SitemapURL     string
	CallsPerSecond float64
	Timeout        time.Duration
}

// Adapter discovers artwork ARK identifiers from the sitemap tree and
// fetches each artwork's JSON document.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New builds an Adapter, applying defaults for unset config fields.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.SitemapURL == "" {
		cfg.SitemapURL = defaultSitemapURL
	}
	if cfg.CallsPerSecond <= 0 {
		cfg.CallsPerSecond = defaultCallsPerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{cfg: cfg}
}

// Name implements catalog.Adapter.
func (a *Adapter) Name() string { return sourceID }

// CallsPerSecond implements catalog.Adapter.
func (a *Adapter) CallsPerSecond() float64 { return a.cfg.CallsPerSecond }

// Open creates the HTTP client used for item fetches.
func (a *Adapter) Open(context.Context) error {
	a.client = &http.Client{Timeout: a.cfg.Timeout}
	return nil
}

// Close releases the client's idle connections.
func (a *Adapter) Close() error {
	if a.client != nil {
		a.client.CloseIdleConnections()
		a.client = nil
	}
	return nil
}

// ListIdentifiers walks the sitemap index and every nested sitemap,
// collecting the ARK identifier from each artwork URL. A nested sitemap that
// fails to load is logged by the collector's error hook and skipped; only a
// failure on the index itself is fatal.
func (a *Adapter) ListIdentifiers(ctx context.Context) ([]string, error) {
	c := colly.NewCollector(colly.Async(false))
	c.SetRequestTimeout(a.cfg.Timeout)
	c.IgnoreRobotsTxt = true

	var (
		ids      []string
		indexErr error
	)

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})

	// The index lists nested sitemaps; nested sitemaps list artwork URLs.
	// Visit errors on nested sitemaps (already visited, aborted) are not
	// fatal to discovery.
	c.OnXML("//sitemapindex/sitemap/loc", func(e *colly.XMLElement) {
		_ = e.Request.Visit(strings.TrimSpace(e.Text))
	})
	c.OnXML("//urlset/url/loc", func(e *colly.XMLElement) {
		if id, ok := arkID(strings.TrimSpace(e.Text)); ok {
			ids = append(ids, id)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r.Request.URL.String() == a.cfg.SitemapURL {
			indexErr = err
		}
	})

	if err := c.Visit(a.cfg.SitemapURL); err != nil {
		return nil, catalog.Transient("fetch sitemap index", err)
	}
	c.Wait()

	if indexErr != nil {
		return nil, catalog.Transient("fetch sitemap index", indexErr)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return ids, nil
}

// FetchRaw retrieves one artwork's JSON document by ARK identifier.
func (a *Adapter) FetchRaw(ctx context.Context, id string) ([]byte, error) {
	if a.client == nil {
		return nil, fmt.Errorf("adapter is not open")
	}
	url := fmt.Sprintf("%sark:/53355/%s.json", a.cfg.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, catalog.Transient("http get", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, catalog.ErrNotFound
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, catalog.Transient("http get", fmt.Errorf("status %d from %s", resp.StatusCode, url))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, catalog.Transient("read response", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("artwork %s: response is not JSON", id)
	}
	return body, nil
}

// arkID extracts the ARK identifier from an artwork URL.
func arkID(url string) (string, bool) {
	i := strings.Index(url, arkMarker)
	if i < 0 {
		return "", false
	}
	id := strings.TrimSuffix(url[i+len(arkMarker):], ".json")
	if id == "" {
		return "", false
	}
	return id, true
}
