// Package met implements the catalog adapter for the Metropolitan Museum of
// Art collection API.
package met

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edwarddgao/historium/internal/catalog"
)

const (
	sourceID   = "met"
	sourceName = "Metropolitan Museum of Art"

	defaultBaseURL        = "https://collectionapi.metmuseum.org/public/collection/v1/"
	defaultCallsPerSecond = 80
	defaultTimeout        = 30 * time.Second
)

// Config controls the adapter's endpoint and rate.
type Config struct {
	BaseURL        string
	CallsPerSecond float64
	Timeout        time.Duration
}

// Adapter talks to the Met's public collection API: a JSON index of object
// IDs plus one JSON document per object.
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

// Open creates the HTTP client used for the crawl session.
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

// ListIdentifiers fetches the full object ID index.
func (a *Adapter) ListIdentifiers(ctx context.Context) ([]string, error) {
	body, err := a.get(ctx, a.cfg.BaseURL+"objects")
	if err != nil {
		return nil, fmt.Errorf("fetch object index: %w", err)
	}

	var index struct {
		Total     int   `json:"total"`
		ObjectIDs []int `json:"objectIDs"`
	}
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("decode object index: %w", err)
	}

	ids := make([]string, 0, len(index.ObjectIDs))
	for _, id := range index.ObjectIDs {
		ids = append(ids, strconv.Itoa(id))
	}
	return ids, nil
}

// FetchRaw retrieves one object document. A 404 maps to catalog.ErrNotFound;
// objects do disappear from the index between discovery and fetch.
func (a *Adapter) FetchRaw(ctx context.Context, id string) ([]byte, error) {
	body, err := a.get(ctx, a.cfg.BaseURL+"objects/"+id)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (a *Adapter) get(ctx context.Context, url string) ([]byte, error) {
	if a.client == nil {
		return nil, fmt.Errorf("adapter is not open")
	}
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
	return body, nil
}
