package core

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the export host for published spreadsheets.
const DefaultBaseURL = "https://docs.google.com/spreadsheets/d"

// PageSource identifies one page of a remote document.
type PageSource struct {
	DocumentID string
	Page       string
}

// URL builds "<base>/<document-id>/export?format=csv&sheet=<page>".
func (s PageSource) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(s.DocumentID) +
		"/export?format=csv&sheet=" + url.QueryEscape(s.Page)
}

// Page is the downloaded text of one page.
type Page struct {
	URL   string
	Text  string
	Bytes int64
}

// Fetcher downloads the CSV export of a page.
type Fetcher interface {
	Fetch(ctx context.Context, src PageSource) (Page, error)
}

// FetcherConfig configures an HTTPFetcher.
type FetcherConfig struct {
	BaseURL           string
	Timeout           time.Duration // applied to the whole request by http.Client
	MaxPageSize       int64         // 0 disables the cap
	RequestsPerSecond float64       // 0 disables pacing
	Burst             int
	UserAgent         string

	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// HTTPFetcher fetches page exports over HTTP, pacing requests to the host.
type HTTPFetcher struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	maxSize   int64
	userAgent string
}

// NewHTTPFetcher creates a fetcher from cfg, filling unset values with
// DefaultBaseURL and a one minute timeout.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPFetcher{
		baseURL:   cfg.BaseURL,
		client:    client,
		limiter:   limiter,
		maxSize:   cfg.MaxPageSize,
		userAgent: cfg.UserAgent,
	}
}

// Fetch downloads src. Any transport failure or non-2xx status is returned
// as a *FetchError; there is no retry.
func (f *HTTPFetcher) Fetch(ctx context.Context, src PageSource) (Page, error) {
	raw := src.URL(f.baseURL)

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Page{}, &FetchError{URL: raw, Err: fmt.Errorf("%w '%s'", ErrBadURL, raw)}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return Page{}, &FetchError{URL: raw, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return Page{}, &FetchError{URL: raw, Err: fmt.Errorf("%w '%s': %v", ErrBadURL, raw, err)}
	}
	req.Header.Set("Accept", "text/csv")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, &FetchError{URL: raw, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, &FetchError{URL: raw, StatusCode: resp.StatusCode}
	}

	text, n, err := readPageBody(resp.Body, f.maxSize)
	if err != nil {
		return Page{}, &FetchError{URL: raw, Err: err}
	}

	return Page{URL: raw, Text: text, Bytes: n}, nil
}
