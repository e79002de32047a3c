// internal/tile/fetcher.go - Tile fetching implementation
package tile

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Request represents a request for a specific tile
type Request struct {
	Key     Key
	URL     string
	Headers map[string]string
}

// Response represents the response from a tile server
type Response struct {
	Request    *Request
	Data       []byte
	StatusCode int
	FetchTime  time.Duration
	Error      error
}

// Fetcher defines the interface for fetching tiles from remote servers
type Fetcher interface {
	Fetch(ctx context.Context, request *Request) (*Response, error)
}

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	Timeout          time.Duration
	Headers          map[string]string
	APIKey           string
	ProxyURL         string
	MaxIdleConns     int
	IdleConnTimeout  time.Duration
	DisableKeepAlive bool

	// RequestsPerSecond rate limits outgoing fetches; 0 disables.
	RequestsPerSecond float64
}

// HTTPFetcher implements the Fetcher interface using HTTP requests
type HTTPFetcher struct {
	client  *http.Client
	config  FetcherConfig
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a new HTTP-based tile fetcher
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlive,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	f := &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		config: cfg,
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return f
}

// Fetch retrieves a single tile from the configured server. Non-200 and
// network errors come back on the Response; the tile becomes debug-only
// and is never retried automatically.
func (f *HTTPFetcher) Fetch(ctx context.Context, request *Request) (*Response, error) {
	start := time.Now()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return &Response{Request: request, Error: err}, err
		}
	}

	req, err := f.buildHTTPRequest(ctx, request)
	if err != nil {
		return &Response{
			Request: request,
			Error:   fmt.Errorf("failed to build HTTP request: %w", err),
		}, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &Response{
			Request:   request,
			FetchTime: time.Since(start),
			Error:     fmt.Errorf("HTTP request failed: %w", err),
		}, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return &Response{
				Request:    request,
				StatusCode: resp.StatusCode,
				FetchTime:  time.Since(start),
				Error:      fmt.Errorf("failed to create gzip reader: %w", err),
			}, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return &Response{
			Request:    request,
			StatusCode: resp.StatusCode,
			FetchTime:  time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}, err
	}

	response := &Response{
		Request:    request,
		Data:       data,
		StatusCode: resp.StatusCode,
		FetchTime:  time.Since(start),
	}

	if resp.StatusCode != http.StatusOK {
		response.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return response, response.Error
	}

	return response, nil
}

// buildHTTPRequest constructs an HTTP request from a tile request
func (f *HTTPFetcher) buildHTTPRequest(ctx context.Context, tileReq *Request) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileReq.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Accept", "application/x-protobuf")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("User-Agent", "mvt-overlay/1.0")

	if f.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.config.APIKey)
	}

	for key, value := range f.config.Headers {
		req.Header.Set(key, value)
	}

	for key, value := range tileReq.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// BuildTileURL expands a URL template with tile coordinates. Templates
// use {z}, {x}, {y} placeholders; a template without placeholders gets
// the "/z/x/y.pbf" suffix appended.
func BuildTileURL(template string, key Key) string {
	if strings.Contains(template, "{z}") {
		out := strings.ReplaceAll(template, "{z}", fmt.Sprintf("%d", key.Z))
		out = strings.ReplaceAll(out, "{x}", fmt.Sprintf("%d", key.X))
		out = strings.ReplaceAll(out, "{y}", fmt.Sprintf("%d", key.Y))
		return out
	}
	return fmt.Sprintf("%s/%d/%d/%d.pbf", strings.TrimSuffix(template, "/"), key.Z, key.X, key.Y)
}
