// CLAUDE:SUMMARY Bounded HTTP fetcher: timeout, body size cap, redirect limit, status errors.
// Package fetch performs the HTTP requests behind the feed and page adapters.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the fetcher.
type Config struct {
	Timeout   time.Duration // HTTP timeout. Default: 30s.
	MaxBytes  int64         // Max response body size. Default: 10MB.
	UserAgent string        // Sent with every request.
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "reservoir/1.0"
	}
}

// Fetcher performs bounded HTTP GETs.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with a redirect cap.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Get fetches url and returns the body, capped at MaxBytes. Non-2xx status
// codes are errors carrying the status in the message.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	if int64(len(body)) > f.config.MaxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, f.config.MaxBytes)
	}
	return body, nil
}
