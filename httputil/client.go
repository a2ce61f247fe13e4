package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"domus/config"
)

// TransportError is returned for any non-2xx response. The crawler does not
// retry it.
type TransportError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// RateLimitedClient issues GET requests against one origin, at most one
// request per MinInterval. The clock belongs to the instance, so independent
// crawls with separate clients do not throttle each other.
type RateLimitedClient struct {
	base        *url.URL
	userAgent   string
	minInterval time.Duration
	client      *http.Client

	mu          sync.Mutex
	lastRequest time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimitedClient builds a client for cfg.BaseURL that waits
// cfg.WaitInterval between requests.
func NewRateLimitedClient(cfg *config.CrawlerConfig) (*RateLimitedClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RateLimitedClient{
		base:        base,
		userAgent:   cfg.UserAgent,
		minInterval: cfg.WaitInterval,
		client:      &http.Client{Timeout: timeout},
		now:         time.Now,
		sleep:       sleepContext,
	}, nil
}

func (c *RateLimitedClient) MinInterval() time.Duration {
	return c.minInterval
}

// Resolve turns a site path (or absolute URL) plus query params into the URL
// that Fetch requests.
func (c *RateLimitedClient) Resolve(target string, params url.Values) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}
	u := c.base.ResolveReference(ref)
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q[k] = append([]string(nil), vs...)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Fetch waits out the remainder of the minimum interval, performs the GET
// and returns the body.
func (c *RateLimitedClient) Fetch(ctx context.Context, target string, params url.Values) ([]byte, error) {
	fullURL, err := c.Resolve(target, params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastRequest.IsZero() {
		if wait := c.minInterval - c.now().Sub(c.lastRequest); wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	defer func() { c.lastRequest = c.now() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{URL: fullURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fullURL, err)
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
