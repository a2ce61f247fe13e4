package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"domus/config"
)

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) sleep(_ context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	f.t = f.t.Add(d)
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, interval time.Duration) (*RateLimitedClient, *fakeClock) {
	t.Helper()
	c, err := NewRateLimitedClient(&config.CrawlerConfig{
		BaseURL:      srv.URL,
		UserAgent:    "domus-test/1.0",
		WaitInterval: interval,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.now
	c.sleep = clock.sleep
	return c, clock
}

func TestFetchWaitsForMinInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, clock := newTestClient(t, srv, 3*time.Second)
	ctx := context.Background()

	if _, err := c.Fetch(ctx, "/a", nil); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Fatalf("first request should not sleep, slept %v", clock.sleeps)
	}

	clock.t = clock.t.Add(time.Second)
	if _, err := c.Fetch(ctx, "/b", nil); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 2*time.Second {
		t.Fatalf("expected one 2s sleep, got %v", clock.sleeps)
	}

	clock.t = clock.t.Add(5 * time.Second)
	if _, err := c.Fetch(ctx, "/c", nil); err != nil {
		t.Fatalf("third fetch: %v", err)
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("no sleep expected after interval elapsed, got %v", clock.sleeps)
	}
}

func TestFetchSharedClockAcrossURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, clock := newTestClient(t, srv, time.Second)
	for _, p := range []string{"/search", "/detail/1", "/detail/2"} {
		if _, err := c.Fetch(context.Background(), p, nil); err != nil {
			t.Fatalf("fetch %s: %v", p, err)
		}
	}
	if len(clock.sleeps) != 2 {
		t.Fatalf("expected 2 sleeps across endpoints, got %v", clock.sleeps)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, 0)
	_, err := c.Fetch(context.Background(), "/missing", nil)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", te.StatusCode)
	}
}

func TestFetchSendsUserAgentAndParams(t *testing.T) {
	var gotUA, gotPage, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPage = r.URL.Query().Get("page")
		gotPath = r.URL.Path
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, 0)
	body, err := c.Fetch(context.Background(), "/jj/bukken/ichiran/", url.Values{"page": {"2"}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
	if gotUA != "domus-test/1.0" {
		t.Fatalf("unexpected user agent %q", gotUA)
	}
	if gotPage != "2" || gotPath != "/jj/bukken/ichiran/" {
		t.Fatalf("unexpected request path=%q page=%q", gotPath, gotPage)
	}
}

func TestResolveKeepsBaseOrigin(t *testing.T) {
	c, err := NewRateLimitedClient(&config.CrawlerConfig{BaseURL: "https://suumo.jp"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Resolve("/ms/chuko/fukuoka/sc_fukuokashihakata/nc_74582921/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://suumo.jp/ms/chuko/fukuoka/sc_fukuokashihakata/nc_74582921/" {
		t.Fatalf("unexpected url %s", got)
	}
}
