package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"elections-scraper/internal/config"
	"elections-scraper/internal/observability"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTP.MaxRetries = 2
	cfg.Backoff = config.BackoffConfig{MinMS: 1, MaxMS: 5, JitterPct: 0}
	cfg.RateLimit.RPM = 60000
	return cfg
}

func TestBackoffCalculation(t *testing.T) {
	cfg := &config.Config{
		Backoff: config.BackoffConfig{
			MinMS:     250,
			MaxMS:     2000,
			JitterPct: 20,
		},
		RateLimit: config.RateLimitConfig{MaxConcurrentPerHost: 1, RPM: 60},
	}

	fetcher := NewFetcher(cfg, observability.NewNop())

	for attempt := 1; attempt <= 5; attempt++ {
		backoff := fetcher.calculateBackoff(attempt)
		if backoff < cfg.GetBackoffMin() || backoff > cfg.GetBackoffMax()*2 {
			t.Errorf("Backoff out of expected range: %v", backoff)
		}
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<table><tr><td>ok</td></tr></table>"))
	}))
	defer srv.Close()

	resp, err := NewFetcher(testConfig(), observability.NewNop()).Fetch(context.Background(), srv.URL+"/pls/ps2017nss/ps311")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(resp.Body), "ok") {
		t.Errorf("unexpected response: %d %q", resp.StatusCode, resp.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewFetcher(testConfig(), observability.NewNop()).Fetch(context.Background(), srv.URL+"/missing")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
}

func TestFetchExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.HTTP.RespectRobots = false
	_, err := NewFetcher(cfg, observability.NewNop()).Fetch(context.Background(), srv.URL+"/ps32")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected wrapped 500 *StatusError, got %v", err)
	}
}

func TestFetchHonoursRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNop())

	if _, err := f.Fetch(context.Background(), srv.URL+"/private/page"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/public"); err != nil {
		t.Errorf("public page: %v", err)
	}
}

func TestParseRobots(t *testing.T) {
	robots := `
# comment
User-agent: Googlebot
Disallow: /google-only

User-agent: elections-scraper
User-agent: other
Disallow: /pls/ps2017/  # old election
Allow: /pls/ps2017/ps3
Disallow:

User-agent: *
Disallow: /tmp
`
	tests := []struct {
		agent    string
		expected []robotsRule
	}{
		{"elections-scraper/1.0 (+https://www.volby.cz)", []robotsRule{
			{path: "/pls/ps2017/"},
			{path: "/pls/ps2017/ps3", allow: true},
		}},
		{"curl/8.0", []robotsRule{{path: "/tmp"}}},
	}

	for _, tt := range tests {
		got := parseRobots(strings.NewReader(robots), tt.agent)
		if len(got) != len(tt.expected) {
			t.Fatalf("parseRobots(%q) = %v, want %v", tt.agent, got, tt.expected)
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("parseRobots(%q)[%d] = %v, want %v", tt.agent, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestRobotsLongestMatchWins(t *testing.T) {
	robots := "User-agent: *\nDisallow: /\nAllow: /pls/\nDisallow: /pls/ps2017nss/private\n"
	rules := &RobotsTxt{rules: parseRobots(strings.NewReader(robots), "elections-scraper")}

	tests := []struct {
		uri        string
		disallowed bool
	}{
		{"/", true},
		{"/admin", true},
		{"/pls/ps2017nss/ps32?xjazyk=CZ", false},
		{"/pls/ps2017nss/private/x", true},
	}

	for _, tt := range tests {
		if got := rules.disallows(tt.uri); got != tt.disallowed {
			t.Errorf("disallows(%q) = %v, want %v", tt.uri, got, tt.disallowed)
		}
	}

	tie := &RobotsTxt{rules: []robotsRule{{path: "/pls/"}, {path: "/pls/", allow: true}}}
	if tie.disallows("/pls/ps32") {
		t.Errorf("Allow should win an equal-length tie")
	}
}

func TestFetchAllowOverridesDisallowRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\nAllow: /pls/\n"))
			return
		}
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNop())

	if _, err := f.Fetch(context.Background(), srv.URL+"/pls/ps2017nss/ps32"); err != nil {
		t.Errorf("allowed page: %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/other"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
}

func TestRobotsCacheUnreachableHostAllows(t *testing.T) {
	rc := NewRobotsCache(time.Hour, "elections-scraper")
	target, _ := url.Parse("http://127.0.0.1:1/ps32")

	allowed, err := rc.IsAllowed(context.Background(), target, &http.Client{Timeout: time.Second})
	if err != nil || !allowed {
		t.Errorf("IsAllowed = %v, %v; want true, nil", allowed, err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 600)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		release, err := rl.Acquire(ctx, "example.com")
		if err != nil {
			t.Fatalf("Rate limiter error: %v", err)
		}
		release()
	}
	elapsed := time.Since(start)

	// 600 rpm spaces requests 100ms apart; the first one starts immediately.
	if elapsed < 350*time.Millisecond {
		t.Errorf("5 requests took %v, expected about 400ms of spacing", elapsed)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1, 60)
	release, err := rl.Acquire(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := rl.Acquire(ctx, "example.com"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
