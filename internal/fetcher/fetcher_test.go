package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/fallback"
	"github.com/datengrube/context-orchestrator/internal/resourcestore"
)

func newTestFetcher(t *testing.T, opts Options) (*Fetcher, *resourcestore.Store) {
	t.Helper()
	cache, err := resourcestore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })

	fallbacks, err := fallback.Load(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatal(err)
	}

	f := New(cache, fallbacks, opts)
	f.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return f, cache
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Root\n\nSee [guide](guide.md) and [guide again](guide.md).\n"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Options{})
	result := f.Fetch(context.Background(), server.URL+"/docs/root.md")

	if !result.Success {
		t.Fatalf("Success = false, errorKind = %s", result.ErrorKind)
	}
	if result.Resource.FetchStatus != domain.FetchSuccess {
		t.Errorf("FetchStatus = %s, want success", result.Resource.FetchStatus)
	}
	if len(result.Resource.LinksFound) != 1 {
		t.Errorf("LinksFound = %v, want one deduplicated link", result.Resource.LinksFound)
	}
	if result.Resource.LinksFound[0] != server.URL+"/docs/guide.md" {
		t.Errorf("link = %q, want resolved guide.md", result.Resource.LinksFound[0])
	}
	if result.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", result.RetryCount)
	}
}

func TestFetch_CacheHitIdempotence(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("# Doc"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Options{})
	id := server.URL + "/doc.md"

	first := f.Fetch(context.Background(), id)
	second := f.Fetch(context.Background(), id)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
	if first.Resource.FetchStatus != domain.FetchSuccess {
		t.Errorf("first status = %s, want success", first.Resource.FetchStatus)
	}
	if second.Resource.FetchStatus != domain.FetchCached {
		t.Errorf("second status = %s, want cached", second.Resource.FetchStatus)
	}
	if second.Resource.Content != first.Resource.Content {
		t.Error("cached content should match original")
	}
}

func TestFetch_RetryThenSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Options{})
	result := f.Fetch(context.Background(), server.URL+"/flaky.md")

	if !result.Success {
		t.Fatalf("Success = false, errorKind = %s", result.ErrorKind)
	}
	if result.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", result.RetryCount)
	}
}

func TestFetch_FailedAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Options{Policy: RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2}})
	result := f.Fetch(context.Background(), server.URL+"/gone.md")

	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if result.ErrorKind != domain.ErrNotFound {
		t.Errorf("ErrorKind = %s, want not_found", result.ErrorKind)
	}
	if result.Resource.FetchStatus != domain.FetchFailed {
		t.Errorf("FetchStatus = %s, want failed", result.Resource.FetchStatus)
	}
	if result.Resource.Content != "" || len(result.Resource.LinksFound) != 0 {
		t.Error("failed resource must have empty content and links")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("attempts = %d, want 3 (1 + 2 retries)", got)
	}
}

func TestFetch_FallbackUsed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	id := server.URL + "/docs/guidelines.md"

	dir := t.TempDir()
	content := "---\nidentifier: " + id + "\n---\n# Default guidelines\n"
	if err := os.WriteFile(filepath.Join(dir, "guidelines.md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	fallbacks, err := fallback.Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	cache, err := resourcestore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	f := New(cache, fallbacks, Options{Policy: RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, Multiplier: 2}})
	f.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	result := f.Fetch(context.Background(), id)

	if !result.Success {
		t.Fatal("fallback fetch should count as success")
	}
	if !result.UsedFallback {
		t.Error("UsedFallback = false, want true")
	}
	if result.Resource.FetchStatus != domain.FetchFallbackUsed {
		t.Errorf("FetchStatus = %s, want fallback_used", result.Resource.FetchStatus)
	}
	if result.Resource.Content != "# Default guidelines\n" {
		t.Errorf("Content = %q, want fallback body", result.Resource.Content)
	}
}

func TestFetch_RateLimitedUsesLongerBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Options{Policy: RetryPolicy{
		MaxRetries:     2,
		BaseDelay:      10 * time.Millisecond,
		Multiplier:     2,
		RateLimitDelay: time.Second,
	}})

	var delays []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	result := f.Fetch(context.Background(), server.URL+"/limited.md")

	if result.ErrorKind != domain.ErrRateLimited {
		t.Errorf("ErrorKind = %s, want rate_limited", result.ErrorKind)
	}
	if len(delays) != 2 {
		t.Fatalf("sleep calls = %d, want 2", len(delays))
	}
	for i, d := range delays {
		if d < time.Second {
			t.Errorf("delay[%d] = %v, want >= 1s rate-limit backoff", i, d)
		}
	}
}

func TestFetch_TimeoutClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Options{
		Timeout: 20 * time.Millisecond,
		Policy:  RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond, Multiplier: 2},
	})

	result := f.Fetch(context.Background(), server.URL+"/slow.md")

	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if result.ErrorKind != domain.ErrTimeout {
		t.Errorf("ErrorKind = %s, want timeout", result.ErrorKind)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, Multiplier: 2, JitterRatio: 0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt, domain.ErrNetwork); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_Jitter(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, Multiplier: 2, JitterRatio: 0.2}

	p.rand = func() float64 { return 0 } // lower bound
	if got := p.Delay(0, domain.ErrNetwork); got != 80*time.Millisecond {
		t.Errorf("Delay at lower jitter bound = %v, want 80ms", got)
	}

	p.rand = func() float64 { return 1 } // upper bound (exclusive in practice)
	if got := p.Delay(0, domain.ErrNetwork); got != 120*time.Millisecond {
		t.Errorf("Delay at upper jitter bound = %v, want 120ms", got)
	}
}
