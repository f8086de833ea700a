// Package fetcher performs single-resource fetches: cache consult, HTTP
// GET with retry and backoff, link discovery, and local fallback when a
// fetch permanently fails. Callers never see raw transport errors; every
// outcome folds into a domain.FetchResult.
package fetcher

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/fallback"
	"github.com/datengrube/context-orchestrator/internal/resourcestore"
)

const maxBodyBytes = 4 << 20 // 4 MiB per resource

// Options configures a Fetcher
type Options struct {
	Timeout     time.Duration
	TTL         time.Duration
	Policy      RetryPolicy
	ScopePrefix string // same-repository link scope; derived per fetch if empty
}

// Fetcher fetches one resource at a time through the cache
type Fetcher struct {
	client    *http.Client
	cache     *resourcestore.Store
	fallbacks *fallback.Table
	opts      Options

	// Injected for fake-clock tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Fetcher. cache and fallbacks may not be nil.
func New(cache *resourcestore.Store, fallbacks *fallback.Table, opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.Policy.BaseDelay == 0 {
		opts.Policy = DefaultRetryPolicy()
	}

	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		cache:     cache,
		fallbacks: fallbacks,
		opts:      opts,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// Fetch retrieves one resource by identifier. Order of consultation:
// cache, network with retries, fallback set.
func (f *Fetcher) Fetch(ctx context.Context, identifier string) domain.FetchResult {
	start := f.now()

	if cached, err := f.cache.Get(identifier); err == nil && cached != nil {
		hit := *cached
		hit.FetchStatus = domain.FetchCached
		return domain.FetchResult{
			Resource:  &hit,
			Success:   true,
			ElapsedMs: f.elapsedMs(start),
		}
	}

	scope := f.opts.ScopePrefix
	if scope == "" {
		scope = ScopeFromIdentifier(identifier)
	}

	var lastKind domain.ErrorKind
	retries := 0
	for attempt := 0; attempt <= f.opts.Policy.MaxRetries; attempt++ {
		if attempt > 0 {
			retries++
			if err := f.sleep(ctx, f.opts.Policy.Delay(attempt-1, lastKind)); err != nil {
				lastKind = domain.ErrTimeout
				break
			}
		}

		body, kind := f.attempt(ctx, identifier)
		if kind == "" {
			res := &domain.Resource{
				Identifier:  identifier,
				Content:     body,
				ContentType: domain.ClassifyContent(identifier, body),
				FetchedAt:   f.now(),
				LinksFound:  ExtractLinks(body, identifier, scope),
				FetchStatus: domain.FetchSuccess,
			}
			if err := f.cache.Put(res, f.opts.TTL); err != nil {
				log.Printf("cache put %s: %v", identifier, err)
			}
			return domain.FetchResult{
				Resource:   res,
				Success:    true,
				RetryCount: retries,
				ElapsedMs:  f.elapsedMs(start),
			}
		}

		lastKind = kind
		if ctx.Err() != nil {
			break
		}
	}

	if entry, ok := f.fallbacks.Lookup(identifier); ok {
		res := &domain.Resource{
			Identifier:  identifier,
			Content:     entry.Content,
			ContentType: entry.ContentType,
			FetchedAt:   f.now(),
			LinksFound:  ExtractLinks(entry.Content, identifier, scope),
			FetchStatus: domain.FetchFallbackUsed,
		}
		return domain.FetchResult{
			Resource:     res,
			Success:      true,
			ErrorKind:    lastKind,
			RetryCount:   retries,
			ElapsedMs:    f.elapsedMs(start),
			UsedFallback: true,
		}
	}

	return domain.FetchResult{
		Resource:   domain.FailedResource(identifier, f.now()),
		Success:    false,
		ErrorKind:  lastKind,
		RetryCount: retries,
		ElapsedMs:  f.elapsedMs(start),
	}
}

// attempt performs one HTTP GET. An empty ErrorKind means success.
func (f *Fetcher) attempt(ctx context.Context, identifier string) (string, domain.ErrorKind) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifier, nil)
	if err != nil {
		return "", domain.ErrUnknown
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", domain.ErrRateLimited
	case resp.StatusCode >= 500:
		return "", domain.ErrNetwork
	default:
		return "", domain.ErrUnknown
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", classifyError(err)
	}

	return string(body), ""
}

func classifyError(err error) domain.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.ErrTimeout
		}
		return domain.ErrNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.ErrNetwork
	}
	return domain.ErrNetwork
}

func (f *Fetcher) elapsedMs(start time.Time) int64 {
	return f.now().Sub(start).Milliseconds()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
