package multifetch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

// graphFetcher serves a canned reference graph without the network
type graphFetcher struct {
	links map[string][]string
	fail  map[string]bool

	calls      int32
	concurrent int32
	peak       int32
	delay      time.Duration
}

func (g *graphFetcher) Fetch(ctx context.Context, identifier string) domain.FetchResult {
	atomic.AddInt32(&g.calls, 1)
	cur := atomic.AddInt32(&g.concurrent, 1)
	for {
		p := atomic.LoadInt32(&g.peak)
		if cur <= p || atomic.CompareAndSwapInt32(&g.peak, p, cur) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	defer atomic.AddInt32(&g.concurrent, -1)

	if g.fail[identifier] {
		return domain.FetchResult{
			Resource:  domain.FailedResource(identifier, time.Now()),
			Success:   false,
			ErrorKind: domain.ErrNetwork,
		}
	}
	return domain.FetchResult{
		Resource: &domain.Resource{
			Identifier:  identifier,
			Content:     "content of " + identifier,
			ContentType: domain.ContentMarkdown,
			FetchedAt:   time.Now(),
			LinksFound:  g.links[identifier],
			FetchStatus: domain.FetchSuccess,
		},
		Success: true,
	}
}

func rootWith(links ...string) *domain.Resource {
	return &domain.Resource{
		Identifier:  "root",
		ContentType: domain.ContentMarkdown,
		FetchedAt:   time.Now(),
		LinksFound:  links,
		FetchStatus: domain.FetchSuccess,
	}
}

func TestExpand_Scenario(t *testing.T) {
	// Root references three documents; two fail, one succeeds.
	g := &graphFetcher{
		links: map[string][]string{},
		fail:  map[string]bool{"b": true, "c": true},
	}
	c := New(g, Options{MaxDepth: 2, MaxConcurrency: 2})

	session := c.Expand(context.Background(), rootWith("a", "b", "c"))

	if session.Size() != 3 {
		t.Errorf("discovered size = %d, want 3", session.Size())
	}
	if session.SuccessCount() != 1 {
		t.Errorf("SuccessCount = %d, want 1", session.SuccessCount())
	}
	if session.CompletedAt.IsZero() {
		t.Error("CompletedAt should be set despite child failures")
	}
	if session.RootResource.FetchStatus != domain.FetchSuccess {
		t.Error("root status must be unaffected by child failures")
	}
}

func TestExpand_DedupInvariant(t *testing.T) {
	// a and b both reference shared; shared references a (cycle)
	g := &graphFetcher{
		links: map[string][]string{
			"a":      {"shared"},
			"b":      {"shared", "a"},
			"shared": {"a", "b"},
		},
		fail: map[string]bool{},
	}
	c := New(g, Options{MaxDepth: 5, MaxConcurrency: 1})

	session := c.Expand(context.Background(), rootWith("a", "b"))

	if session.Size() != 3 {
		t.Errorf("discovered size = %d, want 3 (a, b, shared)", session.Size())
	}
	if got := atomic.LoadInt32(&g.calls); got != 3 {
		t.Errorf("fetch calls = %d, want 3 (no identifier fetched twice)", got)
	}
}

func TestExpand_DepthBound(t *testing.T) {
	// deep is only reachable at depth 3
	g := &graphFetcher{
		links: map[string][]string{
			"a": {"b"},
			"b": {"deep"},
		},
		fail: map[string]bool{},
	}
	c := New(g, Options{MaxDepth: 2, MaxConcurrency: 2})

	session := c.Expand(context.Background(), rootWith("a"))

	if _, found := session.Result("deep"); found {
		t.Error("resource beyond maxDepth must not appear in discovered")
	}
	if session.Size() != 2 {
		t.Errorf("discovered size = %d, want 2 (a, b)", session.Size())
	}
	if len(session.Excluded) != 1 || session.Excluded[0] != "deep" {
		t.Errorf("Excluded = %v, want [deep]", session.Excluded)
	}
}

func TestExpand_ConcurrencyBound(t *testing.T) {
	g := &graphFetcher{
		links: map[string][]string{},
		fail:  map[string]bool{},
		delay: 20 * time.Millisecond,
	}
	c := New(g, Options{MaxDepth: 1, MaxConcurrency: 2})

	c.Expand(context.Background(), rootWith("a", "b", "c", "d", "e", "f"))

	if peak := atomic.LoadInt32(&g.peak); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestExpand_DeterministicOrderSerial(t *testing.T) {
	g := &graphFetcher{
		links: map[string][]string{
			"a": {"a1", "a2"},
			"b": {"b1"},
		},
		fail: map[string]bool{},
	}
	c := New(g, Options{MaxDepth: 2, MaxConcurrency: 1})

	session := c.Expand(context.Background(), rootWith("a", "b"))

	want := []string{"a", "b", "a1", "a2", "b1"}
	got := session.Discovered()
	if len(got) != len(want) {
		t.Fatalf("discovered = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("discovered[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	for i := range want {
		if session.DependencyOrder[i] != want[i] {
			t.Errorf("dependencyOrder[%d] = %s, want %s", i, session.DependencyOrder[i], want[i])
		}
	}
}

func TestExpand_SessionTimeout(t *testing.T) {
	g := &graphFetcher{
		links: map[string][]string{"a": {"b"}, "b": {"c"}, "c": {"d"}},
		fail:  map[string]bool{},
		delay: 50 * time.Millisecond,
	}
	c := New(g, Options{MaxDepth: 10, MaxConcurrency: 1, SessionTimeout: 75 * time.Millisecond})

	session := c.Expand(context.Background(), rootWith("a"))

	if session.CompletedAt.IsZero() {
		t.Error("session must complete even when the timeout cuts expansion short")
	}
	if session.Size() >= 4 {
		t.Errorf("discovered size = %d, want expansion cut short by timeout", session.Size())
	}
}
