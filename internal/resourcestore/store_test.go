package resourcestore

import (
	"testing"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

func TestStore_PutAndGet(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	res := &domain.Resource{
		Identifier:  "https://example.com/docs/guide.md",
		Content:     "# Guide\n\nSee [commands](commands.md).",
		ContentType: domain.ContentMarkdown,
		FetchedAt:   time.Now(),
		LinksFound:  []string{"https://example.com/docs/commands.md"},
		FetchStatus: domain.FetchSuccess,
	}

	if err := store.Put(res, time.Hour); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(res.Identifier)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.Content != res.Content {
		t.Errorf("Content = %q, want %q", got.Content, res.Content)
	}
	if got.ContentType != domain.ContentMarkdown {
		t.Errorf("ContentType = %s, want markdown", got.ContentType)
	}
	if len(got.LinksFound) != 1 || got.LinksFound[0] != res.LinksFound[0] {
		t.Errorf("LinksFound = %v, want %v", got.LinksFound, res.LinksFound)
	}
}

func TestStore_MissIsNotAnError(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	got, err := store.Get("https://example.com/absent.md")
	if err != nil {
		t.Fatalf("miss should not error, got %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestStore_LazyExpiry(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	res := &domain.Resource{
		Identifier:  "https://example.com/docs/guide.md",
		Content:     "# Guide",
		ContentType: domain.ContentMarkdown,
		FetchedAt:   time.Now(),
		FetchStatus: domain.FetchSuccess,
	}
	if err := store.Put(res, time.Hour); err != nil {
		t.Fatal(err)
	}

	// Advance the clock past the TTL
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	got, err := store.Get(res.Identifier)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expired entry should read as a miss")
	}

	// Expired row must be gone, not just hidden
	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Count = %d, want 0 after lazy eviction", count)
	}
}

func TestStore_LastWriterWins(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id := "https://example.com/docs/guide.md"
	first := &domain.Resource{Identifier: id, Content: "v1", ContentType: domain.ContentMarkdown, FetchedAt: time.Now(), FetchStatus: domain.FetchSuccess}
	second := &domain.Resource{Identifier: id, Content: "v2", ContentType: domain.ContentMarkdown, FetchedAt: time.Now(), FetchStatus: domain.FetchSuccess}

	if err := store.Put(first, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(second, time.Hour); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "v2" {
		t.Errorf("Content = %q, want v2", got.Content)
	}
}

func TestStore_Invalidate(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	res := &domain.Resource{Identifier: "a", Content: "x", ContentType: domain.ContentMarkdown, FetchedAt: time.Now(), FetchStatus: domain.FetchSuccess}
	if err := store.Put(res, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Invalidate("a"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("invalidated entry should read as a miss")
	}
}
