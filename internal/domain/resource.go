package domain

import (
	"strings"
	"time"
)

// Resource represents one fetched document. A Resource is immutable once
// constructed; re-fetching produces a new value that may replace the
// cached entry.
type Resource struct {
	Identifier  string
	Content     string
	ContentType ContentType
	FetchedAt   time.Time
	LinksFound  []string
	FetchStatus FetchStatus
}

// FailedResource returns the canonical Resource value for a permanently
// failed fetch: empty content, no links.
func FailedResource(identifier string, at time.Time) *Resource {
	return &Resource{
		Identifier:  identifier,
		FetchedAt:   at,
		FetchStatus: FetchFailed,
	}
}

// Expired returns true if the resource is older than ttl at the given time
func (r *Resource) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.FetchedAt) > ttl
}

// ClassifyContent guesses a content type from an identifier and body
func ClassifyContent(identifier, body string) ContentType {
	switch {
	case strings.HasSuffix(identifier, ".json"):
		return ContentJSON
	case strings.HasSuffix(identifier, ".md") || strings.HasSuffix(identifier, ".markdown"):
		return ContentMarkdown
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ContentJSON
	}
	for _, r := range trimmed {
		if r == 0 {
			return ContentBinary
		}
	}
	return ContentMarkdown
}

// FetchResult wraps a Resource with per-attempt fetch metadata
type FetchResult struct {
	Resource     *Resource
	Success      bool
	ErrorKind    ErrorKind // empty when Success
	RetryCount   int
	ElapsedMs    int64
	UsedFallback bool
}
