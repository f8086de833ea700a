package domain

// FetchStatus represents how a resource was obtained
type FetchStatus string

const (
	FetchSuccess      FetchStatus = "success"
	FetchFailed       FetchStatus = "failed"
	FetchFallbackUsed FetchStatus = "fallback_used"
	FetchCached       FetchStatus = "cached"
)

// Succeeded returns true if the fetch produced usable content
// (network, cache, or fallback).
func (s FetchStatus) Succeeded() bool {
	return s == FetchSuccess || s == FetchCached || s == FetchFallbackUsed
}

// ErrorKind classifies a permanent fetch failure
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrNotFound    ErrorKind = "not_found"
	ErrNetwork     ErrorKind = "network"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrUnknown     ErrorKind = "unknown"
)

// ContentType classifies fetched content
type ContentType string

const (
	ContentMarkdown ContentType = "markdown"
	ContentJSON     ContentType = "json"
	ContentBinary   ContentType = "binary"
)

// AssignmentStatus represents the dispatch state of a squad assignment
type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "pending"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentFailed     AssignmentStatus = "failed"
)

// Terminal returns true once an assignment can no longer change state
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentCompleted || s == AssignmentFailed
}
