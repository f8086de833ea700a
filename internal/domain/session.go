package domain

import "time"

// MultiFetchSession represents one root-triggered fetch expansion.
// The session exclusively owns its discovered map; Resource values inside
// results are shared read-only with the cache.
type MultiFetchSession struct {
	ID           string
	RootResource *Resource

	discovered map[string]*FetchResult
	order      []string // discovery order of identifiers

	// DependencyOrder is the order in which resources completed fetching.
	// Not a topological sort: cycles are broken by dedup, not graph analysis.
	DependencyOrder []string

	// Excluded lists identifiers discovered beyond the depth bound
	Excluded []string

	CompletedAt time.Time
}

// NewSession creates an empty session for the given root
func NewSession(id string, root *Resource) *MultiFetchSession {
	return &MultiFetchSession{
		ID:           id,
		RootResource: root,
		discovered:   make(map[string]*FetchResult),
	}
}

// Record stores a fetch result under its identifier. Each identifier is
// recorded at most once per session; later records are ignored.
func (s *MultiFetchSession) Record(identifier string, result *FetchResult) {
	if _, exists := s.discovered[identifier]; exists {
		return
	}
	s.discovered[identifier] = result
	s.order = append(s.order, identifier)
}

// Result returns the recorded result for an identifier, if any
func (s *MultiFetchSession) Result(identifier string) (*FetchResult, bool) {
	r, ok := s.discovered[identifier]
	return r, ok
}

// Discovered returns identifiers in discovery order
func (s *MultiFetchSession) Discovered() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Results returns all recorded results keyed by identifier
func (s *MultiFetchSession) Results() map[string]*FetchResult {
	out := make(map[string]*FetchResult, len(s.discovered))
	for id, r := range s.discovered {
		out[id] = r
	}
	return out
}

// Size returns the number of discovered identifiers
func (s *MultiFetchSession) Size() int {
	return len(s.order)
}

// SuccessCount returns how many discovered fetches produced usable content
func (s *MultiFetchSession) SuccessCount() int {
	n := 0
	for _, r := range s.discovered {
		if r.Resource != nil && r.Resource.FetchStatus.Succeeded() {
			n++
		}
	}
	return n
}

// Complete marks the session finished
func (s *MultiFetchSession) Complete(at time.Time) {
	s.CompletedAt = at
}
