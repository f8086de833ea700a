// Package orchestrator sequences the full pipeline: input enhancement,
// root fetch, link expansion, and squad dispatch. Callers always receive
// a well-formed IntegrationResult; partial failures live in its metadata.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/notify"
)

// Options selects which optional stages run
type Options struct {
	EnableEnhancement bool
	EnableMultiFetch  bool
}

// EventKind identifies a pipeline progress stage
type EventKind string

const (
	EventEnhance  EventKind = "enhance"
	EventFetch    EventKind = "fetch"
	EventExpand   EventKind = "expand"
	EventDispatch EventKind = "dispatch"
	EventDone     EventKind = "done"
)

// Event is one progress update emitted during a run
type Event struct {
	Kind    EventKind
	Message string
}

// ProgressFunc receives progress events during Process
type ProgressFunc func(Event)

// Enhancer turns raw user input into a structured request
type Enhancer interface {
	Enhance(ctx context.Context, input string, resources []*domain.Resource) (*domain.EnhancedRequest, error)
}

// Fetcher retrieves a single resource
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) domain.FetchResult
}

// Expander recursively fetches resources linked from a root
type Expander interface {
	Expand(ctx context.Context, root *domain.Resource) *domain.MultiFetchSession
}

// Dispatcher hands task phases to squads
type Dispatcher interface {
	Dispatch(ctx context.Context, phases []domain.TaskPhase) []*domain.SquadAssignment
}

// Orchestrator is the pipeline facade
type Orchestrator struct {
	enhancer   Enhancer
	fetcher    Fetcher
	expander   Expander
	dispatcher Dispatcher
	notifier   notify.Notifier
	progress   ProgressFunc

	now func() time.Time
}

// New creates an orchestrator over the given stage implementations
func New(enhancer Enhancer, fetcher Fetcher, expander Expander, dispatcher Dispatcher) *Orchestrator {
	return &Orchestrator{
		enhancer:   enhancer,
		fetcher:    fetcher,
		expander:   expander,
		dispatcher: dispatcher,
		notifier:   notify.NoopNotifier{},
		now:        time.Now,
	}
}

// SetNotifier installs a completion notifier
func (o *Orchestrator) SetNotifier(n notify.Notifier) {
	if n != nil {
		o.notifier = n
	}
}

// SetProgress installs a progress event callback
func (o *Orchestrator) SetProgress(fn ProgressFunc) {
	o.progress = fn
}

func (o *Orchestrator) emit(kind EventKind, message string) {
	if o.progress != nil {
		o.progress(Event{Kind: kind, Message: message})
	}
}

// Process runs the pipeline for one user request. Success is true iff the
// root fetch produced usable content (network, cache, or fallback); every
// other failure is surfaced in Metadata without flipping Success.
func (o *Orchestrator) Process(ctx context.Context, userInput, rootURL string, opts Options) *domain.IntegrationResult {
	start := o.now()
	result := &domain.IntegrationResult{
		FetchedResources: make(map[string]*domain.FetchResult),
	}

	finish := func() *domain.IntegrationResult {
		result.Metadata.ElapsedMs = o.now().Sub(start).Milliseconds()
		o.emit(EventDone, fmt.Sprintf("success=%v", result.Success))
		if err := o.notifier.Send(notify.FromResult(rootURL, result)); err != nil {
			log.Printf("notify: %v", err)
		}
		return result
	}

	if opts.EnableEnhancement {
		o.emit(EventEnhance, "enhancing input")
		enhanced, err := o.enhancer.Enhance(ctx, userInput, nil)
		if err != nil {
			// Engine unavailability is the one enhancement failure that
			// aborts the run; degraded stages come back as a value.
			log.Printf("enhancement unavailable: %v", err)
			return finish()
		}
		result.EnhancedInput = enhanced
		result.Metadata.EnhancementApplied = true
		result.Metadata.EnhancementDegraded = enhanced.Degraded
	}

	o.emit(EventFetch, rootURL)
	rootResult := o.fetcher.Fetch(ctx, rootURL)
	if !rootResult.Success {
		result.Metadata.RootErrorKind = rootResult.ErrorKind
		return finish()
	}
	result.Success = true
	result.FetchedResources[rootURL] = &rootResult
	result.Metadata.ResourcesFetched = 1

	if opts.EnableMultiFetch && rootResult.Resource != nil {
		o.emit(EventExpand, fmt.Sprintf("expanding %d links", len(rootResult.Resource.LinksFound)))
		session := o.expander.Expand(ctx, rootResult.Resource)
		for id, fr := range session.Results() {
			result.FetchedResources[id] = fr
			if fr.Success {
				result.Metadata.ResourcesFetched++
			} else {
				result.Metadata.ResourcesFailed++
			}
		}
	}

	if result.EnhancedInput != nil && len(result.EnhancedInput.TaskHierarchy) > 0 {
		o.emit(EventDispatch, fmt.Sprintf("dispatching %d phases", len(result.EnhancedInput.TaskHierarchy)))
		assignments := o.dispatcher.Dispatch(ctx, result.EnhancedInput.TaskHierarchy)
		result.Assignments = assignments
		result.Metadata.AgentsDispatched = len(assignments)
		for _, a := range assignments {
			if a.Status() == domain.AssignmentFailed {
				result.Metadata.AssignmentsFailed++
			}
		}
	}

	return finish()
}
