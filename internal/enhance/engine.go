// Package enhance turns a raw user request plus fetched context into an
// enriched request: research findings, a hierarchical task breakdown, and
// a gap analysis. Stages run in a fixed forward order; any stage may
// degrade and proceed with partial output.
package enhance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

// Stage names the steps of the enhancement pipeline, in execution order
type Stage string

const (
	StageReceived          Stage = "received"
	StageQueryGeneration   Stage = "query_generation"
	StageResearchSynthesis Stage = "research_synthesis"
	StageTaskDecomposition Stage = "task_decomposition"
	StageGapAnalysis       Stage = "gap_analysis"
	StageEnhanced          Stage = "enhanced"
)

// Bounds holds the configured enhancement limits
type Bounds struct {
	MinQueries          int
	MaxQueries          int
	MaxPhases           int
	MaxSubTasksPerPhase int
}

// QueryStrategy derives research queries from the input and fetched
// context. The exact selection heuristic is pluggable.
type QueryStrategy interface {
	Queries(input string, resources []*domain.Resource, min, max int) []string
}

// QueryExecutor produces a summary and source references for one query.
// An error is recorded as a finding with an empty summary, never raised.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, resources []*domain.Resource) (summary string, refs []string, err error)
}

// Engine runs the enhancement pipeline
type Engine struct {
	strategy QueryStrategy
	executor QueryExecutor
	bounds   Bounds
	now      func() time.Time
}

// New creates an Engine. A nil executor degrades research synthesis; a
// nil strategy makes the engine unavailable.
func New(strategy QueryStrategy, executor QueryExecutor, bounds Bounds) *Engine {
	return &Engine{
		strategy: strategy,
		executor: executor,
		bounds:   bounds,
		now:      time.Now,
	}
}

// Enhance runs all stages. The returned request always has a non-empty
// task hierarchy; re-enhancement produces a new request value.
func (e *Engine) Enhance(ctx context.Context, input string, resources []*domain.Resource) (*domain.EnhancedRequest, error) {
	if e.strategy == nil {
		// The single hard failure: no query-generation strategy configured
		return nil, fmt.Errorf("enhancement engine unavailable: no query strategy configured")
	}

	req := &domain.EnhancedRequest{
		OriginalInput: input,
		CreatedAt:     e.now(),
	}

	queries := e.generateQueries(input, resources, req)
	req.ResearchFindings = e.synthesize(ctx, queries, resources, req)
	req.TaskHierarchy = e.decompose(input, req.ResearchFindings)
	req.GapAnalysis = e.analyzeGaps(req.TaskHierarchy, req.ResearchFindings)

	return req, nil
}

// generateQueries runs the strategy and enforces the query count bounds
func (e *Engine) generateQueries(input string, resources []*domain.Resource, req *domain.EnhancedRequest) []string {
	queries := e.strategy.Queries(input, resources, e.bounds.MinQueries, e.bounds.MaxQueries)

	if len(queries) > e.bounds.MaxQueries {
		queries = queries[:e.bounds.MaxQueries]
	}
	if len(queries) < e.bounds.MinQueries {
		req.Degraded = append(req.Degraded, string(StageQueryGeneration))
		queries = padQueries(queries, input, e.bounds.MinQueries)
	}
	return queries
}

// padQueries tops a short query list up to min with generic templates
func padQueries(queries []string, input string, min int) []string {
	topic := strings.TrimSpace(input)
	if topic == "" {
		topic = "the requested work"
	}
	templates := []string{
		"requirements implied by %s",
		"prior art relevant to %s",
		"risks and unknowns in %s",
		"validation criteria for %s",
		"dependencies needed for %s",
	}
	for i := 0; len(queries) < min; i++ {
		q := fmt.Sprintf(templates[i%len(templates)], topic)
		if i >= len(templates) {
			q = fmt.Sprintf("%s (aspect %d)", q, i/len(templates)+1)
		}
		queries = append(queries, q)
	}
	return queries
}

func (e *Engine) synthesize(ctx context.Context, queries []string, resources []*domain.Resource, req *domain.EnhancedRequest) []domain.ResearchFinding {
	findings := make([]domain.ResearchFinding, 0, len(queries))
	errored := false

	for _, q := range queries {
		finding := domain.ResearchFinding{Query: q}
		if e.executor != nil {
			summary, refs, err := e.executor.Execute(ctx, q, resources)
			if err != nil {
				// Recorded with an empty summary rather than aborting the stage
				errored = true
			} else {
				finding.Summary = summary
				finding.SourceRefs = refs
			}
		} else {
			errored = true
		}
		findings = append(findings, finding)
	}

	if errored {
		req.Degraded = append(req.Degraded, string(StageResearchSynthesis))
	}
	return findings
}

// phaseTemplate defines the fixed decomposition skeleton
type phaseTemplate struct {
	name     string
	category string
	duration time.Duration
}

var phaseTemplates = []phaseTemplate{
	{"Discovery", "research", 2 * time.Hour},
	{"Design", "design", 3 * time.Hour},
	{"Implementation", "build", 6 * time.Hour},
	{"Validation", "test", 3 * time.Hour},
	{"Integration", "integrate", 2 * time.Hour},
	{"Documentation", "docs", time.Hour},
}

// decompose builds the task hierarchy from input and findings. The
// hierarchy is always non-empty and respects MaxPhases and
// MaxSubTasksPerPhase.
func (e *Engine) decompose(input string, findings []domain.ResearchFinding) []domain.TaskPhase {
	nPhases := e.bounds.MaxPhases
	if nPhases > len(phaseTemplates) {
		nPhases = len(phaseTemplates)
	}
	if nPhases < 1 {
		nPhases = 1
	}

	topics := topicsFrom(input, findings)

	phases := make([]domain.TaskPhase, 0, nPhases)
	for i := 0; i < nPhases; i++ {
		tpl := phaseTemplates[i]
		phase := domain.TaskPhase{
			Name:              tpl.name,
			EstimatedDuration: tpl.duration,
		}
		for _, topic := range topics {
			if len(phase.SubTasks) >= e.bounds.MaxSubTasksPerPhase {
				break
			}
			phase.SubTasks = append(phase.SubTasks, domain.SubTask{
				Name:     fmt.Sprintf("%s: %s", strings.ToLower(tpl.name), topic),
				Category: tpl.category,
			})
		}
		if len(phase.SubTasks) == 0 {
			phase.SubTasks = []domain.SubTask{{
				Name:     strings.ToLower(tpl.name) + ": " + strings.TrimSpace(input),
				Category: tpl.category,
			}}
		}
		phases = append(phases, phase)
	}

	return phases
}

// topicsFrom picks salient topics: meaningful input words first, then
// supported finding queries
func topicsFrom(input string, findings []domain.ResearchFinding) []string {
	var topics []string
	seen := make(map[string]bool)

	for _, w := range strings.Fields(strings.ToLower(input)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		topics = append(topics, w)
	}

	for _, f := range findings {
		if f.Summary == "" {
			continue
		}
		q := strings.ToLower(f.Query)
		if seen[q] {
			continue
		}
		seen[q] = true
		topics = append(topics, q)
	}

	return topics
}

// analyzeGaps flags phases with no supporting research. May be empty.
func (e *Engine) analyzeGaps(phases []domain.TaskPhase, findings []domain.ResearchFinding) []string {
	var gaps []string
	for _, phase := range phases {
		if !phaseSupported(phase, findings) {
			gaps = append(gaps, fmt.Sprintf("phase %q has no supporting research", phase.Name))
		}
	}
	return gaps
}

// phaseSupported reports whether any non-empty finding mentions a term
// from the phase name or its sub-tasks
func phaseSupported(phase domain.TaskPhase, findings []domain.ResearchFinding) bool {
	terms := []string{strings.ToLower(phase.Name)}
	for _, st := range phase.SubTasks {
		terms = append(terms, strings.ToLower(st.Name), st.Category)
	}

	for _, f := range findings {
		if f.Summary == "" {
			continue
		}
		text := strings.ToLower(f.Query + " " + f.Summary)
		for _, term := range terms {
			if term != "" && strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}
