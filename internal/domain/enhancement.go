package domain

import "time"

// ResearchFinding is one synthesized research entry. A query whose
// execution errored keeps an empty Summary.
type ResearchFinding struct {
	Query      string
	Summary    string
	SourceRefs []string
}

// SubTask is one unit of work inside a phase
type SubTask struct {
	Name     string
	Category string
}

// TaskPhase groups sub-tasks that may run concurrently. Phases are ordered
// by intended execution sequence, not priority.
type TaskPhase struct {
	Name              string
	EstimatedDuration time.Duration
	SubTasks          []SubTask
}

// EnhancedRequest is the output of the enhancement engine. The task
// hierarchy is never regenerated for a given request; re-enhancement
// produces a new value.
type EnhancedRequest struct {
	OriginalInput    string
	ResearchFindings []ResearchFinding
	TaskHierarchy    []TaskPhase
	GapAnalysis      []string
	Degraded         []string // stages that produced partial output
	CreatedAt        time.Time
}

// SubTaskCount returns the total number of sub-tasks across all phases
func (r *EnhancedRequest) SubTaskCount() int {
	n := 0
	for _, p := range r.TaskHierarchy {
		n += len(p.SubTasks)
	}
	return n
}
