package domain

import (
	"sync"
	"time"
)

// SquadAssignment binds one sub-task to a named squad. State transitions
// go through a single intake point so a terminal assignment can never
// change state again.
type SquadAssignment struct {
	ID         string
	Squad      string
	PhaseIndex int
	PhaseName  string
	SubTask    SubTask

	mu         sync.Mutex
	status     AssignmentStatus
	result     string
	failure    string
	dispatched time.Time
	finished   time.Time
}

// NewAssignment creates a Pending assignment
func NewAssignment(id, squad string, phaseIndex int, phaseName string, st SubTask) *SquadAssignment {
	return &SquadAssignment{
		ID:         id,
		Squad:      squad,
		PhaseIndex: phaseIndex,
		PhaseName:  phaseName,
		SubTask:    st,
		status:     AssignmentPending,
	}
}

// Status returns the current dispatch status
func (a *SquadAssignment) Status() AssignmentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Result returns the optional result payload
func (a *SquadAssignment) Result() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Failure returns the failure message for a Failed assignment
func (a *SquadAssignment) Failure() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failure
}

// Accept transitions Pending -> InProgress. Returns false if the
// assignment already left Pending.
func (a *SquadAssignment) Accept(at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != AssignmentPending {
		return false
	}
	a.status = AssignmentInProgress
	a.dispatched = at
	return true
}

// Complete transitions to Completed with a result payload. Returns false
// if the assignment is already terminal.
func (a *SquadAssignment) Complete(result string, at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return false
	}
	a.status = AssignmentCompleted
	a.result = result
	a.finished = at
	return true
}

// Fail transitions to Failed with a message. Returns false if the
// assignment is already terminal.
func (a *SquadAssignment) Fail(message string, at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return false
	}
	a.status = AssignmentFailed
	a.failure = message
	a.finished = at
	return true
}
