package workerpool

import (
	"context"
	"fmt"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
)

// TaskFunc runs one assignment and returns a result summary
type TaskFunc func(ctx context.Context, a *domain.SquadAssignment) (string, error)

// EmbeddedConfig configures the embedded runner
type EmbeddedConfig struct {
	MaxTasks    int
	TaskTimeout time.Duration
	Run         TaskFunc // Optional; defaults to a structured acknowledgment
}

// EmbeddedRunner executes assignments in-process when no remote workers
// are connected.
type EmbeddedRunner struct {
	pool    *SlotPool
	run     TaskFunc
	timeout time.Duration
}

// NewEmbeddedRunner creates an embedded runner
func NewEmbeddedRunner(config EmbeddedConfig) *EmbeddedRunner {
	if config.MaxTasks <= 0 {
		config.MaxTasks = 4
	}
	if config.TaskTimeout == 0 {
		config.TaskTimeout = 5 * time.Minute
	}
	run := config.Run
	if run == nil {
		run = defaultTask
	}
	return &EmbeddedRunner{
		pool:    NewSlotPool(config.MaxTasks),
		run:     run,
		timeout: config.TaskTimeout,
	}
}

// Pool returns the slot pool
func (e *EmbeddedRunner) Pool() *SlotPool {
	return e.pool
}

// Execute runs an assignment locally, claiming a task slot for its duration
func (e *EmbeddedRunner) Execute(ctx context.Context, a *domain.SquadAssignment) (string, error) {
	if !e.pool.Acquire() {
		return "", fmt.Errorf("embedded runner: no slots available")
	}
	defer e.pool.Release()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.run(ctx, a)
}

func defaultTask(ctx context.Context, a *domain.SquadAssignment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s: %s handled by embedded runner",
		a.Squad, a.PhaseName, a.SubTask.Name), nil
}
