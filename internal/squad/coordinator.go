package squad

import (
	"context"
	"sync"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/google/uuid"
)

// WorkerPool executes one assignment and reports its result. It is the
// boundary to the external worker system.
type WorkerPool interface {
	Execute(ctx context.Context, a *domain.SquadAssignment) (result string, err error)
}

// Coordinator dispatches task hierarchies to squads through a worker pool
type Coordinator struct {
	registry *Registry
	pool     WorkerPool
	now      func() time.Time
}

// NewCoordinator creates a Coordinator
func NewCoordinator(registry *Registry, pool WorkerPool) *Coordinator {
	return &Coordinator{registry: registry, pool: pool, now: time.Now}
}

// Dispatch executes the task hierarchy. A phase does not begin until
// every assignment of the previous phase is terminal; a single failed
// assignment never blocks its siblings. All created assignments are
// returned, terminal, in hierarchy order.
func (c *Coordinator) Dispatch(ctx context.Context, phases []domain.TaskPhase) []*domain.SquadAssignment {
	var all []*domain.SquadAssignment

	for phaseIndex, phase := range phases {
		assignments := make([]*domain.SquadAssignment, 0, len(phase.SubTasks))
		for _, st := range phase.SubTasks {
			a := domain.NewAssignment(
				uuid.New().String(),
				c.registry.Route(st.Category),
				phaseIndex,
				phase.Name,
				st,
			)
			assignments = append(assignments, a)
		}
		all = append(all, assignments...)

		c.runPhase(ctx, assignments)
	}

	return all
}

// runPhase executes one phase's assignments concurrently and waits for
// every one of them to reach a terminal state
func (c *Coordinator) runPhase(ctx context.Context, assignments []*domain.SquadAssignment) {
	var wg sync.WaitGroup

	for _, a := range assignments {
		if ctx.Err() != nil {
			a.Fail("dispatch cancelled: "+ctx.Err().Error(), c.now())
			continue
		}

		wg.Add(1)
		go func(a *domain.SquadAssignment) {
			defer wg.Done()

			if !a.Accept(c.now()) {
				return
			}
			result, err := c.pool.Execute(ctx, a)
			// Single intake point: exactly one terminal transition wins
			if err != nil {
				a.Fail(err.Error(), c.now())
				return
			}
			a.Complete(result, c.now())
		}(a)
	}

	wg.Wait()
}
