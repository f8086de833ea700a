// Package multifetch expands a root resource into the set of documents it
// references, directly or transitively. Discovery is a visited-set-guarded
// worklist: cycles between documents are broken purely by dedup on
// identifier, never by graph analysis.
package multifetch

import (
	"context"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/google/uuid"
)

// Fetcher is the single-resource fetch boundary
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) domain.FetchResult
}

// Options bounds one expansion
type Options struct {
	MaxDepth       int
	MaxConcurrency int
	SessionTimeout time.Duration
}

// Coordinator runs bounded-parallel fetch expansions
type Coordinator struct {
	fetcher Fetcher
	opts    Options
	now     func() time.Time
}

// New creates a Coordinator
func New(f Fetcher, opts Options) *Coordinator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	return &Coordinator{fetcher: f, opts: opts, now: time.Now}
}

type workItem struct {
	identifier string
	depth      int
}

type outcome struct {
	item   workItem
	result domain.FetchResult
}

// Expand discovers and fetches everything reachable from root within the
// depth bound. A failed or fallback-used child never aborts the session;
// the session completes with whatever subset succeeded.
func (c *Coordinator) Expand(ctx context.Context, root *domain.Resource) *domain.MultiFetchSession {
	session := domain.NewSession(uuid.New().String(), root)

	if c.opts.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.SessionTimeout)
		defer cancel()
	}

	visited := map[string]bool{root.Identifier: true}
	var queue []workItem
	for _, link := range root.LinksFound {
		if visited[link] {
			continue
		}
		visited[link] = true
		queue = append(queue, workItem{identifier: link, depth: 1})
	}

	results := make(chan outcome)
	inFlight := 0

	for {
		// Dispatch while there is work and capacity. Identifiers past the
		// depth bound are excluded without fetching.
		for len(queue) > 0 && inFlight < c.opts.MaxConcurrency && ctx.Err() == nil {
			item := queue[0]
			queue = queue[1:]

			if item.depth > c.opts.MaxDepth {
				session.Excluded = append(session.Excluded, item.identifier)
				continue
			}

			inFlight++
			go func(it workItem) {
				results <- outcome{item: it, result: c.fetcher.Fetch(ctx, it.identifier)}
			}(item)
		}

		if inFlight == 0 {
			break
		}

		// Fold completions back into the worklist in arrival order; this
		// keeps discovery order deterministic for a fixed arrival order.
		out := <-results
		inFlight--

		session.Record(out.item.identifier, &out.result)
		session.DependencyOrder = append(session.DependencyOrder, out.item.identifier)

		if out.result.Resource != nil {
			for _, link := range out.result.Resource.LinksFound {
				if visited[link] {
					continue
				}
				visited[link] = true
				queue = append(queue, workItem{identifier: link, depth: out.item.depth + 1})
			}
		}
	}

	session.Complete(c.now())
	return session
}
