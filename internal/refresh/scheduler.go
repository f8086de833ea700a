// Package refresh re-fetches configured resources on a cron schedule so
// the cache stays warm between pipeline runs.
package refresh

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/datengrube/context-orchestrator/internal/config"
	"github.com/datengrube/context-orchestrator/internal/domain"
)

// Fetcher retrieves a single resource
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) domain.FetchResult
}

// Cache can drop a stored resource so the next fetch goes to the network
type Cache interface {
	Invalidate(identifier string) error
}

// ValidateJob checks a refresh job entry
func ValidateJob(job config.RefreshJob) error {
	if job.Name == "" {
		return fmt.Errorf("refresh job name is required")
	}
	if job.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(job.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if len(job.Identifiers) == 0 {
		return fmt.Errorf("refresh job needs at least one identifier")
	}
	return nil
}

// ParseCron parses a standard 5-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// Scheduler manages scheduled cache refreshes
type Scheduler struct {
	jobs     map[string]config.RefreshJob
	parser   cron.Parser
	fetcher  Fetcher
	cache    Cache
	lastRun  map[string]time.Time
	running  map[string]bool
	mu       sync.RWMutex
	stopChan chan struct{}

	maxParallel int
}

// NewScheduler creates a refresh scheduler for the given jobs
func NewScheduler(jobs []config.RefreshJob, fetcher Fetcher, cache Cache, maxParallel int) (*Scheduler, error) {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	s := &Scheduler{
		jobs:        make(map[string]config.RefreshJob),
		parser:      cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		fetcher:     fetcher,
		cache:       cache,
		lastRun:     make(map[string]time.Time),
		running:     make(map[string]bool),
		stopChan:    make(chan struct{}),
		maxParallel: maxParallel,
	}

	for _, job := range jobs {
		if err := ValidateJob(job); err != nil {
			return nil, fmt.Errorf("refresh job %q: %w", job.Name, err)
		}
		s.jobs[job.Name] = job
	}

	return s, nil
}

// NextRun returns the next scheduled run time for a job
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return time.Time{}
	}

	sched, err := s.parser.Parse(job.Cron)
	if err != nil {
		return time.Time{}
	}

	return sched.Next(time.Now())
}

// ShouldRun returns true if a job should run now
func (s *Scheduler) ShouldRun(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return false
	}

	if s.running[name] {
		return false
	}

	sched, err := s.parser.Parse(job.Cron)
	if err != nil {
		return false
	}

	lastRun := s.lastRun[name]
	if lastRun.IsZero() {
		lastRun = time.Now().Add(-24 * time.Hour)
	}

	nextRun := sched.Next(lastRun)
	return time.Now().After(nextRun)
}

// MarkRunning marks a job as currently running
func (s *Scheduler) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
}

// MarkComplete marks a job as complete
func (s *Scheduler) MarkComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
	s.lastRun[name] = time.Now()
}

// Jobs returns all job names
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// RunJob re-fetches all identifiers of one job, bounded by maxParallel.
// Individual fetch failures are logged and do not abort the job.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown refresh job %q", name)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for _, identifier := range job.Identifiers {
		identifier := identifier
		g.Go(func() error {
			if s.cache != nil {
				if err := s.cache.Invalidate(identifier); err != nil {
					log.Printf("refresh %s: invalidate %s: %v", name, identifier, err)
				}
			}
			result := s.fetcher.Fetch(ctx, identifier)
			if !result.Success {
				log.Printf("refresh %s: %s failed (%s)", name, identifier, result.ErrorKind)
			}
			return nil
		})
	}

	return g.Wait()
}

// Start begins the scheduler loop. It blocks until Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			for _, name := range s.Jobs() {
				if s.ShouldRun(name) {
					s.MarkRunning(name)
					go func(name string) {
						if err := s.RunJob(ctx, name); err != nil {
							log.Printf("refresh job %s failed: %v", name, err)
						}
						s.MarkComplete(name)
					}(name)
				}
			}
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
