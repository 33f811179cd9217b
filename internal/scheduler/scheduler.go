package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grapplerank/ajp-results/internal/event"
	"github.com/grapplerank/ajp-results/internal/pipeline"
)

// OutcomeSource supplies the stored status of every attempted event.
type OutcomeSource interface {
	KnownOutcomes(ctx context.Context) (map[int]event.Status, error)
}

// Runner processes one event's full pipeline to a terminal outcome.
type Runner interface {
	Process(ctx context.Context, eventID int) pipeline.Outcome
}

// Pending returns the event ids 1..maxEvents still needing work: every id
// whose stored status is absent from noRetry. The result is ordered and
// contains each id at most once.
func Pending(maxEvents int, known map[int]event.Status, noRetry map[event.Status]bool) []int {
	pending := make([]int, 0, maxEvents)
	for id := 1; id <= maxEvents; id++ {
		if status, ok := known[id]; ok && noRetry[status] {
			continue
		}
		pending = append(pending, id)
	}
	return pending
}

// Scheduler dispatches pending events to a fixed-size worker pool.
type Scheduler struct {
	source    OutcomeSource
	runner    Runner
	workers   int
	maxEvents int
	noRetry   map[event.Status]bool
	runID     string
	log       *zap.Logger
}

// Option adjusts Scheduler construction.
type Option func(*Scheduler)

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(s *Scheduler) { s.runID = id }
}

// New creates a Scheduler. workers is the concurrency limit and maxEvents
// the inclusive upper bound of the event-id universe.
func New(source OutcomeSource, runner Runner, workers, maxEvents int, noRetry map[event.Status]bool, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:    source,
		runner:    runner,
		workers:   workers,
		maxEvents: maxEvents,
		noRetry:   noRetry,
		runID:     uuid.NewString(),
		log:       zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID returns the identifier stamped on this run's log entries.
func (s *Scheduler) RunID() string { return s.runID }

// Run executes one full scheduling pass: compute the pending set, process
// every pending event through the worker pool, and aggregate the outcomes.
// Cancelling ctx stops dispatching new events; events already being
// processed run to their natural checkpoint.
func (s *Scheduler) Run(ctx context.Context) (event.RunSummary, error) {
	started := time.Now()
	summary := event.RunSummary{RunID: s.runID}

	known, err := s.source.KnownOutcomes(ctx)
	if err != nil {
		return summary, err
	}
	pending := Pending(s.maxEvents, known, s.noRetry)
	summary.Pending = len(pending)
	summary.Skipped = s.maxEvents - len(pending)

	// The per-status totals describe the stored end state: outcomes
	// committed this run overlay the statuses known at the start.
	final := make(map[int]event.Status, len(known))
	for id, st := range known {
		final[id] = st
	}

	s.log.Info("scheduler run starting",
		zap.String("run_id", s.runID),
		zap.Int("known", len(known)),
		zap.Int("pending", len(pending)),
		zap.Int("workers", s.workers))

	if len(pending) == 0 {
		tallyStatuses(final, &summary)
		summary.Duration = time.Since(started)
		return summary, nil
	}

	jobs := make(chan int)
	outcomes := make(chan pipeline.Outcome)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcomes <- s.runner.Process(ctx, id)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range pending {
			select {
			case jobs <- id:
			case <-ctx.Done():
				s.log.Warn("run cancelled, no further events dispatched",
					zap.String("run_id", s.runID))
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	done := 0
	for outcome := range outcomes {
		done++
		if outcome.Unresolved {
			summary.Unresolved++
		} else {
			final[outcome.EventID] = outcome.Status
			summary.Matches += outcome.Matches
		}
		if done%10 == 0 {
			s.log.Info("run progress",
				zap.String("run_id", s.runID),
				zap.Int("done", done),
				zap.Int("pending", len(pending)))
		}
	}

	tallyStatuses(final, &summary)
	summary.Duration = time.Since(started)
	s.log.Info("scheduler run finished",
		zap.String("run_id", s.runID),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("partial", summary.Partial),
		zap.Int("unresolved", summary.Unresolved),
		zap.Int("matches", summary.Matches),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// tallyStatuses fills the summary's per-status totals from the stored end
// state, the same view the progress store's statistics report.
func tallyStatuses(outcomes map[int]event.Status, summary *event.RunSummary) {
	for _, st := range outcomes {
		switch st {
		case event.StatusCompleted:
			summary.Completed++
		case event.StatusFailed:
			summary.Failed++
		case event.StatusPartial:
			summary.Partial++
		}
	}
}
