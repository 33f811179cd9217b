package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/grapplerank/ajp-results/internal/event"
	"github.com/grapplerank/ajp-results/internal/scraper"
)

// Fetcher retrieves one raw match list page.
type Fetcher interface {
	FetchPage(ctx context.Context, eventID, page int) ([]byte, error)
}

// Store is the slice of the progress store the pipeline needs.
type Store interface {
	CommitEventResult(ctx context.Context, res *event.Result) error
	AppendLog(ctx context.Context, entry event.LogEntry)
}

// Outcome is the result of one pipeline attempt for one event.
type Outcome struct {
	EventID int
	// Status is the committed terminal status. Empty when Unresolved.
	Status  event.Status
	Matches int
	// Unresolved means the outcome could not be durably committed: the
	// event is absent from the store and a future run retries it.
	Unresolved bool
	Err        error
}

// Pipeline processes single events to completion.
type Pipeline struct {
	fetcher       Fetcher
	store         Store
	retryBudget   int
	commitRetries int
	runID         string
	log           *zap.Logger
	newBackOff    func() backoff.BackOff
}

// Option adjusts Pipeline construction.
type Option func(*Pipeline)

// WithRetryBudget sets the number of transport retries after the first
// fetch attempt.
func WithRetryBudget(n int) Option {
	return func(p *Pipeline) { p.retryBudget = n }
}

// WithCommitRetries sets the number of commit retries on storage failure.
func WithCommitRetries(n int) Option {
	return func(p *Pipeline) { p.commitRetries = n }
}

// WithRunID stamps log entries with the scheduler run identifier.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithBackOff overrides the backoff between transport retries; tests use it
// to avoid real waits.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(p *Pipeline) { p.newBackOff = factory }
}

// New creates a Pipeline around a fetcher and a progress store.
func New(fetcher Fetcher, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:       fetcher,
		store:         store,
		retryBudget:   3,
		commitRetries: 2,
		log:           zap.L(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs fetch -> parse -> commit for one event. Transport and parse
// failures always end in a committed terminal status; only storage failures
// (or cancellation before commit) leave the event unresolved.
func (p *Pipeline) Process(ctx context.Context, eventID int) Outcome {
	log := p.log.With(zap.Int("event_id", eventID))

	first, err := p.fetchWithRetry(ctx, eventID, 1)
	if err != nil {
		log.Warn("fetch failed", zap.String("stage", "fetching"), zap.Error(err))
		return p.commitTerminal(ctx, &event.Result{EventID: eventID, Status: event.StatusFailed},
			event.LogError, fmt.Sprintf("fetch failed: %v", err))
	}

	page, err := scraper.ParseMatchList(first)
	if err != nil {
		log.Warn("parse failed", zap.String("stage", "parsing"), zap.Error(err))
		return p.commitTerminal(ctx, &event.Result{EventID: eventID, Status: event.StatusFailed},
			event.LogError, fmt.Sprintf("parse failed: %v", err))
	}

	res := &event.Result{
		EventID: eventID,
		Name:    page.EventName,
		Year:    page.Year,
		Matches: page.Matches,
	}
	incomplete := page.SkippedRows > 0 || page.EventName == ""

	for pg := 2; pg <= page.PageCount; pg++ {
		raw, err := p.fetchWithRetry(ctx, eventID, pg)
		if err != nil {
			log.Warn("page fetch failed, continuing with partial content",
				zap.Int("page", pg), zap.Error(err))
			incomplete = true
			continue
		}
		sub, err := scraper.ParseMatchList(raw)
		if err != nil {
			log.Warn("page parse failed, continuing with partial content",
				zap.Int("page", pg), zap.Error(err))
			incomplete = true
			continue
		}
		res.Matches = append(res.Matches, sub.Matches...)
		if sub.SkippedRows > 0 {
			incomplete = true
		}
	}

	for i := range res.Matches {
		res.Matches[i].EventID = eventID
	}

	switch {
	case incomplete && len(res.Matches) > 0:
		res.Status = event.StatusPartial
	case incomplete:
		res.Status = event.StatusFailed
	default:
		res.Status = event.StatusCompleted
	}

	logStatus := event.LogSuccess
	msg := fmt.Sprintf("committed %d matches", len(res.Matches))
	if res.Status != event.StatusCompleted {
		logStatus = event.LogError
		msg = fmt.Sprintf("committed as %s with %d matches", res.Status, len(res.Matches))
	}
	return p.commitTerminal(ctx, res, logStatus, msg)
}

// fetchWithRetry applies the transport retry budget with backoff. HTTP
// failures are permanent: the site answers the same way on every attempt.
func (p *Pipeline) fetchWithRetry(ctx context.Context, eventID, pg int) ([]byte, error) {
	var body []byte
	operation := func() error {
		var err error
		body, err = p.fetcher.FetchPage(ctx, eventID, pg)
		if err == nil {
			return nil
		}
		var ferr *scraper.FetchError
		if errors.As(err, &ferr) && !ferr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(p.newBackOff(), uint64(p.retryBudget)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return body, nil
}

// commitTerminal writes the result with the bounded commit retry. On
// persistent storage failure the event stays absent from the store and is
// reported unresolved.
func (p *Pipeline) commitTerminal(ctx context.Context, res *event.Result, logStatus event.LogStatus, msg string) Outcome {
	var err error
	for attempt := 0; attempt <= p.commitRetries; attempt++ {
		if err = p.store.CommitEventResult(ctx, res); err == nil {
			p.store.AppendLog(ctx, event.LogEntry{
				EventID: res.EventID,
				Status:  logStatus,
				Message: msg,
				RunID:   p.runID,
			})
			return Outcome{
				EventID: res.EventID,
				Status:  res.Status,
				Matches: len(res.Matches),
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	p.log.Error("commit failed, event left unresolved",
		zap.Int("event_id", res.EventID),
		zap.String("stage", "committing"),
		zap.Error(err))
	p.store.AppendLog(ctx, event.LogEntry{
		EventID: res.EventID,
		Status:  event.LogError,
		Message: fmt.Sprintf("commit failed: %v", err),
		RunID:   p.runID,
	})
	return Outcome{EventID: res.EventID, Unresolved: true, Err: err}
}
