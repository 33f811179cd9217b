package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"

	"github.com/grapplerank/ajp-results/internal/event"
	"github.com/grapplerank/ajp-results/internal/scraper"
)

// fakeFetcher serves canned pages keyed by page number and counts attempts.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[int][]byte
	err      error
	attempts int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, eventID, page int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[page]
	if !ok {
		return nil, &scraper.FetchError{Kind: scraper.FailHTTP, EventID: eventID, Page: page, StatusCode: 404}
	}
	return body, nil
}

func (f *fakeFetcher) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// fakeStore records commits and can be made to fail.
type fakeStore struct {
	mu          sync.Mutex
	commits     []*event.Result
	logs        []event.LogEntry
	commitErr   error
	commitCalls int
}

func (s *fakeStore) CommitEventResult(ctx context.Context, res *event.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitCalls++
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits = append(s.commits, res)
	return nil
}

func (s *fakeStore) AppendLog(ctx context.Context, entry event.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
}

func newTestPipeline(f Fetcher, s Store, opts ...Option) *Pipeline {
	base := []Option{
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}
	return New(f, s, append(base, opts...)...)
}

func matchRow(athlete1, athlete2 string) string {
	return fmt.Sprintf(`<div class="match-row well well-inverted well-extra-condensed end">
		<span class="participant ok">%s</span>
		<span class="club">Team A</span>
		<span class="participant">%s</span>
		<span class="club">Team B</span>
		<span class="text-success">Won by POINTS - 05:00</span>
	</div>`, athlete1, athlete2)
}

func singlePage(name string, rows ...string) []byte {
	body := "<html><body><h1>" + name + "</h1><div class=\"event-header-date\">2022</div>"
	body += `<div class="category-row">Gi / Purple / Adult / 85KG</div>`
	for _, r := range rows {
		body += r
	}
	return []byte(body + "</body></html>")
}

func TestProcessCompleted(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]byte{
		1: singlePage("Grand Slam Rio", matchRow("ANA", "BIA"), matchRow("CLARA", "DUDA")),
	}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store, WithRunID("run-1")).Process(context.Background(), 12)

	if outcome.Unresolved {
		t.Fatalf("unexpected unresolved outcome: %v", outcome.Err)
	}
	if outcome.Status != event.StatusCompleted {
		t.Errorf("status = %q, expected completed", outcome.Status)
	}
	if outcome.Matches != 2 {
		t.Errorf("matches = %d, expected 2", outcome.Matches)
	}
	if len(store.commits) != 1 {
		t.Fatalf("got %d commits, expected 1", len(store.commits))
	}
	res := store.commits[0]
	if res.Name != "Grand Slam Rio" || res.Year != 2022 {
		t.Errorf("committed metadata = %q / %d", res.Name, res.Year)
	}
	for _, m := range res.Matches {
		if m.EventID != 12 {
			t.Errorf("match event id = %d, expected 12", m.EventID)
		}
	}
	if len(store.logs) != 1 || store.logs[0].Status != event.LogSuccess {
		t.Errorf("logs = %+v, expected one success entry", store.logs)
	}
	if store.logs[0].RunID != "run-1" {
		t.Errorf("log run id = %q", store.logs[0].RunID)
	}
}

func TestProcessZeroMatchesStillCompleted(t *testing.T) {
	// A page with a valid event header and no match rows is a legitimate
	// empty event, not a failure.
	fetcher := &fakeFetcher{pages: map[int][]byte{
		1: singlePage("Grand Slam Tokyo"),
	}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store).Process(context.Background(), 3)

	if outcome.Status != event.StatusCompleted || outcome.Matches != 0 {
		t.Errorf("outcome = %+v, expected completed with 0 matches", outcome)
	}
}

func TestRetryBudgetRespected(t *testing.T) {
	fetcher := &fakeFetcher{
		err: &scraper.FetchError{Kind: scraper.FailTimeout, EventID: 7, Page: 1, Err: errors.New("deadline exceeded")},
	}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store, WithRetryBudget(3)).Process(context.Background(), 7)

	if got := fetcher.attemptCount(); got != 4 {
		t.Errorf("fetch attempts = %d, expected retry budget + 1 = 4", got)
	}
	if outcome.Status != event.StatusFailed {
		t.Errorf("status = %q, expected failed", outcome.Status)
	}
	if len(store.commits) != 1 || len(store.commits[0].Matches) != 0 {
		t.Fatalf("expected one committed failed result with zero matches, got %+v", store.commits)
	}
	if store.commits[0].Status != event.StatusFailed {
		t.Errorf("committed status = %q", store.commits[0].Status)
	}
}

func TestHTTPFailureNotRetried(t *testing.T) {
	// Unknown event ids answer with a redirect/404 on every attempt;
	// retrying cannot change that.
	fetcher := &fakeFetcher{pages: map[int][]byte{}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store, WithRetryBudget(5)).Process(context.Background(), 999)

	if got := fetcher.attemptCount(); got != 1 {
		t.Errorf("fetch attempts = %d, expected 1 for permanent http failure", got)
	}
	if outcome.Status != event.StatusFailed {
		t.Errorf("status = %q, expected failed", outcome.Status)
	}
}

func TestParseFailureNotRetried(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]byte{
		1: []byte("<html><body><p>maintenance</p></body></html>"),
	}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store, WithRetryBudget(5)).Process(context.Background(), 8)

	if got := fetcher.attemptCount(); got != 1 {
		t.Errorf("fetch attempts = %d, expected 1 (parse errors are terminal)", got)
	}
	if outcome.Status != event.StatusFailed {
		t.Errorf("status = %q, expected failed", outcome.Status)
	}
	if len(store.commits) != 1 {
		t.Fatalf("expected the parse failure to be committed")
	}
}

func TestSkippedRowsCommitPartial(t *testing.T) {
	page := singlePage("Grand Slam Miami",
		matchRow("EVA", "FLOR"),
		`<div class="match-row well well-inverted well-extra-condensed end"><span class="club">Lonely Club</span></div>`)
	fetcher := &fakeFetcher{pages: map[int][]byte{1: page}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store).Process(context.Background(), 4)

	if outcome.Status != event.StatusPartial {
		t.Errorf("status = %q, expected partial", outcome.Status)
	}
	if outcome.Matches != 1 {
		t.Errorf("matches = %d, expected 1", outcome.Matches)
	}
}

func TestMissingEventNameCommitsPartial(t *testing.T) {
	page := []byte(`<html><body>
		<div class="category-row">Gi / Blue / Adult / 62KG</div>` +
		matchRow("GINA", "HELO") + `</body></html>`)
	fetcher := &fakeFetcher{pages: map[int][]byte{1: page}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store).Process(context.Background(), 5)

	if outcome.Status != event.StatusPartial {
		t.Errorf("status = %q, expected partial", outcome.Status)
	}
}

func TestMultiPageAccumulates(t *testing.T) {
	page1 := singlePage("Grand Slam Abu Dhabi", matchRow("IVY", "JO"))
	// Three pagination items mean two fetchable pages.
	page1 = append(page1[:len(page1)-len("</body></html>")], []byte(`
		<ul class="pagination"><li>1</li><li>2</li><li>&raquo;</li></ul></body></html>`)...)
	page2 := singlePage("Grand Slam Abu Dhabi", matchRow("KIM", "LIA"), matchRow("MEL", "NIA"))

	fetcher := &fakeFetcher{pages: map[int][]byte{1: page1, 2: page2}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store).Process(context.Background(), 6)

	if outcome.Status != event.StatusCompleted {
		t.Errorf("status = %q, expected completed", outcome.Status)
	}
	if outcome.Matches != 3 {
		t.Errorf("matches = %d, expected 3 across two pages", outcome.Matches)
	}
}

func TestSubpageFailureCommitsPartial(t *testing.T) {
	page1 := singlePage("Grand Slam London", matchRow("OLA", "PIA"))
	page1 = append(page1[:len(page1)-len("</body></html>")], []byte(`
		<ul class="pagination"><li>1</li><li>2</li><li>&raquo;</li></ul></body></html>`)...)

	// Page 2 is missing, so the fake answers 404.
	fetcher := &fakeFetcher{pages: map[int][]byte{1: page1}}
	store := &fakeStore{}

	outcome := newTestPipeline(fetcher, store).Process(context.Background(), 2)

	if outcome.Status != event.StatusPartial {
		t.Errorf("status = %q, expected partial", outcome.Status)
	}
	if outcome.Matches != 1 {
		t.Errorf("matches = %d, expected 1", outcome.Matches)
	}
}

func TestStorageFailureLeavesUnresolved(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]byte{
		1: singlePage("Grand Slam Paris", matchRow("QUIN", "RAY")),
	}}
	store := &fakeStore{commitErr: errors.New("database is locked")}

	outcome := newTestPipeline(fetcher, store, WithCommitRetries(2)).Process(context.Background(), 11)

	if !outcome.Unresolved {
		t.Fatal("expected unresolved outcome on persistent storage failure")
	}
	if outcome.Err == nil {
		t.Error("expected outcome error")
	}
	if store.commitCalls != 3 {
		t.Errorf("commit attempts = %d, expected commit retries + 1 = 3", store.commitCalls)
	}
	if len(store.commits) != 0 {
		t.Errorf("store should hold nothing for an unresolved event, got %d commits", len(store.commits))
	}
}
