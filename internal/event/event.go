package event

import (
	"fmt"
	"time"
)

// Status is the processing state of an event in the progress store.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// Terminal reports whether s ends an event's processing for the current
// attempt.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown event status: %q", s)
	}
	return st, nil
}

// Event represents one AJP Tour competition instance
type Event struct {
	ID          int       `json:"event_id"`
	Name        string    `json:"event_name"`
	Year        int       `json:"year"`
	Status      Status    `json:"status"`
	MatchCount  int       `json:"matches_count"`
	ProcessedAt time.Time `json:"processed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Match represents a single bout within an event
type Match struct {
	Athlete1  string `json:"athlete1"`
	Team1     string `json:"team1"`
	Athlete2  string `json:"athlete2"`
	Team2     string `json:"team2"`
	Winner    string `json:"winner"`
	WinnerVia string `json:"winner_via"`
	Time      string `json:"time"`
	Category  string `json:"category"`
	Belt      string `json:"belt"`
	Type      string `json:"type"`
	Weight    string `json:"weight"`
	Day       string `json:"day"`
	EventName string `json:"event_name"`
	Year      int    `json:"year"`
	EventID   int    `json:"event_id"`
}

// Result is the outcome of one pipeline attempt for one event: the terminal
// status together with every match extracted for it. It is committed to the
// progress store as a single atomic unit.
type Result struct {
	EventID int
	Name    string
	Year    int
	Status  Status
	Matches []Match
}

// LogStatus classifies a scraping log entry.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogError   LogStatus = "error"
	LogSkipped LogStatus = "skipped"
)

// LogEntry is one append-only scraping audit record. Entries are diagnostic
// only; resume decisions never read them.
type LogEntry struct {
	EventID   int       `json:"event_id"`
	Status    LogStatus `json:"status"`
	Message   string    `json:"message"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RunSummary reports one scheduler run. Pending, Skipped, Unresolved, and
// Matches describe this run's work; Completed, Failed, and Partial are the
// stored per-status totals after the run, so a pre-completed event counts
// toward Completed even though it was never dispatched.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Pending    int           `json:"pending"`
	Skipped    int           `json:"skipped"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Partial    int           `json:"partial"`
	Unresolved int           `json:"unresolved"`
	Matches    int           `json:"matches"`
	Duration   time.Duration `json:"duration_ns"`
}

// Processed returns how many events hold a committed terminal status after
// the run.
func (s RunSummary) Processed() int {
	return s.Completed + s.Failed + s.Partial
}

// StoreStats summarizes the progress store contents.
type StoreStats struct {
	TotalEvents     int     `json:"total_events"`
	CompletedEvents int     `json:"completed_events"`
	FailedEvents    int     `json:"failed_events"`
	PartialEvents   int     `json:"partial_events"`
	TotalMatches    int     `json:"total_matches"`
	FirstProcessed  string  `json:"first_processed,omitempty"`
	LastProcessed   string  `json:"last_processed,omitempty"`
	Recent          []Event `json:"recent,omitempty"`
}

// Snapshot is a point-in-time consistent view of all committed store state,
// read in a single transaction. It feeds the CSV export stage.
type Snapshot struct {
	Events  []Event    `json:"events"`
	Matches []Match    `json:"matches"`
	Logs    []LogEntry `json:"logs"`
	TakenAt time.Time  `json:"taken_at"`
}
