package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/grapplerank/ajp-results/internal/event"
)

// maxRowsPerInsert caps the rows in one multi-row INSERT so the placeholder
// count stays under SQLite's variable limit (15 columns per match row).
const maxRowsPerInsert = 500

// StorageError is a typed storage failure. Any write wrapped in it left
// prior store state unchanged; the caller decides whether to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store wraps the SQLite database holding scraping progress.
type Store struct {
	db        *sqlx.DB
	chunkSize int
}

// Open connects to (or creates) the SQLite database at path and ensures the
// schema exists. chunkSize bounds the rows per insert statement inside
// commit transactions.
func Open(path string, chunkSize int) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	if chunkSize <= 0 || chunkSize > maxRowsPerInsert {
		chunkSize = maxRowsPerInsert
	}

	s := &Store{db: db, chunkSize: chunkSize}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER UNIQUE NOT NULL,
		event_name TEXT,
		year INTEGER,
		status TEXT DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed', 'partial')),
		matches_count INTEGER DEFAULT 0,
		processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		athlete1 TEXT,
		team1 TEXT,
		athlete2 TEXT,
		team2 TEXT,
		winner TEXT,
		winner_via TEXT,
		time TEXT,
		category TEXT,
		belt TEXT,
		type TEXT,
		weight TEXT,
		day TEXT,
		event_name TEXT,
		year INTEGER,
		event_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS scraping_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER,
		status TEXT CHECK (status IN ('success', 'error', 'skipped')),
		message TEXT,
		run_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_event_id ON processed_events(event_id);
	CREATE INDEX IF NOT EXISTS idx_status ON processed_events(status);
	CREATE INDEX IF NOT EXISTS idx_year ON processed_events(year);
	CREATE INDEX IF NOT EXISTS idx_matches_event_id ON matches(event_id);
	CREATE INDEX IF NOT EXISTS idx_matches_event_name ON matches(event_name);
	CREATE INDEX IF NOT EXISTS idx_matches_year ON matches(year);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &StorageError{Op: "init schema", Err: err}
	}
	return nil
}

// KnownOutcomes returns the stored status of every event ever attempted.
func (s *Store) KnownOutcomes(ctx context.Context) (map[int]event.Status, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT event_id, status FROM processed_events`)
	if err != nil {
		return nil, &StorageError{Op: "known outcomes", Err: err}
	}
	defer rows.Close()

	outcomes := make(map[int]event.Status)
	for rows.Next() {
		var id int
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, &StorageError{Op: "known outcomes", Err: err}
		}
		st, err := event.ParseStatus(status)
		if err != nil {
			return nil, &StorageError{Op: "known outcomes", Err: err}
		}
		outcomes[id] = st
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "known outcomes", Err: err}
	}
	return outcomes, nil
}

// CommitEventResult atomically records an event's terminal status together
// with all its match rows. Any previously committed matches for the event
// are replaced in the same transaction, so a retried event never duplicates
// rows. On error nothing is written.
func (s *Store) CommitEventResult(ctx context.Context, res *event.Result) error {
	if !res.Status.Terminal() {
		return &StorageError{Op: "commit", Err: fmt.Errorf("status %q is not terminal", res.Status)}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE event_id = ?`, res.EventID); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}

	for start := 0; start < len(res.Matches); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(res.Matches) {
			end = len(res.Matches)
		}
		if err := insertMatches(ctx, tx, res.EventID, res.Matches[start:end]); err != nil {
			return &StorageError{Op: "commit", Err: err}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, event_name, year, status, matches_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			event_name = excluded.event_name,
			year = excluded.year,
			status = excluded.status,
			matches_count = excluded.matches_count,
			updated_at = CURRENT_TIMESTAMP`,
		res.EventID, res.Name, res.Year, string(res.Status), len(res.Matches))
	if err != nil {
		return &StorageError{Op: "commit", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}

func insertMatches(ctx context.Context, tx *sqlx.Tx, eventID int, matches []event.Match) error {
	if len(matches) == 0 {
		return nil
	}

	const cols = 15
	query := `INSERT INTO matches (
		athlete1, team1, athlete2, team2, winner, winner_via, time,
		category, belt, type, weight, day, event_name, year, event_id
	) VALUES `
	args := make([]interface{}, 0, len(matches)*cols)
	for i, m := range matches {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			m.Athlete1, m.Team1, m.Athlete2, m.Team2, m.Winner, m.WinnerVia, m.Time,
			m.Category, m.Belt, m.Type, m.Weight, m.Day, m.EventName, m.Year, eventID)
	}

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// AppendLog records a scraping log entry. It is best-effort: failures are
// reported locally and never returned, so logging can never abort a commit.
func (s *Store) AppendLog(ctx context.Context, entry event.LogEntry) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scraping_logs (event_id, status, message, run_id) VALUES (?, ?, ?, ?)`,
		entry.EventID, string(entry.Status), entry.Message, entry.RunID)
	if err != nil {
		zap.L().Warn("failed to append scraping log",
			zap.Int("event_id", entry.EventID),
			zap.Error(err))
	}
}

// Reset destructively clears all event, match, and log state. Irreversible;
// used for a full re-scrape.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "reset", Err: err}
	}
	defer tx.Rollback()

	for _, table := range []string{"matches", "processed_events", "scraping_logs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return &StorageError{Op: "reset", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "reset", Err: err}
	}
	return nil
}

// Snapshot reads all committed state in one transaction, so the result is a
// point-in-time consistent view with no half-written event visible.
func (s *Store) Snapshot(ctx context.Context) (*event.Snapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}
	defer tx.Rollback()

	snap := &event.Snapshot{TakenAt: time.Now().UTC()}

	rows, err := tx.QueryxContext(ctx, `
		SELECT event_id, event_name, year, status, matches_count, processed_at, updated_at
		FROM processed_events ORDER BY event_id`)
	if err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}
	for rows.Next() {
		var e event.Event
		var status string
		if err := rows.Scan(&e.ID, &e.Name, &e.Year, &status, &e.MatchCount, &e.ProcessedAt, &e.UpdatedAt); err != nil {
			rows.Close()
			return nil, &StorageError{Op: "snapshot", Err: err}
		}
		e.Status = event.Status(status)
		snap.Events = append(snap.Events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}

	rows, err = tx.QueryxContext(ctx, `
		SELECT athlete1, team1, athlete2, team2, winner, winner_via, time,
		       category, belt, type, weight, day, event_name, year, event_id
		FROM matches ORDER BY event_id, id`)
	if err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}
	for rows.Next() {
		var m event.Match
		if err := rows.Scan(&m.Athlete1, &m.Team1, &m.Athlete2, &m.Team2, &m.Winner,
			&m.WinnerVia, &m.Time, &m.Category, &m.Belt, &m.Type, &m.Weight, &m.Day,
			&m.EventName, &m.Year, &m.EventID); err != nil {
			rows.Close()
			return nil, &StorageError{Op: "snapshot", Err: err}
		}
		snap.Matches = append(snap.Matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}

	rows, err = tx.QueryxContext(ctx, `
		SELECT event_id, status, message, run_id, created_at
		FROM scraping_logs ORDER BY id`)
	if err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}
	for rows.Next() {
		var entry event.LogEntry
		var status string
		if err := rows.Scan(&entry.EventID, &status, &entry.Message, &entry.RunID, &entry.CreatedAt); err != nil {
			rows.Close()
			return nil, &StorageError{Op: "snapshot", Err: err}
		}
		entry.Status = event.LogStatus(status)
		snap.Logs = append(snap.Logs, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Op: "snapshot", Err: err}
	}
	return snap, nil
}
