package store

import (
	"context"
	"database/sql"

	"github.com/grapplerank/ajp-results/internal/event"
)

// Stats summarizes processing progress: per-status totals, match count, the
// processing time window, and the ten most recently processed events.
func (s *Store) Stats(ctx context.Context) (*event.StoreStats, error) {
	stats := &event.StoreStats{}

	var first, last sql.NullString
	var totalMatches sql.NullInt64
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END),
			SUM(matches_count),
			MIN(processed_at),
			MAX(processed_at)
		FROM processed_events`).Scan(
		&stats.TotalEvents,
		&nullInt{&stats.CompletedEvents},
		&nullInt{&stats.FailedEvents},
		&nullInt{&stats.PartialEvents},
		&totalMatches,
		&first,
		&last,
	)
	if err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}
	stats.TotalMatches = int(totalMatches.Int64)
	stats.FirstProcessed = first.String
	stats.LastProcessed = last.String

	rows, err := s.db.QueryxContext(ctx, `
		SELECT event_id, event_name, year, status, matches_count, processed_at, updated_at
		FROM processed_events
		ORDER BY processed_at DESC, event_id DESC
		LIMIT 10`)
	if err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var e event.Event
		var status string
		if err := rows.Scan(&e.ID, &e.Name, &e.Year, &status, &e.MatchCount, &e.ProcessedAt, &e.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "stats", Err: err}
		}
		e.Status = event.Status(status)
		stats.Recent = append(stats.Recent, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}
	return stats, nil
}

// nullInt scans a nullable SUM() result into an int, treating NULL as zero.
type nullInt struct {
	dst *int
}

func (n *nullInt) Scan(value interface{}) error {
	var v sql.NullInt64
	if err := v.Scan(value); err != nil {
		return err
	}
	*n.dst = int(v.Int64)
	return nil
}
