package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/grapplerank/ajp-results/internal/event"
)

// SnapshotSource provides a consistent view of all committed store state.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*event.Snapshot, error)
}

// Exporter writes CSV snapshot artifacts under a parent directory.
type Exporter struct {
	source SnapshotSource
	dir    string
	log    *zap.Logger
}

// New creates an Exporter writing below dir.
func New(source SnapshotSource, dir string) *Exporter {
	return &Exporter{source: source, dir: dir, log: zap.L()}
}

// Export snapshots the store and writes matches.csv, events.csv, and
// scraping_logs.csv into a new timestamped directory, returning its path.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	target := filepath.Join(e.dir, "export_"+snap.TakenAt.Format("20060102_150405"))
	if err := os.MkdirAll(target, 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	if err := writeCSV(filepath.Join(target, "matches.csv"), matchHeader, matchRecords(snap.Matches)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(target, "events.csv"), eventHeader, eventRecords(snap.Events)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(target, "scraping_logs.csv"), logHeader, logRecords(snap.Logs)); err != nil {
		return "", err
	}

	e.log.Info("snapshot exported",
		zap.String("dir", target),
		zap.Int("events", len(snap.Events)),
		zap.Int("matches", len(snap.Matches)))
	return target, nil
}

var (
	matchHeader = []string{
		"athlete1", "team1", "athlete2", "team2", "winner", "winner_via", "time",
		"category", "belt", "type", "weight", "day", "event_name", "year", "event_id",
	}
	eventHeader = []string{"event_id", "event_name", "year", "status", "matches_count", "processed_at", "updated_at"}
	logHeader   = []string{"event_id", "status", "message", "run_id", "created_at"}
)

func matchRecords(matches []event.Match) [][]string {
	records := make([][]string, 0, len(matches))
	for _, m := range matches {
		records = append(records, []string{
			m.Athlete1, m.Team1, m.Athlete2, m.Team2, m.Winner, m.WinnerVia, m.Time,
			m.Category, m.Belt, m.Type, m.Weight, m.Day, m.EventName,
			strconv.Itoa(m.Year), strconv.Itoa(m.EventID),
		})
	}
	return records
}

func eventRecords(events []event.Event) [][]string {
	records := make([][]string, 0, len(events))
	for _, e := range events {
		records = append(records, []string{
			strconv.Itoa(e.ID), e.Name, strconv.Itoa(e.Year), string(e.Status),
			strconv.Itoa(e.MatchCount),
			e.ProcessedAt.UTC().Format(time.RFC3339),
			e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return records
}

func logRecords(logs []event.LogEntry) [][]string {
	records := make([][]string, 0, len(logs))
	for _, l := range logs {
		records = append(records, []string{
			strconv.Itoa(l.EventID), string(l.Status), l.Message, l.RunID,
			l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return records
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}
