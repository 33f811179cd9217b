package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/grapplerank/ajp-results/internal/event"
	"github.com/grapplerank/ajp-results/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), 1000)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func commitEvent(t *testing.T, s *store.Store, id, matches int, status event.Status) {
	t.Helper()
	res := &event.Result{
		EventID: id,
		Name:    fmt.Sprintf("Grand Slam %d", id),
		Year:    2022,
		Status:  status,
	}
	for i := 0; i < matches; i++ {
		res.Matches = append(res.Matches, event.Match{
			Athlete1:  fmt.Sprintf("A%d-%d", id, i),
			Athlete2:  fmt.Sprintf("B%d-%d", id, i),
			Winner:    fmt.Sprintf("A%d-%d", id, i),
			WinnerVia: "SUBMISSION",
			Time:      "03:30",
			EventName: res.Name,
			Year:      2022,
			EventID:   id,
		})
	}
	if err := s.CommitEventResult(context.Background(), res); err != nil {
		t.Fatalf("commit event %d: %v", id, err)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return records
}

func TestExportFidelity(t *testing.T) {
	tests := []struct {
		name   string
		events int
	}{
		{"empty store", 0},
		{"single event", 1},
		{"many events", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			for id := 1; id <= tt.events; id++ {
				commitEvent(t, s, id, id, event.StatusCompleted)
			}

			dir, err := New(s, t.TempDir()).Export(ctx)
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}

			snap, err := s.Snapshot(ctx)
			if err != nil {
				t.Fatalf("Snapshot failed: %v", err)
			}

			// Reloading the artifacts must yield the same (event_id,
			// match) pairs as querying the store directly.
			records := readCSV(t, filepath.Join(dir, "matches.csv"))
			if len(records)-1 != len(snap.Matches) {
				t.Fatalf("matches.csv has %d rows, store has %d matches", len(records)-1, len(snap.Matches))
			}
			type pair struct{ eventID, athlete1 string }
			fromCSV := make(map[pair]int)
			for _, rec := range records[1:] {
				fromCSV[pair{rec[14], rec[0]}]++
			}
			fromStore := make(map[pair]int)
			for _, m := range snap.Matches {
				fromStore[pair{fmt.Sprint(m.EventID), m.Athlete1}]++
			}
			if len(fromCSV) != len(fromStore) {
				t.Fatalf("csv pairs = %v, store pairs = %v", fromCSV, fromStore)
			}
			for p, n := range fromStore {
				if fromCSV[p] != n {
					t.Errorf("pair %v: csv %d, store %d", p, fromCSV[p], n)
				}
			}

			events := readCSV(t, filepath.Join(dir, "events.csv"))
			if len(events)-1 != len(snap.Events) {
				t.Errorf("events.csv has %d rows, store has %d events", len(events)-1, len(snap.Events))
			}
		})
	}
}

func TestExportWritesAllArtifacts(t *testing.T) {
	s := newTestStore(t)
	commitEvent(t, s, 1, 2, event.StatusPartial)
	s.AppendLog(context.Background(), event.LogEntry{EventID: 1, Status: event.LogError, Message: "2 rows skipped", RunID: "run-3"})

	dir, err := New(s, t.TempDir()).Export(context.Background())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	for _, name := range []string{"matches.csv", "events.csv", "scraping_logs.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	logs := readCSV(t, filepath.Join(dir, "scraping_logs.csv"))
	if len(logs) != 2 {
		t.Fatalf("scraping_logs.csv has %d rows, expected header + 1", len(logs))
	}
	if logs[1][3] != "run-3" {
		t.Errorf("log run_id = %q, expected run-3", logs[1][3])
	}

	events := readCSV(t, filepath.Join(dir, "events.csv"))
	if events[1][3] != string(event.StatusPartial) {
		t.Errorf("event status = %q, expected partial", events[1][3])
	}
}
