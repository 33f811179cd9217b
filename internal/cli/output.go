package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/grapplerank/ajp-results/internal/event"
	"github.com/grapplerank/ajp-results/internal/store"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// WriteSummary writes a run summary in the specified format.
func WriteSummary(w io.Writer, summary event.RunSummary, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, summary)
	}

	fmt.Fprintln(w, "Run summary")
	fmt.Fprintln(w, "===========")
	fmt.Fprintf(w, "Run ID:       %s\n", summary.RunID)
	fmt.Fprintf(w, "Pending:      %d\n", summary.Pending)
	fmt.Fprintf(w, "Skipped:      %d\n", summary.Skipped)
	fmt.Fprintf(w, "Completed:    %d\n", summary.Completed)
	fmt.Fprintf(w, "Failed:       %d\n", summary.Failed)
	fmt.Fprintf(w, "Partial:      %d\n", summary.Partial)
	fmt.Fprintf(w, "Unresolved:   %d\n", summary.Unresolved)
	fmt.Fprintf(w, "Matches:      %d\n", summary.Matches)
	fmt.Fprintf(w, "Duration:     %s\n", summary.Duration.Round(time.Millisecond))
	return nil
}

// WriteStats writes store statistics in the specified format.
func WriteStats(w io.Writer, stats *event.StoreStats, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, stats)
	}

	fmt.Fprintln(w, "Processing statistics")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintf(w, "Total events:     %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Completed events: %d\n", stats.CompletedEvents)
	fmt.Fprintf(w, "Failed events:    %d\n", stats.FailedEvents)
	fmt.Fprintf(w, "Partial events:   %d\n", stats.PartialEvents)
	fmt.Fprintf(w, "Total matches:    %d\n", stats.TotalMatches)
	if stats.FirstProcessed != "" {
		fmt.Fprintf(w, "First processed:  %s\n", stats.FirstProcessed)
		fmt.Fprintf(w, "Last processed:   %s\n", stats.LastProcessed)
	}

	if len(stats.Recent) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Most recently processed")
		fmt.Fprintf(w, "%-6s %-40s %-6s %-10s %s\n", "ID", "Name", "Year", "Status", "Matches")
		for _, e := range stats.Recent {
			name := e.Name
			if len(name) > 38 {
				name = name[:38] + ".."
			}
			fmt.Fprintf(w, "%-6d %-40s %-6d %-10s %d\n", e.ID, name, e.Year, e.Status, e.MatchCount)
		}
	}
	return nil
}

// WriteTables writes table structure information in the specified format.
func WriteTables(w io.Writer, tables []store.TableInfo, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, tables)
	}

	for i, tbl := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Table: %s (%d rows)\n", tbl.Name, tbl.Rows)
		fmt.Fprintf(w, "%-20s %-12s %-8s %-8s %s\n", "Column", "Type", "NotNull", "PK", "Default")
		for _, col := range tbl.Columns {
			fmt.Fprintf(w, "%-20s %-12s %-8v %-8v %s\n",
				col.Name, col.Type, col.NotNull, col.PrimaryKey, col.Default)
		}
	}
	return nil
}
