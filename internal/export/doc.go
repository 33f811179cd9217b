// Package export materializes point-in-time store snapshots as CSV files
// for downstream analysis.
//
// Each export writes a timestamped directory containing one file per
// relation (matches, events, scraping logs). The rows come from a single
// consistent store read, so no half-written event can appear in the
// artifacts.
package export
