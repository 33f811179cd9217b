// Package cli wires the operational commands around the scraping core.
//
// Every command is a thin call into the progress store and scheduler
// contracts: run performs one incremental scrape, stats and tables inspect
// the store, reset destructively clears it, and export writes CSV
// snapshots. The store handle is opened per command and released when the
// command returns.
package cli
