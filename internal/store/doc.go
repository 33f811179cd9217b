// Package store implements the SQLite progress store.
//
// The store is the single source of truth for what has been scraped. It
// records every attempted event with its outcome, the match rows committed
// for it, and an append-only scraping log. An event's status and its matches
// are always written in one transaction, so no orphaned matches and no
// half-written events are ever visible, and re-running the scraper can rely
// on the recorded outcomes alone to decide what still needs work.
package store
