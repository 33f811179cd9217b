// Package scraper provides HTTP fetching and HTML parsing for AJP Tour match
// list pages.
//
// The Fetcher issues bounded-timeout requests for one event page at a time
// and classifies failures as timeout, connection, or HTTP errors; it carries
// no retry logic. ParseMatchList is a pure function from page HTML to event
// metadata and match records, so it can be tested against fixture content
// without any network access.
package scraper
