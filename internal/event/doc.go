// Package event defines the domain model for AJP competition results.
//
// An Event is one competition instance on the AJP Tour, identified by the
// integer id the site assigns it. A Match is one recorded bout within an
// event. Events carry a processing status that drives incremental scraping:
// only events whose status is outside the configured do-not-retry set are
// re-attempted on later runs.
package event
