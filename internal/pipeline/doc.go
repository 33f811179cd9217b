// Package pipeline runs the per-event ingestion unit of work: fetch every
// page of an event's match list, parse it, and commit the terminal outcome
// atomically to the progress store.
//
// Retry policy lives here rather than in the fetch client so that attempt
// counts and backoff are observable and testable independently of transport
// concerns. Transport failures are retried under a bounded budget; parse
// failures are terminal immediately; storage failures are retried briefly
// and then left unresolved so the next run re-attempts the event from
// scratch.
package pipeline
