// Package scheduler computes the set of events still needing work and
// dispatches them across a bounded pool of workers.
//
// The pending set is the event-id universe minus every id whose stored
// status is in the configured do-not-retry set, which is what makes repeated
// runs incremental: already-successful work is never re-fetched. Each
// pending id is enqueued exactly once, so at most one attempt per event is
// ever in flight.
package scheduler
