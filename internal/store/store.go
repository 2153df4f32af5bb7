// Package store holds the client's in-memory view-state caches: messages
// by channel, agents by project, tasks by project, channels by project.
//
// Stores are fed by realtime events (each store exposes an Apply handler
// the shell binds to the event dispatcher) and by REST snapshots merged in
// after a reconnect. Applying the same event twice is a no-op, and merges
// resolve conflicts by record timestamp, newer wins, so a stale snapshot
// can never clobber fresher event-driven state.
package store

import "time"

// recordTime picks the authoritative timestamp for a record: its own
// update time when the server set one, otherwise the event envelope time.
func recordTime(eventTS time.Time, recordTS ...time.Time) time.Time {
	for _, ts := range recordTS {
		if !ts.IsZero() {
			return ts
		}
	}
	return eventTS
}
