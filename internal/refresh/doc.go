// Package refresh owns the last-known-good telemetry snapshot.
//
// A Cache runs a single background scheduler that periodically queries the
// store, parses the response and builds the category views. A new snapshot
// is published only when the cycle succeeded with at least one field;
// otherwise the previous snapshot keeps being served.
//
// # States
//
//	Empty --success--> Fresh
//	Fresh --success--> Fresh   (replaced)
//	Fresh --failure--> Stale   (once older than the interval)
//	Stale --success--> Fresh
//	Stale --failure--> Stale
//
// # Concurrency
//
// The snapshot and its update time are swapped as one immutable value, so
// readers observe either the old or the new snapshot in full. Reads never
// block on a running cycle. Cycles are serialised: ForceRefresh and the
// scheduler never query the store at the same time.
//
// # Failure handling
//
// A panic inside a cycle is recovered at the scheduler boundary and counted
// as a failure. After any failure the next attempt follows an exponential
// back-off capped at the configured retry delay; a success restores the
// normal interval.
package refresh
