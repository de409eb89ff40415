package watcher

import "time"

// EventKind identifies a progress event.
type EventKind int

const (
	// EventExcluding lists the active exclusion patterns.
	EventExcluding EventKind = iota
	// EventGateSkipped means no changed file matched the gating patterns.
	EventGateSkipped
	// EventWaiting starts the initial wait for sibling jobs.
	EventWaiting
	// EventDiscoveryComplete ends the initial wait with Count jobs found.
	EventDiscoveryComplete
	// EventMonitoring starts the completion poll loop.
	EventMonitoring
	// EventJobDiscovered announces a newly seen job.
	EventJobDiscovered
	// EventJobSucceeded records a success, or a skip treated as success.
	EventJobSucceeded
	// EventAwaitingJob reports a required job missing from the run.
	EventAwaitingJob
	// EventProgress lists jobs still pending after a poll.
	EventProgress
	// EventSucceeded ends the session successfully.
	EventSucceeded
)

// Event is a structured progress notification.
type Event struct {
	Kind       EventKind
	SessionID  string
	Job        string
	Conclusion string
	Patterns   []string
	Pending    []string
	Count      int
	Completed  int
	Discovered int
	Attempt    int
	Attempts   int
	Wait       time.Duration
	Interval   time.Duration
	Timeout    time.Duration
	Elapsed    time.Duration
}
