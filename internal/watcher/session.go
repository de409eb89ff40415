package watcher

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// State is a monitor session state.
type State string

const (
	StateDiscovering State = "discovering"
	StateMonitoring  State = "monitoring"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateTimedOut    State = "timed_out"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

// Tracker holds the discovered and completed job sets of one session.
// Both sets only grow, and a recorded conclusion is never overwritten.
type Tracker struct {
	discovered map[string]struct{}
	order      []string
	completed  map[string]string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		discovered: make(map[string]struct{}),
		completed:  make(map[string]string),
	}
}

// Discover adds names not seen before and returns them in the given order.
func (t *Tracker) Discover(names ...string) []string {
	var added []string

	for _, name := range names {
		if _, ok := t.discovered[name]; ok {
			continue
		}

		t.discovered[name] = struct{}{}
		t.order = append(t.order, name)
		added = append(added, name)
	}

	return added
}

// Record stores a terminal conclusion for a discovered job. It returns false
// when the job is unknown or already has a conclusion.
func (t *Tracker) Record(name, conclusion string) bool {
	if _, ok := t.discovered[name]; !ok {
		return false
	}

	if _, done := t.completed[name]; done {
		return false
	}

	t.completed[name] = conclusion

	return true
}

// Discovered returns the number of discovered jobs.
func (t *Tracker) Discovered() int {
	return len(t.discovered)
}

// Completed returns the number of jobs with a recorded conclusion.
func (t *Tracker) Completed() int {
	return len(t.completed)
}

// Done reports whether at least one job was discovered and all have concluded.
func (t *Tracker) Done() bool {
	return len(t.discovered) > 0 && len(t.completed) == len(t.discovered)
}

// Names returns discovered job names in discovery order.
func (t *Tracker) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)

	return out
}

// Incomplete returns the sorted names of discovered jobs without a conclusion.
func (t *Tracker) Incomplete() []string {
	var out []string

	for _, name := range t.order {
		if _, done := t.completed[name]; !done {
			out = append(out, name)
		}
	}

	sort.Strings(out)

	return out
}

// Conclusions returns a copy of the recorded conclusions.
func (t *Tracker) Conclusions() map[string]string {
	out := make(map[string]string, len(t.completed))
	for k, v := range t.completed {
		out[k] = v
	}

	return out
}

// Session is the state of one monitor invocation.
type Session struct {
	ID         string
	Start      time.Time
	Deadline   time.Time
	CurrentJob string
	State      State
	Tracker    *Tracker
}

// NewSession starts a session at start with an overall timeout.
func NewSession(currentJob string, start time.Time, timeout time.Duration) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Start:      start,
		Deadline:   start.Add(timeout),
		CurrentJob: currentJob,
		State:      StateDiscovering,
		Tracker:    NewTracker(),
	}
}

// Expired reports whether now is past the deadline.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.Deadline)
}
