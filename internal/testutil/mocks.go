package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kyleking/gh-checkstatus/internal/github"
	"github.com/kyleking/gh-checkstatus/internal/watcher"
)

// MockGitHubClient replays a script of job snapshots. Each GetWorkflowRunJobs
// call returns the next snapshot; the last one repeats forever.
type MockGitHubClient struct {
	Snapshots [][]github.Job
	// Errs fails the call with the given zero-based index.
	Errs     map[int]error
	Files    []string
	FilesErr error

	// Clock, when set, is advanced by Latency on every jobs call and by
	// FilesLatency on every files call.
	Clock        *FakeClock
	Latency      time.Duration
	FilesLatency time.Duration

	Calls      int
	FilesCalls int
	PullNumber int
}

// NewMockGitHubClient creates a client replaying the given snapshots.
func NewMockGitHubClient(snapshots ...[]github.Job) *MockGitHubClient {
	return &MockGitHubClient{
		Snapshots: snapshots,
		Errs:      make(map[int]error),
	}
}

// WithError fails the call with the given index.
func (m *MockGitHubClient) WithError(call int, err error) *MockGitHubClient {
	m.Errs[call] = err
	return m
}

// WithFiles sets the pull request files response.
func (m *MockGitHubClient) WithFiles(files []string, err error) *MockGitHubClient {
	m.Files = files
	m.FilesErr = err

	return m
}

// WithLatency advances clock by d on every jobs call.
func (m *MockGitHubClient) WithLatency(clock *FakeClock, d time.Duration) *MockGitHubClient {
	m.Clock = clock
	m.Latency = d

	return m
}

// WithFilesLatency advances clock by d on every files call.
func (m *MockGitHubClient) WithFilesLatency(clock *FakeClock, d time.Duration) *MockGitHubClient {
	m.Clock = clock
	m.FilesLatency = d

	return m
}

func (m *MockGitHubClient) GetWorkflowRunJobs(ctx context.Context, runID int64) ([]github.Job, error) {
	call := m.Calls
	m.Calls++

	if m.Clock != nil {
		m.Clock.Advance(m.Latency)
	}

	if err, ok := m.Errs[call]; ok {
		return nil, err
	}

	if len(m.Snapshots) == 0 {
		return nil, nil
	}

	if call >= len(m.Snapshots) {
		call = len(m.Snapshots) - 1
	}

	out := make([]github.Job, len(m.Snapshots[call]))
	copy(out, m.Snapshots[call])

	return out, nil
}

func (m *MockGitHubClient) ListPullRequestFiles(ctx context.Context, number int) ([]string, error) {
	m.FilesCalls++
	m.PullNumber = number

	if m.Clock != nil {
		m.Clock.Advance(m.FilesLatency)
	}

	if m.FilesErr != nil {
		return nil, m.FilesErr
	}

	return m.Files, nil
}

// Jobs builds a snapshot from "name:conclusion" specs. An empty conclusion
// ("name:" or "name") means the job is still running.
func Jobs(specs ...string) []github.Job {
	jobs := make([]github.Job, len(specs))

	for i, spec := range specs {
		name, conclusion, _ := strings.Cut(spec, ":")

		status := github.StatusInProgress
		if conclusion != "" {
			status = github.StatusCompleted
		}

		jobs[i] = github.Job{
			ID:         int64(i + 1),
			Name:       name,
			Status:     status,
			Conclusion: conclusion,
		}
	}

	return jobs
}

// RecordingReporter collects progress events.
type RecordingReporter struct {
	Events []watcher.Event
}

// Report appends ev.
func (r *RecordingReporter) Report(ev watcher.Event) {
	r.Events = append(r.Events, ev)
}

// Kinds returns the kinds of all recorded events in order.
func (r *RecordingReporter) Kinds() []watcher.EventKind {
	out := make([]watcher.EventKind, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Kind
	}

	return out
}

// Of returns the events of one kind.
func (r *RecordingReporter) Of(kind watcher.EventKind) []watcher.Event {
	var out []watcher.Event

	for _, ev := range r.Events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}

	return out
}

// Jobs returns the Job field of every event of one kind.
func (r *RecordingReporter) Jobs(kind watcher.EventKind) []string {
	var out []string
	for _, ev := range r.Of(kind) {
		out = append(out, ev.Job)
	}

	return out
}

// String renders the recorded events for failure messages.
func (r *RecordingReporter) String() string {
	var sb strings.Builder
	for _, ev := range r.Events {
		fmt.Fprintf(&sb, "%+v\n", ev)
	}

	return sb.String()
}
