// Package watcher decides whether the sibling jobs of a workflow run all
// finished successfully, polling the run's job list under an overall deadline.
package watcher

import (
	"context"

	"github.com/kyleking/gh-checkstatus/internal/github"
)

// GitHubClient defines the GitHub API operations needed by the monitor.
type GitHubClient interface {
	GetWorkflowRunJobs(ctx context.Context, runID int64) ([]github.Job, error)
	ListPullRequestFiles(ctx context.Context, number int) ([]string, error)
}

// Reporter receives progress events. Calls happen on the monitor's goroutine.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(ev).
func (f ReporterFunc) Report(ev Event) {
	f(ev)
}

type nopReporter struct{}

func (nopReporter) Report(Event) {}
