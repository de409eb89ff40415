package github

import "time"

// Job statuses reported by the Actions API.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusWaiting    = "waiting"
)

// Job conclusions reported by the Actions API.
const (
	ConclusionSuccess        = "success"
	ConclusionFailure        = "failure"
	ConclusionCancelled      = "cancelled"
	ConclusionSkipped        = "skipped"
	ConclusionNeutral        = "neutral"
	ConclusionTimedOut       = "timed_out"
	ConclusionActionRequired = "action_required"
)

// Job is one job record of a workflow run. Conclusion is empty while the job
// is still queued or running.
type Job struct {
	ID          int64     `json:"id"`
	RunID       int64     `json:"run_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Conclusion  string    `json:"conclusion"`
	HTMLURL     string    `json:"html_url"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// InProgress reports whether the job has no terminal conclusion yet.
func (j Job) InProgress() bool {
	return j.Conclusion == ""
}

// JobsResponse is the API response for listing the jobs of a run.
type JobsResponse struct {
	TotalCount int   `json:"total_count"`
	Jobs       []Job `json:"jobs"`
}

// PullRequestFile is one entry of the pull request files listing.
type PullRequestFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// JobNames returns the names of jobs in API order.
func JobNames(jobs []Job) []string {
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
	}

	return names
}
