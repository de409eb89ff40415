// Package errors defines the failure taxonomy of a monitor session.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies why a monitor session ended without success.
type Kind int

const (
	KindNone Kind = iota
	KindConfiguration
	KindTransport
	KindDiscovery
	KindJobOutcome
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindDiscovery:
		return "discovery"
	case KindJobOutcome:
		return "job_outcome"
	case KindTimeout:
		return "timeout"
	}

	return "unknown"
}

// ConfigError reports a missing or invalid setting, or a malformed event payload.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Setting == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}

	return fmt.Sprintf("configuration error in %s: %v", e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// JobNotFoundError indicates a required job never appeared in the run.
type JobNotFoundError struct {
	Job         string
	RunID       int64
	Attempts    int
	Suggestions []string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %q not found in run %d after %d attempts", e.Job, e.RunID, e.Attempts)
}

// APIError represents an error from a GitHub API operation.
type APIError struct {
	Operation string
	RunID     int64
	Err       error
}

func (e *APIError) Error() string {
	if e.RunID == 0 {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}

	return fmt.Sprintf("%s for run %d: %v", e.Operation, e.RunID, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// DiscoveryError indicates no qualifying job was seen during the initial wait.
type DiscoveryError struct {
	CurrentJob string
	Wait       time.Duration
	AllJobs    []string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("no jobs found after %s initial wait period", e.Wait)
}

// JobOutcomeError indicates a monitored job reached a failing conclusion.
type JobOutcomeError struct {
	Job        string
	Conclusion string
}

func (e *JobOutcomeError) Error() string {
	switch e.Conclusion {
	case "skipped":
		return fmt.Sprintf("job %q was skipped (treated as failure)", e.Job)
	case "failure", "cancelled":
		return fmt.Sprintf("job %q %s", e.Job, e.Conclusion)
	}

	return fmt.Sprintf("job %q has unexpected conclusion: %s", e.Job, e.Conclusion)
}

// TimeoutError indicates the overall deadline passed before all jobs concluded.
type TimeoutError struct {
	Timeout    time.Duration
	Completed  int
	Discovered int
	Incomplete []string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("overall timeout of %s exceeded (%d/%d jobs completed)", e.Timeout, e.Completed, e.Discovered)
	if len(e.Incomplete) > 0 {
		msg += ": incomplete " + strings.Join(e.Incomplete, ", ")
	}

	return msg
}

// KindOf returns the failure kind carried by err, or KindNone for a nil error.
// Errors outside the taxonomy are reported as transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		configErr   *ConfigError
		notFoundErr *JobNotFoundError
		discErr     *DiscoveryError
		outcomeErr  *JobOutcomeError
		timeoutErr  *TimeoutError
	)

	switch {
	case errors.As(err, &configErr), errors.As(err, &notFoundErr):
		return KindConfiguration
	case errors.As(err, &discErr):
		return KindDiscovery
	case errors.As(err, &outcomeErr):
		return KindJobOutcome
	case errors.As(err, &timeoutErr):
		return KindTimeout
	}

	return KindTransport
}

// GetSuggestion extracts a "did you mean" hint from an error chain if present.
func GetSuggestion(err error) string {
	var notFoundErr *JobNotFoundError
	if errors.As(err, &notFoundErr) && len(notFoundErr.Suggestions) > 0 {
		quoted := make([]string, len(notFoundErr.Suggestions))
		for i, s := range notFoundErr.Suggestions {
			quoted[i] = fmt.Sprintf("%q", s)
		}

		return "did you mean " + strings.Join(quoted, " or ") + "?"
	}

	return ""
}
