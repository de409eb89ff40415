package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Event is the subset of the triggering event payload used for gating.
type Event struct {
	Number      int `json:"number"`
	PullRequest *struct {
		Number int `json:"number"`
	} `json:"pull_request"`
}

// PullRequestNumber returns the pull request number carried by the event.
func (e Event) PullRequestNumber() (int, error) {
	if e.Number > 0 {
		return e.Number, nil
	}

	if e.PullRequest != nil && e.PullRequest.Number > 0 {
		return e.PullRequest.Number, nil
	}

	return 0, errors.New("event payload has no pull request number")
}

// ReadEvent decodes the event payload at path.
func ReadEvent(path string) (Event, error) {
	if path == "" {
		return Event{}, errors.New("event payload path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Event{}, fmt.Errorf("failed to read event payload: %w", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to parse event payload: %w", err)
	}

	return ev, nil
}
