package watcher

import (
	"context"
	"time"

	"github.com/sahilm/fuzzy"

	checkerr "github.com/kyleking/gh-checkstatus/internal/errors"
	"github.com/kyleking/gh-checkstatus/internal/github"
)

// Existence checks for fixed-list mode.
const (
	ExistenceAttempts = 5
	ExistenceDelay    = 2 * time.Second

	maxSuggestions = 3
)

// runFixed monitors an explicit list of job names. Every name must show up
// within ExistenceAttempts polls; skipped jobs always count as success.
func (m *Monitor) runFixed(ctx context.Context) error {
	t := m.session.Tracker

	if err := m.awaitJobs(ctx); err != nil {
		return err
	}

	m.session.State = StateMonitoring
	m.report(Event{Kind: EventMonitoring, Interval: m.cfg.PollInterval, Timeout: m.cfg.Timeout})

	for {
		if m.session.Expired(m.clock.Now()) {
			return m.timeoutError()
		}

		jobs, err := m.fetch(ctx, ModeFixed)
		if err != nil {
			return err
		}

		byName := indexJobs(jobs)

		for _, name := range m.cfg.Jobs {
			j, ok := byName[name]
			if !ok || j.InProgress() || !t.Record(name, j.Conclusion) {
				continue
			}

			if err := m.judge(ctx, name, j.Conclusion, true); err != nil {
				return err
			}
		}

		if t.Done() {
			m.report(Event{
				Kind:    EventSucceeded,
				Count:   t.Discovered(),
				Elapsed: m.clock.Now().Sub(m.session.Start),
			})

			return nil
		}

		m.progress()

		if err := m.clock.Sleep(ctx, m.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// awaitJobs waits for every configured name to appear in the run. A name
// still missing after the last attempt is a configuration error.
func (m *Monitor) awaitJobs(ctx context.Context) error {
	t := m.session.Tracker
	missing := m.cfg.Jobs

	var names []string

	for attempt := 1; ; attempt++ {
		jobs, err := m.fetch(ctx, ModeFixed)
		if err != nil {
			return err
		}

		byName := indexJobs(jobs)
		names = github.JobNames(jobs)

		var still []string

		for _, name := range missing {
			if _, ok := byName[name]; ok {
				for _, added := range t.Discover(name) {
					m.report(Event{Kind: EventJobDiscovered, Job: added})
				}

				continue
			}

			still = append(still, name)
		}

		missing = still
		if len(missing) == 0 {
			return nil
		}

		if attempt >= ExistenceAttempts {
			break
		}

		m.report(Event{
			Kind:     EventAwaitingJob,
			Job:      missing[0],
			Attempt:  attempt,
			Attempts: ExistenceAttempts,
			Wait:     ExistenceDelay,
		})

		if err := m.clock.Sleep(ctx, ExistenceDelay); err != nil {
			return err
		}
	}

	return &checkerr.JobNotFoundError{
		Job:         missing[0],
		RunID:       m.cfg.RunID,
		Attempts:    ExistenceAttempts,
		Suggestions: suggest(missing[0], names),
	}
}

// indexJobs maps job names to the first record with that name.
func indexJobs(jobs []github.Job) map[string]github.Job {
	byName := make(map[string]github.Job, len(jobs))

	for _, j := range jobs {
		if _, ok := byName[j.Name]; !ok {
			byName[j.Name] = j
		}
	}

	return byName
}

// suggest returns the closest job names to a missing one.
func suggest(name string, candidates []string) []string {
	seen := make(map[string]bool)

	var out []string

	for _, match := range fuzzy.Find(name, candidates) {
		if seen[match.Str] {
			continue
		}

		seen[match.Str] = true
		out = append(out, match.Str)

		if len(out) == maxSuggestions {
			break
		}
	}

	return out
}
