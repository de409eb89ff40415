package watcher

import (
	"context"

	checkerr "github.com/kyleking/gh-checkstatus/internal/errors"
	"github.com/kyleking/gh-checkstatus/internal/github"
)

// discover spends the whole initial wait window polling once per
// DiscoveryInterval, so jobs the backend registers late are still seen before
// tracking starts. It succeeds iff any poll saw a relevant job and returns the
// relevant jobs of the last poll. The window starts when discovery does, so
// time spent gating is not taken out of it.
func (m *Monitor) discover(ctx context.Context) ([]github.Job, error) {
	windowEnd := m.clock.Now().Add(m.cfg.InitialWait)

	m.report(Event{Kind: EventWaiting, Wait: m.cfg.InitialWait, Job: m.cfg.CurrentJob})

	var (
		found    bool
		all      []github.Job
		relevant []github.Job
	)

	for {
		if m.session.Expired(m.clock.Now()) {
			return nil, m.timeoutError()
		}

		jobs, err := m.fetch(ctx, ModeDynamic)
		if err != nil {
			return nil, err
		}

		all = jobs
		relevant = m.relevant(jobs)

		if len(relevant) > 0 {
			found = true
		}

		if !m.clock.Now().Before(windowEnd) {
			break
		}

		if err := m.clock.Sleep(ctx, DiscoveryInterval); err != nil {
			return nil, err
		}
	}

	if !found {
		return nil, &checkerr.DiscoveryError{
			CurrentJob: m.cfg.CurrentJob,
			Wait:       m.cfg.InitialWait,
			AllJobs:    github.JobNames(all),
		}
	}

	return relevant, nil
}
