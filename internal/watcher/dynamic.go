package watcher

import "context"

// runDynamic discovers sibling jobs, then polls until all of them conclude,
// one fails, or the deadline passes. Jobs that appear after discovery are
// tracked too.
func (m *Monitor) runDynamic(ctx context.Context) error {
	if m.cfg.ExcludedJobs.Len() > 0 {
		m.report(Event{Kind: EventExcluding, Patterns: m.cfg.ExcludedJobs.Strings()})
	}

	snapshot, err := m.discover(ctx)
	if err != nil {
		return err
	}

	m.session.State = StateMonitoring
	m.report(Event{Kind: EventDiscoveryComplete, Count: len(snapshot)})
	m.report(Event{Kind: EventMonitoring, Interval: m.cfg.PollInterval, Timeout: m.cfg.Timeout})

	t := m.session.Tracker

	for {
		if m.session.Expired(m.clock.Now()) {
			return m.timeoutError()
		}

		jobs, err := m.fetch(ctx, ModeDynamic)
		if err != nil {
			return err
		}

		relevant := m.relevant(jobs)

		for _, j := range relevant {
			for _, name := range t.Discover(j.Name) {
				m.report(Event{Kind: EventJobDiscovered, Job: name})
			}
		}

		for _, j := range relevant {
			if j.InProgress() || !t.Record(j.Name, j.Conclusion) {
				continue
			}

			if err := m.judge(ctx, j.Name, j.Conclusion, m.cfg.SkippedJobsSucceed); err != nil {
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
