package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/kyleking/gh-checkstatus/internal/config"
	checkerr "github.com/kyleking/gh-checkstatus/internal/errors"
	"github.com/kyleking/gh-checkstatus/internal/github"
	"github.com/kyleking/gh-checkstatus/internal/match"
)

// Modes select how the set of monitored jobs is determined.
const (
	ModeDynamic = "dynamic"
	ModeFixed   = "fixed"
)

// DiscoveryInterval is the poll cadence during the initial wait window.
const DiscoveryInterval = time.Second

// Result summarizes a finished session.
type Result struct {
	SessionID   string
	Mode        string
	State       State
	Gated       bool
	Discovered  []string
	Conclusions map[string]string
	Elapsed     time.Duration
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithReporter sets the progress event sink.
func WithReporter(r Reporter) Option {
	return func(m *Monitor) { m.reporter = r }
}

// WithMeter records metrics on the given meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(m *Monitor) { m.meter = meter }
}

// Monitor runs one monitoring session against a workflow run.
type Monitor struct {
	client   GitHubClient
	cfg      config.Config
	clock    Clock
	reporter Reporter
	meter    metric.Meter
	metrics  *metrics
	session  *Session
}

// New creates a Monitor for cfg.
func New(client GitHubClient, cfg config.Config, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		client:   client,
		cfg:      cfg,
		clock:    RealClock{},
		reporter: nopReporter{},
	}

	for _, opt := range opts {
		opt(m)
	}

	mt, err := newMetrics(m.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	m.metrics = mt

	return m, nil
}

// Run executes the session and returns its single verdict: a nil error means
// every monitored job succeeded. A non-nil error is classified by
// errors.KindOf. Run must be called at most once per Monitor.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	if m.session != nil {
		return Result{}, errors.New("monitor session already ran")
	}

	m.session = NewSession(m.cfg.CurrentJob, m.clock.Now(), m.cfg.Timeout)

	mode := ModeDynamic
	if m.cfg.FixedList() {
		mode = ModeFixed
	}

	res := Result{SessionID: m.session.ID, Mode: mode}

	proceed, err := m.gate(ctx)
	if err == nil && !proceed {
		res.Gated = true
		m.session.State = StateSucceeded
		m.report(Event{Kind: EventGateSkipped, Patterns: m.cfg.RequiresFilesChanged.Strings()})
	}

	if err == nil && !m.session.State.Terminal() {
		if mode == ModeFixed {
			err = m.runFixed(ctx)
		} else {
			err = m.runDynamic(ctx)
		}
	}

	m.session.State = finalState(err)

	elapsed := m.clock.Now().Sub(m.session.Start)
	m.metrics.session(ctx, m.session.State, elapsed)

	res.State = m.session.State
	res.Discovered = m.session.Tracker.Names()
	res.Conclusions = m.session.Tracker.Conclusions()
	res.Elapsed = elapsed

	return res, err
}

func finalState(err error) State {
	switch checkerr.KindOf(err) {
	case checkerr.KindNone:
		return StateSucceeded
	case checkerr.KindTimeout:
		return StateTimedOut
	}

	return StateFailed
}

// gate evaluates the changed-files precondition. It reports whether
// monitoring should proceed.
func (m *Monitor) gate(ctx context.Context) (bool, error) {
	gates := m.cfg.RequiresFilesChanged
	if gates.Len() == 0 || !match.CarriesDiff(m.cfg.EventName) {
		return true, nil
	}

	ev, err := github.ReadEvent(m.cfg.EventPath)
	if err != nil {
		return false, &checkerr.ConfigError{Setting: config.EnvEventPath, Err: err}
	}

	number, err := ev.PullRequestNumber()
	if err != nil {
		return false, &checkerr.ConfigError{Setting: config.EnvEventPath, Err: err}
	}

	files, err := m.client.ListPullRequestFiles(ctx, number)
	if err != nil {
		if errors.Is(err, github.ErrMalformedPayload) {
			return false, &checkerr.ConfigError{Setting: "pull request files", Err: err}
		}

		return false, transportError(fmt.Sprintf("failed to list files of pull request %d", number), 0, err)
	}

	return match.ShouldProceed(m.cfg.EventName, files, gates), nil
}

// fetch polls the job list once.
func (m *Monitor) fetch(ctx context.Context, mode string) ([]github.Job, error) {
	m.metrics.poll(ctx, mode)

	jobs, err := m.client.GetWorkflowRunJobs(ctx, m.cfg.RunID)
	if err != nil {
		return nil, transportError("failed to get workflow jobs", m.cfg.RunID, err)
	}

	return jobs, nil
}

// relevant drops the current job and excluded jobs from a snapshot.
func (m *Monitor) relevant(jobs []github.Job) []github.Job {
	var out []github.Job

	for _, j := range jobs {
		if j.Name == m.cfg.CurrentJob || match.IsExcluded(j.Name, m.cfg.ExcludedJobs) {
			continue
		}

		out = append(out, j)
	}

	return out
}

// judge records a newly concluded job. A nil error means the job counts as
// a success.
func (m *Monitor) judge(ctx context.Context, job, conclusion string, skippedSucceeds bool) error {
	m.metrics.conclusion(ctx, conclusion)

	switch conclusion {
	case github.ConclusionSuccess:
	case github.ConclusionSkipped:
		if !skippedSucceeds {
			return &checkerr.JobOutcomeError{Job: job, Conclusion: conclusion}
		}
	default:
		return &checkerr.JobOutcomeError{Job: job, Conclusion: conclusion}
	}

	m.report(Event{Kind: EventJobSucceeded, Job: job, Conclusion: conclusion})

	return nil
}

// report stamps ev with the session id and forwards it.
func (m *Monitor) report(ev Event) {
	ev.SessionID = m.session.ID
	m.reporter.Report(ev)
}

func (m *Monitor) progress() {
	t := m.session.Tracker

	pending := t.Incomplete()
	if len(pending) == 0 {
		return
	}

	m.report(Event{
		Kind:       EventProgress,
		Completed:  t.Completed(),
		Discovered: t.Discovered(),
		Pending:    pending,
	})
}

func (m *Monitor) timeoutError() error {
	t := m.session.Tracker

	return &checkerr.TimeoutError{
		Timeout:    m.cfg.Timeout,
		Completed:  t.Completed(),
		Discovered: t.Discovered(),
		Incomplete: t.Incomplete(),
	}
}

func transportError(op string, runID int64, err error) error {
	var apiErr *checkerr.APIError
	if errors.As(err, &apiErr) {
		return err
	}

	return &checkerr.APIError{Operation: op, RunID: runID, Err: err}
}
