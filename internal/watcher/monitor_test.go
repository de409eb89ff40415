package watcher_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kyleking/gh-checkstatus/internal/config"
	checkerr "github.com/kyleking/gh-checkstatus/internal/errors"
	"github.com/kyleking/gh-checkstatus/internal/github"
	"github.com/kyleking/gh-checkstatus/internal/match"
	"github.com/kyleking/gh-checkstatus/internal/testutil"
	"github.com/kyleking/gh-checkstatus/internal/watcher"
)

func baseConfig() config.Config {
	return config.Config{
		Token:              "t",
		Repository:         "octo/repo",
		RunID:              42,
		CurrentJob:         "check",
		Timeout:            30 * time.Minute,
		PollInterval:       5 * time.Second,
		SkippedJobsSucceed: true,
	}
}

func patterns(t *testing.T, csv string) match.Patterns {
	t.Helper()

	p, err := match.ParsePatterns(csv)
	if err != nil {
		t.Fatalf("ParsePatterns(%q): %v", csv, err)
	}

	return p
}

type harness struct {
	client   *testutil.MockGitHubClient
	clock    *testutil.FakeClock
	reporter *testutil.RecordingReporter
}

func run(t *testing.T, cfg config.Config, client *testutil.MockGitHubClient, opts ...watcher.Option) (harness, watcher.Result, error) {
	t.Helper()

	h := harness{
		client:   client,
		clock:    testutil.NewFakeClock(),
		reporter: &testutil.RecordingReporter{},
	}

	opts = append([]watcher.Option{watcher.WithClock(h.clock), watcher.WithReporter(h.reporter)}, opts...)

	m, err := watcher.New(client, cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := m.Run(context.Background())

	return h, res, err
}

func TestRun_AllJobsSucceed(t *testing.T) {
	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check", "lint", "test"),
		testutil.Jobs("check", "lint:success", "test"),
		testutil.Jobs("check", "lint:success", "test:success"),
	)

	h, res, err := run(t, baseConfig(), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, res.State, watcher.StateSucceeded)
	testutil.AssertEqual(t, res.Mode, watcher.ModeDynamic)
	testutil.AssertTrue(t, !res.Gated, "should not be gated")
	testutil.AssertDeepEqual(t, res.Discovered, []string{"lint", "test"})
	testutil.AssertDeepEqual(t, res.Conclusions, map[string]string{"lint": "success", "test": "success"})
	testutil.AssertTrue(t, res.SessionID != "", "session id should be set")

	testutil.AssertDeepEqual(t, h.reporter.Jobs(watcher.EventJobSucceeded), []string{"lint", "test"})

	done := h.reporter.Of(watcher.EventSucceeded)
	if len(done) != 1 {
		t.Fatalf("expected one success event, got %d\n%s", len(done), h.reporter)
	}

	testutil.AssertEqual(t, done[0].Count, 2)
}

func TestRun_EventsCarrySessionID(t *testing.T) {
	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check", "lint"),
		testutil.Jobs("check", "lint:success"),
	)

	h, res, err := run(t, baseConfig(), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.reporter.Events) == 0 {
		t.Fatal("expected events")
	}

	for _, ev := range h.reporter.Events {
		testutil.AssertEqual(t, ev.SessionID, res.SessionID, "event %d", ev.Kind)
	}
}

func TestRun_DiscoverySpansInitialWait(t *testing.T) {
	cfg := baseConfig()
	cfg.InitialWait = 3 * time.Second

	// Jobs are complete on the very first poll; discovery still waits out the window.
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:success"))

	h, _, err := run(t, cfg, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertDeepEqual(t, h.clock.Sleeps, []time.Duration{time.Second, time.Second, time.Second})
	// Four discovery polls at t=0..3s and one monitoring poll.
	testutil.AssertEqual(t, h.client.Calls, 5)
}

func TestRun_DiscoveryUsesAnyPollInWindow(t *testing.T) {
	cfg := baseConfig()
	cfg.InitialWait = 2 * time.Second

	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check"),
		testutil.Jobs("check", "lint"),
		testutil.Jobs("check"),
		testutil.Jobs("check", "lint:success"),
	)

	_, _, err := run(t, cfg, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_FailureShortCircuits(t *testing.T) {
	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check", "lint", "test", "build"),
		testutil.Jobs("check", "lint:success", "test:failure", "build"),
	)

	_, res, err := run(t, baseConfig(), client)

	var outcome *checkerr.JobOutcomeError
	if !errors.As(err, &outcome) {
		t.Fatalf("expected JobOutcomeError, got %v", err)
	}

	testutil.AssertEqual(t, outcome.Job, "test")
	testutil.AssertEqual(t, outcome.Conclusion, "failure")
	testutil.AssertEqual(t, checkerr.KindOf(err), checkerr.KindJobOutcome)
	testutil.AssertEqual(t, res.State, watcher.StateFailed)
	// build was still running; no further poll happened.
	testutil.AssertEqual(t, client.Calls, 2)
}

func TestRun_Conclusions(t *testing.T) {
	tests := []struct {
		name           string
		conclusion     string
		skippedSucceed bool
		wantKind       checkerr.Kind
	}{
		{"success", "success", true, checkerr.KindNone},
		{"skipped allowed", "skipped", true, checkerr.KindNone},
		{"skipped disallowed", "skipped", false, checkerr.KindJobOutcome},
		{"cancelled", "cancelled", true, checkerr.KindJobOutcome},
		{"timed out", "timed_out", true, checkerr.KindJobOutcome},
		{"unexpected value", "action_required", true, checkerr.KindJobOutcome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.SkippedJobsSucceed = tt.skippedSucceed

			client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:" + tt.conclusion))

			_, _, err := run(t, cfg, client)
			testutil.AssertEqual(t, checkerr.KindOf(err), tt.wantKind, "err=%v", err)
		})
	}
}

func TestRun_ExcludedJobsIgnored(t *testing.T) {
	cfg := baseConfig()
	cfg.ExcludedJobs = patterns(t, "deploy-*, notify")

	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check", "build", "deploy-prod", "notify"),
		testutil.Jobs("check", "build:success", "deploy-prod", "notify:failure"),
	)

	h, res, err := run(t, cfg, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertDeepEqual(t, res.Discovered, []string{"build"})

	excl := h.reporter.Of(watcher.EventExcluding)
	if len(excl) != 1 {
		t.Fatalf("expected one exclusion event, got %d", len(excl))
	}

	testutil.AssertDeepEqual(t, excl[0].Patterns, []string{"deploy-*", "notify"})
}

func TestRun_DiscoveryFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.InitialWait = 2 * time.Second
	cfg.ExcludedJobs = patterns(t, "deploy-*")

	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "deploy-staging"))

	_, res, err := run(t, cfg, client)

	var disc *checkerr.DiscoveryError
	if !errors.As(err, &disc) {
		t.Fatalf("expected DiscoveryError, got %v", err)
	}

	testutil.AssertEqual(t, disc.CurrentJob, "check")
	testutil.AssertEqual(t, disc.Wait, 2*time.Second)
	testutil.AssertDeepEqual(t, disc.AllJobs, []string{"check", "deploy-staging"})
	testutil.AssertEqual(t, res.State, watcher.StateFailed)
	testutil.AssertEqual(t, client.Calls, 3)
}

func TestRun_DiscoveryFailureEmptyRun(t *testing.T) {
	client := testutil.NewMockGitHubClient(nil)

	_, _, err := run(t, baseConfig(), client)
	testutil.AssertEqual(t, checkerr.KindOf(err), checkerr.KindDiscovery)
}

func TestRun_Timeout(t *testing.T) {
	cfg := baseConfig()
	cfg.Timeout = 10 * time.Second

	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "zeta", "lint:success", "alpha"))

	h, res, err := run(t, cfg, client)

	var timeout *checkerr.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}

	testutil.AssertEqual(t, timeout.Timeout, 10*time.Second)
	testutil.AssertEqual(t, timeout.Completed, 1)
	testutil.AssertEqual(t, timeout.Discovered, 3)
	testutil.AssertDeepEqual(t, timeout.Incomplete, []string{"alpha", "zeta"})
	testutil.AssertEqual(t, res.State, watcher.StateTimedOut)
	testutil.AssertEqual(t, checkerr.KindOf(err), checkerr.KindTimeout)
	// Polls at 0s, 5s and 10s; the check at 15s trips the deadline.
	testutil.AssertEqual(t, client.Calls, 4)
	testutil.AssertEqual(t, h.clock.Slept(), 15*time.Second)
}

func TestRun_TimeoutCountsAPILatency(t *testing.T) {
	cfg := baseConfig()
	cfg.Timeout = 10 * time.Second
	cfg.PollInterval = time.Second

	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint"))
	clock := testutil.NewFakeClock()
	client.WithLatency(clock, 4*time.Second)

	m, err := watcher.New(client, cfg, watcher.WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = m.Run(context.Background())
	testutil.AssertEqual(t, checkerr.KindOf(err), checkerr.KindTimeout)
	testutil.AssertTrue(t, clock.Slept() < 10*time.Second, "latency should count toward the deadline")
}

func TestRun_LateJobsAreTracked(t *testing.T) {
	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check", "lint"),
		testutil.Jobs("check", "lint"),
		testutil.Jobs("check", "lint:success", "docs"),
		testutil.Jobs("check", "lint:success", "docs:success"),
	)

	h, res, err := run(t, baseConfig(), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertDeepEqual(t, res.Discovered, []string{"lint", "docs"})
	testutil.AssertDeepEqual(t, h.reporter.Jobs(watcher.EventJobDiscovered), []string{"lint", "docs"})
}

func TestRun_FirstConclusionIsFinal(t *testing.T) {
	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check", "lint", "test"),
		testutil.Jobs("check", "lint:success", "test"),
		// A re-run reports a different conclusion for lint and test vanishes.
		testutil.Jobs("check", "lint:failure"),
		testutil.Jobs("check", "lint:failure", "test:success"),
	)

	_, res, err := run(t, baseConfig(), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, res.Conclusions["lint"], "success")
	testutil.AssertDeepEqual(t, res.Discovered, []string{"lint", "test"})
}

func TestRun_TransportErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint")).WithError(2, boom)

	_, _, err := run(t, baseConfig(), client)

	var apiErr *checkerr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}

	testutil.AssertEqual(t, apiErr.RunID, int64(42))
	testutil.AssertTrue(t, errors.Is(err, boom), "cause should be preserved")
	testutil.AssertEqual(t, checkerr.KindOf(err), checkerr.KindTransport)
	testutil.AssertEqual(t, client.Calls, 3)
}

func TestRun_TransportErrorKeepsAPIError(t *testing.T) {
	inner := &checkerr.APIError{Operation: "failed to get workflow jobs page", RunID: 42, Err: errors.New("502")}
	client := testutil.NewMockGitHubClient().WithError(0, inner)

	_, _, err := run(t, baseConfig(), client)

	var apiErr *checkerr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}

	testutil.AssertEqual(t, apiErr, inner)
}

func TestRun_ContextCanceled(t *testing.T) {
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := watcher.New(client, baseConfig(), watcher.WithClock(testutil.NewFakeClock()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = m.Run(ctx)
	testutil.AssertTrue(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRun_OnlyOnce(t *testing.T) {
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:success"))

	m, err := watcher.New(client, baseConfig(), watcher.WithClock(testutil.NewFakeClock()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("expected error on second run")
	}
}

func fixedConfig(jobs ...string) config.Config {
	cfg := baseConfig()
	cfg.CurrentJob = ""
	cfg.Jobs = jobs

	return cfg
}

func TestRunFixed_Success(t *testing.T) {
	cfg := fixedConfig("build", "test")
	cfg.SkippedJobsSucceed = false

	client := testutil.NewMockGitHubClient(
		testutil.Jobs("build", "test", "lint"),
		testutil.Jobs("build:success", "test:skipped", "lint:failure"),
	)

	_, res, err := run(t, cfg, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, res.Mode, watcher.ModeFixed)
	testutil.AssertEqual(t, res.State, watcher.StateSucceeded)
	testutil.AssertDeepEqual(t, res.Conclusions, map[string]string{"build": "success", "test": "skipped"})
}

func TestRunFixed_Failure(t *testing.T) {
	client := testutil.NewMockGitHubClient(testutil.Jobs("build:failure"))

	_, _, err := run(t, fixedConfig("build"), client)
	testutil.AssertEqual(t, checkerr.KindOf(err), checkerr.KindJobOutcome)
}

func TestRunFixed_WaitsForLateJob(t *testing.T) {
	client := testutil.NewMockGitHubClient(
		testutil.Jobs("build"),
		testutil.Jobs("build", "test"),
		testutil.Jobs("build:success", "test:success"),
	)

	h, _, err := run(t, fixedConfig("build", "test"), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waiting := h.reporter.Of(watcher.EventAwaitingJob)
	if len(waiting) != 1 {
		t.Fatalf("expected one awaiting event, got %d\n%s", len(waiting), h.reporter)
	}

	testutil.AssertEqual(t, waiting[0].Job, "test")
	testutil.AssertEqual(t, waiting[0].Attempt, 1)
	testutil.AssertEqual(t, h.clock.Sleeps[0], watcher.ExistenceDelay)
}

func TestRunFixed_MissingJob(t *testing.T) {
	client := testutil.NewMockGitHubClient(testutil.Jobs("build:success", "lint:success"))

	h, res, err := run(t, fixedConfig("buld"), client)

	var notFound *checkerr.JobNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected JobNotFoundError, got %v", err)
	}

	testutil.AssertEqual(t, notFound.Job, "buld")
	testutil.AssertEqual(t, notFound.RunID, int64(42))
	testutil.AssertEqual(t, notFound.Attempts, watcher.ExistenceAttempts)
	testutil.AssertDeepEqual(t, notFound.Suggestions, []string{"build"})
	testutil.AssertEqual(t, checkerr.KindOf(err), checkerr.KindConfiguration)
	testutil.AssertEqual(t, res.State, watcher.StateFailed)

	testutil.AssertEqual(t, client.Calls, watcher.ExistenceAttempts)
	testutil.AssertEqual(t, h.clock.Slept(), time.Duration(watcher.ExistenceAttempts-1)*watcher.ExistenceDelay)
}

func writeEvent(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write event: %v", err)
	}

	return path
}

func gatedConfig(t *testing.T, event string) config.Config {
	t.Helper()

	cfg := baseConfig()
	cfg.RequiresFilesChanged = patterns(t, "src/*,*.go")
	cfg.EventName = event
	cfg.EventPath = writeEvent(t, `{"number": 7}`)

	return cfg
}

func TestRun_GateSkipsWhenNoFileMatches(t *testing.T) {
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:failure")).
		WithFiles([]string{"README.md", "docs/guide.md"}, nil)

	h, res, err := run(t, gatedConfig(t, "pull_request"), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertTrue(t, res.Gated, "expected gated result")
	testutil.AssertEqual(t, res.State, watcher.StateSucceeded)
	testutil.AssertEqual(t, client.Calls, 0)
	testutil.AssertEqual(t, client.PullNumber, 7)
	testutil.AssertEqual(t, len(h.reporter.Of(watcher.EventGateSkipped)), 1)
}

func TestRun_GateProceedsOnMatch(t *testing.T) {
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:success")).
		WithFiles([]string{"README.md", "src/pkg/main.go"}, nil)

	_, res, err := run(t, gatedConfig(t, "pull_request_target"), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertTrue(t, !res.Gated, "should not be gated")
	testutil.AssertEqual(t, client.FilesCalls, 1)
}

func TestRun_GateIgnoredForPush(t *testing.T) {
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:success")).
		WithFiles([]string{"README.md"}, nil)

	_, res, err := run(t, gatedConfig(t, "push"), client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertTrue(t, !res.Gated, "push events are never gated")
	testutil.AssertEqual(t, client.FilesCalls, 0)
}

func TestRun_DiscoveryWindowStartsAfterGate(t *testing.T) {
	cfg := gatedConfig(t, "pull_request")
	cfg.InitialWait = 10 * time.Second

	clock := testutil.NewFakeClock()
	client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:success")).
		WithFiles([]string{"src/main.go"}, nil).
		WithFilesLatency(clock, 8*time.Second)

	m, err := watcher.New(client, cfg, watcher.WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, len(clock.Sleeps), 10, "discovery sleeps %v", clock.Sleeps)
	testutil.AssertEqual(t, clock.Slept(), cfg.InitialWait)
	// Eleven discovery polls at 8s..18s and one monitoring poll.
	testutil.AssertEqual(t, client.Calls, 12)
}

func TestRun_GateErrors(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		filesErr error
		wantKind checkerr.Kind
	}{
		{
			name:     "malformed files payload",
			event:    `{"number": 7}`,
			filesErr: fmt.Errorf("%w: expected a list", github.ErrMalformedPayload),
			wantKind: checkerr.KindConfiguration,
		},
		{
			name:     "event without pull request number",
			event:    `{"action": "opened"}`,
			wantKind: checkerr.KindConfiguration,
		},
		{
			name:     "unreadable event",
			event:    `{not json`,
			wantKind: checkerr.KindConfiguration,
		},
		{
			name:     "files request failed",
			event:    `{"pull_request": {"number": 7}}`,
			filesErr: errors.New("503 service unavailable"),
			wantKind: checkerr.KindTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := gatedConfig(t, "pull_request")
			cfg.EventPath = writeEvent(t, tt.event)

			client := testutil.NewMockGitHubClient(testutil.Jobs("check", "lint:success")).
				WithFiles(nil, tt.filesErr)

			_, res, err := run(t, cfg, client)
			testutil.AssertEqual(t, checkerr.KindOf(err), tt.wantKind, "err=%v", err)
			testutil.AssertEqual(t, res.State, watcher.StateFailed)
			testutil.AssertEqual(t, client.Calls, 0)
		})
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	client := testutil.NewMockGitHubClient(
		testutil.Jobs("check", "lint", "test"),
		testutil.Jobs("check", "lint:success", "test:skipped"),
	)

	_, _, err := run(t, baseConfig(), client, watcher.WithMeter(provider.Meter("test")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	found := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}

	polls, ok := found["checkstatus.polls"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("missing polls counter: %+v", found)
	}

	var total int64
	for _, dp := range polls.DataPoints {
		total += dp.Value
	}

	testutil.AssertEqual(t, total, int64(client.Calls))

	conclusions, ok := found["checkstatus.job.conclusions"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("missing conclusions counter")
	}

	testutil.AssertEqual(t, len(conclusions.DataPoints), 2)

	duration, ok := found["checkstatus.session.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("missing session histogram")
	}

	testutil.AssertEqual(t, len(duration.DataPoints), 1)
	testutil.AssertEqual(t, duration.DataPoints[0].Count, uint64(1))

	outcome, _ := duration.DataPoints[0].Attributes.Value("outcome")
	testutil.AssertEqual(t, outcome.AsString(), string(watcher.StateSucceeded))
}
