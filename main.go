package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cli/go-gh/v2/pkg/term"

	"github.com/kyleking/gh-checkstatus/internal/config"
	"github.com/kyleking/gh-checkstatus/internal/github"
	"github.com/kyleking/gh-checkstatus/internal/report"
	"github.com/kyleking/gh-checkstatus/internal/telemetry"
	"github.com/kyleking/gh-checkstatus/internal/watcher"
)

var (
	version = "dev"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		showVersion bool
		showHelp    bool
		configPath  string
	)

	fs := flag.NewFlagSet("gh-checkstatus", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&showVersion, "version", false, "Show version")
	fs.BoolVar(&showVersion, "v", false, "Show version (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Show help")
	fs.BoolVar(&showHelp, "h", false, "Show help (shorthand)")
	fs.StringVar(&configPath, "config", "", "Path to a .yml, .yaml or .toml config file")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if showVersion {
		fmt.Fprintf(stdout, "gh-checkstatus %s\n", version)
		return 0
	}

	if showHelp {
		printHelp(stdout)
		return 0
	}

	var opts []report.Option
	if term.FromEnv().IsColorEnabled() {
		opts = append(opts, report.WithColor(report.DetectTheme()))
	}

	printer := report.NewPrinter(stdout, stderr, opts...)

	cfg, err := config.Load(config.Source{
		Path:     configPath,
		Lookup:   os.LookupEnv,
		Detector: github.DefaultDetector,
	})
	if err != nil {
		printer.PrintFailure(err)
		return 1
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		log.Printf("warning: metrics export disabled: %v", err)
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := shutdown(sctx); err != nil {
				log.Printf("warning: failed to flush metrics: %v", err)
			}
		}()
	}

	client, err := github.NewClient(cfg.Repository, github.ClientOptions{Token: cfg.Token, Host: cfg.Host})
	if err != nil {
		printer.PrintFailure(err)
		return 1
	}

	mon, err := watcher.New(client, cfg, watcher.WithReporter(printer))
	if err != nil {
		printer.PrintFailure(err)
		return 1
	}

	if _, err := mon.Run(ctx); err != nil {
		printer.PrintFailure(err)
		return 1
	}

	return 0
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `gh-checkstatus - Wait for the sibling jobs of a GitHub Actions run to succeed

Usage:
  gh checkstatus [flags]

Description:
  Polls the jobs of the current workflow run and exits 0 once every other
  job has concluded successfully. Exits 1 as soon as a job fails, when no
  jobs appear during the initial wait, or when the timeout is reached.

  Set INPUT_JOBS to watch an explicit comma-separated list of jobs instead
  of discovering them.

Flags:
  -h, --help         Show this help message
  -v, --version      Show version
      --config PATH  Read settings from a .yml, .yaml or .toml file

Environment:
  INPUT_GITHUB_TOKEN            API token (required)
  GITHUB_REPOSITORY             owner/repo (detected from git remotes if unset)
  GITHUB_RUN_ID                 Workflow run to watch (required)
  GITHUB_JOB                    Current job, never waited on
  INPUT_CURRENT_JOB_NAME        Current job display name (overrides GITHUB_JOB)
  INPUT_EXCLUDED_JOBS           Comma-separated glob patterns to ignore
  INPUT_TIMEOUT_MINUTES         Overall timeout (default 30)
  INPUT_INITIAL_WAIT_SECONDS    Discovery window (default 10)
  INPUT_POLL_INTERVAL_SECONDS   Poll interval (default 5)
  INPUT_SKIPPED_JOBS_SUCCEED    Treat skipped jobs as success (default true)
  INPUT_JOBS                    Explicit job list (fixed-list mode)
  INPUT_REQUIRES_FILES_CHANGED  Only monitor pull requests touching these globs
  OTEL_EXPORTER_OTLP_ENDPOINT   Export metrics over OTLP/gRPC

For more information: https://github.com/kyleking/gh-checkstatus`)
}
