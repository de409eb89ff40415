// Package report renders monitor progress and failures as console text.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	checkerr "github.com/kyleking/gh-checkstatus/internal/errors"
	"github.com/kyleking/gh-checkstatus/internal/watcher"
)

// Printer writes progress to out and failures to errOut. It implements
// watcher.Reporter.
type Printer struct {
	out     io.Writer
	errOut  io.Writer
	color   bool
	styles  styles
	session string
}

// Option configures a Printer.
type Option func(*Printer)

// WithColor enables ANSI styling using the given theme.
func WithColor(th Theme) Option {
	return func(p *Printer) {
		p.color = true
		p.styles = newStyles(renderer(p.out), th)
	}
}

// NewPrinter creates a plain-text printer.
func NewPrinter(out, errOut io.Writer, opts ...Option) *Printer {
	p := &Printer{out: out, errOut: errOut}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// renderer forces true color since color support was already decided by the
// caller, and out may not be a terminal.
func renderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.TrueColor)

	return r
}

func (p *Printer) paint(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}

	return style.Render(s)
}

func (p *Printer) quote(job string) string {
	return "'" + p.paint(p.styles.accent, job) + "'"
}

// Report prints one progress event. The first event of a session announces
// its id.
func (p *Printer) Report(ev watcher.Event) {
	if ev.SessionID != "" && ev.SessionID != p.session {
		p.session = ev.SessionID
		fmt.Fprintln(p.out, p.paint(p.styles.muted, "Session "+ev.SessionID))
	}

	switch ev.Kind {
	case watcher.EventExcluding:
		fmt.Fprintf(p.out, "Excluding jobs matching patterns: %s\n", list(ev.Patterns))
	case watcher.EventGateSkipped:
		fmt.Fprintln(p.out, p.paint(p.styles.muted,
			fmt.Sprintf("No changed files match %s; skipping job monitoring.", list(ev.Patterns))))
	case watcher.EventWaiting:
		fmt.Fprintf(p.out, "Waiting %s for all jobs to appear (excluding current job: %s)...\n",
			seconds(ev.Wait.Seconds()), p.quote(ev.Job))
	case watcher.EventDiscoveryComplete:
		fmt.Fprintf(p.out, "Initial wait complete. Found %d job(s) to monitor.\n", ev.Count)
	case watcher.EventMonitoring:
		fmt.Fprintf(p.out, "Monitoring jobs (polling every %s, timeout: %s)...\n",
			seconds(ev.Interval.Seconds()), minutes(ev.Timeout.Minutes()))
	case watcher.EventJobDiscovered:
		fmt.Fprintf(p.out, "Discovered job: %s\n", p.quote(ev.Job))
	case watcher.EventJobSucceeded:
		msg := "completed successfully."
		if ev.Conclusion == "skipped" {
			msg = "was skipped (treated as success)."
		}

		fmt.Fprintf(p.out, "%s Job %s %s\n", p.paint(p.styles.success, "✓"), p.quote(ev.Job), msg)
	case watcher.EventAwaitingJob:
		fmt.Fprintln(p.out, p.paint(p.styles.warning, fmt.Sprintf(
			"Job '%s' not found yet (attempt %d/%d); retrying in %s...",
			ev.Job, ev.Attempt, ev.Attempts, seconds(ev.Wait.Seconds()))))
	case watcher.EventProgress:
		fmt.Fprintln(p.out, p.paint(p.styles.muted, fmt.Sprintf(
			"In progress (%d/%d complete): %s", ev.Completed, ev.Discovered, list(ev.Pending))))
	case watcher.EventSucceeded:
		fmt.Fprintln(p.out, p.paint(p.styles.success, fmt.Sprintf(
			"All %d job(s) completed successfully in %.1fs.", ev.Count, ev.Elapsed.Seconds())))
	}
}

// PrintFailure writes the diagnostics for a failed session to errOut.
func (p *Printer) PrintFailure(err error) {
	if err == nil {
		return
	}

	var (
		outcomeErr *checkerr.JobOutcomeError
		discErr    *checkerr.DiscoveryError
		timeoutErr *checkerr.TimeoutError
	)

	switch {
	case errors.As(err, &outcomeErr):
		fmt.Fprintf(p.errOut, "%s Job %s %s.\n", p.paint(p.styles.failure, "✗"), p.quote(outcomeErr.Job), describe(outcomeErr.Conclusion))
	case errors.As(err, &discErr):
		p.errorLine(fmt.Sprintf("No jobs found after %s initial wait period.", seconds(discErr.Wait.Seconds())))
		fmt.Fprintf(p.errOut, "Current job name: %s\n", p.quote(discErr.CurrentJob))
		fmt.Fprintf(p.errOut, "All jobs in workflow: %s\n", list(discErr.AllJobs))
	case errors.As(err, &timeoutErr):
		p.errorLine(fmt.Sprintf("Overall timeout of %s exceeded.", minutes(timeoutErr.Timeout.Minutes())))
		fmt.Fprintf(p.errOut, "Completed jobs: %d/%d\n", timeoutErr.Completed, timeoutErr.Discovered)

		if len(timeoutErr.Incomplete) > 0 {
			fmt.Fprintf(p.errOut, "Incomplete jobs: %s\n", list(timeoutErr.Incomplete))
		}
	default:
		p.errorLine(err.Error())

		if hint := checkerr.GetSuggestion(err); hint != "" {
			fmt.Fprintln(p.errOut, p.paint(p.styles.muted, hint))
		}
	}

	if p.session != "" {
		fmt.Fprintln(p.errOut, p.paint(p.styles.muted, "Session: "+p.session))
	}
}

func (p *Printer) errorLine(msg string) {
	fmt.Fprintln(p.errOut, p.paint(p.styles.failure, msg))
}

func describe(conclusion string) string {
	switch conclusion {
	case "failure", "cancelled":
		return conclusion
	case "skipped":
		return "was skipped (treated as failure)"
	}

	return "has unexpected conclusion: " + conclusion
}

func list(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}

	return "[" + strings.Join(quoted, ", ") + "]"
}

func seconds(v float64) string {
	return fmt.Sprintf("%gs", v)
}

func minutes(v float64) string {
	if v == 1 {
		return "1 minute"
	}

	return fmt.Sprintf("%g minutes", v)
}
