package watcher

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the monitor's instruments.
const MeterName = "github.com/kyleking/gh-checkstatus/internal/watcher"

type metrics struct {
	polls       metric.Int64Counter
	conclusions metric.Int64Counter
	duration    metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(MeterName)
	}

	polls, err := meter.Int64Counter("checkstatus.polls",
		metric.WithDescription("Job list requests made to the GitHub API"))
	if err != nil {
		return nil, err
	}

	conclusions, err := meter.Int64Counter("checkstatus.job.conclusions",
		metric.WithDescription("Terminal job conclusions observed"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("checkstatus.session.duration",
		metric.WithDescription("Wall time of a monitor session"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &metrics{polls: polls, conclusions: conclusions, duration: duration}, nil
}

func (m *metrics) poll(ctx context.Context, mode string) {
	m.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

func (m *metrics) conclusion(ctx context.Context, conclusion string) {
	m.conclusions.Add(ctx, 1, metric.WithAttributes(attribute.String("conclusion", conclusion)))
}

func (m *metrics) session(ctx context.Context, state State, elapsed time.Duration) {
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", string(state))))
}
