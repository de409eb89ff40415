// Package telemetry exports monitor metrics over OTLP/gRPC when an endpoint
// is configured.
package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc/credentials"

	"github.com/kyleking/gh-checkstatus/internal/config"
)

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "gh-checkstatus"

// ExportInterval is the periodic reader interval. Sessions usually end long
// before it fires; Shutdown flushes the final values.
const ExportInterval = 15 * time.Second

// ShutdownFunc flushes pending metrics and releases the exporter.
type ShutdownFunc func(context.Context) error

// Setup installs a global meter provider exporting to cfg.Endpoint. With no
// endpoint it leaves the global no-op provider in place.
func Setup(ctx context.Context, cfg config.Telemetry, version string) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}

	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(creds))
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	durationView := sdkmetric.NewView(
		sdkmetric.Instrument{
			Name: "checkstatus.session.duration",
			Kind: sdkmetric.InstrumentKindHistogram,
		},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
		},
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(ExportInterval))),
		sdkmetric.WithResource(res),
		sdkmetric.WithView(durationView),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
