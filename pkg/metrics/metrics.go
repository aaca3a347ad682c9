// Package metrics wires OpenTelemetry metrics for the overlay service.
//
// When disabled, instruments are created against the global meter provider,
// which is a no-op until a provider is installed.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationName = "overlay-service"

// Config holds metrics exporter configuration.
type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"` // e.g. "localhost:4317"
	Insecure    bool          `mapstructure:"insecure"`
	Interval    time.Duration `mapstructure:"interval"`
	ServiceName string        `mapstructure:"service_name"`
}

// Provider owns the SDK meter provider, if one was installed.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
}

// Init installs an OTLP/gRPC meter provider as the global provider.
// A disabled config returns a Provider whose Shutdown is a no-op.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)

	return &Provider{meterProvider: mp}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}

// Overlay records coordinator activity.
type Overlay struct {
	eventsDropped     metric.Int64Counter
	invalidEntries    metric.Int64Counter
	commits           metric.Int64Counter
	deliveriesDropped metric.Int64Counter
	sessionsOpen      metric.Int64UpDownCounter
}

// NewOverlay creates the overlay instruments on meter.
func NewOverlay(meter metric.Meter) (*Overlay, error) {
	o := &Overlay{}
	var err error

	if o.eventsDropped, err = meter.Int64Counter("overlay.events.dropped",
		metric.WithDescription("Events ignored because their kind is not recognized"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}
	if o.invalidEntries, err = meter.Int64Counter("overlay.stack.invalid_entries",
		metric.WithDescription("Malformed interrupt stack entries skipped during recompute"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}
	if o.commits, err = meter.Int64Counter("overlay.commits",
		metric.WithDescription("Committed state versions"),
		metric.WithUnit("{version}"),
	); err != nil {
		return nil, err
	}
	if o.deliveriesDropped, err = meter.Int64Counter("overlay.deliveries.dropped",
		metric.WithDescription("Snapshots a subscriber could not accept"),
		metric.WithUnit("{snapshot}"),
	); err != nil {
		return nil, err
	}
	if o.sessionsOpen, err = meter.Int64UpDownCounter("overlay.sessions.open",
		metric.WithDescription("Sessions this instance is the writer for"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}

	return o, nil
}

// Default returns instruments bound to the global meter provider.
func Default() *Overlay {
	o, err := NewOverlay(otel.Meter(instrumentationName))
	if err != nil {
		// The global provider only fails on invalid instrument names.
		panic(fmt.Sprintf("metrics: %v", err))
	}
	return o
}

func sessionAttr(sessionID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("session_id", sessionID))
}

// EventDropped counts an event whose kind was not recognized.
func (o *Overlay) EventDropped(ctx context.Context, sessionID, eventType string) {
	o.eventsDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("event_type", eventType),
	))
}

// InvalidEntries counts malformed stack entries.
func (o *Overlay) InvalidEntries(ctx context.Context, sessionID string, n int) {
	if n <= 0 {
		return
	}
	o.invalidEntries.Add(ctx, int64(n), sessionAttr(sessionID))
}

// Committed counts a committed version.
func (o *Overlay) Committed(ctx context.Context, sessionID string) {
	o.commits.Add(ctx, 1, sessionAttr(sessionID))
}

// DeliveryDropped counts a snapshot a subscriber did not accept.
func (o *Overlay) DeliveryDropped(ctx context.Context, sessionID string) {
	o.deliveriesDropped.Add(ctx, 1, sessionAttr(sessionID))
}

// SessionOpened and SessionClosed track the open-session gauge.
func (o *Overlay) SessionOpened(ctx context.Context) { o.sessionsOpen.Add(ctx, 1) }
func (o *Overlay) SessionClosed(ctx context.Context) { o.sessionsOpen.Add(ctx, -1) }
