// Package observability provides OpenTelemetry tracing and metrics for
// simulation runs.
//
// Spans are opened per run and per step. Metrics follow the RED pattern for
// runs, plus simulation counters for steps and rule evaluations by outcome.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "lexsim"

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string        // e.g., "localhost:4317" for gRPC
	SampleRate     float64       // 0.0 to 1.0
	BatchTimeout   time.Duration // How long to wait before sending batched spans
	Enabled        bool
	Insecure       bool // Use insecure connection (dev only)
}

// DefaultConfig returns local development defaults. Telemetry is off unless enabled.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "lexsim",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       true,
	}
}

// Provider manages OpenTelemetry trace and metric providers.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	runCounter       metric.Int64Counter
	errorCounter     metric.Int64Counter
	durationHist     metric.Float64Histogram
	activeOperations metric.Int64UpDownCounter

	stepCounter     metric.Int64Counter
	evalCounter     metric.Int64Counter
	stepDuration    metric.Float64Histogram
	activeAgents    metric.Int64Gauge
	pendingEventsUp metric.Int64UpDownCounter
}

// Disabled returns a provider whose instruments are no-ops.
func Disabled() *Provider {
	return &Provider{
		config: &Config{Enabled: false},
		logger: slog.Default().With("component", "observability"),
	}
}

// New creates a provider that exports over OTLP gRPC.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.logger.DebugContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := newResource(config)
	if err != nil {
		return nil, err
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = otel.Meter(instrumentationName, metric.WithInstrumentationVersion(config.ServiceVersion))

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

// NewWithReader creates a provider that records metrics into reader and
// keeps spans in process. Nothing is exported over the network.
func NewWithReader(config *Config, reader sdkmetric.Reader) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	res, err := newResource(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:         config,
		logger:         slog.Default().With("component", "observability"),
		tracerProvider: sdktrace.NewTracerProvider(sdktrace.WithResource(res)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)),
	}
	p.tracer = p.tracerProvider.Tracer(instrumentationName)
	p.meter = p.meterProvider.Meter(instrumentationName)

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}
	return p, nil
}

func newResource(config *Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironmentName(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	if p.runCounter, err = p.meter.Int64Counter("lexsim.runs.total",
		metric.WithDescription("Total number of simulation runs"),
		metric.WithUnit("{run}"),
	); err != nil {
		return err
	}
	if p.errorCounter, err = p.meter.Int64Counter("lexsim.errors.total",
		metric.WithDescription("Total number of failed runs"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	if p.durationHist, err = p.meter.Float64Histogram("lexsim.run.duration",
		metric.WithDescription("Run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300),
	); err != nil {
		return err
	}
	if p.activeOperations, err = p.meter.Int64UpDownCounter("lexsim.operations.active",
		metric.WithDescription("Number of runs in progress"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return err
	}
	if p.stepCounter, err = p.meter.Int64Counter("lexsim.steps.total",
		metric.WithDescription("Simulated time steps"),
		metric.WithUnit("{step}"),
	); err != nil {
		return err
	}
	if p.evalCounter, err = p.meter.Int64Counter("lexsim.evaluations.total",
		metric.WithDescription("Rule evaluations by outcome"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return err
	}
	if p.stepDuration, err = p.meter.Float64Histogram("lexsim.step.duration",
		metric.WithDescription("Wall time per simulated step in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	); err != nil {
		return err
	}
	if p.activeAgents, err = p.meter.Int64Gauge("lexsim.agents.active",
		metric.WithDescription("Active agents at the last simulated step"),
		metric.WithUnit("{agent}"),
	); err != nil {
		return err
	}
	if p.pendingEventsUp, err = p.meter.Int64UpDownCounter("lexsim.events.pending",
		metric.WithDescription("Scheduled events not yet processed"),
		metric.WithUnit("{event}"),
	); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return p.tracer
}

// Meter returns the configured meter.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter(instrumentationName)
	}
	return p.meter
}

// StartSpan starts a new span with the given name.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, opts...)
}

// RecordStep records one simulated step.
func (p *Provider) RecordStep(ctx context.Context, duration time.Duration, activeAgents, activeStatutes int) {
	attrs := metric.WithAttributes(attribute.Int("lexsim.active_statutes", activeStatutes))
	if p.stepCounter != nil {
		p.stepCounter.Add(ctx, 1, attrs)
	}
	if p.stepDuration != nil {
		p.stepDuration.Record(ctx, duration.Seconds())
	}
	if p.activeAgents != nil {
		p.activeAgents.Record(ctx, int64(activeAgents))
	}
}

// RecordEvaluations adds n evaluations with the given outcome.
func (p *Provider) RecordEvaluations(ctx context.Context, outcome string, n uint64) {
	if p.evalCounter != nil && n > 0 {
		p.evalCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("lexsim.outcome", outcome)))
	}
}

// RecordPendingEvents adjusts the pending event gauge by delta.
func (p *Provider) RecordPendingEvents(ctx context.Context, delta int) {
	if p.pendingEventsUp != nil && delta != 0 {
		p.pendingEventsUp.Add(ctx, int64(delta))
	}
}

// TrackOperation tracks an operation from start to finish.
// Returns a function that should be called when the operation completes.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()

	ctx, span := p.StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	set := metric.WithAttributes(attrs...)
	if p.activeOperations != nil {
		p.activeOperations.Add(ctx, 1, set)
	}
	if p.runCounter != nil {
		p.runCounter.Add(ctx, 1, set)
	}

	return ctx, func(err error) {
		if p.activeOperations != nil {
			p.activeOperations.Add(ctx, -1, set)
		}
		if p.durationHist != nil {
			p.durationHist.Record(ctx, time.Since(start).Seconds(), set)
		}
		if err != nil {
			span.RecordError(err)
			if p.errorCounter != nil {
				p.errorCounter.Add(ctx, 1, metric.WithAttributes(
					append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))...))
			}
		}
		span.End()
	}
}
