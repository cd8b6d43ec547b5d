package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/eranb/em-aws/logger"
)

// Request outcomes recorded on the request counter.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeFatal     = "fatal"
	OutcomeAsync     = "async"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the handler's metric instruments.
type Metrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	networkErrors   metric.Int64Counter
	poolWait        metric.Float64Histogram
	poolInUse       metric.Int64UpDownCounter
	poolRejects     metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requestTotal, err := meter.Int64Counter("emhttp.request.total",
		metric.WithDescription("Total number of executed requests by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emhttp.request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("emhttp.request.duration",
		metric.WithDescription("Duration of requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emhttp.request.duration histogram: %w", err)
	}

	networkErrors, err := meter.Int64Counter("emhttp.network_error.total",
		metric.WithDescription("Recoverable network errors recorded on responses, by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emhttp.network_error.total counter: %w", err)
	}

	poolWait, err := meter.Float64Histogram("emhttp.pool.wait",
		metric.WithDescription("Time spent waiting for a pooled connection in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emhttp.pool.wait histogram: %w", err)
	}

	poolInUse, err := meter.Int64UpDownCounter("emhttp.pool.in_use",
		metric.WithDescription("Number of checked-out connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emhttp.pool.in_use gauge: %w", err)
	}

	poolRejects, err := meter.Int64Counter("emhttp.pool.rejected",
		metric.WithDescription("Connection acquisitions rejected by exhaustion or timeout"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emhttp.pool.rejected counter: %w", err)
	}

	return &Metrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		networkErrors:   networkErrors,
		poolWait:        poolWait,
		poolInUse:       poolInUse,
		poolRejects:     poolRejects,
	}, nil
}

// RecordRequest records a completed request execution.
func (m *Metrics) RecordRequest(ctx context.Context, method, outcome string, duration time.Duration) {
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
	))
}

// RecordNetworkError records a recoverable error stored on a response.
func (m *Metrics) RecordNetworkError(ctx context.Context, kind string) {
	m.networkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordPoolWait records how long an acquisition waited.
func (m *Metrics) RecordPoolWait(ctx context.Context, origin string, d time.Duration) {
	m.poolWait.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("origin", origin)))
}

// RecordCheckout adjusts the checked-out connection count for origin by delta.
func (m *Metrics) RecordCheckout(ctx context.Context, origin string, delta int64) {
	m.poolInUse.Add(ctx, delta, metric.WithAttributes(attribute.String("origin", origin)))
}

// RecordPoolReject records a failed acquisition.
func (m *Metrics) RecordPoolReject(ctx context.Context, origin, reason string) {
	m.poolRejects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", origin),
		attribute.String("reason", reason),
	))
}
