package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// TaskCounter reports collection sizes for the observable gauges.
type TaskCounter interface {
	Count() int64
	OpenCount() int64
}

// Metrics holds the instruments recorded by the HTTP layer.
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	TaskMutations   metric.Int64Counter
	FragmentsParsed metric.Int64Counter
	TasksGauge      metric.Int64ObservableGauge
	OpenTasksGauge  metric.Int64ObservableGauge
	ImportedTasks   metric.Int64Counter
}

// InitMeterProvider initializes the OpenTelemetry meter provider with an
// OTLP gRPC exporter read every 10 seconds.
func InitMeterProvider(ctx context.Context, serviceName, otlpEndpoint, environment string) (*sdkmetric.MeterProvider, error) {
	conn, err := newConn(otlpEndpoint)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewMetrics creates and registers the application instruments.
func NewMetrics(meter metric.Meter, tasks TaskCounter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	m.TaskMutations, err = meter.Int64Counter(
		"task_mutations_total",
		metric.WithDescription("Task mutations by operation"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation counter: %w", err)
	}

	m.FragmentsParsed, err = meter.Int64Counter(
		"fragments_parsed_total",
		metric.WithDescription("Quick-entry fragments parsed"),
		metric.WithUnit("{fragment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fragment counter: %w", err)
	}

	m.ImportedTasks, err = meter.Int64Counter(
		"tasks_imported_total",
		metric.WithDescription("Tasks added by imports"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create import counter: %w", err)
	}

	m.TasksGauge, err = meter.Int64ObservableGauge(
		"tasks_total",
		metric.WithDescription("Current number of tasks"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(tasks.Count())
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks gauge: %w", err)
	}

	m.OpenTasksGauge, err = meter.Int64ObservableGauge(
		"tasks_open",
		metric.WithDescription("Current number of tasks not yet completed"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(tasks.OpenCount())
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create open tasks gauge: %w", err)
	}

	return m, nil
}

// RecordMutation counts one successful task mutation.
func (m *Metrics) RecordMutation(ctx context.Context, op string) {
	m.TaskMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordFragment counts one parsed fragment by what it yielded.
func (m *Metrics) RecordFragment(ctx context.Context, hasDue bool, priority string) {
	m.FragmentsParsed.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("has_due", hasDue),
		attribute.String("priority", priority),
	))
}
