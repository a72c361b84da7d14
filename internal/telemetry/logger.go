package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InitLoggerProvider initializes the OpenTelemetry logger provider and
// returns a slog.Logger bridged to it, so log records carry the trace and
// span of the context they are logged with.
func InitLoggerProvider(ctx context.Context, serviceName, otlpEndpoint, environment string) (*sdklog.LoggerProvider, *slog.Logger, error) {
	conn, err := newConn(otlpEndpoint)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, nil, err
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	return lp, otelslog.NewLogger(serviceName, otelslog.WithLoggerProvider(lp)), nil
}

// NewLocalLogger is the JSON logger used when telemetry export is off.
func NewLocalLogger(w io.Writer, serviceName string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil)).With(slog.String("service", serviceName))
}
