package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Providers bundles the installed providers and the application logger.
type Providers struct {
	Logger    *slog.Logger
	shutdowns []func(context.Context) error
}

// Setup installs tracer, meter and logger providers exporting to
// otlpEndpoint. When enabled is false nothing is exported: the global
// providers stay no-op and logs go to w as JSON.
func Setup(ctx context.Context, enabled bool, serviceName, otlpEndpoint, environment string, w io.Writer) (*Providers, error) {
	p := &Providers{}
	if !enabled {
		p.Logger = NewLocalLogger(w, serviceName)
		return p, nil
	}

	tp, err := InitTracerProvider(ctx, serviceName, otlpEndpoint, environment)
	if err != nil {
		return nil, err
	}
	p.shutdowns = append(p.shutdowns, tp.Shutdown)

	mp, err := InitMeterProvider(ctx, serviceName, otlpEndpoint, environment)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	p.shutdowns = append(p.shutdowns, mp.Shutdown)

	// Logger last so records can be correlated with spans from the above.
	lp, logger, err := InitLoggerProvider(ctx, serviceName, otlpEndpoint, environment)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	p.shutdowns = append(p.shutdowns, lp.Shutdown)
	p.Logger = logger

	return p, nil
}

// Shutdown flushes and stops every provider in reverse start order.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdowns) - 1; i >= 0; i-- {
		if err := p.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdowns = nil
	return errors.Join(errs...)
}
