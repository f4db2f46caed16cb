// Package telemetry sets up the logging, tracing and error reporting of an app.
package telemetry

import (
	"context"

	"github.com/argus-labs/cardinal-extras/pkg/telemetry/sentry"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type Telemetry struct {
	Logger      zerolog.Logger
	Tracer      trace.Tracer
	serviceName string
}

// New loads the configuration from the environment, merges opts over it, and builds the root
// logger and tracer. Sentry is initialized when a DSN is configured.
func New(opts Options) (Telemetry, error) {
	config, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load telemetry config")
	}

	var options Options
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid telemetry options")
	}

	if err := sentry.New(options.Sentry); err != nil {
		return Telemetry{}, err
	}

	return Telemetry{
		Logger:      newLogger(options),
		Tracer:      newTracer(options),
		serviceName: options.ServiceName,
	}, nil
}

// GetLogger returns a component-specific logger.
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

// CaptureError reports err to Sentry, tagged with the service name.
func (t *Telemetry) CaptureError(ctx context.Context, err error) {
	sentry.CaptureError(ctx, err, map[string]string{"service": t.serviceName})
}

// Shutdown flushes errors that are still being sent to Sentry.
func (t *Telemetry) Shutdown(ctx context.Context) {
	sentry.Flush(ctx)
}
