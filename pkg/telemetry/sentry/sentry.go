// Package sentry reports failed ticks to Sentry. Every function is a no-op until New is called with
// a DSN.
package sentry

import (
	"context"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/trace"
)

const defaultFlushTimeout = 2 * time.Second

type Options struct {
	DSN         string
	Environment string
	// Tags are attached to every event, e.g. the app name.
	Tags map[string]string
}

// New initializes the global Sentry client. An empty DSN leaves reporting off.
func New(opts Options) error {
	if opts.DSN == "" {
		return nil
	}
	if err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Tags:        opts.Tags,
	}); err != nil {
		return eris.Wrap(err, "failed to initialize sentry")
	}
	return nil
}

// Enabled reports whether a Sentry client is set up.
func Enabled() bool {
	return sentrygo.CurrentHub().Client() != nil
}

// CaptureError reports err with the trace of the span in ctx, if any, and tags.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil || !Enabled() {
		return
	}
	sentrygo.WithScope(func(scope *sentrygo.Scope) {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			scope.SetTag("trace_id", sc.TraceID().String())
			scope.SetTag("span_id", sc.SpanID().String())
		}
		scope.SetTags(tags)
		sentrygo.CaptureException(err)
	})
}

// Flush waits for buffered events until ctx is done, or at most two seconds without a deadline.
func Flush(ctx context.Context) {
	if !Enabled() {
		return
	}
	timeout := defaultFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), 0)
	}
	sentrygo.Flush(timeout)
}
