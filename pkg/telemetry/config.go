package telemetry

import (
	"io"
	"strings"

	"github.com/argus-labs/cardinal-extras/pkg/telemetry/sentry"
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Config is read from EXTRAS_* environment variables. Apps like extras-demo own the terminal, so
// their logs go to a file that is usually followed with tail; the defaults suit that.
type Config struct {
	LogLevel  string `env:"EXTRAS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"EXTRAS_LOG_FORMAT" envDefault:"pretty"`

	// Tracing starts a span for every schedule run and every system, using the global
	// OpenTelemetry tracer provider.
	Tracing bool `env:"EXTRAS_TRACING" envDefault:"false"`

	// Failed ticks are reported to Sentry when a DSN is set.
	SentryDSN         string `env:"EXTRAS_SENTRY_DSN"`
	SentryEnvironment string `env:"EXTRAS_SENTRY_ENVIRONMENT" envDefault:"local"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse telemetry config")
	}
	if err := checkLogSettings(cfg.LogLevel, ParseLogFormat(cfg.LogFormat)); err != nil {
		return cfg, eris.Wrapf(err, "EXTRAS_LOG_LEVEL=%q EXTRAS_LOG_FORMAT=%q", cfg.LogLevel, cfg.LogFormat)
	}
	return cfg, nil
}

func (cfg *Config) applyToOptions(opt *Options) {
	opt.LogLevel = cfg.LogLevel
	opt.LogFormat = ParseLogFormat(cfg.LogFormat)
	opt.Tracing = cfg.Tracing
	opt.Sentry.DSN = cfg.SentryDSN
	opt.Sentry.Environment = cfg.SentryEnvironment
}

// Options configures New. Set fields win over the environment.
type Options struct {
	ServiceName string // Prefixes the component of every logger, e.g. extras-demo.ecs
	LogLevel    string
	LogFormat   LogFormat
	// Output receives the logs. Pretty logs are only colored when it's unset and they go to stdout.
	Output io.Writer

	// Tracing enables spans even when EXTRAS_TRACING is off. Setting TracerProvider implies it.
	Tracing        bool
	TracerProvider trace.TracerProvider

	Sentry sentry.Options
}

// apply copies the set fields of newOpt over opt.
func (opt *Options) apply(newOpt Options) {
	if newOpt.ServiceName != "" {
		opt.ServiceName = newOpt.ServiceName
	}
	if newOpt.LogLevel != "" {
		opt.LogLevel = newOpt.LogLevel
	}
	if newOpt.LogFormat != LogFormatUndefined {
		opt.LogFormat = newOpt.LogFormat
	}
	if newOpt.Output != nil {
		opt.Output = newOpt.Output
	}
	opt.Tracing = opt.Tracing || newOpt.Tracing || newOpt.TracerProvider != nil
	if newOpt.TracerProvider != nil {
		opt.TracerProvider = newOpt.TracerProvider
	}
	if newOpt.Sentry.DSN != "" {
		opt.Sentry.DSN = newOpt.Sentry.DSN
	}
	if newOpt.Sentry.Environment != "" {
		opt.Sentry.Environment = newOpt.Sentry.Environment
	}
	if newOpt.Sentry.Tags != nil {
		opt.Sentry.Tags = newOpt.Sentry.Tags
	}
}

func (opt *Options) validate() error {
	if opt.ServiceName == "" {
		return eris.New("service name cannot be empty")
	}
	return checkLogSettings(opt.LogLevel, opt.LogFormat)
}

func checkLogSettings(level string, format LogFormat) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(level)); err != nil || level == "" {
		return eris.Errorf("unknown log level %q, use trace, debug, info, warn or error", level)
	}
	if format == LogFormatUndefined {
		return eris.New("unknown log format, use json or pretty")
	}
	return nil
}

// LogFormat selects how log lines are written.
type LogFormat uint8

const (
	LogFormatUndefined LogFormat = iota
	LogFormatJSON                // One JSON object per line
	LogFormatPretty              // zerolog's console writer
)

var logFormatNames = map[LogFormat]string{
	LogFormatJSON:   "json",
	LogFormatPretty: "pretty",
}

func (f LogFormat) String() string {
	if name, ok := logFormatNames[f]; ok {
		return name
	}
	return "undefined"
}

// ParseLogFormat parses json or pretty, ignoring case. Anything else is LogFormatUndefined.
func ParseLogFormat(s string) LogFormat {
	for format, name := range logFormatNames {
		if strings.EqualFold(s, name) {
			return format
		}
	}
	return LogFormatUndefined
}
