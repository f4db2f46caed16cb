package app

import (
	"io"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/trace"
)

// appConfig holds the configuration for an App read from the environment.
type appConfig struct {
	// Name of the application, used as the logger's service name.
	Name string `env:"EXTRAS_APP_NAME" envDefault:"extras"`

	// Number of ticks per second for Run.
	TickRate float64 `env:"EXTRAS_TICK_RATE" envDefault:"60"`

	// Address of the statsd agent. Metrics are disabled when empty.
	StatsdAddress string `env:"EXTRAS_STATSD_ADDRESS"`

	// Maximum number of background tasks running at the same time. Defaults to GOMAXPROCS.
	TaskPoolSize int `env:"EXTRAS_TASK_POOL_SIZE"`
}

// loadConfig loads the app configuration from environment variables.
func loadConfig() (appConfig, error) {
	cfg := appConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse app config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

// validate performs validation on the loaded configuration.
func (cfg *appConfig) validate() error {
	if cfg.Name == "" {
		return eris.New("name cannot be empty")
	}
	if cfg.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if cfg.TaskPoolSize < 0 {
		return eris.New("task pool size cannot be negative")
	}
	return nil
}

// applyToOptions applies the configuration values to the given Options.
func (cfg *appConfig) applyToOptions(opt *Options) {
	opt.Name = cfg.Name
	opt.TickRate = cfg.TickRate
	opt.StatsdAddress = cfg.StatsdAddress
	if cfg.TaskPoolSize > 0 {
		opt.TaskPoolSize = cfg.TaskPoolSize
	}
}

// Options configures an App. Zero values keep the environment or default value.
type Options struct {
	Name          string   // Name of the application
	TickRate      float64  // Number of ticks per second
	StatsdAddress string   // Address of the statsd agent
	StatsdTags    []string // Tags attached to every metric
	TaskPoolSize  int      // Maximum number of concurrent background tasks

	// LogOutput receives the app's logs. Defaults to stdout.
	LogOutput io.Writer
	// TracerProvider receives a span per schedule run and per system. Tracing is off when it's nil
	// and EXTRAS_TRACING isn't set.
	TracerProvider trace.TracerProvider
}

// newDefaultOptions creates Options with default values.
func newDefaultOptions() Options {
	return Options{
		Name:          "extras",
		TickRate:      60, //nolint:mnd // 60 ticks per second
		StatsdAddress: "",
		StatsdTags:    nil,
		TaskPoolSize:  runtime.GOMAXPROCS(0),
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *Options) apply(newOpt Options) {
	if newOpt.Name != "" {
		opt.Name = newOpt.Name
	}
	if newOpt.TickRate != 0.0 {
		opt.TickRate = newOpt.TickRate
	}
	if newOpt.StatsdAddress != "" {
		opt.StatsdAddress = newOpt.StatsdAddress
	}
	if newOpt.StatsdTags != nil {
		opt.StatsdTags = newOpt.StatsdTags
	}
	if newOpt.TaskPoolSize != 0 {
		opt.TaskPoolSize = newOpt.TaskPoolSize
	}
	if newOpt.LogOutput != nil {
		opt.LogOutput = newOpt.LogOutput
	}
	if newOpt.TracerProvider != nil {
		opt.TracerProvider = newOpt.TracerProvider
	}
}

// validate checks that all required options are set and valid.
func (opt *Options) validate() error {
	if opt.Name == "" {
		return eris.New("name cannot be empty")
	}
	if opt.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if opt.TaskPoolSize <= 0 {
		return eris.New("task pool size must be positive")
	}
	return nil
}
