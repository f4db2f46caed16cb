// Package statsd wraps the few datadog statsd calls the scheduler makes. Keeping the dependency in
// one file means swapping the metrics backend only touches this package.
package statsd

import (
	"sync"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.RWMutex
	client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}
)

// Client returns the process-wide statsd client. It is a no-op client until Init succeeds.
func Client() ddstatsd.ClientInterface {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// EmitSystemStat records how long a single system run took.
func EmitSystemStat(start time.Time, schedule, system string) {
	emitTiming("system", start, []string{"schedule:" + schedule, "system:" + system})
}

// EmitScheduleStat records how long a full schedule run took.
func EmitScheduleStat(start time.Time, schedule string) {
	emitTiming("schedule", start, []string{"schedule:" + schedule})
}

// EmitTickStat records how long a full app update took.
func EmitTickStat(start time.Time) {
	emitTiming("tick", start, nil)
}

func emitTiming(name string, start time.Time, tags []string) {
	if err := Client().Timing(name, time.Since(start), tags, 1); err != nil {
		log.Logger.Warn().Err(err).Str("metric", name).Msg("failed to emit timing")
	}
}

// Init replaces the global client with one that sends to address.
func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace("extras"),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return eris.Wrap(err, "failed to create statsd client")
	}

	mu.Lock()
	client = newClient
	mu.Unlock()
	return nil
}
