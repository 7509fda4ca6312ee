// Package timeouts holds the process-wide operation timeouts.
//
// Storage is the fixed storage-boundary timeout every content store call
// runs under; the others size health checks, handlers and batch tooling.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing    = 2 * time.Second
	DefaultShort   = 5 * time.Second
	DefaultStorage = 10 * time.Second
	DefaultLong    = 30 * time.Second
	DefaultBatch   = 5 * time.Minute
)

// EnvPrefix prefixes the environment overrides read by ConfigureFromEnv,
// e.g. STRATACMS_TIMEOUT_STORAGE=3s.
const EnvPrefix = "STRATACMS_TIMEOUT_"

// Config holds timeout configuration values. Zero fields are left unchanged
// by Configure.
type Config struct {
	Ping    time.Duration
	Short   time.Duration
	Storage time.Duration
	Long    time.Duration
	Batch   time.Duration
}

func defaults() Config {
	return Config{
		Ping:    DefaultPing,
		Short:   DefaultShort,
		Storage: DefaultStorage,
		Long:    DefaultLong,
		Batch:   DefaultBatch,
	}
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(cur)
}

// Ping returns the timeout for health checks.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short returns the timeout for simple operations.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Storage returns the storage-boundary timeout.
func Storage() time.Duration { return get(func(c Config) time.Duration { return c.Storage }) }

// Medium is Storage under the name handlers have always used.
func Medium() time.Duration { return Storage() }

// Long returns the timeout for multi-call operations such as resolving a
// page with its sections or a machine translation round trip.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Batch returns the timeout for imports, migrations and reports.
func Batch() time.Duration { return get(func(c Config) time.Duration { return c.Batch }) }

// Configure sets custom timeout values.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	merge(&cur, cfg)
}

func merge(dst *Config, src Config) {
	if src.Ping > 0 {
		dst.Ping = src.Ping
	}
	if src.Short > 0 {
		dst.Short = src.Short
	}
	if src.Storage > 0 {
		dst.Storage = src.Storage
	}
	if src.Long > 0 {
		dst.Long = src.Long
	}
	if src.Batch > 0 {
		dst.Batch = src.Batch
	}
}

// Reset restores all timeouts to defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// ConfigureFromEnv applies STRATACMS_TIMEOUT_{PING,SHORT,STORAGE,LONG,BATCH}
// and returns how many were set. Unparsable or non-positive values are
// ignored.
func ConfigureFromEnv() int {
	var cfg Config
	n := 0
	for name, dst := range map[string]*time.Duration{
		"PING":    &cfg.Ping,
		"SHORT":   &cfg.Short,
		"STORAGE": &cfg.Storage,
		"LONG":    &cfg.Long,
		"BATCH":   &cfg.Batch,
	} {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			n++
		}
	}
	Configure(cfg)
	return n
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// WithTimeout creates a context with timeout and logs when it expires.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
