// Package config holds the explicit, struct-based configuration for a
// capture session: no file-based configuration framework.
package config

import (
	"os"
	"strconv"

	"github.com/fpsinspector/telemetry/internal/logging"
)

// Config configures a capture session.
type Config struct {
	// BufferSize is the RingBuffer capacity for emitted EventScores.
	BufferSize int

	// TargetPID restricts correlation to one process; 0 means all
	// processes.
	TargetPID uint32

	// StagingQueueDepth bounds each per-record-kind channel (present,
	// LSR, NT-process) between the session's dispatch callback and the
	// controller's drain loop.
	StagingQueueDepth int

	// LogLevel is the initial logging.LogLevel, clamped to [0,6].
	LogLevel logging.LogLevel

	// StaleWindowSeconds bounds how long a swap chain may go without
	// a present before PresentCorrelator prunes it.
	StaleWindowSeconds float64

	// HistoryCap bounds both the full and displayed history length
	// PresentCorrelator retains per swap chain.
	HistoryCap int
}

const (
	DefaultBufferSize         = 4096
	DefaultStagingQueueDepth  = 1024
	DefaultStaleWindowSeconds = 5.0
	DefaultHistoryCap         = 64
	MaxBufferSize             = 36_000_000
)

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		BufferSize:         DefaultBufferSize,
		TargetPID:          0,
		StagingQueueDepth:  DefaultStagingQueueDepth,
		LogLevel:           logging.LevelInfo,
		StaleWindowSeconds: DefaultStaleWindowSeconds,
		HistoryCap:         DefaultHistoryCap,
	}
}

// FromEnv returns Default() overridden field-by-field from
// environment variables, for callers that prefer not to construct a
// Config programmatically.
func FromEnv() *Config {
	c := Default()
	if v, ok := os.LookupEnv("TELEMETRY_BUFFER_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.BufferSize = n
		}
	}
	if v, ok := os.LookupEnv("TELEMETRY_TARGET_PID"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.TargetPID = uint32(n)
		}
	}
	if v, ok := os.LookupEnv("TELEMETRY_STAGING_QUEUE_DEPTH"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.StagingQueueDepth = n
		}
	}
	if v, ok := os.LookupEnv("TELEMETRY_LOG_LEVEL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LogLevel = logging.LevelFromInt(n)
		}
	}
	if v, ok := os.LookupEnv("TELEMETRY_STALE_WINDOW_SECONDS"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.StaleWindowSeconds = f
		}
	}
	if v, ok := os.LookupEnv("TELEMETRY_HISTORY_CAP"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.HistoryCap = n
		}
	}
	return c
}

// Validate reports whether the configuration's buffer size is in
// range.
func (c *Config) Validate() bool {
	return c.BufferSize > 0 && c.BufferSize <= MaxBufferSize
}
