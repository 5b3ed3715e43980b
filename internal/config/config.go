// Package config holds the runtime configuration of the monitoring worker.
//
// A Config is created once at worker construction and lives for the worker's
// entire lifetime. It is never mutated in place: runtime changes arrive as a
// Patch through the control channel, and the worker swaps in the new Config
// as a whole object. This keeps a scan step from ever observing a
// half-updated configuration.
package config

import (
	"errors"
	"time"
)

// Defaults used when a field is not set explicitly.
const (
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100 MiB
	DefaultChunkSize   = 64 * 1024         // 64 KiB read buffer
	DefaultInterval    = 30 * time.Second  // Delay between scan passes
)

// Config describes what the worker monitors and how.
type Config struct {
	MaxFileSize  int64         // Files larger than this are skipped without opening them
	ChunkSize    int64         // Read buffer size for hashing
	WatchedPaths []string      // Paths hashed each pass, in this order
	Interval     time.Duration // Delay between scan passes (0 = back-to-back)
}

// Default returns a Config with default limits and no watched paths.
func Default() *Config {
	return &Config{
		MaxFileSize: DefaultMaxFileSize,
		ChunkSize:   DefaultChunkSize,
		Interval:    DefaultInterval,
	}
}

// Validate checks invariants that would make the worker unable to operate.
// A Config failing validation is fatal at startup and rejected at runtime.
func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return errors.New("max file size must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	return nil
}

// Clone returns a deep copy. The worker clones on construction and on every
// patch so the stored Config is never shared with the caller.
func (c *Config) Clone() *Config {
	dup := *c
	dup.WatchedPaths = make([]string, len(c.WatchedPaths))
	copy(dup.WatchedPaths, c.WatchedPaths)
	return &dup
}

// Patch is a partial configuration update. Nil fields keep their current
// value.
type Patch struct {
	MaxFileSize  *int64
	ChunkSize    *int64
	WatchedPaths []string // nil = unchanged, empty = clear
	Interval     *time.Duration
}

// Apply produces a new validated Config from cur with the patch applied.
// cur is left untouched; an invalid result is rejected and cur stays active.
func (p Patch) Apply(cur *Config) (*Config, error) {
	next := cur.Clone()
	if p.MaxFileSize != nil {
		next.MaxFileSize = *p.MaxFileSize
	}
	if p.ChunkSize != nil {
		next.ChunkSize = *p.ChunkSize
	}
	if p.WatchedPaths != nil {
		next.WatchedPaths = make([]string, len(p.WatchedPaths))
		copy(next.WatchedPaths, p.WatchedPaths)
	}
	if p.Interval != nil {
		next.Interval = *p.Interval
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}
