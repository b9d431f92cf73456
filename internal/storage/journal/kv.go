package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Engine names accepted by Config.Engine.
const (
	EngineNone   = "none"
	EngineBadger = "badger"
	EngineBolt   = "bbolt"
)

// Common errors
var (
	ErrKeyNotFound   = errors.New("journal: key not found")
	ErrClosed        = errors.New("journal: engine closed")
	ErrUnknownEngine = errors.New("journal: unknown engine")
)

// KVEngine is the embedded key-value store behind a Journal.
//
// Implementations must be safe for concurrent use and durable across
// process restarts.
type KVEngine interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores a key-value pair.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan iterates over keys with a given prefix.
	// Callback returns false to stop iteration.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Close releases the engine.
	Close() error
}

// Config selects and configures the journal engine.
type Config struct {
	// Engine is one of "none", "badger", "bbolt".
	// Default: "none"
	Engine string

	// Dir is the storage directory.
	Dir string

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// SyncWrites enables fsync after each write.
	// Default: false
	SyncWrites bool
}

// DefaultConfig returns a configuration with journaling disabled.
func DefaultConfig(dir string) Config {
	return Config{
		Engine: EngineNone,
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   16 << 20, // 16MB
	}
}

// OpenEngine opens the engine named by cfg.Engine.
// It returns (nil, nil) when journaling is disabled.
func OpenEngine(cfg Config, logger *slog.Logger) (KVEngine, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", EngineNone:
		return nil, nil
	case EngineBadger:
		return NewBadgerEngine(cfg, logger)
	case EngineBolt, "bolt":
		return NewBoltEngine(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}
