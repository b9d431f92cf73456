package config

import (
	"time"

	"github.com/yndnr/filekv/internal/core/service"
	"github.com/yndnr/filekv/internal/storage/index"
	"github.com/yndnr/filekv/internal/storage/journal"
	"github.com/yndnr/filekv/internal/storage/reaper"
)

// Default configuration values.
const (
	DefaultLocalSocket = "/tmp/filekv-server.sock"
	DefaultHTTPAddr    = "127.0.0.1:5090"

	DefaultJournalDir        = "filekv-journal"
	DefaultJournalGCInterval = 10 * time.Minute
	DefaultJournalCacheSize  = 16 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Storage: StorageSection{
			DefaultDir:    service.DefaultDirName,
			QuotaBytes:    service.DefaultQuotaBytes,
			IndexCapacity: index.DefaultCapacity,
		},
		Reaper: ReaperSection{
			Interval:          reaper.DefaultInterval,
			MaxDeleteAttempts: reaper.DefaultMaxDeleteAttempts,
		},
		Journal: JournalSection{
			Engine:     journal.EngineNone,
			Dir:        DefaultJournalDir,
			GCInterval: DefaultJournalGCInterval,
			CacheSize:  DefaultJournalCacheSize,
		},
		Server: ServerSection{
			Local: LocalConfig{Path: DefaultLocalSocket},
			HTTP:  HTTPConfig{Addr: DefaultHTTPAddr},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// DataStoreConfig converts the storage and reaper sections.
func (c *ServerConfig) DataStoreConfig() service.DataStoreConfig {
	return service.DataStoreConfig{
		DefaultDir:    c.Storage.DefaultDir,
		QuotaBytes:    c.Storage.QuotaBytes,
		IndexCapacity: c.Storage.IndexCapacity,
		SyncWrites:    c.Storage.SyncWrites,
		RemoveOrphans: c.Storage.RemoveOrphans,
		Reaper: reaper.Config{
			Interval:            c.Reaper.Interval,
			MaxDeletesPerSecond: c.Reaper.MaxDeletesPerSecond,
			MaxDeleteAttempts:   c.Reaper.MaxDeleteAttempts,
		},
	}
}

// JournalConfig converts the journal section.
func (c *ServerConfig) JournalConfig() journal.Config {
	cfg := journal.DefaultConfig(c.Journal.Dir)
	cfg.Engine = c.Journal.Engine
	if c.Journal.GCInterval > 0 {
		cfg.Badger.GCInterval = c.Journal.GCInterval
	}
	if c.Journal.CacheSize > 0 {
		cfg.Badger.CacheSize = c.Journal.CacheSize
	}
	cfg.Badger.SyncWrites = c.Storage.SyncWrites
	return cfg
}
