package config

import "time"

// ServerConfig is the root configuration for filekv-server.
type ServerConfig struct {
	Storage StorageSection `koanf:"storage"`
	Reaper  ReaperSection  `koanf:"reaper"`
	Journal JournalSection `koanf:"journal"`
	Server  ServerSection  `koanf:"server"`
	Log     LogSection     `koanf:"log"`
}

// StorageSection configures the record store.
type StorageSection struct {
	// DefaultDir holds records stored without an explicit directory.
	DefaultDir string `koanf:"default_dir"`

	// QuotaBytes is the per-directory size limit.
	QuotaBytes uint64 `koanf:"quota_bytes"`

	// IndexCapacity bounds the number of indexed keys.
	IndexCapacity int `koanf:"index_capacity"`

	// SyncWrites fsyncs every record write.
	SyncWrites bool `koanf:"sync_writes"`

	// RemoveOrphans deletes unreferenced record files during recovery.
	RemoveOrphans bool `koanf:"remove_orphans"`
}

// ReaperSection configures the expiry sweep.
type ReaperSection struct {
	Interval            time.Duration `koanf:"interval"`
	MaxDeletesPerSecond float64       `koanf:"max_deletes_per_second"`

	// MaxDeleteAttempts bounds retries of a failing expired-record delete.
	// Negative retries forever.
	MaxDeleteAttempts int `koanf:"max_delete_attempts"`
}

// JournalSection configures the optional index journal.
type JournalSection struct {
	// Engine is one of none, badger, bbolt.
	Engine string `koanf:"engine"`
	Dir    string `koanf:"dir"`

	// Badger tuning; ignored by other engines.
	GCInterval time.Duration `koanf:"gc_interval"`
	CacheSize  int64         `koanf:"cache_size"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Local LocalConfig `koanf:"local"`
	HTTP  HTTPConfig  `koanf:"http"`
}

// LocalConfig configures the local socket.
type LocalConfig struct {
	Path string `koanf:"path"`
}

// HTTPConfig configures the metrics and health listener.
// An empty Addr disables it.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
