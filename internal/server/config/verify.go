package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/filekv/internal/storage/journal"
	"github.com/yndnr/filekv/internal/telemetry/logger"
)

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyStorage(&cfg.Storage),
		verifyReaper(&cfg.Reaper),
		verifyJournal(&cfg.Journal),
		verifyServer(&cfg.Server),
		verifyLog(&cfg.Log),
	)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error
	if cfg.DefaultDir == "" {
		errs = append(errs, errors.New("storage.default_dir is required"))
	}
	if cfg.QuotaBytes == 0 {
		errs = append(errs, errors.New("storage.quota_bytes must be positive"))
	}
	if cfg.IndexCapacity < 0 {
		errs = append(errs, errors.New("storage.index_capacity must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyReaper(cfg *ReaperSection) error {
	var errs []error
	if cfg.Interval <= 0 {
		errs = append(errs, errors.New("reaper.interval must be positive"))
	}
	if cfg.MaxDeletesPerSecond < 0 {
		errs = append(errs, errors.New("reaper.max_deletes_per_second must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyJournal(cfg *JournalSection) error {
	switch cfg.Engine {
	case journal.EngineNone, "":
		return nil
	case journal.EngineBadger, journal.EngineBolt:
		if cfg.Dir == "" {
			return fmt.Errorf("journal.dir is required for engine %q", cfg.Engine)
		}
		return nil
	default:
		return fmt.Errorf("journal.engine %q: must be one of none, badger, bbolt", cfg.Engine)
	}
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if cfg.Local.Path == "" {
		errs = append(errs, errors.New("server.local.path is required"))
	}
	if cfg.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			errs = append(errs, fmt.Errorf("server.http.addr: %w", err))
		}
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q: must be one of debug, info, warn, error", cfg.Level))
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be json or text", cfg.Format))
	}
	return errors.Join(errs...)
}
