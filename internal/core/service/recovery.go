package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/yndnr/filekv/internal/core/domain"
)

// RecoveryResult summarizes a Recover run.
type RecoveryResult struct {
	// Restored entries were put back into the index.
	Restored int
	// Expired entries had their files deleted.
	Expired int
	// Missing entries pointed at files that no longer exist.
	Missing int
	// Orphans are record files no entry references.
	Orphans int
	// OrphansRemoved is the number of orphan files deleted.
	OrphansRemoved int
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Recover rebuilds the index from the journal and reconciles it with the
// record files on disk. Call it once after NewDataStore and before serving
// requests.
//
// Expired entries have their files deleted. Entries whose files vanished
// are dropped from the journal. Record files in the default directory, or
// in any directory a restored entry points at, that no entry references
// are counted as orphans and deleted when RemoveOrphans is set.
func (s *DataStore) Recover(ctx context.Context) (RecoveryResult, error) {
	if s.closed.Load() {
		return RecoveryResult{}, domain.ErrStoreClosed
	}

	start := time.Now()
	var res RecoveryResult
	dirs := map[string]struct{}{s.cfg.DefaultDir: {}}

	if s.journal != nil {
		entries, err := s.journal.Load(ctx)
		if err != nil {
			return res, fmt.Errorf("recover: %w", err)
		}

		now := s.now()
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if !s.guard.TryAcquire(e.Key) {
				continue
			}
			s.recoverEntry(ctx, e, now, &res)
			if _, ok := s.index.Peek(e.Key); ok {
				dirs[e.Location] = struct{}{}
			}
			s.guard.Release(e.Key)
		}
	}

	for dir := range dirs {
		if err := s.scanOrphans(ctx, dir, &res); err != nil {
			return res, err
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info("recovery completed",
		"restored", res.Restored,
		"expired", res.Expired,
		"missing", res.Missing,
		"orphans", res.Orphans,
		"orphans_removed", res.OrphansRemoved,
		"elapsed", res.Duration)

	return res, nil
}

func (s *DataStore) recoverEntry(ctx context.Context, e domain.Entry, now time.Time, res *RecoveryResult) {
	switch {
	case e.IsExpired(now):
		err := s.records.Delete(e.Key, e.Location)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			// Keep it indexed so the reaper retries.
			s.logger.Warn("failed to delete expired record", "path", e.RecordPath(), "error", err)
			s.index.AddEntry(e)
			return
		}
		res.Expired++
		s.dropJournal(ctx, e.Key)

	case !s.records.Exists(e.Key, e.Location):
		res.Missing++
		s.logger.Debug("journaled record missing", "path", e.RecordPath())
		s.dropJournal(ctx, e.Key)

	default:
		s.index.AddEntry(e)
		res.Restored++
		s.logger.Debug("entry restored", "key", e.Key, "ttl", e.TTL(now))
	}
}

func (s *DataStore) scanOrphans(ctx context.Context, dir string, res *RecoveryResult) error {
	keys, err := s.records.List(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		s.logger.Warn("orphan scan skipped", "dir", dir, "error", err)
		return nil
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e, ok := s.index.Peek(key); ok && e.Location == dir {
			continue
		}
		res.Orphans++

		if !s.cfg.RemoveOrphans {
			s.logger.Debug("orphan record", "key", key, "dir", dir)
			continue
		}
		if !s.guard.TryAcquire(key) {
			continue
		}
		err := s.records.Delete(key, dir)
		s.guard.Release(key)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Warn("failed to remove orphan record", "key", key, "dir", dir, "error", err)
			continue
		}
		res.OrphansRemoved++
	}
	return nil
}

func (s *DataStore) dropJournal(ctx context.Context, key string) {
	if err := s.journal.Delete(ctx, key); err != nil {
		s.logger.Warn("journal delete failed", "key", key, "error", err)
	}
}
