package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/filekv/internal/core/domain"
	"github.com/yndnr/filekv/internal/storage/index"
	"github.com/yndnr/filekv/internal/storage/journal"
	"github.com/yndnr/filekv/internal/storage/reaper"
	"github.com/yndnr/filekv/internal/storage/record"
	"github.com/yndnr/filekv/internal/telemetry/metric"
	"github.com/yndnr/filekv/pkg/keyguard"
)

// Defaults for DataStoreConfig.
const (
	DefaultDirName    = "filekv-data"
	DefaultQuotaBytes = 1 << 30 // 1GiB
)

// Operation names used in logs and metrics.
const (
	OpStore  = "store"
	OpRead   = "read"
	OpDelete = "delete"
)

// DataStoreConfig configures a DataStore.
type DataStoreConfig struct {
	// DefaultDir holds records stored without an explicit directory.
	// Relative paths are resolved against the working directory.
	// Default: ./filekv-data
	DefaultDir string

	// QuotaBytes is the per-directory size limit checked before each write.
	// Default: 1GiB
	QuotaBytes uint64

	// IndexCapacity bounds the number of index entries.
	// Default: index.DefaultCapacity
	IndexCapacity int

	// SyncWrites fsyncs every record write.
	SyncWrites bool

	// RemoveOrphans makes Recover delete record files that no index entry
	// references. Default: false (orphans are only counted)
	RemoveOrphans bool

	// Reaper configures the background sweep.
	Reaper reaper.Config
}

// DefaultDataStoreConfig returns the default configuration.
func DefaultDataStoreConfig() DataStoreConfig {
	return DataStoreConfig{
		DefaultDir:    DefaultDirName,
		QuotaBytes:    DefaultQuotaBytes,
		IndexCapacity: index.DefaultCapacity,
		Reaper: reaper.Config{
			Interval: reaper.DefaultInterval,
		},
	}
}

// StoreRequest contains parameters for Store.
type StoreRequest struct {
	Key  string        // Required, at most 32 characters
	Data string        // Required JSON object or array, at most 16KB
	Dir  string        // Optional, defaults to the configured directory
	TTL  time.Duration // Optional, zero or negative means never expires
}

// Stats is a snapshot of the store state.
type Stats struct {
	Entries         int
	ExpiredEntries  int
	Capacity        int
	DefaultDir      string
	DefaultDirBytes uint64
	QuotaBytes      uint64
	ReaperState     string
	LastSweep       reaper.SweepResult
	Journal         bool
	Closed          bool
}

// DataStore is the public entry point of filekv. It validates requests,
// enforces the directory quota and keeps the record files and the TTL
// index in step.
//
// Operations on different keys run independently. Store and Delete on the
// same key are serialized by a key guard shared with the reaper; Read only
// relies on the record file lock.
type DataStore struct {
	cfg     DataStoreConfig
	records *record.Store
	index   *index.Index
	guard   *keyguard.Guard
	reaper  *reaper.Reaper
	journal *journal.Journal
	metrics *metric.Registry
	logger  *slog.Logger
	now     func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *DataStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operation metrics in m.
func WithMetrics(m *metric.Registry) Option {
	return func(s *DataStore) {
		s.metrics = m
	}
}

// WithJournal mirrors index changes into j. The store closes j on Close.
func WithJournal(j *journal.Journal) Option {
	return func(s *DataStore) {
		s.journal = j
	}
}

// WithClock overrides the time source for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *DataStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDataStore creates a store and starts its reaper.
// The default directory is created on first use.
func NewDataStore(cfg DataStoreConfig, opts ...Option) (*DataStore, error) {
	if cfg.DefaultDir == "" {
		cfg.DefaultDir = DefaultDirName
	}
	if cfg.QuotaBytes == 0 {
		cfg.QuotaBytes = DefaultQuotaBytes
	}
	dir, err := filepath.Abs(cfg.DefaultDir)
	if err != nil {
		return nil, fmt.Errorf("resolve default dir: %w", err)
	}
	cfg.DefaultDir = dir

	s := &DataStore{
		cfg:    cfg,
		guard:  keyguard.New(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.records = record.New(
		record.WithSyncWrites(cfg.SyncWrites),
		record.WithLogger(s.logger),
	)
	s.index = index.New(cfg.IndexCapacity,
		index.WithClock(s.now),
		index.WithEvictFunc(s.onEvict),
	)

	reaperOpts := []reaper.Option{
		reaper.WithLogger(s.logger.With("component", "reaper")),
		reaper.WithMetrics(s.metrics),
	}
	if s.journal != nil {
		reaperOpts = append(reaperOpts, reaper.WithJournal(s.journal))
	}
	s.reaper = reaper.New(cfg.Reaper, s.index, s.records, s.guard, reaperOpts...)

	if s.metrics != nil {
		if err := s.metrics.RegisterCollector(metric.NewCollector(s)); err != nil {
			s.logger.Warn("index collector not registered", "error", err)
		}
	}

	if err := s.reaper.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start reaper: %w", err)
	}

	s.logger.Info("data store ready",
		"default_dir", cfg.DefaultDir,
		"quota_bytes", cfg.QuotaBytes,
		"index_capacity", s.index.Capacity(),
		"journal", s.journal != nil)

	return s, nil
}

// Store writes a new record and indexes it.
func (s *DataStore) Store(ctx context.Context, req *StoreRequest) (err error) {
	start := time.Now()
	defer func() { s.observe(OpStore, start, err) }()

	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	if req == nil {
		return domain.ErrInvalidKey.WithDetails("request is required")
	}

	// 1. Validate key
	if err := domain.ValidateKey(req.Key); err != nil {
		return err
	}

	// 2. Validate payload
	if err := domain.ValidatePayload(req.Data); err != nil {
		return err
	}

	// 3. Resolve directory
	dir := s.resolveDir(req.Dir)

	// 4. Serialize with other writers and the reaper
	if !s.guard.TryAcquire(req.Key) {
		return domain.ErrLockContention.WithDetails(req.Key)
	}
	defer s.guard.Release(req.Key)

	// 5. Reject live duplicates
	if loc, ok := s.index.Get(req.Key); ok {
		return domain.ErrDuplicateKey.WithDetails(fmt.Sprintf("%s in %s", req.Key, loc))
	}

	// 5a. An expired, unreaped record elsewhere would lose its only
	// reference once the new entry replaces it. Remove it first.
	if old, ok := s.index.Peek(req.Key); ok && old.Location != dir {
		if err := s.records.Delete(req.Key, old.Location); err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}
	}

	// 6. Ensure directory
	if err := s.records.EnsureDir(dir); err != nil {
		return err
	}

	// 7. Check quota (before the write, not atomic with it)
	if size := s.records.DirSize(dir); size >= s.cfg.QuotaBytes {
		return domain.ErrQuotaExceeded.WithDetails(
			fmt.Sprintf("%s uses %d of %d bytes", dir, size, s.cfg.QuotaBytes),
		)
	}

	// 8. Write record, then index it
	if err := s.records.Write(req.Key, []byte(req.Data), dir); err != nil {
		if errors.Is(err, domain.ErrLockContention) || errors.Is(err, domain.ErrWriteFailed) {
			return err
		}
		return domain.ErrWriteFailed.WithDetails(req.Key).WithCause(err)
	}

	entry := domain.NewEntry(req.Key, dir, req.TTL, s.now())
	s.index.AddEntry(entry)

	if s.journal != nil {
		if err := s.journal.Put(ctx, entry); err != nil {
			s.logger.Warn("journal put failed", "key", req.Key, "error", err)
		}
	}

	s.logger.Debug("record stored", "key", req.Key, "dir", dir, "ttl", req.TTL, "size", len(req.Data))
	return nil
}

// Read returns the stored data for key.
//
// A missing or expired entry yields domain.ErrKeyNotFound. A record file
// that vanished behind a live entry also yields ErrKeyNotFound, wrapping
// domain.ErrRecordNotFound.
func (s *DataStore) Read(ctx context.Context, key string) (data string, err error) {
	start := time.Now()
	defer func() { s.observe(OpRead, start, err) }()

	if s.closed.Load() {
		return "", domain.ErrStoreClosed
	}
	if err := domain.ValidateKey(key); err != nil {
		return "", err
	}

	loc, ok := s.index.Get(key)
	if !ok {
		return "", domain.ErrKeyNotFound.WithDetails(key)
	}

	b, err := s.records.Read(key, loc)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return "", domain.ErrKeyNotFound.WithDetails(key).WithCause(err)
		case errors.Is(err, domain.ErrLockContention), errors.Is(err, domain.ErrReadFailed):
			return "", err
		default:
			return "", domain.ErrReadFailed.WithDetails(key).WithCause(err)
		}
	}
	return string(b), nil
}

// Delete removes the record and index entry for key.
//
// If the record file is already gone the stale entry is dropped and
// domain.ErrRecordNotFound is returned. Any other delete failure keeps the
// entry so it keeps pointing at the file that still exists.
func (s *DataStore) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.observe(OpDelete, start, err) }()

	if s.closed.Load() {
		return domain.ErrStoreClosed
	}
	if err := domain.ValidateKey(key); err != nil {
		return err
	}

	if !s.guard.TryAcquire(key) {
		return domain.ErrLockContention.WithDetails(key)
	}
	defer s.guard.Release(key)

	loc, ok := s.index.Get(key)
	if !ok {
		return domain.ErrKeyNotFound.WithDetails(key)
	}

	if err := s.records.Delete(key, loc); err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			s.forget(ctx, key)
			return err
		case errors.Is(err, domain.ErrLockContention), errors.Is(err, domain.ErrDeleteFailed):
			return err
		default:
			return domain.ErrDeleteFailed.WithDetails(key).WithCause(err)
		}
	}

	s.forget(ctx, key)
	s.logger.Debug("record deleted", "key", key, "dir", loc)
	return nil
}

// forget removes key from the index and the journal.
func (s *DataStore) forget(ctx context.Context, key string) {
	s.index.Remove(key)
	if s.journal != nil {
		if err := s.journal.Delete(ctx, key); err != nil {
			s.logger.Warn("journal delete failed", "key", key, "error", err)
		}
	}
}

// Sweep runs one reaper pass immediately.
func (s *DataStore) Sweep(ctx context.Context) reaper.SweepResult {
	return s.reaper.Sweep(ctx)
}

// IndexStats implements metric.IndexSource.
func (s *DataStore) IndexStats() metric.IndexStats {
	return metric.IndexStats{
		Live:     s.index.Len(),
		Total:    s.index.Total(),
		Capacity: s.index.Capacity(),
	}
}

// Stats returns a snapshot of the store state.
func (s *DataStore) Stats() Stats {
	live, total := s.index.Len(), s.index.Total()
	return Stats{
		Entries:         live,
		ExpiredEntries:  max(total-live, 0),
		Capacity:        s.index.Capacity(),
		DefaultDir:      s.cfg.DefaultDir,
		DefaultDirBytes: s.records.DirSize(s.cfg.DefaultDir),
		QuotaBytes:      s.cfg.QuotaBytes,
		ReaperState:     s.reaper.State().String(),
		LastSweep:       s.reaper.LastSweep(),
		Journal:         s.journal != nil,
		Closed:          s.closed.Load(),
	}
}

// DefaultDir returns the absolute default directory.
func (s *DataStore) DefaultDir() string {
	return s.cfg.DefaultDir
}

// Close stops the reaper and closes the journal. Subsequent operations
// fail with domain.ErrStoreClosed. Close is idempotent.
func (s *DataStore) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		var errs []error
		if err := s.reaper.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		if s.journal != nil {
			if err := s.journal.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close journal: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)

		s.logger.Info("data store closed")
	})
	return s.closeErr
}

func (s *DataStore) resolveDir(dir string) string {
	if dir == "" {
		return s.cfg.DefaultDir
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func (s *DataStore) onEvict(e domain.Entry) {
	s.metrics.IncIndexEviction()
	s.logger.Warn("index full, entry evicted", "key", e.Key, "location", e.Location)
}

func (s *DataStore) observe(op string, start time.Time, err error) {
	result := metric.ResultOK
	if err != nil {
		result = domain.GetErrorCode(err)
		if result == "" {
			result = domain.ErrInternal.Code
		}
		if errors.Is(err, domain.ErrLockContention) {
			s.metrics.IncLockContention()
		}
	}
	s.metrics.ObserveOperation(op, result, time.Since(start))
}
