// Package reaper removes expired filekv entries in the background.
//
// On every tick the reaper snapshots the index keys and, for each key whose
// entry has expired, deletes the record file and then the index entry. A
// key is only touched while its key guard is held, so a concurrent store of
// the same key is never undone. Failures are logged and left in place for
// the next sweep; they never stop the loop.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/filekv/internal/core/domain"
	"github.com/yndnr/filekv/internal/telemetry/metric"
)

// DefaultInterval is the default time between sweeps.
const DefaultInterval = 5 * time.Second

// DefaultMaxDeleteAttempts is the default number of consecutive sweeps that
// may fail to delete an expired record before its entry is dropped.
const DefaultMaxDeleteAttempts = 12

// ErrAlreadyStarted is returned by Start when the reaper is not idle.
var ErrAlreadyStarted = errors.New("reaper: already started")

// State is the lifecycle state of a Reaper.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateScanning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Index is the part of the TTL index the reaper needs.
type Index interface {
	Keys() []string
	GetExpired(key string) (string, bool)
	RemoveIfExpired(key string) bool
}

// Records deletes record files.
type Records interface {
	Delete(key, dir string) error
}

// Guard serializes work on a key with foreground operations.
type Guard interface {
	TryAcquire(key string) bool
	Release(key string)
}

// Journal mirrors index removals.
type Journal interface {
	Delete(ctx context.Context, key string) error
}

// Config configures the Reaper.
type Config struct {
	// Interval between sweeps. Default: 5s
	Interval time.Duration

	// MaxDeletesPerSecond caps record deletions. Zero means unlimited.
	MaxDeletesPerSecond float64

	// MaxDeleteAttempts bounds consecutive failed deletions of one expired
	// record. Once reached the entry is removed from the index and the file
	// is left as an orphan. Zero selects DefaultMaxDeleteAttempts; negative
	// retries forever.
	MaxDeleteAttempts int
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	// Scanned is the number of index keys examined.
	Scanned int
	// Reaped is the number of expired entries removed.
	Reaped int
	// Failed is the number of expired entries whose file could not be deleted.
	Failed int
	// Skipped is the number of expired entries left because they were busy.
	Skipped int
	// Abandoned is the number of entries dropped after too many failed
	// deletions.
	Abandoned int
	// Duration is the wall time of the sweep.
	Duration time.Duration
	// FinishedAt is when the sweep ended.
	FinishedAt time.Time
}

// Reaper periodically removes expired entries and their files.
type Reaper struct {
	cfg     Config
	index   Index
	records Records
	guard   Guard
	journal Journal
	metrics *metric.Registry
	logger  *slog.Logger
	limiter *rate.Limiter

	state atomic.Int32

	mu        sync.Mutex
	lastSweep SweepResult
	// failures counts consecutive failed deletions per key.
	failures map[string]int

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Option configures the Reaper.
type Option func(*Reaper)

// WithJournal mirrors removals into j.
func WithJournal(j Journal) Option {
	return func(r *Reaper) {
		r.journal = j
	}
}

// WithMetrics records sweep metrics in m.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Reaper) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a reaper. It does nothing until Start.
func New(cfg Config, index Index, records Records, guard Guard, opts ...Option) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxDeleteAttempts == 0 {
		cfg.MaxDeleteAttempts = DefaultMaxDeleteAttempts
	}

	limit, burst := rate.Inf, 1
	if cfg.MaxDeletesPerSecond > 0 {
		limit = rate.Limit(cfg.MaxDeletesPerSecond)
		if b := int(cfg.MaxDeletesPerSecond); b > 1 {
			burst = b
		}
	}

	r := &Reaper{
		cfg:      cfg,
		index:    index,
		records:  records,
		guard:    guard,
		logger:   slog.Default(),
		limiter:  rate.NewLimiter(limit, burst),
		failures: make(map[string]int),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Reaper) State() State {
	return State(r.state.Load())
}

// LastSweep returns the result of the most recent sweep.
func (r *Reaper) LastSweep() SweepResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSweep
}

// Start launches the sweep loop. The loop ends when Stop is called or ctx
// is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	go r.loop(ctx)

	r.logger.Info("reaper started", "interval", r.cfg.Interval)
	return nil
}

// Stop ends the sweep loop and waits for it to exit or for ctx to expire.
// It is safe to call more than once and before Start.
func (r *Reaper) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})

	if r.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		return nil
	}

	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reaper: stop: %w", ctx.Err())
	}
}

func (r *Reaper) loop(ctx context.Context) {
	defer close(r.doneCh)
	defer func() {
		r.state.Store(int32(StateStopped))
		r.logger.Info("reaper stopped")
	}()

	// Sweeps observe stopCh through this context.
	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-sweepCtx.Done():
		}
	}()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(sweepCtx)
		case <-sweepCtx.Done():
			return
		}
	}
}

// Sweep runs one pass over the index and returns its result.
// It stops early, returning what it has done so far, when ctx is done.
func (r *Reaper) Sweep(ctx context.Context) SweepResult {
	scanning := r.state.CompareAndSwap(int32(StateRunning), int32(StateScanning))
	if scanning {
		defer r.state.CompareAndSwap(int32(StateScanning), int32(StateRunning))
	}

	start := time.Now()
	var res SweepResult

	r.mu.Lock()
	prev := r.failures
	r.mu.Unlock()
	failing := make(map[string]int)

	for _, key := range r.index.Keys() {
		if ctx.Err() != nil {
			break
		}
		res.Scanned++

		if _, expired := r.index.GetExpired(key); !expired {
			continue
		}
		if !r.guard.TryAcquire(key) {
			res.Skipped++
			if n := prev[key]; n > 0 {
				failing[key] = n
			}
			continue
		}
		if n := r.reap(ctx, key, prev[key], &res); n > 0 {
			failing[key] = n
		}
		r.guard.Release(key)
	}

	// A sweep cut short keeps the counts of keys it did not reach.
	if ctx.Err() != nil {
		for key, n := range prev {
			if _, ok := failing[key]; !ok {
				failing[key] = n
			}
		}
	}

	res.Duration = time.Since(start)
	res.FinishedAt = time.Now()

	r.mu.Lock()
	r.lastSweep = res
	r.failures = failing
	r.mu.Unlock()

	r.metrics.ObserveSweep(res.Reaped, res.Failed, res.Abandoned, res.Duration)

	if res.Reaped > 0 || res.Failed > 0 || res.Abandoned > 0 {
		r.logger.Info("sweep completed",
			"scanned", res.Scanned,
			"reaped", res.Reaped,
			"failed", res.Failed,
			"abandoned", res.Abandoned,
			"skipped", res.Skipped,
			"elapsed", res.Duration)
	} else {
		r.logger.Debug("sweep completed", "scanned", res.Scanned)
	}

	return res
}

// reap deletes one expired key. The caller holds the key guard.
// attempts is the number of earlier consecutive delete failures for key;
// the updated count is returned, zero once the entry is gone.
func (r *Reaper) reap(ctx context.Context, key string, attempts int, res *SweepResult) int {
	// Re-check under the guard: the key may have been stored again.
	location, expired := r.index.GetExpired(key)
	if !expired {
		return 0
	}

	if err := r.limiter.Wait(ctx); err != nil {
		res.Skipped++
		return attempts
	}

	err := r.records.Delete(key, location)
	switch {
	case err == nil, errors.Is(err, domain.ErrRecordNotFound):
	case errors.Is(err, domain.ErrLockContention):
		res.Skipped++
		return attempts
	default:
		attempts++
		if r.cfg.MaxDeleteAttempts < 0 || attempts < r.cfg.MaxDeleteAttempts {
			res.Failed++
			r.logger.Warn("failed to delete expired record",
				"key", key,
				"location", location,
				"attempt", attempts,
				"error", err)
			return attempts
		}
		if !r.index.RemoveIfExpired(key) {
			return 0
		}
		res.Abandoned++
		r.logger.Error("dropping expired entry after repeated delete failures",
			"key", key,
			"location", location,
			"attempts", attempts,
			"error", err)
		r.forget(ctx, key)
		return 0
	}

	if !r.index.RemoveIfExpired(key) {
		return 0
	}
	res.Reaped++
	r.forget(ctx, key)
	return 0
}

func (r *Reaper) forget(ctx context.Context, key string) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Delete(ctx, key); err != nil {
		r.logger.Warn("failed to remove journal entry", "key", key, "error", err)
	}
}
