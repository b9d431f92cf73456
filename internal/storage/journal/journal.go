package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yndnr/filekv/internal/core/domain"
)

// entryPrefix namespaces index entries inside the engine.
var entryPrefix = []byte("entry/")

func entryKey(key string) []byte {
	return append(append([]byte(nil), entryPrefix...), key...)
}

// Journal stores domain entries in a KVEngine.
type Journal struct {
	engine KVEngine
	logger *slog.Logger
}

// New wraps engine. The journal owns the engine and closes it on Close.
func New(engine KVEngine, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{engine: engine, logger: logger}
}

// Open opens the engine selected by cfg and wraps it.
// It returns (nil, nil) when journaling is disabled.
func Open(cfg Config, logger *slog.Logger) (*Journal, error) {
	engine, err := OpenEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, nil
	}
	return New(engine, logger), nil
}

// Engine returns the underlying engine.
func (j *Journal) Engine() KVEngine {
	return j.engine
}

// Put records e, replacing any previous record for the same key.
func (j *Journal) Put(ctx context.Context, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: encode %q: %w", e.Key, err)
	}
	if err := j.engine.Set(ctx, entryKey(e.Key), data); err != nil {
		return fmt.Errorf("journal: put %q: %w", e.Key, err)
	}
	return nil
}

// Get returns the recorded entry for key.
func (j *Journal) Get(ctx context.Context, key string) (domain.Entry, error) {
	data, err := j.engine.Get(ctx, entryKey(key))
	if err != nil {
		return domain.Entry{}, err
	}
	var e domain.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.Entry{}, fmt.Errorf("journal: decode %q: %w", key, err)
	}
	return e, nil
}

// Delete removes the record for key. A missing record is not an error.
func (j *Journal) Delete(ctx context.Context, key string) error {
	if err := j.engine.Delete(ctx, entryKey(key)); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("journal: delete %q: %w", key, err)
	}
	return nil
}

// Load returns every recorded entry. Undecodable records are skipped and
// logged.
func (j *Journal) Load(ctx context.Context) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := j.engine.Scan(ctx, entryPrefix, func(key, value []byte) bool {
		var e domain.Entry
		if err := json.Unmarshal(value, &e); err != nil || e.Key == "" {
			j.logger.Warn("skipping corrupt journal record", "key", string(key), "error", err)
			return true
		}
		entries = append(entries, e)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("journal: load: %w", err)
	}
	return entries, nil
}

// Close closes the underlying engine.
func (j *Journal) Close() error {
	return j.engine.Close()
}
