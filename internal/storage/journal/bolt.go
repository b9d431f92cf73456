package journal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltFileName is the database file created inside Config.Dir.
const BoltFileName = "journal.db"

var boltBucket = []byte("journal")

// BoltEngine implements KVEngine on a single bbolt file.
type BoltEngine struct {
	db     *bolt.DB
	logger *slog.Logger
	closed atomic.Bool
}

// NewBoltEngine opens or creates {cfg.Dir}/journal.db.
func NewBoltEngine(cfg Config, logger *slog.Logger) (*BoltEngine, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("bbolt: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("bbolt: create dir: %w", err)
	}

	path := filepath.Join(cfg.Dir, BoltFileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt: open db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bbolt: create bucket: %w", err)
	}

	logger.Info("bbolt journal opened", "path", path)
	return &BoltEngine{db: db, logger: logger}, nil
}

// Get retrieves a value by key.
func (e *BoltEngine) Get(_ context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	var out []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores a key-value pair.
func (e *BoltEngine) Set(_ context.Context, key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

// Delete removes a key.
func (e *BoltEngine) Delete(_ context.Context, key []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

// Scan iterates over keys with a given prefix in byte order.
func (e *BoltEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Values are only valid inside the transaction.
			key := append([]byte(nil), k...)
			value := append([]byte(nil), v...)
			if !fn(key, value) {
				break
			}
		}
		return nil
	})
}

// Close closes the database file.
func (e *BoltEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("bbolt: close db: %w", err)
	}
	e.logger.Info("bbolt journal closed")
	return nil
}
