// Package record manages the backing files of filekv entries.
//
// Each key owns exactly one file, {dir}/{key}.file, guarded by an advisory
// lock scoped to that file. Locks are taken without waiting: when another
// operation holds a conflicting lock the call fails immediately with
// domain.ErrLockContention and the caller decides whether to retry.
//
// Readers take a shared lock and writers/deleters an exclusive one, so
// concurrent readers of a key coexist while a reader can never observe a
// half-written record.
package record

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/filekv/internal/core/domain"
)

// Default permissions for record files and directories.
const (
	DefaultFilePerm os.FileMode = 0o600
	DefaultDirPerm  os.FileMode = 0o750
)

// errBusy is returned by tryLock when a conflicting lock is held.
var errBusy = errors.New("record: lock held")

// Store performs locked create/read/delete of record files.
//
// Store holds no per-key state; all serialization happens through the
// file locks themselves, so unrelated keys never contend.
type Store struct {
	filePerm   os.FileMode
	dirPerm    os.FileMode
	syncWrites bool
	logger     *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithSyncWrites makes Write fsync the record before releasing its lock.
func WithSyncWrites(enabled bool) Option {
	return func(s *Store) {
		s.syncWrites = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a record store.
func New(opts ...Option) *Store {
	s := &Store{
		filePerm: DefaultFilePerm,
		dirPerm:  DefaultDirPerm,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write creates or overwrites the record for key under dir.
func (s *Store) Write(key string, data []byte, dir string) error {
	path := domain.RecordPath(dir, key)

	// Truncate only under the exclusive lock.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, s.filePerm)
	if err != nil {
		return domain.ErrWriteFailed.WithDetails(path).WithCause(err)
	}

	lf, err := acquire(f, true)
	if err != nil {
		if errors.Is(err, errBusy) {
			return domain.ErrLockContention.WithDetails(path)
		}
		return domain.ErrWriteFailed.WithDetails(path).WithCause(err)
	}
	defer lf.release()

	// A delete may have unlinked the file between open and lock.
	linked, err := lf.linkedAt(path)
	if err != nil {
		return domain.ErrWriteFailed.WithDetails(path).WithCause(err)
	}
	if !linked {
		return domain.ErrLockContention.WithDetails(path)
	}

	if err := f.Truncate(0); err != nil {
		return domain.ErrWriteFailed.WithDetails(path).WithCause(err)
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return domain.ErrWriteFailed.WithDetails(path).WithCause(err)
	}
	if s.syncWrites {
		if err := f.Sync(); err != nil {
			return domain.ErrWriteFailed.WithDetails(path).WithCause(err)
		}
	}

	s.logger.Debug("record written", "path", path, "size", len(data))
	return nil
}

// Read returns the contents of the record for key under dir.
func (s *Store) Read(key, dir string) ([]byte, error) {
	path := domain.RecordPath(dir, key)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrRecordNotFound.WithDetails(path)
		}
		return nil, domain.ErrReadFailed.WithDetails(path).WithCause(err)
	}

	lf, err := acquire(f, false)
	if err != nil {
		if errors.Is(err, errBusy) {
			return nil, domain.ErrLockContention.WithDetails(path)
		}
		return nil, domain.ErrReadFailed.WithDetails(path).WithCause(err)
	}
	defer lf.release()

	linked, err := lf.linkedAt(path)
	if err != nil {
		return nil, domain.ErrReadFailed.WithDetails(path).WithCause(err)
	}
	if !linked {
		return nil, domain.ErrRecordNotFound.WithDetails(path)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrReadFailed.WithDetails(path).WithCause(err)
	}
	return data, nil
}

// Delete removes the record for key under dir.
//
// A missing file yields domain.ErrRecordNotFound; callers that need
// idempotent deletes treat it as success.
func (s *Store) Delete(key, dir string) error {
	path := domain.RecordPath(dir, key)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrRecordNotFound.WithDetails(path)
		}
		return domain.ErrDeleteFailed.WithDetails(path).WithCause(err)
	}

	lf, err := acquire(f, true)
	if err != nil {
		if errors.Is(err, errBusy) {
			return domain.ErrLockContention.WithDetails(path)
		}
		return domain.ErrDeleteFailed.WithDetails(path).WithCause(err)
	}
	defer lf.release()

	linked, err := lf.linkedAt(path)
	if err != nil {
		return domain.ErrDeleteFailed.WithDetails(path).WithCause(err)
	}
	if !linked {
		return domain.ErrRecordNotFound.WithDetails(path)
	}

	if err := removeLocked(lf, path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrRecordNotFound.WithDetails(path)
		}
		return domain.ErrDeleteFailed.WithDetails(path).WithCause(err)
	}

	s.logger.Debug("record deleted", "path", path)
	return nil
}

// Exists reports whether a record file exists for key under dir.
func (s *Store) Exists(key, dir string) bool {
	info, err := os.Stat(domain.RecordPath(dir, key))
	return err == nil && info.Mode().IsRegular()
}

// EnsureDir creates dir and its parents when missing.
func (s *Store) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return domain.ErrDirectoryCreateFailed.WithDetails(dir).WithCause(err)
	}
	return nil
}

// DirSize returns the total size in bytes of the regular files below dir.
//
// Accounting is best effort: entries that cannot be read are skipped
// instead of failing the whole walk.
func (s *Store) DirSize(dir string) uint64 {
	var size uint64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += uint64(info.Size())
		return nil
	})
	return size
}

// List returns the keys of all record files directly inside dir.
func (s *Store) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, domain.RecordExtension) {
			continue
		}
		key := strings.TrimSuffix(name, domain.RecordExtension)
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// statPath is os.Stat; tests replace it.
var statPath = os.Stat

// lockedFile is an open record file holding an advisory lock.
type lockedFile struct {
	f        *os.File
	released bool
}

// acquire takes a non-blocking lock on f. On failure f is closed.
func acquire(f *os.File, exclusive bool) (*lockedFile, error) {
	if err := tryLock(f, exclusive); err != nil {
		f.Close()
		return nil, err
	}
	return &lockedFile{f: f}, nil
}

// linkedAt reports whether path still names the locked file.
func (l *lockedFile) linkedAt(path string) (bool, error) {
	held, err := l.f.Stat()
	if err != nil {
		return false, err
	}
	current, err := statPath(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return os.SameFile(held, current), nil
}

// release unlocks and closes the file. It is safe to call more than once.
func (l *lockedFile) release() {
	if l.released {
		return
	}
	l.released = true
	_ = unlock(l.f)
	_ = l.f.Close()
}
