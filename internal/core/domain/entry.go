package domain

import (
	"path/filepath"
	"time"
)

// RecordExtension is appended to a key to name its backing file.
const RecordExtension = ".file"

// Entry is an index record locating the backing file of a key.
//
// Entries are immutable: a new TTL means a new Entry.
type Entry struct {
	// Key identifies the record.
	Key string `json:"key"`

	// Location is the directory that holds {Key}.file.
	Location string `json:"location"`

	// ExpiresAt is the absolute expiration timestamp (Unix milliseconds).
	// Zero means the entry never expires.
	ExpiresAt int64 `json:"expires_at"`
}

// NewEntry creates an entry that expires ttl after now.
// A non-positive ttl yields an entry that never expires.
func NewEntry(key, location string, ttl time.Duration, now time.Time) Entry {
	e := Entry{Key: key, Location: location}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl).UnixMilli()
	}
	return e
}

// IsExpired reports whether the entry has expired at the given time.
func (e Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt == 0 {
		return false
	}
	return now.UnixMilli() > e.ExpiresAt
}

// TTL returns the remaining lifetime at the given time.
// It returns 0 for entries that never expire and a negative value for
// expired ones.
func (e Entry) TTL(now time.Time) time.Duration {
	if e.ExpiresAt == 0 {
		return 0
	}
	return time.Duration(e.ExpiresAt-now.UnixMilli()) * time.Millisecond
}

// RecordPath returns the path of the backing file.
func (e Entry) RecordPath() string {
	return RecordPath(e.Location, e.Key)
}

// RecordFileName returns the file name used for a key.
func RecordFileName(key string) string {
	return key + RecordExtension
}

// RecordPath returns the path of the backing file for key under dir.
func RecordPath(dir, key string) string {
	return filepath.Join(dir, RecordFileName(key))
}
