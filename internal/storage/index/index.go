// Package index provides the in-memory TTL index of filekv.
//
// The index maps a key to the directory that holds its record file and the
// time the key expires. It is bounded: once capacity is reached the least
// recently used entry is dropped to make room. Dropping an entry only loses
// the index reference; the record file stays on disk as an orphan until
// recovery or an explicit cleanup removes it.
//
// Lookups never distinguish "absent" from "expired". Expired entries stay in
// the index until the reaper removes them together with their files.
package index

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yndnr/filekv/internal/core/domain"
)

// DefaultCapacity is the default maximum number of entries.
const DefaultCapacity = 100_000

// EvictFunc is called with the entry dropped to make room for a new key.
type EvictFunc func(domain.Entry)

// Index is a concurrency-safe, bounded key → entry mapping.
type Index struct {
	// mu makes compound operations (evict-then-add, check-then-remove)
	// atomic. The LRU cache is safe on its own for single calls.
	mu      sync.Mutex
	cache   *lru.Cache[string, domain.Entry]
	cap     int
	now     func() time.Time
	onEvict EvictFunc
}

// Option configures the Index.
type Option func(*Index)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Index) {
		if now != nil {
			i.now = now
		}
	}
}

// WithEvictFunc registers a callback for capacity evictions.
// It is not called for Remove, RemoveIfExpired or Clear.
func WithEvictFunc(fn EvictFunc) Option {
	return func(i *Index) {
		i.onEvict = fn
	}
}

// New creates an index holding at most capacity entries.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int, opts ...Option) *Index {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, domain.Entry](capacity)

	i := &Index{
		cache: cache,
		cap:   capacity,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Add inserts or replaces the entry for key. A non-positive ttl means the
// entry never expires. Empty key or location is ignored.
func (i *Index) Add(key, location string, ttl time.Duration) {
	if key == "" || location == "" {
		return
	}
	i.AddEntry(domain.NewEntry(key, location, ttl, i.now()))
}

// AddEntry inserts or replaces e as is. Used when restoring entries whose
// absolute expiry is already known.
func (i *Index) AddEntry(e domain.Entry) {
	if e.Key == "" || e.Location == "" {
		return
	}

	i.mu.Lock()
	var evicted domain.Entry
	var didEvict bool
	if !i.cache.Contains(e.Key) && i.cache.Len() >= i.cap {
		_, evicted, didEvict = i.cache.RemoveOldest()
	}
	i.cache.Add(e.Key, e)
	i.mu.Unlock()

	if didEvict && i.onEvict != nil {
		i.onEvict(evicted)
	}
}

// Get returns the location of key if it is present and not expired.
func (i *Index) Get(key string) (string, bool) {
	e, ok := i.cache.Get(key)
	if !ok || e.IsExpired(i.now()) {
		return "", false
	}
	return e.Location, true
}

// GetExpired returns the location of key only if it is present and expired.
func (i *Index) GetExpired(key string) (string, bool) {
	e, ok := i.cache.Peek(key)
	if !ok || !e.IsExpired(i.now()) {
		return "", false
	}
	return e.Location, true
}

// Peek returns the raw entry for key without touching recency.
// Expired entries are returned as well.
func (i *Index) Peek(key string) (domain.Entry, bool) {
	return i.cache.Peek(key)
}

// Remove deletes key. Removing an absent key is a no-op.
func (i *Index) Remove(key string) {
	i.mu.Lock()
	i.cache.Remove(key)
	i.mu.Unlock()
}

// RemoveIfExpired deletes key only if its current entry is expired and
// reports whether it did. A key re-added with a fresh TTL is kept.
func (i *Index) RemoveIfExpired(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	e, ok := i.cache.Peek(key)
	if !ok || !e.IsExpired(i.now()) {
		return false
	}
	return i.cache.Remove(key)
}

// Clear removes all entries.
func (i *Index) Clear() {
	i.mu.Lock()
	i.cache.Purge()
	i.mu.Unlock()
}

// Len returns the number of non-expired entries.
func (i *Index) Len() int {
	now := i.now()
	n := 0
	for _, e := range i.cache.Values() {
		if !e.IsExpired(now) {
			n++
		}
	}
	return n
}

// Total returns the number of entries including expired ones.
func (i *Index) Total() int {
	return i.cache.Len()
}

// Capacity returns the maximum number of entries.
func (i *Index) Capacity() int {
	return i.cap
}

// Keys returns a snapshot of all keys, oldest first.
func (i *Index) Keys() []string {
	return i.cache.Keys()
}
