// Package journal persists a copy of the filekv index.
//
// The in-memory index is lost on restart; the journal keeps one JSON
// record per entry under "entry/{key}" in an embedded KV engine (Badger or
// bbolt) so the index can be rebuilt at startup. The journal is a mirror,
// not the source of truth: writes to it are best effort and a missing or
// stale record only affects recovery.
package journal
