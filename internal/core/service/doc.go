// Package service provides the filekv data store.
//
// DataStore is the entry point used by the servers: it validates keys and
// payloads, enforces the per-directory quota and coordinates the record
// files, the TTL index, the optional journal and the background reaper.
//
// Errors are *domain.DomainError values; compare them with errors.Is
// against the domain sentinels.
package service
