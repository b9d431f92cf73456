// Package keyguard provides a sharded set of in-process key locks.
//
// A Guard hands out at most one holder per key at a time. Acquisition never
// waits: TryAcquire reports false when the key is already held and the
// caller decides whether to fail or retry later.
//
// Keys are spread over power-of-two shards by murmur3 hash, each shard with
// its own mutex, so operations on unrelated keys rarely touch the same lock.
//
// Usage:
//
//	g := keyguard.New()
//	if !g.TryAcquire("user1") {
//		return ErrBusy
//	}
//	defer g.Release("user1")
package keyguard
