package keyguard

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the default number of shards.
const DefaultShardCount = 16

// Guard is a concurrency-safe set of held keys.
type Guard struct {
	shards    []*shard
	shardMask uint32
}

type shard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// New creates a guard with the default shard count.
func New() *Guard {
	return NewWithShards(DefaultShardCount)
}

// NewWithShards creates a guard with the given shard count.
// shardCount must be a power of 2; anything else selects the default.
func NewWithShards(shardCount int) *Guard {
	if shardCount <= 0 || shardCount&(shardCount-1) != 0 {
		shardCount = DefaultShardCount
	}

	g := &Guard{
		shards:    make([]*shard, shardCount),
		shardMask: uint32(shardCount - 1),
	}
	for i := range g.shards {
		g.shards[i] = &shard{held: make(map[string]struct{})}
	}
	return g
}

func (g *Guard) shardFor(key string) *shard {
	return g.shards[murmur3.Sum32([]byte(key))&g.shardMask]
}

// TryAcquire marks key as held and reports whether it succeeded.
func (g *Guard) TryAcquire(key string) bool {
	s := g.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.held[key]; busy {
		return false
	}
	s.held[key] = struct{}{}
	return true
}

// Release frees key. Releasing a key that is not held is a no-op.
func (g *Guard) Release(key string) {
	s := g.shardFor(key)
	s.mu.Lock()
	delete(s.held, key)
	s.mu.Unlock()
}
