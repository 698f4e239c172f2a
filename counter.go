package batchcount

import (
	"hash/fnv"
	"sync"
)

// counterShards is the number of independently locked partitions of a Counter.
const counterShards = 64

// hashPartition partitions a key to one of numBins bins
func hashPartition(key string, numBins uint) uint {
	h := fnv.New64()
	h.Write([]byte(key))
	return uint(h.Sum64() % uint64(numBins))
}

// Counter is a token-to-count mapping safe for concurrent use. Keys are
// partitioned across shards so writers on different tokens rarely contend.
type Counter struct {
	shards [counterShards]counterShard
}

type counterShard struct {
	mut    sync.Mutex
	counts map[string]int64
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	c := &Counter{}
	for i := range c.shards {
		c.shards[i].counts = make(map[string]int64)
	}
	return c
}

// Add adds n to key's count, inserting key if it is absent.
func (c *Counter) Add(key string, n int64) {
	shard := &c.shards[hashPartition(key, counterShards)]
	shard.mut.Lock()
	shard.counts[key] += n
	shard.mut.Unlock()
}

// Snapshot copies the current counts into a plain map.
func (c *Counter) Snapshot() map[string]int64 {
	counts := make(map[string]int64)
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mut.Lock()
		for key, n := range shard.counts {
			counts[key] = n
		}
		shard.mut.Unlock()
	}
	return counts
}
