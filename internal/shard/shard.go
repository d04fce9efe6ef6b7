// Package shard maps positions to snapshot shards.
package shard

import "hash/fnv"

// Strategy places a position in one of totalShards snapshot shards.
// Positions that differ only in their move counters land in the same shard.
type Strategy interface {
	// Name is the strategy name recorded in snapshot manifests.
	Name() string

	// ShardID returns a shard in [0, totalShards).
	ShardID(fen string, totalShards int) int
}

// Hash returns the FNV-1a hash of key.
func Hash(key []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return h.Sum32()
}

// Index reduces h to a shard id. Fewer than two shards always yields 0.
func Index(h uint32, totalShards int) int {
	if totalShards < 2 {
		return 0
	}
	return int(h % uint32(totalShards))
}
