// Package fnvshard spreads positions uniformly by hashing the normalized FEN.
package fnvshard

import (
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/shard"
)

// Name is the strategy name recorded in manifests.
const Name = "fnv32"

// Strategy implements FNV-1a sharding.
type Strategy struct{}

var _ shard.Strategy = (*Strategy)(nil)

// New returns an FNV strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns "fnv32".
func (s *Strategy) Name() string {
	return Name
}

// ShardID hashes the normalized FEN, or the raw text when it does not parse.
func (s *Strategy) ShardID(fenStr string, totalShards int) int {
	key, err := fen.Normalize(fenStr)
	if err != nil {
		key = fenStr
	}
	return shard.Index(shard.Hash([]byte(key)), totalShards)
}
