// Package materialshard groups positions by material signature.
//
// Consecutive positions of one game mostly share their material, so a game
// replayed against a snapshot touches few shards.
package materialshard

import (
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/shard"
)

// Name is the strategy name recorded in manifests.
const Name = "material"

// Strategy implements material-signature sharding.
type Strategy struct{}

var _ shard.Strategy = (*Strategy)(nil)

// New returns a material strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns "material".
func (s *Strategy) Name() string {
	return Name
}

// ShardID hashes the material signature of the position. Unparseable
// positions hash their normalized text instead.
func (s *Strategy) ShardID(fenStr string, totalShards int) int {
	sig, err := Signature(fenStr)
	if err != nil {
		key, nerr := fen.Normalize(fenStr)
		if nerr != nil {
			key = fenStr
		}
		return shard.Index(shard.Hash([]byte(key)), totalShards)
	}
	return shard.Index(shard.Hash(sig[:]), totalShards)
}

// Signature encodes queens, rooks and minor pieces per side, the pawn total
// in buckets of four, and the side to move.
func Signature(fenStr string) ([8]byte, error) {
	var sig [8]byte
	m, err := fen.ParseMaterial(fenStr)
	if err != nil {
		return sig, err
	}
	white, err := fen.WhiteToMove(fenStr)
	if err != nil {
		return sig, err
	}
	sig[0] = capped(m.WhiteQueens)
	sig[1] = capped(m.BlackQueens)
	sig[2] = capped(m.WhiteRooks)
	sig[3] = capped(m.BlackRooks)
	sig[4] = capped(m.WhiteMinors())
	sig[5] = capped(m.BlackMinors())
	sig[6] = capped((m.WhitePawns + m.BlackPawns) / 4)
	if !white {
		sig[7] = 1
	}
	return sig, nil
}

func capped(n int) byte {
	return byte(min(n, 7))
}
