// Package board answers move-level questions about a position.
package board

import (
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

// ErrIllegalMove is returned when a coordinate move is not legal in the position.
var ErrIllegalMove = errors.New("board: illegal move")

// LegalMove resolves a coordinate move (e.g. "e2e4", "e7e8q") in the given position.
func LegalMove(fen, uci string) (*chess.Position, *chess.Move, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding fen: %w", err)
	}
	pos := chess.NewGame(opt).Position()
	for _, m := range pos.ValidMoves() {
		if m.String() == uci {
			return pos, m, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
}

// IsTactical reports whether the move captures or gives check. Unknown or
// illegal moves are not tactical.
func IsTactical(fen, uci string) bool {
	if uci == "" {
		return false
	}
	_, m, err := LegalMove(fen, uci)
	if err != nil {
		return false
	}
	return m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant) || m.HasTag(chess.Check)
}

// SAN renders a coordinate move in algebraic notation, or returns the input
// unchanged when it cannot be resolved.
func SAN(fen, uci string) string {
	pos, m, err := LegalMove(fen, uci)
	if err != nil {
		return uci
	}
	return chess.AlgebraicNotation{}.Encode(pos, m)
}
