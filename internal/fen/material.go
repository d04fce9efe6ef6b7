package fen

import "strings"

// Material holds non-king piece counts per side.
type Material struct {
	WhitePawns   int
	WhiteKnights int
	WhiteBishops int
	WhiteRooks   int
	WhiteQueens  int

	BlackPawns   int
	BlackKnights int
	BlackBishops int
	BlackRooks   int
	BlackQueens  int
}

// WhiteMinors returns the number of White bishops and knights.
func (m Material) WhiteMinors() int { return m.WhiteBishops + m.WhiteKnights }

// BlackMinors returns the number of Black bishops and knights.
func (m Material) BlackMinors() int { return m.BlackBishops + m.BlackKnights }

// ParseMaterial counts pieces in the placement field of a FEN.
func ParseMaterial(fen string) (Material, error) {
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return Material{}, ErrInvalidFEN
	}

	var m Material
	counters := map[rune]*int{
		'P': &m.WhitePawns, 'N': &m.WhiteKnights, 'B': &m.WhiteBishops, 'R': &m.WhiteRooks, 'Q': &m.WhiteQueens,
		'p': &m.BlackPawns, 'n': &m.BlackKnights, 'b': &m.BlackBishops, 'r': &m.BlackRooks, 'q': &m.BlackQueens,
	}
	for _, ch := range fields[0] {
		if c, ok := counters[ch]; ok {
			*c++
			continue
		}
		if ch == 'K' || ch == 'k' || ch == '/' || (ch >= '1' && ch <= '8') {
			continue
		}
		return Material{}, ErrInvalidFEN
	}
	return m, nil
}
