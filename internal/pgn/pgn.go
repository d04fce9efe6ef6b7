// Package pgn extracts per-ply move records from PGN game records.
//
// Records are decoded with github.com/notnil/chess. Only the main line is
// replayed; variations, NAGs and comments other than [%clk] annotations are
// ignored.
package pgn

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("pgn: parse error")

// ParseError reports a record that could not be read or replayed.
type ParseError struct {
	Reason string
	Ply    int    // 0 when the failure is not tied to a move
	Token  string // offending SAN token, if any
	Err    error
}

func (e *ParseError) Error() string {
	if e.Ply > 0 {
		return fmt.Sprintf("pgn: %s (ply %d %q)", e.Reason, e.Ply, e.Token)
	}
	return "pgn: " + e.Reason
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// Move is one half-move of a game.
type Move struct {
	Ply              int    `json:"ply"`
	SAN              string `json:"san"`
	UCI              string `json:"uci"`
	FENBefore        string `json:"fen_before"`
	FENAfter         string `json:"fen_after"`
	IsCheck          bool   `json:"is_check"`
	IsMate           bool   `json:"is_mate"`
	CapturePiece     string `json:"capture_piece,omitempty"`
	Promotion        string `json:"promotion,omitempty"`
	ClockRemainingMS *int   `json:"clock_remaining_ms"`
	TimeSpentMS      *int   `json:"time_spent_ms"`
}

// White reports whether the move was played by white.
func (m Move) White() bool { return m.Ply%2 == 1 }

// Extract replays the main line of record and returns one Move per ply.
// timeControlHint takes precedence over the record's TimeControl header.
func Extract(record, timeControlHint string) ([]Move, error) {
	if strings.TrimSpace(record) == "" {
		return nil, &ParseError{Reason: "PGN is empty."}
	}

	headers := Headers(record)
	opt, err := chess.PGN(strings.NewReader(cleanRecord(record)))
	if err != nil {
		return nil, decodeError(err, headers)
	}
	game := chess.NewGame(opt)
	played := game.Moves()
	if len(headers) == 0 && len(played) == 0 {
		return nil, &ParseError{Reason: "Unable to parse PGN."}
	}
	positions := game.Positions()
	comments := game.Comments()

	tcValue := timeControlHint
	if tcValue == "" {
		tcValue = headers["TimeControl"]
	}
	tc, known := ParseTimeControl(tcValue)
	clocks := newClockTracker(tc, known)

	notation := chess.AlgebraicNotation{}
	uci := chess.UCINotation{}
	moves := make([]Move, 0, len(played))

	for i, m := range played {
		pos, after := positions[i], positions[i+1]
		rec := Move{
			Ply:       i + 1,
			SAN:       notation.Encode(pos, m),
			UCI:       uci.Encode(pos, m),
			FENBefore: pos.String(),
			FENAfter:  after.String(),
			IsCheck:   m.HasTag(chess.Check),
		}
		switch {
		case m.HasTag(chess.EnPassant):
			rec.CapturePiece = "p"
		case m.HasTag(chess.Capture):
			rec.CapturePiece = pos.Board().Piece(m.S2()).Type().String()
		}
		if m.Promo() != chess.NoPieceType {
			rec.Promotion = m.Promo().String()
		}
		rec.IsMate = rec.IsCheck && len(after.ValidMoves()) == 0

		var clock *float64
		if i < len(comments) {
			if secs, ok := clockFromComment(strings.Join(comments[i], " ")); ok {
				clock = &secs
				ms := int(secs*1000 + 0.5)
				rec.ClockRemainingMS = &ms
			}
		}
		rec.TimeSpentMS = clocks.observe(pos.Turn() == chess.White, clock)

		moves = append(moves, rec)
	}
	return moves, nil
}

var (
	undecodableRegex = regexp.MustCompile(`notation text "([^"]*)" for position (\S+ [wb] \S+ \S+ \d+ \d+)`)
	zeroCastleRegex  = regexp.MustCompile(`\b0-0(?:-0)?\b`)
)

// decodeError maps a decoder failure onto a ParseError, naming the ply of
// the first move that could not be played.
func decodeError(err error, headers map[string]string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, " on tag "):
		return &ParseError{Reason: "invalid FEN header", Err: err}
	case strings.Contains(msg, "mismatched"):
		return &ParseError{Reason: "Unable to parse PGN.", Err: err}
	}

	perr := &ParseError{Reason: "illegal or unreadable move", Err: err}
	if m := undecodableRegex.FindStringSubmatch(msg); m != nil {
		start := chess.StartingPosition().String()
		if fen, ok := headers["FEN"]; ok {
			start = fen
		}
		perr.Token = m[1]
		perr.Ply = max(plyIndex(m[2])-plyIndex(start)+1, 0)
	}
	return perr
}

// plyIndex counts half-moves from the initial position up to fen.
func plyIndex(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return 0
	}
	fullmove := 1
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil {
			fullmove = n
		}
	}
	idx := (fullmove - 1) * 2
	if fields[1] == "b" {
		idx++
	}
	return idx
}

// cleanRecord prepares a record for the decoder: ';' comments are dropped,
// brace comments ahead of the first move are dropped since the decoder has
// no move to attach them to, and zero-castling is spelled with letters.
func cleanRecord(record string) string {
	var (
		b         strings.Builder
		inComment bool
		keep      bool
		seenMove  bool
		depth     int
	)
	b.Grow(len(record))

	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimRight(line, "\r")
		if !inComment && strings.HasPrefix(strings.TrimSpace(line), "[") {
			b.WriteString(line)
			b.WriteByte('\n')
			continue
		}
		if !inComment {
			line = zeroCastleRegex.ReplaceAllStringFunc(line, func(s string) string {
				return strings.ReplaceAll(s, "0", "O")
			})
		}

	scan:
		for i := 0; i < len(line); i++ {
			c := line[i]
			if inComment {
				if c == '}' {
					inComment = false
				}
				if keep {
					b.WriteByte(c)
				}
				continue
			}
			switch {
			case c == '{':
				inComment, keep = true, seenMove || depth > 0
				if !keep {
					continue
				}
			case c == ';':
				break scan
			case c == '(':
				depth++
			case c == ')':
				depth = max(depth-1, 0)
			case depth == 0 && strings.IndexByte("abcdefghKQRBNO", c) >= 0:
				seenMove = true
			}
			b.WriteByte(c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
