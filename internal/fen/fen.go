// Package fen provides helpers for Forsyth-Edwards Notation strings: validation,
// normalization for snapshot keys, side to move and the content fingerprint
// used to key cached evaluations.
package fen

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidFEN indicates the FEN string is malformed.
var ErrInvalidFEN = errors.New("fen: invalid notation")

// Side to move values as they appear in the second FEN field.
const (
	White = "w"
	Black = "b"
)

// Fingerprint returns the hex sha256 of the exact FEN string.
// Two positions share a fingerprint only if their FEN strings are byte-identical.
func Fingerprint(fen string) string {
	sum := sha256.Sum256([]byte(fen))
	return hex.EncodeToString(sum[:])
}

// Normalize returns the first four FEN fields (placement, side, castling,
// en passant), dropping the move counters. Snapshot records are keyed by it.
func Normalize(fen string) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return "", ErrInvalidFEN
	}
	if !validPlacement(fields[0]) || !validSide(fields[1]) {
		return "", ErrInvalidFEN
	}
	return strings.Join(fields[:4], " "), nil
}

// SideToMove returns White or Black.
func SideToMove(fen string) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 || !validSide(fields[1]) {
		return "", ErrInvalidFEN
	}
	return fields[1], nil
}

// WhiteToMove reports whether White is to move. Malformed input reports false
// with ErrInvalidFEN.
func WhiteToMove(fen string) (bool, error) {
	side, err := SideToMove(fen)
	if err != nil {
		return false, err
	}
	return side == White, nil
}

func validSide(s string) bool {
	return s == White || s == Black
}

func validPlacement(placement string) bool {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return false
	}
	for _, rank := range ranks {
		squares := 0
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				squares += int(ch - '0')
			case strings.ContainsRune("PNBRQKpnbrqk", ch):
				squares++
			default:
				return false
			}
		}
		if squares != 8 {
			return false
		}
	}
	return true
}
