// Package repository defines the persistence boundary of the analysis
// pipeline: records, the store interfaces that consume them and typed errors.
//
// Implementations live in memrepo (in-memory) and gormrepo (SQLite or
// PostgreSQL through gorm).
package repository

import (
	"context"
	"time"
)

// PlayerStore finds and creates players.
type PlayerStore interface {
	// FindPlayer returns the player or a *NotFoundError.
	FindPlayer(ctx context.Context, username string) (*Player, error)

	// EnsurePlayer returns the player, creating it when missing.
	EnsurePlayer(ctx context.Context, username string) (*Player, error)
}

// GameQuery selects a player's games. Results are ordered most recent first:
// EndTime descending with unknown end times last, then ID descending.
type GameQuery struct {
	PlayerID uint
	From     *time.Time // inclusive lower bound on EndTime
	To       *time.Time // inclusive upper bound on EndTime
	Limit    int        // 0 means no limit
}

// GameStore reads and writes games.
type GameStore interface {
	FindGame(ctx context.Context, id uint) (*Game, error)
	CreateGame(ctx context.Context, game *Game) error
	ListGames(ctx context.Context, q GameQuery) ([]Game, error)
}

// MoveStore reads and replaces the moves of a game.
type MoveStore interface {
	// ListMoves returns the moves of a game in ply order.
	ListMoves(ctx context.Context, gameID uint) ([]Move, error)

	// ReplaceMoves deletes the game's moves and their analyses, then inserts
	// moves. IDs are assigned on the passed slice.
	ReplaceMoves(ctx context.Context, gameID uint, moves []Move) error
}

// PositionStore is the evaluation cache keyed by (fingerprint, version).
type PositionStore interface {
	// FindPosition returns the cached row or a *NotFoundError.
	FindPosition(ctx context.Context, fingerprint, version string) (*EvaluatedPosition, error)

	// UpsertPosition inserts or overwrites the row for its key.
	UpsertPosition(ctx context.Context, pos *EvaluatedPosition) error

	// ListPositions returns every row stored under version.
	ListPositions(ctx context.Context, version string) ([]EvaluatedPosition, error)
}

// MoveQuery selects a player's own moves. A move belongs to the player when
// the player had white and the ply is odd, or had black and the ply is even.
type MoveQuery struct {
	PlayerID uint
	Username string

	// Version, when set, restricts rows to moves analyzed under it and fills
	// MoveRow.Analysis. When empty, all moves are returned without analysis.
	Version string

	// GameIDs restricts rows to the listed games when non-empty.
	GameIDs []uint
}

// AnalysisStore reads and writes move analyses.
type AnalysisStore interface {
	// FindAnalysis returns the analysis or a *NotFoundError.
	FindAnalysis(ctx context.Context, moveID uint, version string) (*MoveAnalysis, error)

	// UpsertAnalysis inserts or overwrites the row for (MoveID, AnalysisVersion).
	UpsertAnalysis(ctx context.Context, a *MoveAnalysis) error

	// LatestVersion returns the version of the player's most recent analysis,
	// or "" when none exists.
	LatestVersion(ctx context.Context, playerID uint) (string, error)

	// PlayerMoves returns the player's own moves ordered by game ID then ply.
	PlayerMoves(ctx context.Context, q MoveQuery) ([]MoveRow, error)
}

// PatternStore replaces and lists mined patterns.
type PatternStore interface {
	// ReplacePatterns deletes all patterns and examples for (playerID,
	// version) and inserts patterns in their place.
	ReplacePatterns(ctx context.Context, playerID uint, version string, patterns []Pattern) error

	// ListPatterns returns the patterns with examples, ordered by occurrences
	// then severity, both descending.
	ListPatterns(ctx context.Context, playerID uint, version string) ([]Pattern, error)
}

// Repository is the full persistence surface.
type Repository interface {
	PlayerStore
	GameStore
	MoveStore
	PositionStore
	AnalysisStore
	PatternStore

	// WithinTx runs fn against a transactional view. Writes made through tx
	// are discarded when fn returns an error.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	// Close releases the underlying connection.
	Close() error
}
