package repository

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/discochess/coach/internal/engine"
)

// Player is a user whose games are imported and analyzed.
type Player struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time
}

// Game is an imported game owned by a player.
type Game struct {
	ID            uint   `gorm:"primaryKey"`
	PlayerID      uint   `gorm:"index;not null"`
	ExternalID    string `gorm:"size:255;index"`
	PGN           string `gorm:"type:text"`
	TimeControl   string `gorm:"size:32"`
	WhiteUsername string `gorm:"size:64"`
	BlackUsername string `gorm:"size:64"`
	WhiteRating   *int
	BlackRating   *int
	ResultWhite   string     `gorm:"size:32"`
	ResultBlack   string     `gorm:"size:32"`
	ECOURL        string     `gorm:"column:eco_url;size:255"`
	EndTime       *time.Time `gorm:"index"`
	CreatedAt     time.Time
}

// Player colors as seen from Game.PlayerColor.
const (
	ColorWhite = "white"
	ColorBlack = "black"
)

// PlayerColor returns the color username played, or "" when the player is
// on neither side.
func (g *Game) PlayerColor(username string) string {
	switch {
	case strings.EqualFold(g.WhiteUsername, username):
		return ColorWhite
	case strings.EqualFold(g.BlackUsername, username):
		return ColorBlack
	}
	return ""
}

// PlayerResult returns the raw result string for username's side.
func (g *Game) PlayerResult(username string) string {
	switch g.PlayerColor(username) {
	case ColorWhite:
		return g.ResultWhite
	case ColorBlack:
		return g.ResultBlack
	}
	return ""
}

// Opponent returns the opponent's username and rating.
func (g *Game) Opponent(username string) (string, *int) {
	if g.PlayerColor(username) == ColorBlack {
		return g.WhiteUsername, g.WhiteRating
	}
	return g.BlackUsername, g.BlackRating
}

// Move is one ply of a game. (GameID, Ply) is unique.
type Move struct {
	ID               uint   `gorm:"primaryKey"`
	GameID           uint   `gorm:"uniqueIndex:idx_moves_game_ply;not null"`
	Ply              int    `gorm:"uniqueIndex:idx_moves_game_ply;not null"`
	SAN              string `gorm:"column:move_san;size:16"`
	UCI              string `gorm:"column:move_uci;size:8"`
	FENBefore        string `gorm:"type:text"`
	FENAfter         string `gorm:"type:text"`
	IsCheck          bool
	IsMate           bool
	CapturePiece     string `gorm:"size:1"`
	Promotion        string `gorm:"size:1"`
	ClockRemainingMS *int
	TimeSpentMS      *int
}

// ByWhite reports whether the move was played by white.
func (m *Move) ByWhite() bool { return m.Ply%2 == 1 }

// EvaluatedPosition is a cached evaluation keyed by (Fingerprint, AnalysisVersion).
type EvaluatedPosition struct {
	ID              uint   `gorm:"primaryKey"`
	Fingerprint     string `gorm:"column:fen_hash;size:64;uniqueIndex:idx_positions_key;not null"`
	AnalysisVersion string `gorm:"size:255;uniqueIndex:idx_positions_key;not null"`
	FEN             string `gorm:"type:text;not null"`
	SideToMove      string `gorm:"size:1"`
	EngineName      string `gorm:"size:64"`
	EngineVersion   string `gorm:"size:64"`
	Depth           int
	TimeMS          int
	MultiPV         int
	EvalCP          *int
	EvalMate        *int
	PV              string                           `gorm:"column:pv_uci;type:text"`
	Lines           datatypes.JSONSlice[engine.Line] `gorm:"column:multipv_json"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Evaluation converts the row back to an engine evaluation.
func (p *EvaluatedPosition) Evaluation() engine.Evaluation {
	return engine.Evaluation{CP: p.EvalCP, Mate: p.EvalMate, PV: p.PV, Lines: []engine.Line(p.Lines)}
}

// MoveAnalysis is the verdict on one move. (MoveID, AnalysisVersion) is unique.
type MoveAnalysis struct {
	ID              uint   `gorm:"primaryKey"`
	MoveID          uint   `gorm:"uniqueIndex:idx_analysis_key;not null"`
	AnalysisVersion string `gorm:"size:255;uniqueIndex:idx_analysis_key;not null"`
	EvalBeforeCP    *int
	EvalBeforeMate  *int
	EvalAfterCP     *int
	EvalAfterMate   *int
	CPL             *int   `gorm:"column:cpl"`
	BestMoveUCI     string `gorm:"size:8"`
	Classification  string `gorm:"size:16;index"`
	Tags            datatypes.JSONSlice[string]
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Pattern is an error archetype mined for (PlayerID, AnalysisVersion).
type Pattern struct {
	ID              uint   `gorm:"primaryKey"`
	PlayerID        uint   `gorm:"index:idx_patterns_scope;not null"`
	AnalysisVersion string `gorm:"size:255;index:idx_patterns_scope;not null"`
	Key             string `gorm:"column:pattern_key;size:64;not null"`
	Title           string `gorm:"size:128"`
	Description     string `gorm:"type:text"`
	Severity        float64
	Occurrences     int
	AverageCPL      *float64         `gorm:"column:avg_cpl"`
	Examples        []PatternExample `gorm:"foreignKey:PatternID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
}

// PatternExample cites one move that matched a pattern.
type PatternExample struct {
	ID        uint `gorm:"primaryKey"`
	PatternID uint `gorm:"index;not null"`
	GameID    uint
	MoveID    uint
	FEN       string `gorm:"type:text"`
	Notes     string `gorm:"type:text"`
	CPL       *int   `gorm:"column:cpl"`
}

// MoveRow joins a move with its game and, when a version was requested,
// its analysis.
type MoveRow struct {
	Game     *Game
	Move     Move
	Analysis *MoveAnalysis
}
