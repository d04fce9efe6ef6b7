package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/pgn"
	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/stats"
)

// ParseResult reports the outcome of a parse request.
type ParseResult struct {
	// Parsed is the number of moves written by this call.
	Parsed int `json:"parsed"`

	// Existing is the number of moves the game had before the call.
	Existing int `json:"existing"`
}

// ParseGame extracts the moves of a stored game. A game that already has
// moves is left alone unless force is set, in which case its moves and
// their analyses are replaced.
func (a *Analyzer) ParseGame(ctx context.Context, gameID uint, force bool) (ParseResult, error) {
	var res ParseResult
	err := a.repo.WithinTx(ctx, func(tx repository.Repository) error {
		game, err := tx.FindGame(ctx, gameID)
		if err != nil {
			return err
		}
		res, err = a.parseGame(ctx, tx, game, force)
		return err
	})
	return res, err
}

func (a *Analyzer) parseGame(ctx context.Context, tx repository.MoveStore, game *repository.Game, force bool) (ParseResult, error) {
	if strings.TrimSpace(game.PGN) == "" {
		return ParseResult{}, repository.NewValidationError("pgn", "Game has no PGN to parse.")
	}

	existing, err := tx.ListMoves(ctx, game.ID)
	if err != nil {
		return ParseResult{}, err
	}
	if len(existing) > 0 && !force {
		return ParseResult{Existing: len(existing)}, nil
	}

	parsed, err := pgn.Extract(game.PGN, game.TimeControl)
	if err != nil {
		return ParseResult{}, err
	}

	moves := make([]repository.Move, len(parsed))
	for i, m := range parsed {
		moves[i] = repository.Move{
			GameID:           game.ID,
			Ply:              m.Ply,
			SAN:              m.SAN,
			UCI:              m.UCI,
			FENBefore:        m.FENBefore,
			FENAfter:         m.FENAfter,
			IsCheck:          m.IsCheck,
			IsMate:           m.IsMate,
			CapturePiece:     m.CapturePiece,
			Promotion:        m.Promotion,
			ClockRemainingMS: m.ClockRemainingMS,
			TimeSpentMS:      m.TimeSpentMS,
		}
	}
	if err := tx.ReplaceMoves(ctx, game.ID, moves); err != nil {
		return ParseResult{}, fmt.Errorf("storing moves of game %d: %w", game.ID, err)
	}

	a.collector.IncCounter(stats.MetricGamesParsed, 1)
	a.logger.Debug("parsed game", zap.Uint("gameID", game.ID), zap.Int("moves", len(moves)), zap.Bool("force", force))
	return ParseResult{Parsed: len(moves), Existing: len(existing)}, nil
}
