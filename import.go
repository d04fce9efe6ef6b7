package coach

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/pgn"
	"github.com/discochess/coach/internal/repository"
)

// ImportResult reports the outcome of an Import.
type ImportResult struct {
	Player   string `json:"player"`
	Games    int    `json:"games"`
	Imported int    `json:"imported"`

	// Skipped counts games the player did not take part in and games
	// already imported under the same link.
	Skipped int    `json:"skipped"`
	GameIDs []uint `json:"game_ids"`
}

// Result header values mapped to per-side results.
var resultSides = map[string][2]string{
	"1-0":     {"win", "lose"},
	"0-1":     {"lose", "win"},
	"1/2-1/2": {"draw", "draw"},
}

func importGames(ctx context.Context, repo repository.Repository, logger *zap.Logger, r io.Reader, username string) (ImportResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return ImportResult{}, repository.NewValidationError("username", "Username is required.")
	}
	records, err := pgn.Split(r)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Games: len(records), GameIDs: []uint{}}
	err = repo.WithinTx(ctx, func(tx repository.Repository) error {
		player, err := tx.EnsurePlayer(ctx, username)
		if err != nil {
			return err
		}
		res.Player = player.Username

		existing, err := tx.ListGames(ctx, repository.GameQuery{PlayerID: player.ID})
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, g := range existing {
			if g.ExternalID != "" {
				seen[g.ExternalID] = true
			}
		}

		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			game := gameFromRecord(record)
			game.PlayerID = player.ID
			if game.PlayerColor(player.Username) == "" {
				logger.Warn("skipping game without player",
					zap.String("username", player.Username),
					zap.String("white", game.WhiteUsername),
					zap.String("black", game.BlackUsername),
				)
				res.Skipped++
				continue
			}
			if game.ExternalID != "" && seen[game.ExternalID] {
				res.Skipped++
				continue
			}
			if err := tx.CreateGame(ctx, game); err != nil {
				return err
			}
			if game.ExternalID != "" {
				seen[game.ExternalID] = true
			}
			res.Imported++
			res.GameIDs = append(res.GameIDs, game.ID)
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	logger.Info("imported games",
		zap.String("username", res.Player),
		zap.Int("games", res.Games),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// gameFromRecord fills a game from the record's tag pairs.
func gameFromRecord(record string) *repository.Game {
	h := pgn.Headers(record)
	game := &repository.Game{
		ExternalID:    externalID(h),
		PGN:           record,
		TimeControl:   h["TimeControl"],
		WhiteUsername: h["White"],
		BlackUsername: h["Black"],
		WhiteRating:   rating(h["WhiteElo"]),
		BlackRating:   rating(h["BlackElo"]),
		ECOURL:        opening(h),
		EndTime:       endTime(h),
	}
	if sides, ok := resultSides[h["Result"]]; ok {
		game.ResultWhite, game.ResultBlack = sides[0], sides[1]
	}
	return game
}

func externalID(h map[string]string) string {
	if link := h["Link"]; link != "" {
		return link
	}
	if site := h["Site"]; strings.HasPrefix(site, "http") {
		return site
	}
	return ""
}

func opening(h map[string]string) string {
	for _, key := range []string{"ECOUrl", "Opening", "ECO"} {
		if v := h[key]; v != "" && v != "?" {
			return v
		}
	}
	return ""
}

func rating(v string) *int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// endTime prefers the end tags and falls back to the UTC start tags.
func endTime(h map[string]string) *time.Time {
	pairs := [][2]string{
		{h["EndDate"], h["EndTime"]},
		{h["UTCDate"], h["UTCTime"]},
		{h["Date"], ""},
	}
	for _, p := range pairs {
		if p[0] == "" {
			continue
		}
		if p[1] == "" {
			p[1] = "00:00:00"
		}
		t, err := time.Parse("2006.01.02 15:04:05", p[0]+" "+p[1])
		if err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
