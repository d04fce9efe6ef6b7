// Package patterns mines recurring error archetypes from a player's analyzed
// moves.
//
// Patterns are recomputed wholesale: each refresh replaces every pattern of
// the (player, analysis version) scope.
package patterns

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/repository"
	"github.com/discochess/coach/internal/stats"
)

// Example cites one matching move.
type Example struct {
	GameID uint   `json:"game_id"`
	MoveID uint   `json:"move_id"`
	FEN    string `json:"fen"`
	Notes  string `json:"notes"`
	CPL    *int   `json:"cpl"`
}

// Pattern is the public view of a mined pattern.
type Pattern struct {
	Key         string    `json:"pattern_key"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Occurrences int       `json:"occurrences"`
	AverageCPL  *float64  `json:"average_cpl"`
	Severity    float64   `json:"severity_score"`
	Examples    []Example `json:"examples"`
}

// Result is the payload returned by List.
type Result struct {
	PlayerUsername  string    `json:"player_username"`
	AnalysisVersion string    `json:"analysis_version"`
	Patterns        []Pattern `json:"patterns"`
}

// Miner refreshes and lists patterns.
type Miner struct {
	repo      repository.Repository
	logger    *zap.Logger
	collector stats.Collector
}

// Option configures a Miner.
type Option func(*Miner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Miner) { m.logger = logger.Named("patterns") }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(m *Miner) { m.collector = c }
}

// New creates a miner over repo.
func New(repo repository.Repository, opts ...Option) *Miner {
	m := &Miner{
		repo:      repo,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Refresh recomputes the patterns of username under version, or under the
// player's latest version when version is empty. Without any analysis it
// returns nothing and deletes nothing.
func (m *Miner) Refresh(ctx context.Context, username, version string) ([]repository.Pattern, error) {
	player, err := repository.LookupPlayer(ctx, m.repo, username)
	if err != nil {
		return nil, err
	}
	version, err = repository.ResolveVersion(ctx, m.repo, player.ID, version)
	if err != nil || version == "" {
		return nil, err
	}

	var out []repository.Pattern
	err = m.repo.WithinTx(ctx, func(tx repository.Repository) error {
		out, err = m.refresh(ctx, tx, player, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Miner) refresh(ctx context.Context, tx repository.Repository, player *repository.Player, version string) ([]repository.Pattern, error) {
	rows, err := tx.PlayerMoves(ctx, repository.MoveQuery{
		PlayerID: player.ID,
		Username: player.Username,
		Version:  version,
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(rows, compareCandidates)

	matches := make(map[string][]repository.PatternExample, len(Definitions))
	for _, row := range rows {
		for _, hit := range Matches(row) {
			matches[hit.Key] = append(matches[hit.Key], repository.PatternExample{
				GameID: row.Move.GameID,
				MoveID: row.Move.ID,
				FEN:    row.Move.FENBefore,
				Notes:  hit.Note,
				CPL:    row.Analysis.CPL,
			})
		}
	}

	var patterns []repository.Pattern
	for _, def := range Definitions {
		hits := matches[def.Key]
		if len(hits) == 0 {
			continue
		}
		avg := averageCPL(hits)
		slices.SortStableFunc(hits, func(a, b repository.PatternExample) int { return compareCPL(a.CPL, b.CPL) })
		patterns = append(patterns, repository.Pattern{
			Key:         def.Key,
			Title:       def.Title,
			Description: def.Description,
			Severity:    Severity(def, len(hits), avg),
			Occurrences: len(hits),
			AverageCPL:  avg,
			Examples:    hits[:min(len(hits), MaxExamples)],
		})
	}

	if err := tx.ReplacePatterns(ctx, player.ID, version, patterns); err != nil {
		return nil, err
	}
	m.collector.IncCounter(stats.MetricPatternsRefreshed, 1)
	m.logger.Info("refreshed patterns",
		zap.String("username", player.Username),
		zap.String("analysisVersion", version),
		zap.Int("candidates", len(rows)),
		zap.Int("patterns", len(patterns)),
	)
	return patterns, nil
}

// List refreshes the patterns of username and returns them ordered by
// occurrences then severity.
func (m *Miner) List(ctx context.Context, username, version string) (Result, error) {
	player, err := repository.LookupPlayer(ctx, m.repo, username)
	if err != nil {
		return Result{}, err
	}
	version, err = repository.ResolveVersion(ctx, m.repo, player.ID, version)
	if err != nil {
		return Result{}, err
	}
	res := Result{PlayerUsername: player.Username, AnalysisVersion: version, Patterns: []Pattern{}}
	if version == "" {
		return res, nil
	}

	if _, err := m.Refresh(ctx, player.Username, version); err != nil {
		return Result{}, err
	}
	stored, err := m.repo.ListPatterns(ctx, player.ID, version)
	if err != nil {
		return Result{}, err
	}
	for _, p := range stored {
		view := Pattern{
			Key:         p.Key,
			Title:       p.Title,
			Description: p.Description,
			Occurrences: p.Occurrences,
			AverageCPL:  p.AverageCPL,
			Severity:    p.Severity,
			Examples:    make([]Example, 0, len(p.Examples)),
		}
		for _, ex := range p.Examples {
			view.Examples = append(view.Examples, Example{
				GameID: ex.GameID,
				MoveID: ex.MoveID,
				FEN:    ex.FEN,
				Notes:  ex.Notes,
				CPL:    ex.CPL,
			})
		}
		res.Patterns = append(res.Patterns, view)
	}
	return res, nil
}

// compareCandidates orders moves by CPL descending with unknown CPL last,
// then by ply, game and move ID.
func compareCandidates(a, b repository.MoveRow) int {
	if c := compareCPL(a.Analysis.CPL, b.Analysis.CPL); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Move.Ply, b.Move.Ply); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Move.GameID, b.Move.GameID); c != 0 {
		return c
	}
	return cmp.Compare(a.Move.ID, b.Move.ID)
}

// compareCPL sorts larger losses first and nil last.
func compareCPL(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*b, *a)
}

func averageCPL(hits []repository.PatternExample) *float64 {
	var sum, n int
	for _, h := range hits {
		if h.CPL != nil {
			sum += *h.CPL
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}
