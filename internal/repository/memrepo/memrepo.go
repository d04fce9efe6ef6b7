// Package memrepo implements repository.Repository in memory.
//
// It backs tests and one-shot CLI runs. Transactions are serialized and roll
// back by restoring a snapshot of the whole state.
package memrepo

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/discochess/coach/internal/repository"
)

// Compile-time check that Repo implements repository.Repository.
var _ repository.Repository = (*Repo)(nil)

type state struct {
	nextID    uint
	players   map[uint]repository.Player
	games     map[uint]repository.Game
	moves     map[uint]repository.Move
	positions map[string]repository.EvaluatedPosition
	analyses  map[string]repository.MoveAnalysis
	patterns  map[uint]repository.Pattern
}

func (s *state) clone() *state {
	return &state{
		nextID:    s.nextID,
		players:   maps.Clone(s.players),
		games:     maps.Clone(s.games),
		moves:     maps.Clone(s.moves),
		positions: maps.Clone(s.positions),
		analyses:  maps.Clone(s.analyses),
		patterns:  maps.Clone(s.patterns),
	}
}

func (s *state) id() uint {
	s.nextID++
	return s.nextID
}

// Repo is an in-memory repository. It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
	now  func() time.Time
}

// New creates an empty repository.
func New() *Repo {
	return &Repo{
		data: &state{
			players:   make(map[uint]repository.Player),
			games:     make(map[uint]repository.Game),
			moves:     make(map[uint]repository.Move),
			positions: make(map[string]repository.EvaluatedPosition),
			analyses:  make(map[string]repository.MoveAnalysis),
			patterns:  make(map[uint]repository.Pattern),
		},
		now: time.Now,
	}
}

func positionKey(fingerprint, version string) string { return fingerprint + "|" + version }

func analysisKey(moveID uint, version string) string { return fmt.Sprintf("%d|%s", moveID, version) }

// FindPlayer returns the player with the exact username.
func (r *Repo) FindPlayer(_ context.Context, username string) (*repository.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.findPlayer(username); ok {
		return &p, nil
	}
	return nil, repository.NewNotFoundError("player", username)
}

func (r *Repo) findPlayer(username string) (repository.Player, bool) {
	for _, p := range r.data.players {
		if p.Username == username {
			return p, true
		}
	}
	return repository.Player{}, false
}

// EnsurePlayer returns the player, creating it when missing.
func (r *Repo) EnsurePlayer(_ context.Context, username string) (*repository.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.findPlayer(username); ok {
		return &p, nil
	}
	p := repository.Player{ID: r.data.id(), Username: username, CreatedAt: r.now()}
	r.data.players[p.ID] = p
	return &p, nil
}

// FindGame returns a game by ID.
func (r *Repo) FindGame(_ context.Context, id uint) (*repository.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.data.games[id]
	if !ok {
		return nil, repository.NewNotFoundError("game", id)
	}
	return &g, nil
}

// CreateGame stores game and assigns its ID.
func (r *Repo) CreateGame(_ context.Context, game *repository.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.players[game.PlayerID]; !ok {
		return repository.NewNotFoundError("player", game.PlayerID)
	}
	game.ID = r.data.id()
	if game.CreatedAt.IsZero() {
		game.CreatedAt = r.now()
	}
	r.data.games[game.ID] = *game
	return nil
}

// ListGames returns the player's games, most recent first.
func (r *Repo) ListGames(_ context.Context, q repository.GameQuery) ([]repository.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var games []repository.Game
	for _, g := range r.data.games {
		if g.PlayerID != q.PlayerID {
			continue
		}
		if q.From != nil && (g.EndTime == nil || g.EndTime.Before(*q.From)) {
			continue
		}
		if q.To != nil && (g.EndTime == nil || g.EndTime.After(*q.To)) {
			continue
		}
		games = append(games, g)
	}
	slices.SortFunc(games, compareRecency)
	if q.Limit > 0 && len(games) > q.Limit {
		games = games[:q.Limit]
	}
	return games, nil
}

// compareRecency orders by EndTime descending with nil last, then ID descending.
func compareRecency(a, b repository.Game) int {
	switch {
	case a.EndTime == nil && b.EndTime != nil:
		return 1
	case a.EndTime != nil && b.EndTime == nil:
		return -1
	case a.EndTime != nil && b.EndTime != nil && !a.EndTime.Equal(*b.EndTime):
		return b.EndTime.Compare(*a.EndTime)
	}
	return cmp.Compare(b.ID, a.ID)
}

// ListMoves returns the game's moves in ply order.
func (r *Repo) ListMoves(_ context.Context, gameID uint) ([]repository.Move, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameMoves(gameID), nil
}

func (r *Repo) gameMoves(gameID uint) []repository.Move {
	var moves []repository.Move
	for _, m := range r.data.moves {
		if m.GameID == gameID {
			moves = append(moves, m)
		}
	}
	slices.SortFunc(moves, func(a, b repository.Move) int { return cmp.Compare(a.Ply, b.Ply) })
	return moves
}

// ReplaceMoves deletes the game's moves and analyses and inserts moves.
func (r *Repo) ReplaceMoves(_ context.Context, gameID uint, moves []repository.Move) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data.games[gameID]; !ok {
		return repository.NewNotFoundError("game", gameID)
	}
	seen := make(map[int]bool, len(moves))
	for _, m := range moves {
		if seen[m.Ply] {
			return repository.WrapDBError("ReplaceMoves", fmt.Errorf("duplicate ply %d", m.Ply))
		}
		seen[m.Ply] = true
	}

	for _, old := range r.gameMoves(gameID) {
		delete(r.data.moves, old.ID)
		for key, a := range r.data.analyses {
			if a.MoveID == old.ID {
				delete(r.data.analyses, key)
			}
		}
	}
	for i := range moves {
		moves[i].ID = r.data.id()
		moves[i].GameID = gameID
		r.data.moves[moves[i].ID] = moves[i]
	}
	return nil
}

// FindPosition returns the cached evaluation for the key.
func (r *Repo) FindPosition(_ context.Context, fingerprint, version string) (*repository.EvaluatedPosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data.positions[positionKey(fingerprint, version)]
	if !ok {
		return nil, repository.NewNotFoundError("evaluated position", fingerprint)
	}
	return &p, nil
}

// UpsertPosition inserts or overwrites the row for its key.
func (r *Repo) UpsertPosition(_ context.Context, pos *repository.EvaluatedPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := positionKey(pos.Fingerprint, pos.AnalysisVersion)
	now := r.now()
	if existing, ok := r.data.positions[key]; ok {
		pos.ID = existing.ID
		pos.CreatedAt = existing.CreatedAt
	} else {
		pos.ID = r.data.id()
		pos.CreatedAt = now
	}
	pos.UpdatedAt = now
	r.data.positions[key] = *pos
	return nil
}

// ListPositions returns all rows for version ordered by ID.
func (r *Repo) ListPositions(_ context.Context, version string) ([]repository.EvaluatedPosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.EvaluatedPosition
	for _, p := range r.data.positions {
		if p.AnalysisVersion == version {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b repository.EvaluatedPosition) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// FindAnalysis returns the analysis for the key.
func (r *Repo) FindAnalysis(_ context.Context, moveID uint, version string) (*repository.MoveAnalysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data.analyses[analysisKey(moveID, version)]
	if !ok {
		return nil, repository.NewNotFoundError("move analysis", moveID)
	}
	return &a, nil
}

// UpsertAnalysis inserts or overwrites the row for its key.
func (r *Repo) UpsertAnalysis(_ context.Context, a *repository.MoveAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data.moves[a.MoveID]; !ok {
		return repository.NewNotFoundError("move", a.MoveID)
	}
	key := analysisKey(a.MoveID, a.AnalysisVersion)
	now := r.now()
	if existing, ok := r.data.analyses[key]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else {
		a.ID = r.data.id()
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.data.analyses[key] = *a
	return nil
}

// LatestVersion returns the version of the player's newest analysis.
func (r *Repo) LatestVersion(_ context.Context, playerID uint) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *repository.MoveAnalysis
	for _, a := range r.data.analyses {
		m, ok := r.data.moves[a.MoveID]
		if !ok || r.data.games[m.GameID].PlayerID != playerID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) ||
			(a.CreatedAt.Equal(latest.CreatedAt) && a.ID > latest.ID) {
			a := a
			latest = &a
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.AnalysisVersion, nil
}

// PlayerMoves returns the player's own moves ordered by game then ply.
func (r *Repo) PlayerMoves(_ context.Context, q repository.MoveQuery) ([]repository.MoveRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []repository.MoveRow
	for _, m := range r.data.moves {
		g, ok := r.data.games[m.GameID]
		if !ok || g.PlayerID != q.PlayerID {
			continue
		}
		if len(q.GameIDs) > 0 && !slices.Contains(q.GameIDs, g.ID) {
			continue
		}
		if !ownMove(&g, &m, q.Username) {
			continue
		}
		row := repository.MoveRow{Game: &g, Move: m}
		if q.Version != "" {
			a, ok := r.data.analyses[analysisKey(m.ID, q.Version)]
			if !ok {
				continue
			}
			row.Analysis = &a
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b repository.MoveRow) int {
		if c := cmp.Compare(a.Move.GameID, b.Move.GameID); c != 0 {
			return c
		}
		return cmp.Compare(a.Move.Ply, b.Move.Ply)
	})
	return rows, nil
}

func ownMove(g *repository.Game, m *repository.Move, username string) bool {
	switch {
	case strings.EqualFold(g.WhiteUsername, username):
		return m.ByWhite()
	case strings.EqualFold(g.BlackUsername, username):
		return !m.ByWhite()
	}
	return false
}

// ReplacePatterns swaps the pattern set for (playerID, version).
func (r *Repo) ReplacePatterns(_ context.Context, playerID uint, version string, patterns []repository.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.data.patterns {
		if p.PlayerID == playerID && p.AnalysisVersion == version {
			delete(r.data.patterns, id)
		}
	}
	now := r.now()
	for i := range patterns {
		p := &patterns[i]
		p.ID = r.data.id()
		p.PlayerID = playerID
		p.AnalysisVersion = version
		p.CreatedAt = now
		examples := make([]repository.PatternExample, len(p.Examples))
		for j, ex := range p.Examples {
			ex.ID = r.data.id()
			ex.PatternID = p.ID
			examples[j] = ex
		}
		p.Examples = examples
		r.data.patterns[p.ID] = *p
	}
	return nil
}

// ListPatterns returns patterns ordered by occurrences then severity.
func (r *Repo) ListPatterns(_ context.Context, playerID uint, version string) ([]repository.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []repository.Pattern
	for _, p := range r.data.patterns {
		if p.PlayerID == playerID && p.AnalysisVersion == version {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b repository.Pattern) int {
		if c := cmp.Compare(b.Occurrences, a.Occurrences); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// WithinTx runs fn and restores the previous state if it fails.
func (r *Repo) WithinTx(_ context.Context, fn func(tx repository.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	snapshot := r.data.clone()
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.data = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// Close is a no-op.
func (r *Repo) Close() error { return nil }
