// Package gormrepo implements repository.Repository on gorm over SQLite or
// PostgreSQL.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/discochess/coach/internal/repository"
)

// Compile-time check that Repo implements repository.Repository.
var _ repository.Repository = (*Repo)(nil)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for unsupported driver names.
var ErrUnknownDriver = errors.New("gormrepo: unknown driver")

// Repo is a gorm-backed repository.
type Repo struct {
	db *gorm.DB
}

// Open connects to the database and migrates the schema.
func Open(driver, dsn string) (*Repo, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == DriverSQLite {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	r := &Repo{db: db}
	if err := r.migrate(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// NewRepository wraps an existing connection. The schema is not migrated.
func NewRepository(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) migrate() error {
	err := r.db.AutoMigrate(
		&repository.Player{},
		&repository.Game{},
		&repository.Move{},
		&repository.EvaluatedPosition{},
		&repository.MoveAnalysis{},
		&repository.Pattern{},
		&repository.PatternExample{},
	)
	return repository.WrapDBError("migrate", err)
}

// DB returns the underlying gorm connection.
func (r *Repo) DB() *gorm.DB {
	return r.db
}

// Close closes the connection pool.
func (r *Repo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithinTx runs fn inside a database transaction.
func (r *Repo) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// first loads a single row and maps gorm.ErrRecordNotFound.
func first[T any](query *gorm.DB, op, resource string, id any) (*T, error) {
	var out T
	err := query.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.NewNotFoundError(resource, id)
	}
	if err != nil {
		return nil, repository.WrapDBError(op, err)
	}
	return &out, nil
}

// FindPlayer returns the player with the exact username.
func (r *Repo) FindPlayer(ctx context.Context, username string) (*repository.Player, error) {
	q := r.db.WithContext(ctx).Where("username = ?", username)
	return first[repository.Player](q, "FindPlayer", "player", username)
}

// EnsurePlayer returns the player, creating it when missing.
func (r *Repo) EnsurePlayer(ctx context.Context, username string) (*repository.Player, error) {
	p := repository.Player{Username: username}
	err := r.db.WithContext(ctx).
		Where(repository.Player{Username: username}).
		FirstOrCreate(&p).Error
	if err != nil {
		return nil, repository.WrapDBError("EnsurePlayer", err)
	}
	return &p, nil
}

// FindGame returns a game by ID.
func (r *Repo) FindGame(ctx context.Context, id uint) (*repository.Game, error) {
	return first[repository.Game](r.db.WithContext(ctx).Where("id = ?", id), "FindGame", "game", id)
}

// CreateGame inserts game.
func (r *Repo) CreateGame(ctx context.Context, game *repository.Game) error {
	return repository.WrapDBError("CreateGame", r.db.WithContext(ctx).Create(game).Error)
}

// ListGames returns the player's games, most recent first.
func (r *Repo) ListGames(ctx context.Context, q repository.GameQuery) ([]repository.Game, error) {
	query := r.db.WithContext(ctx).
		Where("player_id = ?", q.PlayerID).
		Order("CASE WHEN end_time IS NULL THEN 1 ELSE 0 END").
		Order("end_time DESC").
		Order("id DESC")
	if q.From != nil {
		query = query.Where("end_time >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("end_time <= ?", *q.To)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var games []repository.Game
	if err := query.Find(&games).Error; err != nil {
		return nil, repository.WrapDBError("ListGames", err)
	}
	return games, nil
}

// ListMoves returns the game's moves in ply order.
func (r *Repo) ListMoves(ctx context.Context, gameID uint) ([]repository.Move, error) {
	var moves []repository.Move
	err := r.db.WithContext(ctx).Where("game_id = ?", gameID).Order("ply").Find(&moves).Error
	if err != nil {
		return nil, repository.WrapDBError("ListMoves", err)
	}
	return moves, nil
}

// ReplaceMoves deletes the game's moves and their analyses, then inserts moves.
func (r *Repo) ReplaceMoves(ctx context.Context, gameID uint, moves []repository.Move) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := tx.Model(&repository.Move{}).Select("id").Where("game_id = ?", gameID)
		if err := tx.Where("move_id IN (?)", existing).Delete(&repository.MoveAnalysis{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", gameID).Delete(&repository.Move{}).Error; err != nil {
			return err
		}
		if len(moves) == 0 {
			return nil
		}
		for i := range moves {
			moves[i].ID = 0
			moves[i].GameID = gameID
		}
		return tx.CreateInBatches(moves, 200).Error
	})
	return repository.WrapDBError("ReplaceMoves", err)
}

// FindPosition returns the cached evaluation for the key.
func (r *Repo) FindPosition(ctx context.Context, fingerprint, version string) (*repository.EvaluatedPosition, error) {
	q := r.db.WithContext(ctx).Where("fen_hash = ? AND analysis_version = ?", fingerprint, version)
	return first[repository.EvaluatedPosition](q, "FindPosition", "evaluated position", fingerprint)
}

// UpsertPosition inserts or overwrites the row for its key. Concurrent
// writers to the same key converge on the last write.
func (r *Repo) UpsertPosition(ctx context.Context, pos *repository.EvaluatedPosition) error {
	pos.ID = 0
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fen_hash"}, {Name: "analysis_version"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"fen", "side_to_move", "engine_name", "engine_version", "depth", "time_ms",
			"multi_pv", "eval_cp", "eval_mate", "pv_uci", "multipv_json", "updated_at",
		}),
	}).Create(pos).Error
	if err != nil {
		return repository.WrapDBError("UpsertPosition", err)
	}
	if pos.ID == 0 {
		stored, err := r.FindPosition(ctx, pos.Fingerprint, pos.AnalysisVersion)
		if err != nil {
			return err
		}
		pos.ID = stored.ID
	}
	return nil
}

// ListPositions returns all rows for version ordered by ID.
func (r *Repo) ListPositions(ctx context.Context, version string) ([]repository.EvaluatedPosition, error) {
	var out []repository.EvaluatedPosition
	err := r.db.WithContext(ctx).Where("analysis_version = ?", version).Order("id").Find(&out).Error
	if err != nil {
		return nil, repository.WrapDBError("ListPositions", err)
	}
	return out, nil
}

// FindAnalysis returns the analysis for the key.
func (r *Repo) FindAnalysis(ctx context.Context, moveID uint, version string) (*repository.MoveAnalysis, error) {
	q := r.db.WithContext(ctx).Where("move_id = ? AND analysis_version = ?", moveID, version)
	return first[repository.MoveAnalysis](q, "FindAnalysis", "move analysis", moveID)
}

// UpsertAnalysis inserts or overwrites the row for (MoveID, AnalysisVersion).
func (r *Repo) UpsertAnalysis(ctx context.Context, a *repository.MoveAnalysis) error {
	a.ID = 0
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "move_id"}, {Name: "analysis_version"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"eval_before_cp", "eval_before_mate", "eval_after_cp", "eval_after_mate",
			"cpl", "best_move_uci", "classification", "tags", "updated_at",
		}),
	}).Create(a).Error
	return repository.WrapDBError("UpsertAnalysis", err)
}

// LatestVersion returns the version of the player's newest analysis.
func (r *Repo) LatestVersion(ctx context.Context, playerID uint) (string, error) {
	var versions []string
	err := r.db.WithContext(ctx).
		Model(&repository.MoveAnalysis{}).
		Joins("JOIN moves ON moves.id = move_analyses.move_id").
		Joins("JOIN games ON games.id = moves.game_id").
		Where("games.player_id = ?", playerID).
		Order("move_analyses.created_at DESC").
		Order("move_analyses.id DESC").
		Limit(1).
		Pluck("move_analyses.analysis_version", &versions).Error
	if err != nil {
		return "", repository.WrapDBError("LatestVersion", err)
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[0], nil
}

// PlayerMoves returns the player's own moves ordered by game then ply.
func (r *Repo) PlayerMoves(ctx context.Context, q repository.MoveQuery) ([]repository.MoveRow, error) {
	username := strings.ToLower(q.Username)
	query := r.db.WithContext(ctx).
		Model(&repository.Move{}).
		Joins("JOIN games ON games.id = moves.game_id").
		Where("games.player_id = ?", q.PlayerID).
		Where("(LOWER(games.white_username) = ? AND moves.ply % 2 = 1) OR (LOWER(games.black_username) = ? AND moves.ply % 2 = 0)", username, username).
		Order("moves.game_id").
		Order("moves.ply")
	if len(q.GameIDs) > 0 {
		query = query.Where("moves.game_id IN ?", q.GameIDs)
	}
	if q.Version != "" {
		query = query.Where("EXISTS (SELECT 1 FROM move_analyses WHERE move_analyses.move_id = moves.id AND move_analyses.analysis_version = ?)", q.Version)
	}

	var moves []repository.Move
	if err := query.Find(&moves).Error; err != nil {
		return nil, repository.WrapDBError("PlayerMoves", err)
	}
	if len(moves) == 0 {
		return nil, nil
	}

	games, err := r.gamesByID(ctx, moves)
	if err != nil {
		return nil, err
	}
	analyses := make(map[uint]*repository.MoveAnalysis)
	if q.Version != "" {
		if analyses, err = r.analysesByMove(ctx, moves, q.Version); err != nil {
			return nil, err
		}
	}

	rows := make([]repository.MoveRow, 0, len(moves))
	for _, m := range moves {
		rows = append(rows, repository.MoveRow{Game: games[m.GameID], Move: m, Analysis: analyses[m.ID]})
	}
	return rows, nil
}

func (r *Repo) gamesByID(ctx context.Context, moves []repository.Move) (map[uint]*repository.Game, error) {
	ids := make([]uint, 0)
	seen := make(map[uint]bool)
	for _, m := range moves {
		if !seen[m.GameID] {
			seen[m.GameID] = true
			ids = append(ids, m.GameID)
		}
	}
	var games []repository.Game
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&games).Error; err != nil {
		return nil, repository.WrapDBError("PlayerMoves", err)
	}
	out := make(map[uint]*repository.Game, len(games))
	for i := range games {
		out[games[i].ID] = &games[i]
	}
	return out, nil
}

func (r *Repo) analysesByMove(ctx context.Context, moves []repository.Move, version string) (map[uint]*repository.MoveAnalysis, error) {
	ids := make([]uint, len(moves))
	for i, m := range moves {
		ids[i] = m.ID
	}
	out := make(map[uint]*repository.MoveAnalysis, len(moves))
	// Chunked to stay below SQLite's bound-parameter limit.
	for start := 0; start < len(ids); start += 500 {
		end := min(start+500, len(ids))
		var batch []repository.MoveAnalysis
		err := r.db.WithContext(ctx).
			Where("analysis_version = ? AND move_id IN ?", version, ids[start:end]).
			Find(&batch).Error
		if err != nil {
			return nil, repository.WrapDBError("PlayerMoves", err)
		}
		for i := range batch {
			out[batch[i].MoveID] = &batch[i]
		}
	}
	return out, nil
}

// ReplacePatterns swaps the pattern set for (playerID, version) atomically.
func (r *Repo) ReplacePatterns(ctx context.Context, playerID uint, version string, patterns []repository.Pattern) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := tx.Model(&repository.Pattern{}).Select("id").
			Where("player_id = ? AND analysis_version = ?", playerID, version)
		if err := tx.Where("pattern_id IN (?)", scope).Delete(&repository.PatternExample{}).Error; err != nil {
			return err
		}
		if err := tx.Where("player_id = ? AND analysis_version = ?", playerID, version).Delete(&repository.Pattern{}).Error; err != nil {
			return err
		}
		for i := range patterns {
			patterns[i].ID = 0
			patterns[i].PlayerID = playerID
			patterns[i].AnalysisVersion = version
			for j := range patterns[i].Examples {
				patterns[i].Examples[j].ID = 0
			}
			if err := tx.Create(&patterns[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return repository.WrapDBError("ReplacePatterns", err)
}

// ListPatterns returns patterns ordered by occurrences then severity.
func (r *Repo) ListPatterns(ctx context.Context, playerID uint, version string) ([]repository.Pattern, error) {
	var out []repository.Pattern
	err := r.db.WithContext(ctx).
		Preload("Examples", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("player_id = ? AND analysis_version = ?", playerID, version).
		Order("occurrences DESC").
		Order("severity DESC").
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, repository.WrapDBError("ListPatterns", err)
	}
	return out, nil
}
