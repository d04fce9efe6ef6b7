package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/discochess/coach/internal/config"
	"github.com/discochess/coach/internal/stats"
	logstats "github.com/discochess/coach/internal/stats/logger"
	promstats "github.com/discochess/coach/internal/stats/prometheus"
)

var (
	// Global flags.
	dbDriver      string
	dbURL         string
	redisURL      string
	verbose       bool
	metricsAddr   string
	enginePath    string
	engineDepth   int
	engineTimeMS  int
	engineMultiPV int
	snapshotDir   string
	evaluatorName string

	// Set up by the root pre-run.
	cfg       *config.Config
	logger    = zap.NewNop()
	collector stats.Collector = stats.NewNoop()
)

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Analyze chess games and mine recurring weaknesses",
	Long: `Coach imports a player's games, evaluates every position with a UCI
engine, classifies each move and turns the results into patterns and
long-term insights.

Configuration is read from the environment (and a .env file); flags
override it.

Examples:
  # Import and analyze a player's games
  coach import games.pgn --player alice
  coach analyze-all alice

  # Recurring weaknesses and the deep report
  coach patterns alice
  coach insights alice --games 20

  # Share evaluations without an engine
  coach export-snapshot --version "Stockfish@16.1|depth=12|time_ms=1000|multipv=1" --out s3://bucket/evals
  coach analyze 42 --evaluator snapshot --snapshot-dir s3://bucket/evals`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&dbDriver, "db-driver", "", "database driver: sqlite, postgres (env DATABASE_DRIVER)")
	flags.StringVar(&dbURL, "db", "", "database DSN or SQLite path (env DATABASE_URL)")
	flags.StringVar(&redisURL, "redis", "", "redis URL for the shared position cache (env REDIS_URL)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (env METRICS_ADDR)")
	flags.StringVar(&enginePath, "engine", "", "UCI engine binary (env STOCKFISH_PATH)")
	flags.IntVar(&engineDepth, "depth", 0, "search depth (env ENGINE_DEPTH)")
	flags.IntVar(&engineTimeMS, "time-ms", 0, "search time per position in ms (env ENGINE_TIME_MS)")
	flags.IntVar(&engineMultiPV, "multipv", 0, "principal variations per position (env ENGINE_MULTIPV)")
	flags.StringVar(&snapshotDir, "snapshot-dir", "", "snapshot location: dir, s3://bucket/prefix or gs://bucket/prefix (env SNAPSHOT_DIR)")
	flags.StringVar(&evaluatorName, "evaluator", "uci", "position evaluator: uci, snapshot")
}

// setup loads the configuration, applies flag overrides and builds the
// logger and metrics collector.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		loaded.DatabaseDriver = dbDriver
	}
	if flags.Changed("db") {
		loaded.DatabaseURL = dbURL
	}
	if flags.Changed("redis") {
		loaded.RedisURL = redisURL
	}
	if flags.Changed("verbose") {
		loaded.Verbose = verbose
	}
	if flags.Changed("metrics-addr") {
		loaded.MetricsAddr = metricsAddr
	}
	if flags.Changed("engine") {
		loaded.StockfishPath = enginePath
	}
	if flags.Changed("depth") {
		loaded.EngineDepth = engineDepth
	}
	if flags.Changed("time-ms") {
		loaded.EngineTimeMS = engineTimeMS
	}
	if flags.Changed("multipv") {
		loaded.EngineMultiPV = engineMultiPV
	}
	if flags.Changed("snapshot-dir") {
		loaded.SnapshotDir = snapshotDir
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	if logger, err = newLogger(cfg); err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	switch {
	case cfg.MetricsAddr != "":
		collector = promstats.New(prometheus.DefaultRegisterer)
		serveMetrics(cfg.MetricsAddr)
	case cfg.Verbose:
		collector = logstats.New(logger)
	}
	return nil
}

func newLogger(c *config.Config) (*zap.Logger, error) {
	if c.Verbose {
		return zap.NewDevelopment()
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// serveMetrics exposes /metrics until the process exits.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	onClose(srv)
}
