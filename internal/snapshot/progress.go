package snapshot

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Export phases reported through ProgressFunc.
const (
	PhaseCollect = "collect"
	PhaseShard   = "shard"
	PhaseDone    = "done"
)

// Progress tracks export progress.
type Progress struct {
	Phase          string
	RecordsRead    int64
	RecordsWritten int64
	ShardsCreated  int
	ShardsTotal    int
	StartTime      time.Time
}

// ProgressFunc is called with progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// LogProgress returns a ProgressFunc that logs phase changes and completion.
func LogProgress(logger *zap.Logger) ProgressFunc {
	return func(p Progress) {
		switch p.Phase {
		case PhaseCollect:
			logger.Info("collected positions", zap.Int64("records", p.RecordsRead))
		case PhaseDone:
			logger.Info("snapshot exported",
				zap.Int64("records", p.RecordsWritten),
				zap.Int("shards", p.ShardsCreated),
				zap.String("elapsed", FormatDuration(time.Since(p.StartTime))),
			)
		}
	}
}

// FormatDuration formats duration as human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
