// Package logger provides a stats collector that writes metrics to zap at
// debug level. It suits one-shot CLI runs where no scraper is attached.
package logger

import (
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/stats"
)

// Collector implements stats.Collector by logging each observation.
type Collector struct {
	logger *zap.Logger
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new logger-based collector. A nil logger discards output.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger.Named("stats")}
}

func (c *Collector) IncCounter(name string, delta int64) {
	c.logger.Debug("metric", zap.String("kind", "counter"), zap.String("name", name), zap.Int64("delta", delta))
}

func (c *Collector) SetGauge(name string, value int64) {
	c.logger.Debug("metric", zap.String("kind", "gauge"), zap.String("name", name), zap.Int64("value", value))
}

func (c *Collector) ObserveHistogram(name string, value float64) {
	c.logger.Debug("metric", zap.String("kind", "histogram"), zap.String("name", name), zap.Float64("value", value))
}
