package metrics

import (
	"log/slog"
	"time"

	"github.com/mpetka/larder/internal/types"
)

// LoggingSink writes measurements to the structured log at debug level.
// Useful in development or wherever no agent is running.
type LoggingSink struct {
	logger *slog.Logger
}

// NewLoggingSink creates a sink that logs through logger.
func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{logger: logger.With("component", "metrics")}
}

func (s *LoggingSink) Gauge(name string, value float64, unit string, tags ...string) {
	s.logger.Debug("gauge", "metric", name, "value", value, "unit", unit, "tags", tags)
}

func (s *LoggingSink) Count(name string, value int64, unit string, tags ...string) {
	s.logger.Debug("count", "metric", name, "value", value, "unit", unit, "tags", tags)
}

func (s *LoggingSink) Timing(name string, d time.Duration, tags ...string) {
	s.logger.Debug("timing", "metric", name, "duration", d, "tags", tags)
}

var _ types.MetricsSink = (*LoggingSink)(nil)
