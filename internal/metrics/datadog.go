// Package metrics provides sinks for the measurements caches and pools
// emit, plus a background publisher that snapshots stats on an interval.
package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/types"
)

// DataDogSink forwards measurements to a DogStatsD agent. Emission is
// fire-and-forget: a failed send is logged at debug and dropped, never
// surfaced to the instrumented path.
type DataDogSink struct {
	client statsd.ClientInterface
	tags   []string
	logger *slog.Logger
}

// NewDataDogSink connects to the agent configured in cfg.
func NewDataDogSink(cfg config.DataDogConfig, logger *slog.Logger) (*DataDogSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	host := cfg.AgentHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 8125
	}

	opts := []statsd.Option{statsd.WithTags(cfg.Tags)}
	if cfg.Prefix != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Prefix))
	}

	client, err := statsd.New(fmt.Sprintf("%s:%d", host, port), opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to statsd agent: %w", err)
	}

	return &DataDogSink{
		client: client,
		tags:   cfg.Tags,
		logger: logger.With("component", "datadog-sink"),
	}, nil
}

// Gauge records an instantaneous value. The unit is folded into the tags
// since StatsD carries no unit field.
func (s *DataDogSink) Gauge(name string, value float64, unit string, tags ...string) {
	if err := s.client.Gauge(name, value, withUnit(tags, unit), 1); err != nil {
		s.logger.Debug("gauge emission failed", "metric", name, "error", err)
	}
}

// Count records an increment.
func (s *DataDogSink) Count(name string, value int64, unit string, tags ...string) {
	if err := s.client.Count(name, value, withUnit(tags, unit), 1); err != nil {
		s.logger.Debug("count emission failed", "metric", name, "error", err)
	}
}

// Timing records a duration.
func (s *DataDogSink) Timing(name string, d time.Duration, tags ...string) {
	if err := s.client.Timing(name, d, tags, 1); err != nil {
		s.logger.Debug("timing emission failed", "metric", name, "error", err)
	}
}

// Close flushes and closes the client.
func (s *DataDogSink) Close() error {
	return s.client.Close()
}

func withUnit(tags []string, unit string) []string {
	if unit == "" {
		return tags
	}
	out := make([]string, 0, len(tags)+1)
	out = append(out, tags...)
	return append(out, "unit:"+unit)
}

var _ types.MetricsSink = (*DataDogSink)(nil)
