package metrics

import (
	"time"

	"github.com/mpetka/larder/internal/types"
)

// NoopSink discards every measurement.
type NoopSink struct{}

// NewNoopSink returns a sink that does nothing.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (NoopSink) Gauge(string, float64, string, ...string) {}
func (NoopSink) Count(string, int64, string, ...string)   {}
func (NoopSink) Timing(string, time.Duration, ...string)  {}

var _ types.MetricsSink = NoopSink{}
