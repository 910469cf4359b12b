package metrics

import (
	"sync"
	"time"

	"github.com/mpetka/larder/internal/types"
)

// Measurement is one recorded emission.
type Measurement struct {
	Kind     string
	Name     string
	Value    float64
	Duration time.Duration
	Unit     string
	Tags     []string
}

// RecordingSink captures every measurement for inspection. Tests use it to
// assert on what the instrumented code emitted.
type RecordingSink struct {
	mu           sync.Mutex
	measurements []Measurement
}

// NewRecordingSink creates an empty recording sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Gauge(name string, value float64, unit string, tags ...string) {
	s.record(Measurement{Kind: "gauge", Name: name, Value: value, Unit: unit, Tags: tags})
}

func (s *RecordingSink) Count(name string, value int64, unit string, tags ...string) {
	s.record(Measurement{Kind: "count", Name: name, Value: float64(value), Unit: unit, Tags: tags})
}

func (s *RecordingSink) Timing(name string, d time.Duration, tags ...string) {
	s.record(Measurement{Kind: "timing", Name: name, Duration: d, Tags: tags})
}

func (s *RecordingSink) record(m Measurement) {
	s.mu.Lock()
	s.measurements = append(s.measurements, m)
	s.mu.Unlock()
}

// Measurements returns a copy of everything recorded so far.
func (s *RecordingSink) Measurements() []Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Measurement, len(s.measurements))
	copy(out, s.measurements)
	return out
}

// ByName returns the recorded measurements with the given metric name.
func (s *RecordingSink) ByName(name string) []Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Measurement
	for _, m := range s.measurements {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Reset discards everything recorded.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	s.measurements = nil
	s.mu.Unlock()
}

var _ types.MetricsSink = (*RecordingSink)(nil)
