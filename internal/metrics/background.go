package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mpetka/larder/internal/types"
)

// StatsSource produces named stat snapshots for periodic publication.
type StatsSource interface {
	AllStats() map[string]types.CacheStats
}

// Publisher pushes stat snapshots to a sink on a fixed interval. It exists
// for sinks like DogStatsD where gauges must be re-sent to stay fresh.
type Publisher struct {
	source   StatsSource
	sink     types.MetricsSink
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPublisher creates a publisher. A non-positive interval defaults to
// one minute.
func NewPublisher(source StatsSource, sink types.MetricsSink, interval time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Publisher{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger.With("component", "metrics-publisher"),
	}
}

// Start launches the publication loop. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(ctx)
}

func (p *Publisher) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publish()
		}
	}
}

func (p *Publisher) publish() {
	for name, stats := range p.source.AllStats() {
		tags := []string{"cache:" + name}
		p.sink.Gauge("cache.hit_rate", stats.HitRate(), "ratio", tags...)
		p.sink.Gauge("cache.size", float64(stats.Size), "entry", tags...)
		p.sink.Gauge("cache.memory_usage", float64(stats.MemoryUsageBytes), "byte", tags...)
	}
}

// Stop cancels the loop and waits for it to exit.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}
