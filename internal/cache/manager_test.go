package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/metrics"
	"github.com/mpetka/larder/internal/types"
)

func TestManagerGetOrCreateCache(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	defer mgr.Close()

	t.Run("creates on first use", func(t *testing.T) {
		c, err := mgr.GetOrCreateCache("users", config.ForTesting())
		if err != nil {
			t.Fatalf("GetOrCreateCache() error = %v", err)
		}
		if c.Name() != "users" {
			t.Errorf("Name() = %s, want users", c.Name())
		}
	})

	t.Run("same name returns same cache", func(t *testing.T) {
		first, err := mgr.GetOrCreateCache("idem", config.ForTesting())
		if err != nil {
			t.Fatalf("GetOrCreateCache() error = %v", err)
		}

		other := config.ForTesting()
		other.MaxSize = 1
		second, err := mgr.GetOrCreateCache("idem", other)
		if err != nil {
			t.Fatalf("GetOrCreateCache() error = %v", err)
		}
		if first != second {
			t.Error("GetOrCreateCache() returned a different cache for the same name")
		}
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		c, err := mgr.GetOrCreateCache("defaulted", nil)
		if err != nil {
			t.Fatalf("GetOrCreateCache() error = %v", err)
		}
		if c.Backend().Name() != "memory" {
			t.Errorf("Backend().Name() = %s, want memory", c.Backend().Name())
		}
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		cfg := config.ForTesting()
		cfg.Backend = "carrier-pigeon"
		if _, err := mgr.GetOrCreateCache("bad", cfg); !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("GetOrCreateCache() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("concurrent creation yields one cache", func(t *testing.T) {
		const callers = 16
		caches := make([]*Cache, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c, err := mgr.GetOrCreateCache("raced", config.ForTesting())
				if err != nil {
					t.Errorf("GetOrCreateCache() error = %v", err)
					return
				}
				caches[i] = c
			}(i)
		}
		wg.Wait()

		for i := 1; i < callers; i++ {
			if caches[i] != caches[0] {
				t.Fatal("concurrent GetOrCreateCache() produced distinct caches")
			}
		}
	})
}

func TestManagerRegistry(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	defer mgr.Close()

	mgr.GetOrCreateCache("a", config.ForTesting())
	mgr.GetOrCreateCache("b", config.ForTesting())

	t.Run("GetCache", func(t *testing.T) {
		if mgr.GetCache("a") == nil {
			t.Error("GetCache(a) = nil, want cache")
		}
		if mgr.GetCache("missing") != nil {
			t.Error("GetCache(missing) != nil, want nil")
		}
	})

	t.Run("CacheNames", func(t *testing.T) {
		names := mgr.CacheNames()
		sort.Strings(names)
		if len(names) != 2 || names[0] != "a" || names[1] != "b" {
			t.Errorf("CacheNames() = %v, want [a b]", names)
		}
	})

	t.Run("AllStats", func(t *testing.T) {
		ctx := context.Background()
		mgr.GetCache("a").Set(ctx, "k", "v")

		stats := mgr.AllStats()
		if len(stats) != 2 {
			t.Fatalf("AllStats() has %d entries, want 2", len(stats))
		}
		if stats["a"].Sets != 1 {
			t.Errorf("stats[a].Sets = %d, want 1", stats["a"].Sets)
		}
	})
}

func TestManagerBackendSelection(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	defer mgr.Close()

	t.Run("sharded", func(t *testing.T) {
		cfg := config.ForTesting()
		cfg.Backend = "sharded"
		// MaxSize counts entries and must not leak into the megabyte cap;
		// the sharded backend sizes by MaxMemoryMB alone.
		cfg.MaxSize = 100000
		cfg.MaxMemoryMB = 8
		c, err := mgr.GetOrCreateCache("sharded", cfg)
		if err != nil {
			t.Fatalf("GetOrCreateCache() error = %v", err)
		}
		if c.Backend().Name() != "sharded" {
			t.Errorf("Backend().Name() = %s, want sharded", c.Backend().Name())
		}

		ctx := context.Background()
		if err := c.Set(ctx, "k", "v"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		var got string
		if err := c.Get(ctx, "k", &got); err != nil || got != "v" {
			t.Errorf("Get() = %q, %v", got, err)
		}
	})

	t.Run("redis without url rejected", func(t *testing.T) {
		cfg := config.ForTesting()
		cfg.Backend = "redis"
		if _, err := mgr.GetOrCreateCache("redis", cfg); !errors.Is(err, types.ErrInvalidConfig) {
			t.Errorf("GetOrCreateCache() error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestManagerBackgroundSweep(t *testing.T) {
	ctx := context.Background()
	sink := metrics.NewRecordingSink()
	mgr := NewManager(ManagerOptions{Metrics: sink})
	defer mgr.Close()

	cfg := config.ForTesting()
	cfg.DefaultTTL = 10 * time.Millisecond
	cfg.Monitoring = true
	cfg.Sweep.Enabled = true
	cfg.Sweep.Interval = 20 * time.Millisecond

	c, err := mgr.GetOrCreateCache("swept", cfg)
	if err != nil {
		t.Fatalf("GetOrCreateCache() error = %v", err)
	}

	c.Set(ctx, "fleeting", "v")

	deadline := time.After(2 * time.Second)
	for {
		if c.Stats().Size == 0 && len(sink.ByName("cache.hit_rate")) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sweep did not run: size=%d metrics=%d",
				c.Stats().Size, len(sink.ByName("cache.hit_rate")))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerStop(t *testing.T) {
	mgr := NewManager(ManagerOptions{})
	defer mgr.Close()

	cfg := config.ForTesting()
	cfg.Sweep.Enabled = true
	cfg.Sweep.Interval = 10 * time.Millisecond
	if _, err := mgr.GetOrCreateCache("c", cfg); err != nil {
		t.Fatalf("GetOrCreateCache() error = %v", err)
	}

	// Stop must be safe to call repeatedly and must leave caches usable.
	mgr.Stop()
	mgr.Stop()

	if mgr.GetCache("c") == nil {
		t.Error("GetCache() = nil after Stop, want cache")
	}
}

func TestManagerClose(t *testing.T) {
	mgr := NewManager(ManagerOptions{})

	c, err := mgr.GetOrCreateCache("c", config.ForTesting())
	if err != nil {
		t.Fatalf("GetOrCreateCache() error = %v", err)
	}

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := mgr.GetOrCreateCache("after", config.ForTesting()); !errors.Is(err, types.ErrClosed) {
		t.Errorf("GetOrCreateCache() error = %v after close, want ErrClosed", err)
	}
	if c.Backend().IsAvailable() {
		t.Error("backend still available after manager close")
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestManagerCloseWithTimeout(t *testing.T) {
	mgr := NewManager(ManagerOptions{})

	cfg := config.ForTesting()
	cfg.Sweep = config.SweepConfig{Enabled: true, Interval: 5 * time.Millisecond}
	if _, err := mgr.GetOrCreateCache("swept", cfg); err != nil {
		t.Fatalf("GetOrCreateCache() error = %v", err)
	}

	if err := mgr.CloseWithTimeout(time.Second); err != nil {
		t.Fatalf("CloseWithTimeout() error = %v", err)
	}
	if _, err := mgr.GetOrCreateCache("after", nil); !errors.Is(err, types.ErrClosed) {
		t.Errorf("GetOrCreateCache() after close = %v, want ErrClosed", err)
	}
}
