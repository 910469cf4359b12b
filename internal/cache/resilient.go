package cache

import (
	"context"

	"github.com/mpetka/larder/internal/types"
)

// policyExecutor is the resilience surface the decorator needs. Both
// resilience.Policy and resilience.DisabledPolicy satisfy it.
type policyExecutor interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

// resilientBackend wraps a remote backend so every operation runs through
// the configured resilience policy. A cache miss is reported to the policy
// as success; only transport failures should move the circuit breaker.
type resilientBackend struct {
	inner  types.Backend
	policy policyExecutor
}

func newResilientBackend(inner types.Backend, policy policyExecutor) *resilientBackend {
	return &resilientBackend{inner: inner, policy: policy}
}

func (b *resilientBackend) Name() string {
	return b.inner.Name()
}

func (b *resilientBackend) IsAvailable() bool {
	return b.inner.IsAvailable()
}

func (b *resilientBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	missed := false
	err := b.policy.Execute(ctx, func(ctx context.Context) error {
		v, err := b.inner.Get(ctx, key)
		if types.IsCacheMiss(err) {
			missed = true
			return nil
		}
		if err != nil {
			return err
		}
		missed = false
		data = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missed {
		return nil, types.ErrCacheMiss
	}
	return data, nil
}

func (b *resilientBackend) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	return b.policy.Execute(ctx, func(ctx context.Context) error {
		return b.inner.Set(ctx, key, value, opts)
	})
}

func (b *resilientBackend) Delete(ctx context.Context, key string) (bool, error) {
	var existed bool
	err := b.policy.Execute(ctx, func(ctx context.Context) error {
		var err error
		existed, err = b.inner.Delete(ctx, key)
		return err
	})
	return existed, err
}

func (b *resilientBackend) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := b.policy.Execute(ctx, func(ctx context.Context) error {
		var err error
		found, err = b.inner.Exists(ctx, key)
		return err
	})
	return found, err
}

func (b *resilientBackend) Clear(ctx context.Context) error {
	return b.policy.Execute(ctx, func(ctx context.Context) error {
		return b.inner.Clear(ctx)
	})
}

func (b *resilientBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := b.policy.Execute(ctx, func(ctx context.Context) error {
		var err error
		keys, err = b.inner.Keys(ctx, pattern)
		return err
	})
	return keys, err
}

func (b *resilientBackend) Stats() types.CacheStats {
	return b.inner.Stats()
}

// CleanupExpired delegates to the wrapped backend when it sweeps. The
// sweep loop runs off the request path, so it bypasses the policy.
func (b *resilientBackend) CleanupExpired(ctx context.Context) (int, error) {
	if s, ok := b.inner.(types.Sweeper); ok {
		return s.CleanupExpired(ctx)
	}
	return 0, nil
}

func (b *resilientBackend) Close() error {
	return b.inner.Close()
}

var (
	_ types.Backend = (*resilientBackend)(nil)
	_ types.Sweeper = (*resilientBackend)(nil)
)
