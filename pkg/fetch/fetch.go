// Package fetch wraps remote calls with a max-age response cache and
// in-flight coalescing: concurrent callers asking for the same key share one
// underlying call, and errors are never cached.
package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrEmptyKey = errors.New("fetch: key is required")

type entry struct {
	value     any
	fetchedAt time.Time
}

type Group struct {
	mu      sync.RWMutex
	entries map[string]entry
	flight  singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

func NewGroup() *Group {
	return &Group{
		entries: map[string]entry{},
		now:     time.Now,
	}
}

// Do returns a cached value no older than maxAge, or invokes fn exactly once
// for all concurrent callers of the same key. A maxAge of zero or less
// disables the age check and always refetches (still coalesced).
func (g *Group) Do(ctx context.Context, key string, maxAge time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	if maxAge > 0 {
		if value, ok := g.fresh(key, maxAge); ok {
			return value, nil
		}
	}

	value, err, _ := g.flight.Do(key, func() (any, error) {
		// Re-check under coalescing: a caller that queued behind the
		// winning flight gets the value the winner just stored.
		if maxAge > 0 {
			if value, ok := g.fresh(key, maxAge); ok {
				return value, nil
			}
		}

		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.entries[key] = entry{value: value, fetchedAt: g.now()}
		g.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (g *Group) fresh(key string, maxAge time.Duration) (any, bool) {
	now := g.now()

	g.mu.RLock()
	cached, ok := g.entries[key]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if now.Sub(cached.fetchedAt) > maxAge {
		return nil, false
	}
	return cached.value, true
}

// Forget drops the cached value for key. In-flight calls are unaffected.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.entries, key)
	g.mu.Unlock()
	g.flight.Forget(key)
}

func (g *Group) Purge() {
	g.mu.Lock()
	g.entries = map[string]entry{}
	g.mu.Unlock()
}

// Do is the typed form of Group.Do.
func Do[T any](ctx context.Context, g *Group, key string, maxAge time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	value, err := g.Do(ctx, key, maxAge, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, errors.New("fetch: cached value has unexpected type")
	}
	return typed, nil
}
