package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campex/campex/pkg/cache"
)

var ErrEmptyKey = errors.New("memory cache: key is required")

type permissionEntry struct {
	snapshot cache.PermissionSnapshot
	expires  time.Time // zero means the entry never expires
}

type Adapter struct {
	mu      sync.RWMutex
	entries map[string]permissionEntry
}

var _ cache.PermissionCache = (*Adapter)(nil)

func NewAdapter() *Adapter {
	return &Adapter{
		entries: map[string]permissionEntry{},
	}
}

func (a *Adapter) SetPermissions(ctx context.Context, key string, snapshot cache.PermissionSnapshot, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}

	entry := permissionEntry{
		snapshot: cloneSnapshot(snapshot),
	}
	if ttl > 0 {
		entry.expires = time.Now().UTC().Add(ttl)
	}

	a.mu.Lock()
	a.entries[key] = entry
	a.mu.Unlock()
	return nil
}

func (a *Adapter) GetPermissions(ctx context.Context, key string) (cache.PermissionSnapshot, bool, error) {
	now := time.Now().UTC()

	a.mu.RLock()
	entry, ok := a.entries[key]
	a.mu.RUnlock()
	if !ok {
		return cache.PermissionSnapshot{}, false, nil
	}

	if !entry.expires.IsZero() && now.After(entry.expires) {
		a.mu.Lock()
		delete(a.entries, key)
		a.mu.Unlock()
		return cache.PermissionSnapshot{}, false, nil
	}

	return cloneSnapshot(entry.snapshot), true, nil
}

func (a *Adapter) DeletePermissions(ctx context.Context, key string) error {
	a.mu.Lock()
	delete(a.entries, key)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Purge(ctx context.Context) error {
	a.mu.Lock()
	a.entries = map[string]permissionEntry{}
	a.mu.Unlock()
	return nil
}

func cloneSnapshot(snapshot cache.PermissionSnapshot) cache.PermissionSnapshot {
	cloned := make([]string, len(snapshot.Permissions))
	copy(cloned, snapshot.Permissions)

	snapshot.Permissions = cloned
	return snapshot
}
