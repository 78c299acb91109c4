package cache

import (
	"context"
	"time"

	"github.com/campex/campex/pkg/classify"
	"github.com/campex/campex/pkg/rbac"
)

type PermissionSnapshot struct {
	Role        rbac.Role
	Source      classify.Source
	Permissions []string
	ResolvedAt  time.Time
}

// PermissionCache stores resolved permission snapshots keyed by token
// fingerprint. A ttl of zero or less means the entry lives until it is
// explicitly deleted or the cache is purged.
type PermissionCache interface {
	SetPermissions(ctx context.Context, key string, snapshot PermissionSnapshot, ttl time.Duration) error
	GetPermissions(ctx context.Context, key string) (PermissionSnapshot, bool, error)
	DeletePermissions(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}
