package campex

import (
	"context"
	"time"

	"github.com/campex/campex/pkg/cache"
	"github.com/campex/campex/pkg/classify"
	"github.com/campex/campex/pkg/rbac"
	"github.com/campex/campex/pkg/token"
)

type Principal struct {
	Subject     string          // Subject is the backend identity when one can be derived; cache keys and audit trails still use the token fingerprint.
	Role        rbac.Role       // Role is the coarse classification the UI gates whole panels on.
	Permissions []string        // Permissions is the authoritative grant set, verbatim from the backend on the remote path.
	Source      classify.Source // Source records whether the answer came from the RBAC endpoint or a local heuristic, so callers can treat fallbacks with suspicion.
	Claims      token.Claims    // Claims carries the decoded (unverified) token payload on the fallback path for debugging and display.
	ResolvedAt  time.Time       // ResolvedAt preserves resolution time for audit entries and staleness decisions.
}

// Can reports whether the principal holds the named permission.
func (p Principal) Can(permission rbac.Permission) bool {
	for _, granted := range p.Permissions {
		if granted == string(permission) {
			return true
		}
	}
	return false
}

func (p Principal) IsZero() bool {
	return p.Role == "" && len(p.Permissions) == 0
}

type Resolver interface {
	Resolve(ctx context.Context, bearerToken string) (Principal, error)
	Invalidate(ctx context.Context, bearerToken string) error
	InvalidateAll(ctx context.Context) error
}

func principalFromSnapshot(snapshot cache.PermissionSnapshot) Principal {
	return Principal{
		Role:        snapshot.Role,
		Permissions: snapshot.Permissions,
		Source:      snapshot.Source,
		ResolvedAt:  snapshot.ResolvedAt,
	}
}

func snapshotFromPrincipal(principal Principal) cache.PermissionSnapshot {
	return cache.PermissionSnapshot{
		Role:        principal.Role,
		Source:      principal.Source,
		Permissions: principal.Permissions,
		ResolvedAt:  principal.ResolvedAt,
	}
}
