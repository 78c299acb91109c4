package memory

import (
	"context"
	"testing"
	"time"

	"github.com/campex/campex/pkg/cache"
	"github.com/campex/campex/pkg/classify"
	"github.com/campex/campex/pkg/rbac"
)

func snapshot() cache.PermissionSnapshot {
	return cache.PermissionSnapshot{
		Role:        rbac.RoleAdmin,
		Source:      classify.SourceRemote,
		Permissions: []string{"give_points", "system_admin"},
		ResolvedAt:  time.Now().UTC(),
	}
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter()

	if err := adapter.SetPermissions(ctx, "abc12345", snapshot(), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, ok, err := adapter.GetPermissions(ctx, "abc12345")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.Role != rbac.RoleAdmin || len(got.Permissions) != 2 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	if err := adapter.DeletePermissions(ctx, "abc12345"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := adapter.GetPermissions(ctx, "abc12345"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter()

	if err := adapter.SetPermissions(ctx, "k", snapshot(), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Force the expiry check path; a zero expires time must survive it.
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := adapter.GetPermissions(ctx, "k"); !ok {
		t.Fatal("zero-ttl entry must not expire")
	}
}

func TestPositiveTTLExpires(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter()

	if err := adapter.SetPermissions(ctx, "k", snapshot(), time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, ok, _ := adapter.GetPermissions(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestGetReturnsClone(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter()

	if err := adapter.SetPermissions(ctx, "k", snapshot(), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	first, _, _ := adapter.GetPermissions(ctx, "k")
	first.Permissions[0] = "mutated"

	second, _, _ := adapter.GetPermissions(ctx, "k")
	if second.Permissions[0] == "mutated" {
		t.Fatal("cache entry must not be mutable through returned snapshots")
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter()

	_ = adapter.SetPermissions(ctx, "a", snapshot(), 0)
	_ = adapter.SetPermissions(ctx, "b", snapshot(), 0)

	if err := adapter.Purge(ctx); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if _, ok, _ := adapter.GetPermissions(ctx, "a"); ok {
		t.Fatal("expected purge to drop every entry")
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	if err := NewAdapter().SetPermissions(context.Background(), "", snapshot(), 0); err != ErrEmptyKey {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}
