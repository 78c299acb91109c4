package campex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campex/campex/pkg/api"
	ocache "github.com/campex/campex/pkg/cache"
	memorycache "github.com/campex/campex/pkg/cache/memory"
	"github.com/campex/campex/pkg/classify"
	oerrors "github.com/campex/campex/pkg/errors"
	"github.com/campex/campex/pkg/rbac"
	"github.com/campex/campex/pkg/storage"
)

func unsignedToken(t *testing.T, payload map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(body) + "."
}

func newService(t *testing.T, handler http.Handler) *ResolverService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := api.NewClient(api.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}

	return NewResolverService(Config{
		APIClient:  client,
		CacheStore: memorycache.NewAdapter(),
	})
}

func TestResolveRemoteSuccess(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int64
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(api.PermissionsResponse{
			Role:        "admin",
			Permissions: []string{"a", "b"},
		})
	}))

	principal, err := service.Resolve(ctx, unsignedToken(t, map[string]any{"sub": "u-1"}))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if principal.Role != rbac.RoleAdmin || principal.Source != classify.SourceRemote {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	// Server-declared permissions are authoritative and unmodified.
	if len(principal.Permissions) != 2 || principal.Permissions[0] != "a" || principal.Permissions[1] != "b" {
		t.Fatalf("permissions were mutated: %v", principal.Permissions)
	}
	if principal.Subject != "u-1" {
		t.Fatalf("expected subject from token payload, got %q", principal.Subject)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 remote call, got %d", calls.Load())
	}
}

func TestResolveServesCachedValueWithoutNetwork(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int64
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(api.PermissionsResponse{Role: "student", Permissions: []string{"view_market"}})
	}))

	token := unsignedToken(t, map[string]any{"sub": "u-2"})
	for i := 0; i < 3; i++ {
		if _, err := service.Resolve(ctx, token); err != nil {
			t.Fatalf("resolve %d failed: %v", i, err)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("expected 1 remote call for 3 resolves, got %d", calls.Load())
	}
}

func TestResolveInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int64
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(api.PermissionsResponse{Role: "student", Permissions: []string{"view_market"}})
	}))

	token := unsignedToken(t, map[string]any{"sub": "u-3"})
	if _, err := service.Resolve(ctx, token); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := service.Invalidate(ctx, token); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := service.Resolve(ctx, token); err != nil {
		t.Fatalf("resolve after invalidate failed: %v", err)
	}

	if calls.Load() != 2 {
		t.Fatalf("expected a refetch after invalidate, got %d calls", calls.Load())
	}
}

func TestResolveConcurrentCallersCoalesce(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int64
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(api.PermissionsResponse{Role: "student", Permissions: []string{"view_market"}})
	}))

	token := unsignedToken(t, map[string]any{"sub": "u-4"})

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Resolve(ctx, token)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single coalesced remote call, got %d", calls.Load())
	}
}

func TestResolveEmptyToken(t *testing.T) {
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("empty token must not hit the network")
	}))

	principal, err := service.Resolve(context.Background(), "   ")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !principal.IsZero() {
		t.Fatalf("expected zero principal, got %+v", principal)
	}
}

func TestResolveFallbackLegacyAdmin(t *testing.T) {
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	principal, err := service.Resolve(context.Background(), unsignedToken(t, map[string]any{"sub": "admin"}))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if principal.Role != rbac.RoleAdmin || principal.Source != classify.SourceLegacyAdmin {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if len(principal.Permissions) != 9 {
		t.Fatalf("expected the full 9-permission admin set, got %v", principal.Permissions)
	}
}

func TestResolveFallbackTelegramUser(t *testing.T) {
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	principal, err := service.Resolve(context.Background(), unsignedToken(t, map[string]any{"telegram_id": 123}))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if principal.Role != rbac.RoleStudent || principal.Source != classify.SourceTelegram {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if len(principal.Permissions) != 3 {
		t.Fatalf("expected the 3-permission student set, got %v", principal.Permissions)
	}
}

func TestResolveUnknownClaimsPropagatesError(t *testing.T) {
	service := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := service.Resolve(context.Background(), unsignedToken(t, map[string]any{"sub": "u-17"}))
	if err == nil {
		t.Fatal("expected resolution to fail")
	}
	if !oerrors.IsCode(err, oerrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestResolveFailClosedSkipsFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client, err := api.NewClient(api.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}

	service := NewResolverService(Config{
		APIClient:  client,
		CacheStore: memorycache.NewAdapter(),
		Policies: ocache.NewStaticPolicyMatrix(map[classify.Source]ocache.Policy{
			classify.SourceRemote: {Cacheable: true, FailureMode: ocache.FailureModeClosed},
		}),
	})

	_, err = service.Resolve(context.Background(), unsignedToken(t, map[string]any{"sub": "admin"}))
	if err == nil {
		t.Fatal("fail-closed policy must not fall back to heuristics")
	}
}

type recordingAuditStore struct {
	mu      sync.Mutex
	records []storage.ResolutionLogRecord
}

func (r *recordingAuditStore) PutResolutionLog(ctx context.Context, record storage.ResolutionLogRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	return nil
}

func (r *recordingAuditStore) ListResolutionLogsByFingerprint(ctx context.Context, fingerprint string) ([]storage.ResolutionLogRecord, error) {
	return nil, nil
}

func (r *recordingAuditStore) ListResolutionLogsBySubject(ctx context.Context, subject string) ([]storage.ResolutionLogRecord, error) {
	return nil, nil
}

func TestResolveWritesAuditTrail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.PermissionsResponse{Role: "student", Permissions: []string{"view_market"}})
	}))
	t.Cleanup(server.Close)

	client, err := api.NewClient(api.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}

	audit := &recordingAuditStore{}
	service := NewResolverService(Config{
		APIClient:  client,
		CacheStore: memorycache.NewAdapter(),
		AuditStore: audit,
	})

	token := unsignedToken(t, map[string]any{"sub": "u-5"})
	if _, err := service.Resolve(context.Background(), token); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := service.Invalidate(context.Background(), token); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(audit.records))
	}
	if audit.records[0].Event != storage.ResolutionEventResolved {
		t.Fatalf("unexpected first event %q", audit.records[0].Event)
	}
	if audit.records[1].Event != storage.ResolutionEventInvalidated {
		t.Fatalf("unexpected second event %q", audit.records[1].Event)
	}
	if audit.records[0].Fingerprint == "" || audit.records[0].Fingerprint == token {
		t.Fatal("audit records must carry the fingerprint, not the raw token")
	}
}
