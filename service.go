package campex

import (
	"context"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/campex/campex/pkg/api"
	ocache "github.com/campex/campex/pkg/cache"
	"github.com/campex/campex/pkg/classify"
	oerrors "github.com/campex/campex/pkg/errors"
	"github.com/campex/campex/pkg/fetch"
	"github.com/campex/campex/pkg/rbac"
	"github.com/campex/campex/pkg/storage"
	tokenpkg "github.com/campex/campex/pkg/token"
)

// PermissionSource is the remote RBAC endpoint. *api.Client satisfies it.
type PermissionSource interface {
	MyPermissions(ctx context.Context, bearerToken string) (api.PermissionsResponse, error)
}

// ResolverService implements Resolver: session cache first, then a coalesced
// remote call, then heuristic fallback classification when the remote call
// fails and policy allows it.
type ResolverService struct {
	source      PermissionSource
	cache       ocache.PermissionCache
	policies    ocache.PolicyMatrix
	classifiers *classify.Registry
	audit       storage.ResolutionLogStore
	logger      logr.Logger
	flight      *fetch.Group
}

var _ Resolver = (*ResolverService)(nil)

func NewResolverService(config Config) *ResolverService {
	classifiers := config.Classifiers
	if classifiers == nil {
		classifiers = classify.DefaultRegistry()
	}

	policies := config.Policies
	if policies == nil {
		policies = ocache.DefaultPolicyMatrix()
	}

	var source PermissionSource
	if config.APIClient != nil {
		source = config.APIClient
	}

	return &ResolverService{
		source:      source,
		cache:       config.CacheStore,
		policies:    policies,
		classifiers: classifiers,
		audit:       config.AuditStore,
		logger:      resolveLogger(config.Logger),
		flight:      fetch.NewGroup(),
	}
}

func (s *ResolverService) Resolve(ctx context.Context, bearerToken string) (Principal, error) {
	bearerToken = strings.TrimSpace(bearerToken)
	if bearerToken == "" {
		return Principal{}, nil
	}

	fingerprint := tokenpkg.Fingerprint(bearerToken)

	if s.cache != nil {
		snapshot, ok, err := s.cache.GetPermissions(ctx, fingerprint)
		if err != nil {
			// A broken cache backend is a miss, not a resolution failure.
			s.logger.V(1).Info("permission cache read failed", "fingerprint", fingerprint, "error", err.Error())
		} else if ok {
			return principalFromSnapshot(snapshot), nil
		}
	}

	// Coalesce concurrent resolutions of the same fingerprint into one
	// remote round-trip. Staleness is the cache's concern, so maxAge is 0.
	return fetch.Do(ctx, s.flight, fingerprint, 0, func(ctx context.Context) (Principal, error) {
		return s.resolve(ctx, bearerToken, fingerprint)
	})
}

func (s *ResolverService) resolve(ctx context.Context, bearerToken string, fingerprint string) (Principal, error) {
	if s.source == nil {
		return Principal{}, oerrors.Wrap(oerrors.CodeAPIUnavailable, "no permission source configured", nil)
	}

	response, remoteErr := s.source.MyPermissions(ctx, bearerToken)
	if remoteErr == nil {
		principal := Principal{
			Role:        rbac.Role(response.Role),
			Permissions: response.Permissions,
			Source:      classify.SourceRemote,
			ResolvedAt:  time.Now().UTC(),
		}
		if claims, err := tokenpkg.DecodeClaims(bearerToken); err == nil {
			principal.Subject = claims.Subject()
		}

		s.store(ctx, fingerprint, principal)
		s.auditEvent(ctx, fingerprint, principal, storage.ResolutionEventResolved, nil)
		return principal, nil
	}

	principal, ok := s.fallback(ctx, bearerToken, fingerprint, remoteErr)
	if ok {
		return principal, nil
	}

	err := oerrors.Wrap(oerrors.CodeUnauthenticated, "failed to resolve permissions", remoteErr)
	s.auditEvent(ctx, fingerprint, Principal{}, storage.ResolutionEventFailed, err)
	return Principal{}, err
}

// fallback classifies the token locally. It reports false when the claims are
// unrecognizable or the remote policy is fail-closed, in which case the
// original remote error must surface.
func (s *ResolverService) fallback(ctx context.Context, bearerToken string, fingerprint string, remoteErr error) (Principal, bool) {
	if policy, ok := s.policies.Policy(classify.SourceRemote); ok && policy.FailureMode == ocache.FailureModeClosed {
		return Principal{}, false
	}

	claims, err := tokenpkg.DecodeClaims(bearerToken)
	if err != nil {
		s.logger.V(1).Info("token payload is not decodable, no fallback", "fingerprint", fingerprint)
		return Principal{}, false
	}

	result, ok := s.classifiers.Classify(claims)
	if !ok {
		return Principal{}, false
	}

	principal := Principal{
		Subject:     claims.Subject(),
		Role:        result.Role,
		Permissions: rbac.DefaultPermissions(result.Role).Strings(),
		Source:      result.Source,
		Claims:      claims,
		ResolvedAt:  time.Now().UTC(),
	}

	s.logger.V(1).Info("resolved permissions via fallback classification",
		"fingerprint", fingerprint, "role", string(result.Role), "source", string(result.Source), "remote_error", remoteErr.Error())

	s.store(ctx, fingerprint, principal)
	s.auditEvent(ctx, fingerprint, principal, storage.ResolutionEventFallback, remoteErr)
	return principal, true
}

func (s *ResolverService) store(ctx context.Context, fingerprint string, principal Principal) {
	if s.cache == nil {
		return
	}

	policy, ok := s.policies.Policy(principal.Source)
	if !ok {
		policy = ocache.Policy{Cacheable: true}
	}
	if !policy.Cacheable {
		return
	}

	if err := s.cache.SetPermissions(ctx, fingerprint, snapshotFromPrincipal(principal), policy.TTL); err != nil {
		s.logger.V(1).Info("permission cache write failed", "fingerprint", fingerprint, "error", err.Error())
	}
}

func (s *ResolverService) auditEvent(ctx context.Context, fingerprint string, principal Principal, event storage.ResolutionEvent, cause error) {
	if s.audit == nil {
		return
	}

	record := storage.ResolutionLogRecord{
		Fingerprint: fingerprint,
		Subject:     principal.Subject,
		Role:        string(principal.Role),
		Source:      string(principal.Source),
		Event:       event,
	}
	if cause != nil {
		record.Metadata = map[string]string{"error": cause.Error()}
	}

	// Audit is best effort: a down audit store must never fail resolution.
	if err := s.audit.PutResolutionLog(ctx, record); err != nil {
		s.logger.V(1).Info("resolution audit write failed", "fingerprint", fingerprint, "event", string(event), "error", err.Error())
	}
}

func (s *ResolverService) Invalidate(ctx context.Context, bearerToken string) error {
	fingerprint := tokenpkg.Fingerprint(bearerToken)
	if fingerprint == "" {
		return nil
	}

	s.flight.Forget(fingerprint)
	if s.cache != nil {
		if err := s.cache.DeletePermissions(ctx, fingerprint); err != nil {
			return err
		}
	}

	s.auditEvent(ctx, fingerprint, Principal{}, storage.ResolutionEventInvalidated, nil)
	return nil
}

func (s *ResolverService) InvalidateAll(ctx context.Context) error {
	s.flight.Purge()
	if s.cache == nil {
		return nil
	}
	return s.cache.Purge(ctx)
}
