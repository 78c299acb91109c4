package httptransport

import (
	"context"
	"net/http"
	"strings"

	"github.com/campex/campex"
	oerrors "github.com/campex/campex/pkg/errors"
	"github.com/campex/campex/pkg/rbac"
)

type contextKey struct{}

var principalKey contextKey

// PrincipalFromContext returns the principal the middleware resolved for this
// request, if any.
func PrincipalFromContext(ctx context.Context) (campex.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(campex.Principal)
	return principal, ok
}

func ContextWithPrincipal(ctx context.Context, principal campex.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

type MiddlewareConfig struct {
	TokenHeader        string
	CookieName         string
	RequiredPermission rbac.Permission
	FailureStatusCode  int
}

func DefaultConfig() MiddlewareConfig {
	return MiddlewareConfig{
		TokenHeader:       "Authorization",
		CookieName:        "",
		FailureStatusCode: http.StatusUnauthorized,
	}
}

// Middleware resolves the request's bearer token and, when configured, gates
// on a required permission before the next handler runs.
func Middleware(resolver campex.Resolver, config MiddlewareConfig) func(http.Handler) http.Handler {
	if config.TokenHeader == "" {
		config.TokenHeader = "Authorization"
	}
	if config.FailureStatusCode == 0 {
		config.FailureStatusCode = http.StatusUnauthorized
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r, config)
			if token == "" {
				http.Error(w, "missing credentials", config.FailureStatusCode)
				return
			}

			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil || principal.IsZero() {
				http.Error(w, "unauthenticated", config.FailureStatusCode)
				return
			}

			if config.RequiredPermission != "" && !principal.Can(config.RequiredPermission) {
				http.Error(w, string(oerrors.CodePermissionDenied), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func extractToken(r *http.Request, config MiddlewareConfig) string {
	if raw := strings.TrimSpace(r.Header.Get(config.TokenHeader)); raw != "" {
		if token, ok := strings.CutPrefix(raw, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return raw
	}

	if config.CookieName != "" {
		if cookie, err := r.Cookie(config.CookieName); err == nil {
			return strings.TrimSpace(cookie.Value)
		}
	}

	return ""
}
