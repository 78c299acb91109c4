// Package grpctransport mirrors the grpc interceptor shapes without taking a
// grpc dependency, so servers can adapt these to their own interceptor
// chains.
package grpctransport

import (
	"context"

	"github.com/campex/campex"
	oerrors "github.com/campex/campex/pkg/errors"
	"github.com/campex/campex/pkg/rbac"
)

// TokenExtractor pulls the bearer token out of a request context, typically
// from incoming metadata.
type TokenExtractor func(ctx context.Context) string

type contextKey struct{}

var principalKey contextKey

func PrincipalFromContext(ctx context.Context) (campex.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(campex.Principal)
	return principal, ok
}

type UnaryHandler func(ctx context.Context, req any) (any, error)

type UnaryServerInfo struct {
	FullMethod string
}

type UnaryServerInterceptor func(ctx context.Context, req any, info *UnaryServerInfo, handler UnaryHandler) (any, error)

type ServerStream interface {
	Context() context.Context
}

type StreamHandler func(srv any, stream ServerStream) error

type StreamServerInfo struct {
	FullMethod string
}

type StreamServerInterceptor func(srv any, stream ServerStream, info *StreamServerInfo, handler StreamHandler) error

func UnaryInterceptor(resolver campex.Resolver, extract TokenExtractor, required rbac.Permission) UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *UnaryServerInfo, handler UnaryHandler) (any, error) {
		ctx, err := authorize(ctx, resolver, extract, required)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func StreamInterceptor(resolver campex.Resolver, extract TokenExtractor, required rbac.Permission) StreamServerInterceptor {
	return func(srv any, stream ServerStream, info *StreamServerInfo, handler StreamHandler) error {
		if _, err := authorize(stream.Context(), resolver, extract, required); err != nil {
			return err
		}
		return handler(srv, stream)
	}
}

func authorize(ctx context.Context, resolver campex.Resolver, extract TokenExtractor, required rbac.Permission) (context.Context, error) {
	if resolver == nil {
		return ctx, oerrors.ErrMissingResolver
	}

	var token string
	if extract != nil {
		token = extract(ctx)
	}
	if token == "" {
		return ctx, oerrors.Wrap(oerrors.CodeUnauthenticated, "missing credentials", nil)
	}

	principal, err := resolver.Resolve(ctx, token)
	if err != nil {
		return ctx, err
	}
	if principal.IsZero() {
		return ctx, oerrors.Wrap(oerrors.CodeUnauthenticated, "unauthenticated", nil)
	}

	if required != "" && !principal.Can(required) {
		return ctx, oerrors.Wrap(oerrors.CodePermissionDenied, "permission denied", nil)
	}

	return context.WithValue(ctx, principalKey, principal), nil
}
