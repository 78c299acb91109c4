// Package campex is the client SDK for the camp points-exchange backend. It
// resolves bearer tokens into roles and permission sets, caching the answers
// per session and degrading to unverified token heuristics when the backend
// is unreachable.
package campex

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/campex/campex/pkg/api"
	ocache "github.com/campex/campex/pkg/cache"
	"github.com/campex/campex/pkg/classify"
	oerrors "github.com/campex/campex/pkg/errors"
	"github.com/campex/campex/pkg/storage"
)

type Config struct {
	APIClient   *api.Client
	CacheStore  ocache.PermissionCache
	AuditStore  storage.ResolutionLogStore
	Classifiers *classify.Registry
	Policies    ocache.PolicyMatrix
	Logger      logr.Logger
	Runtime     RuntimeConfig
}

type Client struct {
	resolver      Resolver
	logger        logr.Logger
	closeResource func() error
}

func New(resolver Resolver, config Config) (*Client, error) {
	closeResource, resolvedConfig, err := config.initialize(context.Background())
	if err != nil {
		return nil, err
	}

	if resolver == nil {
		_ = closeResource()
		return nil, oerrors.ErrMissingResolver
	}

	return &Client{
		resolver:      resolver,
		logger:        resolvedConfig.Logger,
		closeResource: closeResource,
	}, nil
}

func NewDefault(config Config) (*Client, error) {
	closeResource, resolvedConfig, err := config.initialize(context.Background())
	if err != nil {
		return nil, err
	}

	return &Client{
		resolver:      NewResolverService(resolvedConfig),
		logger:        resolvedConfig.Logger,
		closeResource: closeResource,
	}, nil
}

// Resolve maps a bearer token to a Principal. An empty token resolves to the
// zero Principal without touching the network.
func (c *Client) Resolve(ctx context.Context, bearerToken string) (Principal, error) {
	if c == nil || c.resolver == nil {
		return Principal{}, oerrors.ErrMissingResolver
	}

	p, err := c.resolver.Resolve(ctx, bearerToken)
	if err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Invalidate drops the cached permissions for one token.
func (c *Client) Invalidate(ctx context.Context, bearerToken string) error {
	if c == nil || c.resolver == nil {
		return oerrors.ErrMissingResolver
	}

	if err := c.resolver.Invalidate(ctx, bearerToken); err != nil {
		return oerrors.Wrap(oerrors.CodeUnknown, "failed to invalidate cached permissions", err)
	}
	return nil
}

// InvalidateAll purges the whole session cache. This is the logout path.
func (c *Client) InvalidateAll(ctx context.Context) error {
	if c == nil || c.resolver == nil {
		return oerrors.ErrMissingResolver
	}

	if err := c.resolver.InvalidateAll(ctx); err != nil {
		return oerrors.Wrap(oerrors.CodeUnknown, "failed to purge permission cache", err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.closeResource == nil {
		return nil
	}

	err := c.closeResource()
	if err != nil {
		return oerrors.Wrap(oerrors.CodeUnknown, "failed to close client resources", err)
	}
	c.closeResource = nil
	c.resolver = nil
	return nil
}
