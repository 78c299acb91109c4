package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campex/campex/pkg/cache"
	"github.com/campex/campex/pkg/classify"
	"github.com/campex/campex/pkg/rbac"
)

var ErrEmptyKey = errors.New("redis cache adapter: key is required")

type Config struct {
	Address     string
	Username    string
	Password    string
	Database    int
	Namespace   string
	DialTimeout time.Duration
}

type Adapter struct {
	client    *redis.Client
	namespace string
}

var _ cache.PermissionCache = (*Adapter)(nil)

func NewAdapter(config Config) *Adapter {
	client := redis.NewClient(&redis.Options{
		Addr:        config.Address,
		Username:    config.Username,
		Password:    config.Password,
		DB:          config.Database,
		DialTimeout: config.DialTimeout,
	})

	namespace := config.Namespace
	if namespace == "" {
		namespace = "campex"
	}

	return &Adapter{
		client:    client,
		namespace: namespace,
	}
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

func (a *Adapter) Close() error {
	return a.client.Close()
}

type storedSnapshot struct {
	Role        string    `json:"role"`
	Source      string    `json:"source"`
	Permissions []string  `json:"permissions"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

func (a *Adapter) SetPermissions(ctx context.Context, key string, snapshot cache.PermissionSnapshot, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}

	payload, err := json.Marshal(storedSnapshot{
		Role:        string(snapshot.Role),
		Source:      string(snapshot.Source),
		Permissions: snapshot.Permissions,
		ResolvedAt:  snapshot.ResolvedAt.UTC(),
	})
	if err != nil {
		return err
	}

	if ttl < 0 {
		ttl = 0 // redis treats 0 as "no expiration", matching the session cache contract
	}
	return a.client.Set(ctx, a.permissionKey(key), payload, ttl).Err()
}

func (a *Adapter) GetPermissions(ctx context.Context, key string) (cache.PermissionSnapshot, bool, error) {
	raw, err := a.client.Get(ctx, a.permissionKey(key)).Bytes()
	if err == redis.Nil {
		return cache.PermissionSnapshot{}, false, nil
	}
	if err != nil {
		return cache.PermissionSnapshot{}, false, err
	}

	var stored storedSnapshot
	if err := json.Unmarshal(raw, &stored); err != nil {
		return cache.PermissionSnapshot{}, false, err
	}

	return cache.PermissionSnapshot{
		Role:        rbac.Role(stored.Role),
		Source:      classify.Source(stored.Source),
		Permissions: stored.Permissions,
		ResolvedAt:  stored.ResolvedAt,
	}, true, nil
}

func (a *Adapter) DeletePermissions(ctx context.Context, key string) error {
	return a.client.Del(ctx, a.permissionKey(key)).Err()
}

func (a *Adapter) Purge(ctx context.Context) error {
	pattern := a.namespace + ":permissions:*"

	iter := a.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := a.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (a *Adapter) permissionKey(key string) string {
	return a.namespace + ":permissions:" + key
}
