package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// grantSource is the slice of the repository the cache fills from.
type grantSource interface {
	RoleByName(ctx context.Context, name string) (Role, error)
	HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error)
	GrantsForRole(ctx context.Context, roleID int64) ([]Token, error)
}

// GrantCache layers Redis over the grant store without changing the
// GrantChecker contract. Concurrent misses for the same key collapse into
// one store read. Redis failures fall through to the store; only store
// failures deny.
type GrantCache struct {
	client *redis.Client
	store  grantSource
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewGrantCache constructs a GrantCache with the given staleness bound.
func NewGrantCache(client *redis.Client, store grantSource, ttl time.Duration, logger *slog.Logger) *GrantCache {
	return &GrantCache{client: client, store: store, ttl: ttl, logger: logger}
}

type cachedRole struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// RoleByName resolves a role through the cache. Missing roles are not
// cached, so a freshly created role is visible immediately.
func (c *GrantCache) RoleByName(ctx context.Context, name string) (Role, error) {
	key := c.roleKey(name)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedRole
		if err := json.Unmarshal(payload, &cached); err == nil {
			return Role{ID: cached.ID, Name: cached.Name, IsActive: cached.IsActive}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logWarn("grant cache read", err)
	}

	value, err, _ := c.flight(ctx, "role:"+name, func(ctx context.Context) (any, error) {
		role, err := c.store.RoleByName(ctx, name)
		if err != nil {
			return nil, err
		}
		c.writeRole(ctx, role)
		return role, nil
	})
	if err != nil {
		return Role{}, err
	}
	return value.(Role), nil
}

// HasGrant answers membership from the cached grant set, filling it on
// demand.
func (c *GrantCache) HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	token := Token{Resource: resource, Action: action}
	key := c.grantsKey(roleID)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var tokens []string
		if err := json.Unmarshal(payload, &tokens); err == nil {
			for _, t := range tokens {
				if t == token.String() {
					return true, nil
				}
			}
			return false, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logWarn("grant cache read", err)
		return c.store.HasGrant(ctx, roleID, resource, action)
	}

	value, err, _ := c.flight(ctx, "grants:"+strconv.FormatInt(roleID, 10), func(ctx context.Context) (any, error) {
		tokens, err := c.store.GrantsForRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		c.writeGrants(ctx, roleID, tokens)
		return tokens, nil
	})
	if err != nil {
		return false, err
	}
	for _, t := range value.([]Token) {
		if t == token {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached state for a role after its grants or flags
// change.
func (c *GrantCache) Invalidate(ctx context.Context, role Role) error {
	return c.client.Del(ctx, c.roleKey(role.Name), c.grantsKey(role.ID)).Err()
}

func (c *GrantCache) writeRole(ctx context.Context, role Role) {
	data, err := json.Marshal(cachedRole{ID: role.ID, Name: role.Name, IsActive: role.IsActive})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.roleKey(role.Name), data, c.ttl).Err(); err != nil {
		c.logWarn("grant cache write", err)
	}
}

func (c *GrantCache) writeGrants(ctx context.Context, roleID int64, tokens []Token) {
	names := make([]string, 0, len(tokens))
	for _, t := range tokens {
		names = append(names, t.String())
	}
	data, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.grantsKey(roleID), data, c.ttl).Err(); err != nil {
		c.logWarn("grant cache write", err)
	}
}

func (c *GrantCache) flight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := c.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

func (c *GrantCache) roleKey(name string) string {
	return "authz:role:" + name
}

func (c *GrantCache) grantsKey(roleID int64) string {
	return "authz:grants:" + strconv.FormatInt(roleID, 10)
}

func (c *GrantCache) logWarn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.Any("error", err))
	}
}
