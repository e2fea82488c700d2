// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
	"github.com/tomtom215/tenpo/internal/roles"
)

// RoleCache stores role lists per user ID.
type RoleCache interface {
	Get(ctx context.Context, userID string) ([]string, bool)
	Set(ctx context.Context, userID string, roles []string)
	Invalidate(ctx context.Context, userID string)
}

// RoleFetcher loads roles from the backend.
type RoleFetcher interface {
	FetchRoles(ctx context.Context, accessToken, userID string) ([]string, error)
}

// CachedRoles is a RoleFetcher that consults a RoleCache first.
// Fetch errors are never cached, and neither are role lists that open admin
// routes: a revoked admin loses access on the next request instead of after
// the cache TTL.
type CachedRoles struct {
	fetcher RoleFetcher
	cache   RoleCache
}

// NewCachedRoles wraps fetcher with cache.
func NewCachedRoles(fetcher RoleFetcher, cache RoleCache) *CachedRoles {
	return &CachedRoles{fetcher: fetcher, cache: cache}
}

// FetchRoles implements RoleFetcher.
func (c *CachedRoles) FetchRoles(ctx context.Context, accessToken, userID string) ([]string, error) {
	if list, ok := c.cache.Get(ctx, userID); ok {
		return list, nil
	}
	list, err := c.fetcher.FetchRoles(ctx, accessToken, userID)
	if err != nil {
		return nil, err
	}
	if privileged(list) {
		return list, nil
	}
	c.cache.Set(ctx, userID, list)
	return list, nil
}

func privileged(list []string) bool {
	f := roles.FlagsFor(list)
	return f.IsSuperAdmin || f.IsAcademyAdmin
}

// Invalidate drops the cached roles of userID, e.g. after an invite was accepted.
func (c *CachedRoles) Invalidate(ctx context.Context, userID string) {
	c.cache.Invalidate(ctx, userID)
}

// MemoryRoleCache keeps role lists in process.
type MemoryRoleCache struct {
	c *Cache
}

// NewMemoryRoleCache creates an in-process role cache.
func NewMemoryRoleCache(ttl time.Duration) *MemoryRoleCache {
	return &MemoryRoleCache{c: New(ttl)}
}

func roleKey(userID string) string {
	return "roles:" + userID
}

// Get implements RoleCache.
func (m *MemoryRoleCache) Get(_ context.Context, userID string) ([]string, bool) {
	v, ok := m.c.Get(roleKey(userID))
	metrics.RecordRoleCache("memory", ok)
	if !ok {
		return nil, false
	}
	roles, ok := v.([]string)
	return roles, ok
}

// Set implements RoleCache.
func (m *MemoryRoleCache) Set(_ context.Context, userID string, roles []string) {
	cp := make([]string, len(roles))
	copy(cp, roles)
	m.c.Set(roleKey(userID), cp)
}

// Invalidate implements RoleCache.
func (m *MemoryRoleCache) Invalidate(_ context.Context, userID string) {
	m.c.Delete(roleKey(userID))
}

// Cleanup drops expired entries. Called by the maintenance service.
func (m *MemoryRoleCache) Cleanup() int {
	return m.c.Cleanup()
}

// redisKeyPrefix namespaces role keys in a shared Redis.
const redisKeyPrefix = "tenpo:roles:"

// RedisRoleCache keeps role lists in Redis so that all edge instances share
// them. Redis failures degrade to cache misses.
type RedisRoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRoleCache connects to redisURL (redis:// or rediss://).
func NewRedisRoleCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisRoleCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRoleCache{client: client, ttl: ttl}, nil
}

// Get implements RoleCache.
func (r *RedisRoleCache) Get(ctx context.Context, userID string) ([]string, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Ctx(ctx).Warn().Err(err).Msg("Role cache read failed")
		}
		metrics.RecordRoleCache("redis", false)
		return nil, false
	}

	var roles []string
	if err := json.Unmarshal(data, &roles); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Discarding corrupt role cache entry")
		metrics.RecordRoleCache("redis", false)
		return nil, false
	}
	metrics.RecordRoleCache("redis", true)
	return roles, true
}

// Set implements RoleCache.
func (r *RedisRoleCache) Set(ctx context.Context, userID string, roles []string) {
	if roles == nil {
		roles = []string{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+userID, data, r.ttl).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Role cache write failed")
	}
}

// Invalidate implements RoleCache.
func (r *RedisRoleCache) Invalidate(ctx context.Context, userID string) {
	if err := r.client.Del(ctx, redisKeyPrefix+userID).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Role cache invalidate failed")
	}
}

// Close closes the Redis connection.
func (r *RedisRoleCache) Close() error {
	return r.client.Close()
}
