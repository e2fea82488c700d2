// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/tenpo/internal/authflow"
	"github.com/tomtom215/tenpo/internal/cache"
	"github.com/tomtom215/tenpo/internal/config"
	"github.com/tomtom215/tenpo/internal/logging"
)

// roleFetcher is satisfied by the backend client and by cache.CachedRoles.
type roleFetcher interface {
	FetchRoles(ctx context.Context, accessToken, userID string) ([]string, error)
}

// roleStack is the role lookup path shared by the guard and the resolver.
type roleStack struct {
	fetcher roleFetcher

	// invalidator is nil when caching is disabled.
	invalidator *cache.CachedRoles

	// memory is set for the in-process cache so maintenance can sweep it.
	memory *cache.MemoryRoleCache
	redis  *cache.RedisRoleCache
}

func (s *roleStack) close() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close Redis role cache")
	}
}

// initRoleCache wraps the backend with a role cache. A zero TTL disables
// caching; REDIS_URL selects Redis over the in-process cache.
func initRoleCache(ctx context.Context, cfg *config.CacheConfig, backend roleFetcher) (*roleStack, error) {
	if cfg.RolesTTL <= 0 {
		logging.Info().Msg("Role cache disabled (ROLE_CACHE_TTL=0)")
		return &roleStack{fetcher: backend}, nil
	}

	s := &roleStack{}
	var rc cache.RoleCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisRoleCache(ctx, cfg.RedisURL, cfg.RolesTTL)
		if err != nil {
			return nil, fmt.Errorf("redis role cache: %w", err)
		}
		s.redis = redisCache
		rc = redisCache
		logging.Info().Dur("ttl", cfg.RolesTTL).Msg("Role cache backed by Redis")
	} else {
		s.memory = cache.NewMemoryRoleCache(cfg.RolesTTL)
		rc = s.memory
		logging.Info().Dur("ttl", cfg.RolesTTL).Msg("Role cache in process")
	}

	s.invalidator = cache.NewCachedRoles(backend, rc)
	s.fetcher = s.invalidator
	return s, nil
}

// initFlowStore opens the configured flow store.
func initFlowStore(cfg *config.FlowConfig) (authflow.Store, error) {
	switch cfg.Store {
	case "", "memory":
		logging.Info().Msg("Flow store in memory")
		return authflow.NewMemoryStore(), nil
	case "badger":
		store, err := authflow.OpenBadgerStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("badger flow store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown flow store %q", cfg.Store)
	}
}
