package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatrelay/internal/models"
	"chatrelay/internal/redis"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigStore is the configuration repository surface the cache decorates.
type ConfigStore interface {
	Upsert(ctx context.Context, cfg *models.ClientAgentConfig) (bool, error)
	Get(ctx context.Context, clientID, configID string) (*models.ClientAgentConfig, error)
	ListClientIDs(ctx context.Context) ([]string, error)
	ListConfigs(ctx context.Context, clientID string) ([]models.ConfigSummary, error)
}

// ConfigCache is a read-through cache over a ConfigStore. Lookups are
// served from redis when possible and invalidated on upsert; cache
// failures degrade to the inner store.
type ConfigCache struct {
	inner ConfigStore
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewConfigCache wraps the store. A nil redis client yields a transparent
// pass-through.
func NewConfigCache(inner ConfigStore, rdb *redis.Client, ttl time.Duration) *ConfigCache {
	return &ConfigCache{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "config_cache").Logger(),
	}
}

func configKey(clientID, configID string) string {
	return fmt.Sprintf("agent_config:%s:%s", clientID, configID)
}

// Upsert writes through to the store and drops the cached entry.
func (c *ConfigCache) Upsert(ctx context.Context, cfg *models.ClientAgentConfig) (bool, error) {
	updated, err := c.inner.Upsert(ctx, cfg)
	if err != nil {
		return updated, err
	}
	if err := c.rdb.Del(ctx, configKey(cfg.ClientID, cfg.ConfigID)); err != nil {
		c.log.Warn().Err(err).Msg("invalidate cached config failed")
	}
	return updated, nil
}

// Get serves from the cache when possible, filling it on a miss.
func (c *ConfigCache) Get(ctx context.Context, clientID, configID string) (*models.ClientAgentConfig, error) {
	key := configKey(clientID, configID)
	if raw, err := c.rdb.Get(ctx, key); err == nil {
		var cfg models.ClientAgentConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
			return &cfg, nil
		}
		c.log.Warn().Str("key", key).Msg("malformed cached config, refetching")
	}
	cfg, err := c.inner.Get(ctx, clientID, configID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(cfg); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("cache config failed")
		}
	}
	return cfg, nil
}

// ListClientIDs delegates to the store; listings are not cached.
func (c *ConfigCache) ListClientIDs(ctx context.Context) ([]string, error) {
	return c.inner.ListClientIDs(ctx)
}

// ListConfigs delegates to the store; listings are not cached.
func (c *ConfigCache) ListConfigs(ctx context.Context, clientID string) ([]models.ConfigSummary, error) {
	return c.inner.ListConfigs(ctx, clientID)
}
