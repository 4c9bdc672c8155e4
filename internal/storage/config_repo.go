package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatrelay/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrConfigNotFound is returned when no document matches the requested
// (client_id, config_id) pair.
var ErrConfigNotFound = errors.New("no such bot config found")

// ConfigRepo provides CRUD over per-client agent configuration documents.
type ConfigRepo struct {
	conn *Connector
}

// NewConfigRepo constructs a repository backed by the connector.
func NewConfigRepo(conn *Connector) *ConfigRepo {
	return &ConfigRepo{conn: conn}
}

// Upsert inserts or replaces the configuration keyed by
// (client_id, config_id). It reports true when an existing document was
// updated, false when a new one was inserted.
func (r *ConfigRepo) Upsert(ctx context.Context, cfg *models.ClientAgentConfig) (bool, error) {
	coll, _, err := r.conn.Collections(ctx)
	if err != nil {
		return false, err
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"client_id": cfg.ClientID, "config_id": cfg.ConfigID},
		bson.M{"$set": bson.M{
			"agent_config": cfg.AgentConfig,
			"bot_name":     cfg.BotName,
			"created_at":   time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert config: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// Get fetches the configuration for the given pair, or ErrConfigNotFound.
func (r *ConfigRepo) Get(ctx context.Context, clientID, configID string) (*models.ClientAgentConfig, error) {
	coll, _, err := r.conn.Collections(ctx)
	if err != nil {
		return nil, err
	}
	var cfg models.ClientAgentConfig
	err = coll.FindOne(ctx, bson.M{"client_id": clientID, "config_id": configID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("find config: %w", err)
	}
	return &cfg, nil
}

// ListClientIDs enumerates the distinct client ids holding configurations.
func (r *ConfigRepo) ListClientIDs(ctx context.Context) ([]string, error) {
	coll, _, err := r.conn.Collections(ctx)
	if err != nil {
		return nil, err
	}
	values, err := coll.Distinct(ctx, "client_id", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list client ids: %w", err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ListConfigs enumerates (config_id, bot_name) pairs for one client.
func (r *ConfigRepo) ListConfigs(ctx context.Context, clientID string) ([]models.ConfigSummary, error) {
	coll, _, err := r.conn.Collections(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx,
		bson.M{"client_id": clientID},
		options.Find().SetProjection(bson.M{"config_id": 1, "bot_name": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer cursor.Close(ctx)
	summaries := make([]models.ConfigSummary, 0)
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("decode configs: %w", err)
	}
	return summaries, nil
}
