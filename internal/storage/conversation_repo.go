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

// ConversationRepo loads and saves per-chat transcripts.
type ConversationRepo struct {
	conn *Connector
}

// NewConversationRepo constructs a repository backed by the connector.
func NewConversationRepo(conn *Connector) *ConversationRepo {
	return &ConversationRepo{conn: conn}
}

// Load fetches the transcript for the given chat. A missing document is
// not an error; an empty history is returned so the session starts fresh.
func (r *ConversationRepo) Load(ctx context.Context, clientID, configID, chatID string) (*models.ConversationHistory, error) {
	_, coll, err := r.conn.Collections(ctx)
	if err != nil {
		return nil, err
	}
	var hist models.ConversationHistory
	err = coll.FindOne(ctx, bson.M{
		"client_id": clientID,
		"config_id": configID,
		"chat_id":   chatID,
	}).Decode(&hist)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &models.ConversationHistory{
				ClientID: clientID,
				ConfigID: configID,
				ChatID:   chatID,
			}, nil
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &hist, nil
}

// Save upserts the transcript keyed by chat_id, refreshing its timestamp.
func (r *ConversationRepo) Save(ctx context.Context, hist *models.ConversationHistory) error {
	_, coll, err := r.conn.Collections(ctx)
	if err != nil {
		return err
	}
	hist.Timestamp = time.Now().UTC()
	_, err = coll.UpdateOne(ctx,
		bson.M{"chat_id": hist.ChatID},
		bson.M{"$set": hist},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}
