package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatrelay/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	maxConnectAttempts = 3
	initialBackoff     = 500 * time.Millisecond
	pingTimeout        = 2 * time.Second
)

// Connector owns the document-store client. Callers obtain collection
// handles through Collections before every read or write; the connector
// pings the current client first and redials when the ping fails, so no
// connectivity is assumed between requests.
type Connector struct {
	uri      string
	database string
	cfgColl  string
	convColl string

	mu     sync.Mutex
	client *mongo.Client

	// Injectable for tests.
	dial  func(ctx context.Context, uri string) (*mongo.Client, error)
	ping  func(ctx context.Context, client *mongo.Client) error
	sleep func(d time.Duration)

	log zerolog.Logger
}

// NewConnector builds a connector for the configured store. No connection
// is made until the first Collections call.
func NewConnector(cfg *config.Config) *Connector {
	return &Connector{
		uri:      cfg.MongoURI,
		database: cfg.MongoDatabase,
		cfgColl:  cfg.ConfigCollection,
		convColl: cfg.ConversationCollection,
		dial: func(ctx context.Context, uri string) (*mongo.Client, error) {
			return mongo.Connect(ctx, options.Client().ApplyURI(uri))
		},
		ping: func(ctx context.Context, client *mongo.Client) error {
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			return client.Ping(pctx, readpref.Primary())
		},
		sleep: time.Sleep,
		log:   log.With().Str("component", "storage").Logger(),
	}
}

// Collections verifies liveness, reconnecting if needed, and returns the
// config and conversation collection handles. Both handles are derived
// from the same client, never one without the other.
func (c *Connector) Collections(ctx context.Context) (*mongo.Collection, *mongo.Collection, error) {
	client, err := c.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	db := client.Database(c.database)
	return db.Collection(c.cfgColl), db.Collection(c.convColl), nil
}

// ensure returns a live client, dialing with exponential backoff (no
// jitter) and at most maxConnectAttempts attempts when the current one is
// missing or fails its ping.
func (c *Connector) ensure(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		if err := c.ping(ctx, c.client); err == nil {
			return c.client, nil
		}
		c.log.Warn().Msg("document store ping failed, reconnecting")
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(backoff)
			backoff *= 2
		}
		client, err := c.dial(ctx, c.uri)
		if err == nil {
			err = c.ping(ctx, client)
		}
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("document store connect failed")
			continue
		}
		c.client = client
		c.log.Info().Int("attempt", attempt).Msg("document store connected")
		return client, nil
	}
	return nil, fmt.Errorf("connect to document store after %d attempts: %w", maxConnectAttempts, lastErr)
}

// Close disconnects the current client, if any.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}
