package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

type connectorHarness struct {
	conn   *Connector
	dials  int
	pings  int
	sleeps []time.Duration
}

func newConnectorHarness(dial func(attempt int) error, ping func(call int) error) *connectorHarness {
	h := &connectorHarness{}
	h.conn = &Connector{
		uri:      "mongodb://test",
		database: "db",
		cfgColl:  "configs",
		convColl: "conversations",
		dial: func(context.Context, string) (*mongo.Client, error) {
			h.dials++
			if err := dial(h.dials); err != nil {
				return nil, err
			}
			return &mongo.Client{}, nil
		},
		ping: func(context.Context, *mongo.Client) error {
			h.pings++
			return ping(h.pings)
		},
		sleep: func(d time.Duration) { h.sleeps = append(h.sleeps, d) },
		log:   zerolog.Nop(),
	}
	return h
}

func TestEnsureSucceedsOnThirdAttempt(t *testing.T) {
	errConn := errors.New("connection refused")
	h := newConnectorHarness(
		func(attempt int) error {
			if attempt < 3 {
				return errConn
			}
			return nil
		},
		func(int) error { return nil },
	)

	client, err := h.conn.ensure(context.Background())
	if err != nil {
		t.Fatalf("ensure error: %v", err)
	}
	if client == nil {
		t.Fatalf("expected a client")
	}
	if h.dials != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", h.dials)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(h.sleeps) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), h.sleeps)
	}
	for i, d := range want {
		if h.sleeps[i] != d {
			t.Fatalf("backoff %d: expected %v, got %v", i, d, h.sleeps[i])
		}
	}
}

func TestEnsureFailsAfterThreeAttempts(t *testing.T) {
	errConn := errors.New("connection refused")
	h := newConnectorHarness(
		func(int) error { return errConn },
		func(int) error { return nil },
	)

	if _, err := h.conn.ensure(context.Background()); !errors.Is(err, errConn) {
		t.Fatalf("expected wrapped dial error, got %v", err)
	}
	if h.dials != 3 {
		t.Fatalf("expected exactly 3 dial attempts, got %d", h.dials)
	}
}

func TestEnsureReusesLiveClient(t *testing.T) {
	h := newConnectorHarness(
		func(int) error { return nil },
		func(int) error { return nil },
	)
	existing := &mongo.Client{}
	h.conn.client = existing

	client, err := h.conn.ensure(context.Background())
	if err != nil {
		t.Fatalf("ensure error: %v", err)
	}
	if client != existing {
		t.Fatalf("expected the existing client to be reused")
	}
	if h.dials != 0 {
		t.Fatalf("must not dial while the client is live, got %d dials", h.dials)
	}
}

func TestEnsureRedialsWhenPingFails(t *testing.T) {
	h := newConnectorHarness(
		func(int) error { return nil },
		// First ping probes the stale client; the second verifies the
		// fresh connection.
		func(call int) error {
			if call == 1 {
				return errors.New("server selection timeout")
			}
			return nil
		},
	)
	stale := &mongo.Client{}
	h.conn.client = stale

	client, err := h.conn.ensure(context.Background())
	if err != nil {
		t.Fatalf("ensure error: %v", err)
	}
	if client == stale {
		t.Fatalf("expected a fresh client after failed ping")
	}
	if h.dials != 1 {
		t.Fatalf("expected 1 dial, got %d", h.dials)
	}
}

func TestEnsureCountsFailedPingAsFailedAttempt(t *testing.T) {
	h := newConnectorHarness(
		func(int) error { return nil },
		func(int) error { return errors.New("server selection timeout") },
	)

	if _, err := h.conn.ensure(context.Background()); err == nil {
		t.Fatalf("expected error when every ping fails")
	}
	if h.dials != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", h.dials)
	}
}
