package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"golang.org/x/sync/singleflight"
)

// DefaultDatabase is used when the connection string names no database.
const DefaultDatabase = "blog-app"

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, connectTimeout, socketTimeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)
	if socketTimeout > 0 {
		clientOpts.SetSocketTimeout(socketTimeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// DatabaseName extracts the database from a connection string, falling back
// to DefaultDatabase.
func DatabaseName(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return DefaultDatabase
	}
	return cs.Database
}

// Handle caches one client for the whole process. The first operation dials;
// a failed dial is returned to the operations waiting on it and the next one
// dials again. Concurrent operations share a single dial.
type Handle struct {
	uri            string
	database       string
	connectTimeout time.Duration
	socketTimeout  time.Duration

	dials   singleflight.Group
	mu      sync.Mutex
	client  *mongo.Client
	connect func(ctx context.Context, uri string, connectTimeout, socketTimeout time.Duration) (*mongo.Client, error)
}

func NewHandle(uri, database string, connectTimeout, socketTimeout time.Duration) *Handle {
	if database == "" {
		database = DatabaseName(uri)
	}
	return &Handle{
		uri:            uri,
		database:       database,
		connectTimeout: connectTimeout,
		socketTimeout:  socketTimeout,
		connect:        ConnectMongo,
	}
}

// Database returns the name of the database collections are taken from.
func (h *Handle) Database() string { return h.database }

// Client returns the cached client, dialing it if needed. A caller whose ctx
// ends first stops waiting; the dial itself is bounded by connectTimeout and
// its client is kept for the next caller.
func (h *Handle) Client(ctx context.Context) (*mongo.Client, error) {
	if client := h.cached(); client != nil {
		return client, nil
	}
	ch := h.dials.DoChan("dial", func() (interface{}, error) {
		if client := h.cached(); client != nil {
			return client, nil
		}
		client, err := h.connect(context.Background(), h.uri, h.connectTimeout, h.socketTimeout)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.client = client
		h.mu.Unlock()
		return client, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*mongo.Client), nil
	}
}

func (h *Handle) cached() *mongo.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client
}

// Collection returns a lazily resolved collection getter.
func (h *Handle) Collection(name string) func(ctx context.Context) (*mongo.Collection, error) {
	return func(ctx context.Context) (*mongo.Collection, error) {
		client, err := h.Client(ctx)
		if err != nil {
			return nil, err
		}
		return client.Database(h.database).Collection(name), nil
	}
}

// Ping checks the server is reachable through the cached client.
func (h *Handle) Ping(ctx context.Context) error {
	client, err := h.Client(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.connectTimeout)
	defer cancel()
	return client.Ping(ctx, nil)
}

// Connected reports whether a client has been established.
func (h *Handle) Connected() bool {
	return h.cached() != nil
}

func (h *Handle) Disconnect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Disconnect(ctx)
	h.client = nil
	return err
}
