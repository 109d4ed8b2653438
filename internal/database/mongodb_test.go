package database

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestDatabaseName(t *testing.T) {
	require.Equal(t, "blogs", DatabaseName("mongodb://localhost:27017/blogs"))
	require.Equal(t, "blogs", DatabaseName("mongodb://user:pw@localhost:27017/blogs?retryWrites=true"))
	require.Equal(t, DefaultDatabase, DatabaseName("mongodb://localhost:27017"))
	require.Equal(t, DefaultDatabase, DatabaseName("mongodb://localhost:27017/"))
	require.Equal(t, DefaultDatabase, DatabaseName("::not a uri::"))
}

func TestHandleCachesClientAndDoesNotRetryOnItsOwn(t *testing.T) {
	h := NewHandle("mongodb://localhost:27017/blogs", "", time.Second, time.Second)
	require.Equal(t, "blogs", h.Database())

	calls := 0
	dialErr := errors.New("mongo ping: server selection timeout")
	h.connect = func(ctx context.Context, uri string, _, _ time.Duration) (*mongo.Client, error) {
		calls++
		if calls == 1 {
			return nil, dialErr
		}
		// mongo.Connect does not contact the server, so this works offline
		return mongo.Connect(ctx, options.Client().ApplyURI(uri))
	}

	ctx := context.Background()
	_, err := h.Client(ctx)
	require.ErrorIs(t, err, dialErr)
	require.Equal(t, 1, calls)
	require.False(t, h.Connected())

	c1, err := h.Client(ctx)
	require.NoError(t, err)
	c2, err := h.Client(ctx)
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, 2, calls)
	require.True(t, h.Connected())

	col, err := h.Collection("blogs")(ctx)
	require.NoError(t, err)
	require.Equal(t, "blogs", col.Name())
	require.Equal(t, "blogs", col.Database().Name())

	require.NoError(t, h.Disconnect(ctx))
	require.False(t, h.Connected())
}

func TestHandleExplicitDatabaseWins(t *testing.T) {
	h := NewHandle("mongodb://localhost:27017/fromuri", "explicit", time.Second, time.Second)
	require.Equal(t, "explicit", h.Database())
}

func TestHandleWaitersHonourTheirOwnDeadline(t *testing.T) {
	h := NewHandle("mongodb://localhost:27017/blogs", "", time.Second, time.Second)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	h.connect = func(ctx context.Context, uri string, _, _ time.Duration) (*mongo.Client, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return mongo.Connect(ctx, options.Client().ApplyURI(uri))
	}

	first := make(chan error, 1)
	go func() {
		_, err := h.Client(context.Background())
		first <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	begin := time.Now()
	_, err := h.Client(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(begin), time.Second)

	close(release)
	require.NoError(t, <-first)
	require.Equal(t, int32(1), calls.Load())
	require.True(t, h.Connected())

	// the abandoned waiter's dial is not repeated
	_, err = h.Client(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
	require.NoError(t, h.Disconnect(context.Background()))
}
