package cache

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBusFansOutInvalidations(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// two replicas sharing one Redis
	viewsA, viewsB := NewViewCache(time.Minute), NewViewCache(time.Minute)
	busA := NewRedisBus(redis.NewClient(&redis.Options{Addr: m.Addr()}), "test:invalidate", viewsA)
	busB := NewRedisBus(redis.NewClient(&redis.Options{Addr: m.Addr()}), "test:invalidate", viewsB)
	require.NoError(t, busA.Start(ctx))
	require.NoError(t, busB.Start(ctx))
	defer busA.Close()
	defer busB.Close()

	id := blog.NewID()
	load := func(_ context.Context, id string) *blog.Blog { return &blog.Blog{ID: id} }
	list := func(context.Context, blog.Filter) []*blog.Blog { return []*blog.Blog{{ID: id}} }
	for _, v := range []*ViewCache{viewsA, viewsB} {
		v.Get(ctx, id, load)
		v.List(ctx, blog.Filter{}, list)
		require.Equal(t, 2, v.Len())
	}

	busA.Invalidate(ctx, blog.ListingPath, blog.RecordPath(id))

	// local drop is synchronous
	require.Equal(t, 0, viewsA.Len())
	// remote drop arrives through pub/sub
	require.Eventually(t, func() bool { return viewsB.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBusIgnoresGarbage(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views := NewViewCache(time.Minute)
	bus := NewRedisBus(redis.NewClient(&redis.Options{Addr: m.Addr()}), "", views)
	require.NoError(t, bus.Start(ctx))
	defer bus.Close()

	id := blog.NewID()
	views.Get(ctx, id, func(_ context.Context, id string) *blog.Blog { return &blog.Blog{ID: id} })

	m.Publish(DefaultChannel, "not json")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, views.Len())
}

func TestRedisBusPublishFailureStillInvalidatesLocally(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	views := NewViewCache(time.Minute)
	bus := NewRedisBus(redis.NewClient(&redis.Options{Addr: m.Addr()}), "", views)
	id := blog.NewID()
	views.Get(context.Background(), id, func(_ context.Context, id string) *blog.Blog { return &blog.Blog{ID: id} })

	m.Close()
	require.NotPanics(t, func() { bus.Invalidate(context.Background(), blog.RecordPath(id)) })
	require.Equal(t, 0, views.Len())
}
