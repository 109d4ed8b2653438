package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/quillpad/blogsvc/pkg/metrics"
)

// listingStatuses are the filters a listing view can be cached under.
var listingStatuses = []blog.Status{"", blog.StatusDraft, blog.StatusPublished}

// ViewCache holds the listing and per-record views the UI reads, keyed by
// the path the UI shows them under.
//
// Every drop moves the key to a new generation. A load that started before
// the drop finishes under the old generation and is returned to its caller
// but not stored.
type ViewCache struct {
	c *gocache.Cache

	mu    sync.Mutex
	epoch uint64
	seq   uint64
	gens  map[string]uint64
}

// generation identifies the state of one key at the time a load started.
type generation struct {
	epoch, gen uint64
}

// NewViewCache creates a cache whose entries live for ttl. A non-positive ttl
// disables caching.
func NewViewCache(ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		return &ViewCache{}
	}
	return &ViewCache{c: gocache.New(ttl, 2*ttl), gens: make(map[string]uint64)}
}

func listingKey(status blog.Status) string {
	if status == "" {
		return blog.ListingPath
	}
	return blog.ListingPath + "?status=" + string(status)
}

// List returns the cached listing for f or calls load and caches the result.
// Empty listings are not cached, since a backend failure also reads as empty.
func (v *ViewCache) List(ctx context.Context, f blog.Filter, load func(context.Context, blog.Filter) []*blog.Blog) []*blog.Blog {
	if v.c == nil {
		return load(ctx, f)
	}
	key := listingKey(f.Status)
	if x, ok := v.c.Get(key); ok {
		return cloneAll(x.([]*blog.Blog))
	}
	g := v.current(key)
	list := load(ctx, f)
	if len(list) > 0 {
		v.store(key, g, cloneAll(list))
	}
	return list
}

// Get returns the cached record view or calls load. Not-found is not cached.
func (v *ViewCache) Get(ctx context.Context, id string, load func(context.Context, string) *blog.Blog) *blog.Blog {
	if v.c == nil {
		return load(ctx, id)
	}
	key := blog.RecordPath(id)
	if x, ok := v.c.Get(key); ok {
		return x.(*blog.Blog).Clone()
	}
	g := v.current(key)
	b := load(ctx, id)
	if b != nil {
		v.store(key, g, b.Clone())
	}
	return b
}

func (v *ViewCache) current(key string) generation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return generation{epoch: v.epoch, gen: v.gens[key]}
}

// store caches x under key unless key was dropped since g was taken.
func (v *ViewCache) store(key string, g generation, x interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if g != (generation{epoch: v.epoch, gen: v.gens[key]}) {
		return
	}
	v.c.SetDefault(key, x)
}

// Invalidate drops the given paths. The listing path drops every filtered
// listing along with it.
func (v *ViewCache) Invalidate(_ context.Context, paths ...string) {
	v.drop("local", paths)
}

func (v *ViewCache) drop(source string, paths []string) {
	for _, p := range paths {
		metrics.CacheInvalidations.WithLabelValues(source).Inc()
		if v.c == nil {
			continue
		}
		if p == blog.ListingPath {
			for _, s := range listingStatuses {
				v.evict(listingKey(s))
			}
			continue
		}
		if strings.HasPrefix(p, "/blog/") {
			v.evict(p)
		}
	}
}

func (v *ViewCache) evict(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	v.gens[key] = v.seq
	v.c.Delete(key)
}

// Len reports the number of cached views.
func (v *ViewCache) Len() int {
	if v.c == nil {
		return 0
	}
	return v.c.ItemCount()
}

// Flush drops everything, including loads still in flight.
func (v *ViewCache) Flush() {
	if v.c == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.epoch++
	v.gens = make(map[string]uint64)
	v.c.Flush()
}

func cloneAll(list []*blog.Blog) []*blog.Blog {
	out := make([]*blog.Blog, len(list))
	for i, b := range list {
		out[i] = b.Clone()
	}
	return out
}
