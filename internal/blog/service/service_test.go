package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/quillpad/blogsvc/internal/blog/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock advances one second per call.
type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// countingStore wraps a store and counts calls; fail makes every call error.
type countingStore struct {
	repository.Store
	calls int
	fail  error
}

func (c *countingStore) Insert(ctx context.Context, b *blog.Blog) error {
	c.calls++
	if c.fail != nil {
		return c.fail
	}
	return c.Store.Insert(ctx, b)
}

func (c *countingStore) Get(ctx context.Context, id string) (*blog.Blog, error) {
	c.calls++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.Get(ctx, id)
}

func (c *countingStore) List(ctx context.Context, f blog.Filter) ([]*blog.Blog, error) {
	c.calls++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.List(ctx, f)
}

func (c *countingStore) Update(ctx context.Context, id string, ch repository.Changes) (*blog.Blog, error) {
	c.calls++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.Update(ctx, id, ch)
}

func (c *countingStore) Delete(ctx context.Context, id string) error {
	c.calls++
	if c.fail != nil {
		return c.fail
	}
	return c.Store.Delete(ctx, id)
}

type recordingInvalidator struct {
	paths []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths ...string) {
	r.paths = append(r.paths, paths...)
}

func newTestService(t *testing.T) (*Service, *countingStore, *recordingInvalidator) {
	t.Helper()
	store := &countingStore{Store: repository.NewMemoryStore()}
	inv := &recordingInvalidator{}
	clock := &steppingClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(store, WithInvalidator(inv), WithClock(clock.Now)), store, inv
}

func TestCreateThenPublishScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	draft, err := svc.SaveDraft(ctx, blog.Input{Title: "A", Content: "B", Tags: []string{"x", "y"}})
	require.NoError(t, err)
	require.False(t, draft.Published)
	require.Equal(t, blog.StatusDraft, draft.Status)
	require.Equal(t, []string{"x", "y"}, draft.Tags)
	require.True(t, blog.ValidID(draft.ID))
	require.Equal(t, draft.CreatedAt, draft.UpdatedAt)

	pub, err := svc.PublishBlog(ctx, blog.Input{ID: draft.ID, Title: "A2", Content: "B", Tags: []string{"x"}})
	require.NoError(t, err)
	require.Equal(t, draft.ID, pub.ID)
	require.True(t, pub.Published)
	require.Equal(t, blog.StatusPublished, pub.Status)
	require.Equal(t, "A2", pub.Title)
	require.Equal(t, []string{"x"}, pub.Tags)
	require.True(t, pub.UpdatedAt.After(draft.UpdatedAt))
	require.Equal(t, draft.CreatedAt, pub.CreatedAt)

	got := svc.GetBlog(ctx, draft.ID)
	require.NotNil(t, got)
	require.True(t, got.Published)
}

func TestSaveDraftDemotesPublished(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	pub, err := svc.PublishBlog(ctx, blog.Input{Title: "T", Content: "C"})
	require.NoError(t, err)
	require.True(t, pub.Published)

	_, err = svc.SaveDraft(ctx, blog.Input{ID: pub.ID, Title: "T", Content: "C edited"})
	require.NoError(t, err)

	got := svc.GetBlog(ctx, pub.ID)
	require.NotNil(t, got)
	require.False(t, got.Published)
	require.Equal(t, blog.StatusDraft, got.Status)
	require.Equal(t, "C edited", got.Content)
}

func TestCreatedAtStableAcrossSaves(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	b, err := svc.SaveDraft(ctx, blog.Input{Title: "t"})
	require.NoError(t, err)
	created, prev := b.CreatedAt, b.UpdatedAt
	for i := 0; i < 5; i++ {
		var next *blog.Blog
		if i%2 == 0 {
			next, err = svc.PublishBlog(ctx, blog.Input{ID: b.ID, Title: "t", Content: "c"})
		} else {
			next, err = svc.SaveDraft(ctx, blog.Input{ID: b.ID, Title: "t"})
		}
		require.NoError(t, err)
		require.Equal(t, created, next.CreatedAt)
		require.False(t, next.UpdatedAt.Before(prev))
		require.False(t, next.CreatedAt.After(next.UpdatedAt))
		prev = next.UpdatedAt
	}
}

func TestSaveWithUnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, store, inv := newTestService(t)

	_, err := svc.SaveDraft(ctx, blog.Input{ID: blog.NewID(), Title: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.PublishBlog(ctx, blog.Input{ID: blog.NewID(), Title: "x", Content: "y"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, svc.ListBlogs(ctx, blog.Filter{}))

	// malformed ids never reach the store
	before := store.calls
	_, err = svc.SaveDraft(ctx, blog.Input{ID: "bogus", Title: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, before, store.calls)
	require.Empty(t, inv.paths)
}

func TestTwoIDlessDraftsCreateTwoRecords(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	in := blog.Input{Title: "same", Content: "same", Tags: []string{"t"}}

	a, err := svc.SaveDraft(ctx, in)
	require.NoError(t, err)
	b, err := svc.SaveDraft(ctx, in)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
	require.Len(t, svc.ListBlogs(ctx, blog.Filter{}), 2)
}

func TestDeleteBlog(t *testing.T) {
	ctx := context.Background()
	svc, store, inv := newTestService(t)

	b, err := svc.SaveDraft(ctx, blog.Input{Title: "bye"})
	require.NoError(t, err)
	inv.paths = nil

	res := svc.DeleteBlog(ctx, b.ID)
	require.True(t, res.Success)
	require.Equal(t, "Blog deleted successfully.", res.Message)
	require.Nil(t, res.Kind)
	require.Nil(t, svc.GetBlog(ctx, b.ID))
	require.ElementsMatch(t, []string{blog.ListingPath, blog.RecordPath(b.ID)}, inv.paths)

	again := svc.DeleteBlog(ctx, b.ID)
	require.False(t, again.Success)
	require.ErrorIs(t, again.Kind, ErrNotFound)
	require.Equal(t, "Blog not found or already deleted.", again.Error)

	before := store.calls
	bad := svc.DeleteBlog(ctx, "12345")
	require.False(t, bad.Success)
	require.ErrorIs(t, bad.Kind, ErrValidation)
	require.Equal(t, "Invalid blog ID format.", bad.Error)
	require.Equal(t, before, store.calls, "malformed id must not reach the backend")
}

func TestListBlogsOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.SaveDraft(ctx, blog.Input{Title: "first"})
	require.NoError(t, err)
	_, err = svc.PublishBlog(ctx, blog.Input{Title: "second", Content: "c"})
	require.NoError(t, err)
	_, err = svc.SaveDraft(ctx, blog.Input{Title: "third"})
	require.NoError(t, err)
	// touching first makes it the newest
	_, err = svc.SaveDraft(ctx, blog.Input{ID: first.ID, Title: "first"})
	require.NoError(t, err)

	all := svc.ListBlogs(ctx, blog.Filter{})
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].UpdatedAt.After(all[i-1].UpdatedAt))
	}
	require.Equal(t, "first", all[0].Title)

	drafts := svc.ListBlogs(ctx, blog.Filter{Status: blog.StatusDraft})
	require.Len(t, drafts, 2)
	for _, d := range drafts {
		require.False(t, d.Published)
	}
	published := svc.ListBlogs(ctx, blog.Filter{Status: blog.StatusPublished})
	require.Len(t, published, 1)
	require.Equal(t, "second", published[0].Title)
}

func TestGetBlogMalformedOrMissing(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	require.Nil(t, svc.GetBlog(ctx, "zzz"))
	require.Equal(t, 0, store.calls)
	require.Nil(t, svc.GetBlog(ctx, blog.NewID()))
}

func TestUpperCaseIDNamesSameRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, inv := newTestService(t)
	b, err := svc.SaveDraft(ctx, blog.Input{Title: "x"})
	require.NoError(t, err)
	upper := strings.ToUpper(b.ID)

	got := svc.GetBlog(ctx, upper)
	require.NotNil(t, got)
	require.Equal(t, b.ID, got.ID)

	inv.paths = nil
	pub, err := svc.PublishBlog(ctx, blog.Input{ID: upper, Title: "x", Content: "y"})
	require.NoError(t, err)
	require.Equal(t, b.ID, pub.ID)
	require.Equal(t, []string{blog.ListingPath, blog.RecordPath(b.ID)}, inv.paths)

	inv.paths = nil
	res := svc.DeleteBlog(ctx, upper)
	require.True(t, res.Success, res.Error)
	require.Equal(t, []string{blog.ListingPath, blog.RecordPath(b.ID)}, inv.paths)
	require.Nil(t, svc.GetBlog(ctx, b.ID))
}

func TestBackendFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	svc, store, inv := newTestService(t)
	store.fail = errors.New("server selection timeout")

	require.NotPanics(t, func() {
		list := svc.ListBlogs(ctx, blog.Filter{})
		require.NotNil(t, list)
		require.Empty(t, list)
		require.Nil(t, svc.GetBlog(ctx, blog.NewID()))
	})

	_, err := svc.SaveDraft(ctx, blog.Input{Title: "x"})
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, "Failed to save draft", UserMessage(err))

	_, err = svc.PublishBlog(ctx, blog.Input{ID: blog.NewID(), Title: "x", Content: "y"})
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, "Failed to publish blog", UserMessage(err))

	res := svc.DeleteBlog(ctx, blog.NewID())
	require.False(t, res.Success)
	require.ErrorIs(t, res.Kind, ErrBackendUnavailable)
	require.Equal(t, "An unexpected error occurred while deleting the blog.", res.Error)

	require.Empty(t, inv.paths, "failed mutations must not invalidate views")
}

func TestMutationsInvalidateListingAndRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, inv := newTestService(t)

	b, err := svc.SaveDraft(ctx, blog.Input{Title: "x"})
	require.NoError(t, err)
	require.Equal(t, []string{blog.ListingPath, blog.RecordPath(b.ID)}, inv.paths)

	inv.paths = nil
	_, err = svc.PublishBlog(ctx, blog.Input{ID: b.ID, Title: "x", Content: "y"})
	require.NoError(t, err)
	require.Equal(t, []string{blog.ListingPath, blog.RecordPath(b.ID)}, inv.paths)
}

func TestReturnedBlogsDoNotAliasStore(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	b, err := svc.SaveDraft(ctx, blog.Input{Title: "x", Tags: []string{"a"}})
	require.NoError(t, err)
	b.Tags[0] = "mutated"
	require.Equal(t, []string{"a"}, svc.GetBlog(ctx, b.ID).Tags)
}

func TestNewMemoryServiceInstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemoryService(), NewMemoryService()
	_, err := a.SaveDraft(ctx, blog.Input{Title: "only in a"})
	require.NoError(t, err)
	require.Len(t, a.ListBlogs(ctx, blog.Filter{}), 1)
	require.Empty(t, b.ListBlogs(ctx, blog.Filter{}))
}
