package service

import (
	"context"
	"errors"
	"time"

	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/quillpad/blogsvc/internal/blog/repository"
	"github.com/quillpad/blogsvc/pkg/logger"
	"github.com/quillpad/blogsvc/pkg/metrics"
)

// Invalidator is told which cached views a mutation made stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, ...string) {}

// Service is the blog store boundary. Read paths degrade to empty results;
// mutating paths return an *OpError. Nothing from the backend escapes raw.
type Service struct {
	store repository.Store
	inv   Invalidator
	now   func() time.Time
}

type Option func(*Service)

// WithInvalidator sets who is notified after each successful mutation.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) {
		if inv != nil {
			s.inv = inv
		}
	}
}

// WithClock overrides time.Now; tests use it to step the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store repository.Store, opts ...Option) *Service {
	s := &Service{store: store, inv: noopInvalidator{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewMemoryService returns a Service backed by a fresh in-memory store.
func NewMemoryService(opts ...Option) *Service {
	return NewService(repository.NewMemoryStore(), opts...)
}

// NewMongoService returns a Service backed by a MongoDB collection.
func NewMongoService(col repository.CollectionSource, opTimeout time.Duration, opts ...Option) *Service {
	return NewService(repository.NewMongoStore(col, opTimeout), opts...)
}

// clock truncates to milliseconds so both backends store identical timestamps.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func record(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		result = "invalid"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		result = "not_found"
	default:
		result = "backend_error"
	}
	metrics.BlogOperations.WithLabelValues(op, result).Inc()
}

// ListBlogs returns matching blogs newest first. A backend failure is logged
// and yields an empty slice.
func (s *Service) ListBlogs(ctx context.Context, f blog.Filter) []*blog.Blog {
	list, err := s.store.List(ctx, f)
	record("list", err)
	if err != nil {
		logger.Errorf("list blogs (status=%q): %v", f.Status, err)
		return []*blog.Blog{}
	}
	logger.Debugf("list blogs (status=%q): %d found", f.Status, len(list))
	return list
}

// GetBlog returns the blog or nil when it is missing, the id is malformed or
// the backend failed.
func (s *Service) GetBlog(ctx context.Context, id string) *blog.Blog {
	id = blog.CanonicalID(id)
	if !blog.ValidID(id) {
		record("get", ErrNotFound)
		logger.Debugf("get blog: malformed id %q", id)
		return nil
	}
	b, err := s.store.Get(ctx, id)
	record("get", err)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Errorf("get blog %s: %v", id, err)
		}
		return nil
	}
	return b
}

// SaveDraft creates or overwrites a blog and always leaves it unpublished,
// demoting a published post back to draft.
func (s *Service) SaveDraft(ctx context.Context, in blog.Input) (*blog.Blog, error) {
	b, err := s.save(ctx, "save_draft", "Failed to save draft", in, blog.StatusDraft)
	record("save_draft", err)
	return b, err
}

// PublishBlog creates or overwrites a blog and marks it published. Title and
// content are not checked here; callers run ValidatePublish first.
func (s *Service) PublishBlog(ctx context.Context, in blog.Input) (*blog.Blog, error) {
	b, err := s.save(ctx, "publish", "Failed to publish blog", in, blog.StatusPublished)
	record("publish", err)
	return b, err
}

func (s *Service) save(ctx context.Context, op, failure string, in blog.Input, status blog.Status) (*blog.Blog, error) {
	now := s.clock()
	in.ID = blog.CanonicalID(in.ID)
	if in.ID == "" {
		b := &blog.Blog{
			ID:        blog.NewID(),
			Title:     in.Title,
			Content:   in.Content,
			Tags:      blog.NormalizeTags(in.Tags),
			CreatedAt: now,
			UpdatedAt: now,
		}
		b.SetStatus(status)
		if err := s.store.Insert(ctx, b); err != nil {
			logger.Errorf("%s: insert: %v", op, err)
			return nil, &OpError{Op: op, Kind: ErrBackendUnavailable, Message: failure, Err: err}
		}
		logger.Infof("%s: created blog %s (status=%s)", op, b.ID, status)
		s.inv.Invalidate(ctx, blog.ListingPath, blog.RecordPath(b.ID))
		return b, nil
	}

	// An id that matches nothing is an error, never an implicit create.
	if !blog.ValidID(in.ID) {
		return nil, &OpError{Op: op, Kind: ErrNotFound, Message: "Blog not found."}
	}
	b, err := s.store.Update(ctx, in.ID, repository.Changes{
		Title:     in.Title,
		Content:   in.Content,
		Tags:      in.Tags,
		Status:    status,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warnf("%s: blog %s not found", op, in.ID)
			return nil, &OpError{Op: op, Kind: ErrNotFound, Message: "Blog not found.", Err: err}
		}
		logger.Errorf("%s: update %s: %v", op, in.ID, err)
		return nil, &OpError{Op: op, Kind: ErrBackendUnavailable, Message: failure, Err: err}
	}
	logger.Infof("%s: updated blog %s (status=%s)", op, b.ID, status)
	s.inv.Invalidate(ctx, blog.ListingPath, blog.RecordPath(b.ID))
	return b, nil
}

// DeleteBlog removes a blog. A malformed id is rejected before the backend
// is contacted; a missing record is a failure, not a silent success.
func (s *Service) DeleteBlog(ctx context.Context, id string) Result {
	id = blog.CanonicalID(id)
	if !blog.ValidID(id) {
		logger.Warnf("delete blog: invalid id format %q", id)
		record("delete", ErrValidation)
		return Result{Error: "Invalid blog ID format.", Kind: ErrValidation}
	}
	err := s.store.Delete(ctx, id)
	record("delete", err)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warnf("delete blog %s: not found", id)
			return Result{Error: "Blog not found or already deleted.", Kind: ErrNotFound}
		}
		logger.Errorf("delete blog %s: %v", id, err)
		return Result{Error: "An unexpected error occurred while deleting the blog.", Kind: ErrBackendUnavailable}
	}
	logger.Infof("deleted blog %s", id)
	s.inv.Invalidate(ctx, blog.ListingPath, blog.RecordPath(id))
	return Result{Success: true, Message: "Blog deleted successfully."}
}
