package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/quillpad/blogsvc/internal/blog"
)

var (
	ErrNotFound  = errors.New("blog not found")
	ErrDuplicate = errors.New("blog id already exists")
)

// Changes is the set of fields a save or publish overwrites on an existing
// record. CreatedAt is never part of it.
type Changes struct {
	Title     string
	Content   string
	Tags      []string
	Status    blog.Status
	UpdatedAt time.Time
}

// Store is the storage backend behind the blog service. Implementations must
// return copies, never references into their own state.
type Store interface {
	Insert(ctx context.Context, b *blog.Blog) error
	Get(ctx context.Context, id string) (*blog.Blog, error)
	// List returns matching records newest updatedAt first.
	List(ctx context.Context, f blog.Filter) ([]*blog.Blog, error)
	Update(ctx context.Context, id string, ch Changes) (*blog.Blog, error)
	Delete(ctx context.Context, id string) error
}

// sortNewestFirst orders by updatedAt desc, ties broken by id desc.
func sortNewestFirst(list []*blog.Blog) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
