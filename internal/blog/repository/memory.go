package repository

import (
	"context"
	"sync"

	"github.com/quillpad/blogsvc/internal/blog"
)

// MemoryStore keeps blogs in a map owned by the instance. It is created at
// startup and injected, so separate instances never share state.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]*blog.Blog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]*blog.Blog)}
}

func (m *MemoryStore) Insert(_ context.Context, b *blog.Blog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[b.ID]; ok {
		return ErrDuplicate
	}
	m.store[b.ID] = b.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*blog.Blog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.store[id]; ok {
		return b.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) List(_ context.Context, f blog.Filter) ([]*blog.Blog, error) {
	m.mu.RLock()
	out := make([]*blog.Blog, 0, len(m.store))
	for _, b := range m.store {
		if f.Matches(b) {
			out = append(out, b.Clone())
		}
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, ch Changes) (*blog.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.Title = ch.Title
	b.Content = ch.Content
	b.Tags = blog.NormalizeTags(ch.Tags)
	b.SetStatus(ch.Status)
	b.UpdatedAt = ch.UpdatedAt
	return b.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

// Len reports how many records are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
