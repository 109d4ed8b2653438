package autosave

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/quillpad/blogsvc/pkg/logger"
)

const (
	// DefaultIdleTTL is how long a session survives without being looked up.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultMaxSessions caps the number of sessions open at once.
	DefaultMaxSessions = 1000
)

// ErrTooManySessions is returned by Open when the session cap is reached.
var ErrTooManySessions = errors.New("too many open editor sessions")

// Manager owns every open editing session. A session that is not looked up
// for the idle TTL is closed and its pending save cancelled, as if the
// editor had closed it.
type Manager struct {
	saver       Saver
	quiet       time.Duration
	saveTimeout time.Duration
	idleTTL     time.Duration
	maxSessions int

	mu       sync.Mutex
	sessions *gocache.Cache
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTTL sets how long an untouched session is kept.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithMaxSessions caps the number of open sessions.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

func NewManager(saver Saver, quiet time.Duration, opts ...ManagerOption) *Manager {
	if quiet <= 0 {
		quiet = DefaultQuietInterval
	}
	m := &Manager{
		saver:       saver,
		quiet:       quiet,
		saveTimeout: 30 * time.Second,
		idleTTL:     DefaultIdleTTL,
		maxSessions: DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(m)
	}
	cleanup := m.idleTTL / 2
	if cleanup > time.Minute {
		cleanup = time.Minute
	}
	m.sessions = gocache.New(m.idleTTL, cleanup)
	m.sessions.OnEvicted(func(id string, x interface{}) {
		x.(*Session).Close()
		logger.Debugf("editor session %s closed", id)
	})
	return m
}

// Open starts a session for an existing blog (blogID set) or a new one.
func (m *Manager) Open(blogID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions.ItemCount() >= m.maxSessions {
		m.sessions.DeleteExpired()
		if m.sessions.ItemCount() >= m.maxSessions {
			return nil, ErrTooManySessions
		}
	}
	s := newSession(uuid.NewString(), blogID, m.saver, m.quiet, m.saveTimeout)
	m.sessions.SetDefault(s.id, s)
	return s, nil
}

// Get returns the session and restarts its idle TTL.
func (m *Manager) Get(id string) (*Session, bool) {
	x, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	// Replace fails when the session expired in between.
	if err := m.sessions.Replace(id, x, gocache.DefaultExpiration); err != nil {
		return nil, false
	}
	return x.(*Session), true
}

// Close tears a session down, cancelling its pending save.
func (m *Manager) Close(id string) bool {
	if _, ok := m.sessions.Get(id); !ok {
		return false
	}
	m.sessions.Delete(id)
	return true
}

// CloseAll is called on shutdown.
func (m *Manager) CloseAll() {
	m.sessions.DeleteExpired()
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
}

// Len reports the number of open sessions.
func (m *Manager) Len() int {
	return m.sessions.ItemCount()
}
