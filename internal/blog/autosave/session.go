package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/quillpad/blogsvc/pkg/logger"
	"github.com/quillpad/blogsvc/pkg/metrics"
)

// DefaultQuietInterval is how long an editor must stay idle before a draft
// is saved on its behalf.
const DefaultQuietInterval = 5 * time.Second

// Saver is the save operation auto-save triggers; *service.Service implements it.
type Saver interface {
	SaveDraft(ctx context.Context, in blog.Input) (*blog.Blog, error)
}

// Status is a snapshot of a session for the editor to display.
type Status struct {
	SessionID string     `json:"sessionId"`
	BlogID    string     `json:"blogId,omitempty"`
	Pending   bool       `json:"pending"`
	Saving    bool       `json:"saving"`
	LastSaved *time.Time `json:"lastSaved,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Saves     int        `json:"saves"`
}

// Session is one open editor. Every Edit restarts the quiet timer; when the
// timer fires the latest draft is saved unless a save is already running.
type Session struct {
	id          string
	saver       Saver
	quiet       time.Duration
	saveTimeout time.Duration

	mu        sync.Mutex
	draft     blog.Input
	gen       uint64
	timer     *time.Timer
	saving    bool
	rearm     bool
	closed    bool
	lastSaved time.Time
	lastErr   error
	saves     int
}

func newSession(id, blogID string, saver Saver, quiet, saveTimeout time.Duration) *Session {
	return &Session{
		id:          id,
		saver:       saver,
		quiet:       quiet,
		saveTimeout: saveTimeout,
		draft:       blog.Input{ID: blogID},
	}
}

func (s *Session) ID() string { return s.id }

// Edit records the editor's current fields and restarts the quiet timer.
// The blog id is owned by the session once known, so callers may omit it.
func (s *Session) Edit(in blog.Input) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	id := s.draft.ID
	if id == "" {
		id = in.ID
	}
	s.draft = blog.Input{ID: id, Title: in.Title, Content: in.Content, Tags: blog.NormalizeTags(in.Tags)}
	s.armLocked()
}

func (s *Session) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.quiet, func() { s.fire(gen) })
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		// superseded by a newer edit
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.saving {
		s.rearm = true
		s.mu.Unlock()
		metrics.AutoSaves.WithLabelValues("skipped_inflight").Inc()
		return
	}
	if s.draft.Blank() {
		s.mu.Unlock()
		metrics.AutoSaves.WithLabelValues("skipped_empty").Inc()
		return
	}
	d := s.draft
	d.Tags = blog.NormalizeTags(d.Tags)
	s.saving = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	b, err := s.saver.SaveDraft(ctx, d)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		s.lastErr = err
		metrics.AutoSaves.WithLabelValues("failed").Inc()
		logger.Warnf("autosave session %s: %v", s.id, err)
	} else {
		if s.draft.ID == "" {
			s.draft.ID = b.ID
		}
		s.lastErr = nil
		s.lastSaved = time.Now()
		s.saves++
		metrics.AutoSaves.WithLabelValues("saved").Inc()
		logger.Debugf("autosave session %s: saved blog %s", s.id, b.ID)
	}
	if s.rearm && !s.closed {
		s.rearm = false
		s.armLocked()
	}
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		SessionID: s.id,
		BlogID:    s.draft.ID,
		Pending:   s.timer != nil,
		Saving:    s.saving,
		Saves:     s.saves,
	}
	if !s.lastSaved.IsZero() {
		saved := s.lastSaved
		st.LastSaved = &saved
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Close cancels any pending save. A save already running completes.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
