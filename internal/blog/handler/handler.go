package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/quillpad/blogsvc/internal/blog/autosave"
	"github.com/quillpad/blogsvc/internal/blog/cache"
	"github.com/quillpad/blogsvc/internal/blog/service"
	"github.com/quillpad/blogsvc/pkg/logger"
)

// Snapshotter exports a listing to object storage and returns where it went.
type Snapshotter interface {
	Export(ctx context.Context, blogs []*blog.Blog) (key, url string, err error)
}

// Handler serves the blog API on top of a Service.
type Handler struct {
	svc       *service.Service
	views     *cache.ViewCache
	editors   *autosave.Manager
	snapshots Snapshotter
	siteURL   string
	siteTitle string
	limit     []gin.HandlerFunc
}

type Option func(*Handler)

func WithViewCache(v *cache.ViewCache) Option {
	return func(h *Handler) {
		if v != nil {
			h.views = v
		}
	}
}

func WithEditors(m *autosave.Manager) Option {
	return func(h *Handler) {
		if m != nil {
			h.editors = m
		}
	}
}

// WithSnapshots enables POST /api/blogs/snapshot.
func WithSnapshots(s Snapshotter) Option {
	return func(h *Handler) { h.snapshots = s }
}

// WithRateLimit throttles every blog route. On write routes it runs after
// the guard, so authenticated writers are limited by token subject.
func WithRateLimit(mw gin.HandlerFunc) Option {
	return func(h *Handler) {
		if mw != nil {
			h.limit = []gin.HandlerFunc{mw}
		}
	}
}

// WithSite sets the base URL and title used in the RSS feed.
func WithSite(url, title string) Option {
	return func(h *Handler) {
		if url != "" {
			h.siteURL = url
		}
		if title != "" {
			h.siteTitle = title
		}
	}
}

func New(svc *service.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		siteURL:   "http://localhost:5020",
		siteTitle: "Blog",
	}
	for _, o := range opts {
		o(h)
	}
	if h.views == nil {
		h.views = cache.NewViewCache(0)
	}
	if h.editors == nil {
		h.editors = autosave.NewManager(svc, autosave.DefaultQuietInterval)
	}
	return h
}

// Register mounts the routes. guard runs in front of every write route,
// ahead of the rate limit.
func (h *Handler) Register(r gin.IRoutes, guard ...gin.HandlerFunc) {
	read := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		chain := make([]gin.HandlerFunc, 0, len(h.limit)+1)
		chain = append(chain, h.limit...)
		return append(chain, fn)
	}
	write := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		chain := make([]gin.HandlerFunc, 0, len(guard)+len(h.limit)+1)
		chain = append(chain, guard...)
		chain = append(chain, h.limit...)
		return append(chain, fn)
	}

	r.GET("/api/blogs", read(h.list)...)
	r.GET("/api/blogs/:id", read(h.get)...)
	r.GET("/api/blogs/:id/preview", read(h.preview)...)
	r.POST("/api/blogs/draft", write(h.saveDraft)...)
	r.POST("/api/blogs/publish", write(h.publish)...)
	r.POST("/api/blogs/snapshot", write(h.snapshot)...)
	r.DELETE("/api/blogs/:id", write(h.delete)...)
	r.GET("/feed.xml", read(h.feed)...)

	r.POST("/api/editor/sessions", write(h.openSession)...)
	r.GET("/api/editor/sessions/:sid", read(h.sessionStatus)...)
	r.PATCH("/api/editor/sessions/:sid", write(h.editSession)...)
	r.DELETE("/api/editor/sessions/:sid", write(h.closeSession)...)
}

// saveRequest is the editor payload. tagsText, when present, wins over tags.
type saveRequest struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	TagsText *string  `json:"tagsText"`
}

func (r saveRequest) input() blog.Input {
	tags := r.Tags
	if r.TagsText != nil {
		tags = blog.SplitTags(*r.TagsText)
	}
	return blog.Input{ID: blog.CanonicalID(r.ID), Title: r.Title, Content: r.Content, Tags: blog.NormalizeTags(tags)}
}

func (h *Handler) list(c *gin.Context) {
	f := blog.Filter{Status: blog.Status(c.Query("status"))}
	if f.Status != "" && !f.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be draft or published"})
		return
	}
	c.JSON(http.StatusOK, h.views.List(c.Request.Context(), f, h.svc.ListBlogs))
}

func (h *Handler) get(c *gin.Context) {
	b := h.views.Get(c.Request.Context(), blog.CanonicalID(c.Param("id")), h.svc.GetBlog)
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) saveDraft(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := req.input()
	if err := service.ValidateDraft(in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.svc.SaveDraft(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) publish(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := req.input()
	if err := service.ValidatePublish(in); err != nil {
		writeError(c, err)
		return
	}
	b, err := h.svc.PublishBlog(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) delete(c *gin.Context) {
	res := h.svc.DeleteBlog(c.Request.Context(), c.Param("id"))
	c.JSON(resultStatus(res), res)
}

func (h *Handler) snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot storage not configured"})
		return
	}
	ctx := c.Request.Context()
	key, url, err := h.snapshots.Export(ctx, h.svc.ListBlogs(ctx, blog.Filter{}))
	if err != nil {
		logger.Errorf("snapshot export: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot export failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": url})
}

func (h *Handler) openSession(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = blog.CanonicalID(req.ID)
	if req.ID != "" && h.svc.GetBlog(c.Request.Context(), req.ID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Blog not found."})
		return
	}
	s, err := h.editors.Open(req.ID)
	if err != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessionId": s.ID()})
}

func (h *Handler) sessionStatus(c *gin.Context) {
	s, ok := h.editors.Get(c.Param("sid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

func (h *Handler) editSession(c *gin.Context) {
	s, ok := h.editors.Get(c.Param("sid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.Edit(req.input())
	c.JSON(http.StatusAccepted, s.Status())
}

func (h *Handler) closeSession(c *gin.Context) {
	if !h.editors.Close(c.Param("sid")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.UserMessage(err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": service.UserMessage(err)})
	}
}

func resultStatus(res service.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case errors.Is(res.Kind, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(res.Kind, service.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
