package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/quillpad/blogsvc/pkg/logger"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// feedSize caps the number of items in /feed.xml.
const feedSize = 20

// markdown renders GFM. Raw HTML in posts is escaped, not passed through.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (h *Handler) preview(c *gin.Context) {
	b := h.views.Get(c.Request.Context(), blog.CanonicalID(c.Param("id")), h.svc.GetBlog)
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	out, err := renderMarkdown(b.Content)
	if err != nil {
		logger.Errorf("render preview %s: %v", b.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}

func (h *Handler) feed(c *gin.Context) {
	posts := h.views.List(c.Request.Context(), blog.Filter{Status: blog.StatusPublished}, h.svc.ListBlogs)
	if len(posts) > feedSize {
		posts = posts[:feedSize]
	}

	feed := &feeds.Feed{
		Title:   h.siteTitle,
		Link:    &feeds.Link{Href: h.siteURL},
		Created: time.Now(),
	}
	if len(posts) > 0 {
		feed.Updated = posts[0].UpdatedAt
	}
	for _, p := range posts {
		content, err := renderMarkdown(p.Content)
		if err != nil {
			content = p.Content
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:      p.ID,
			Title:   p.Title,
			Link:    &feeds.Link{Href: h.siteURL + blog.RecordPath(p.ID)},
			Created: p.CreatedAt,
			Updated: p.UpdatedAt,
			Content: content,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		logger.Errorf("rss: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate feed"})
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}
