package service

import (
	"strings"

	"github.com/quillpad/blogsvc/internal/blog"
)

type validator struct {
	errors map[string]string
}

func newValidator() *validator {
	return &validator{errors: make(map[string]string)}
}

func (v *validator) check(ok bool, field, message string) {
	if ok {
		return
	}
	if _, exists := v.errors[field]; !exists {
		v.errors[field] = message
	}
}

func (v *validator) err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.errors}
}

// ValidatePublish is the caller-side check run before PublishBlog: a post
// needs a title and content. Both problems are reported together.
func ValidatePublish(in blog.Input) error {
	v := newValidator()
	v.check(strings.TrimSpace(in.Title) != "", "title", "Title required")
	v.check(strings.TrimSpace(in.Content) != "", "content", "Content required")
	validateID(v, in.ID)
	return v.err()
}

// ValidateDraft is the caller-side check run before a manual SaveDraft.
func ValidateDraft(in blog.Input) error {
	v := newValidator()
	v.check(!in.Blank(), "draft", "Cannot save empty draft")
	validateID(v, in.ID)
	return v.err()
}

func validateID(v *validator, id string) {
	v.check(id == "" || blog.ValidID(id), "id", "Invalid blog ID format.")
}
