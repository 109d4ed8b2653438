package blog

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the publication state of a Blog.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Blog is the persisted post record. Published and Status are always written
// together through SetStatus.
type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Status    Status    `json:"status"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetStatus updates Status and keeps Published in step with it.
func (b *Blog) SetStatus(s Status) {
	b.Status = s
	b.Published = s == StatusPublished
}

// Clone returns a deep copy so callers never alias store state.
func (b *Blog) Clone() *Blog {
	if b == nil {
		return nil
	}
	c := *b
	c.Tags = NormalizeTags(b.Tags)
	return &c
}

// Input is what the editor submits on save or publish. An empty ID means
// "create a new record".
type Input struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// Blank reports whether both title and content are empty after trimming.
func (in Input) Blank() bool {
	return strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == ""
}

// Filter narrows a listing. The zero value matches every record.
type Filter struct {
	Status Status
}

// Matches reports whether b passes the filter.
func (f Filter) Matches(b *Blog) bool {
	switch f.Status {
	case StatusDraft:
		return !b.Published
	case StatusPublished:
		return b.Published
	}
	return true
}

// NewID returns a fresh 24-character hex identifier. Both backends use it so
// identifier syntax does not depend on which one is active.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the 24-character hex form.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// CanonicalID lower-cases id so upper-case hex names the same record on
// every backend and under the same cache path.
func CanonicalID(id string) string {
	return strings.ToLower(id)
}

// NormalizeTags copies tags, turning nil into an empty slice.
func NormalizeTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// SplitTags parses the editor's comma separated tag field.
func SplitTags(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ListingPath and RecordPath name the cached UI views a mutation makes stale.
const ListingPath = "/"

func RecordPath(id string) string {
	return "/blog/" + id
}
