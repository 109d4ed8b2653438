package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillpad/blogsvc/internal/blog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionSource hands out the blogs collection, dialing the database on
// first use. database.Handle provides one.
type CollectionSource func(ctx context.Context) (*mongo.Collection, error)

// StaticCollection wraps an already connected collection.
func StaticCollection(col *mongo.Collection) CollectionSource {
	return func(context.Context) (*mongo.Collection, error) { return col, nil }
}

// mongoBlog is the persisted document shape; one document per Blog.
type mongoBlog struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Tags      []string           `bson:"tags"`
	Status    string             `bson:"status"`
	Published bool               `bson:"published"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func toDocument(b *blog.Blog) (*mongoBlog, error) {
	oid, err := primitive.ObjectIDFromHex(b.ID)
	if err != nil {
		return nil, fmt.Errorf("blog id %q: %w", b.ID, err)
	}
	return &mongoBlog{
		ID:        oid,
		Title:     b.Title,
		Content:   b.Content,
		Tags:      blog.NormalizeTags(b.Tags),
		Status:    string(b.Status),
		Published: b.Published,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}, nil
}

func (d *mongoBlog) toBlog() *blog.Blog {
	b := &blog.Blog{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Content:   d.Content,
		Tags:      blog.NormalizeTags(d.Tags),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	// Older documents may carry only one of the two fields.
	if d.Published || d.Status == string(blog.StatusPublished) {
		b.SetStatus(blog.StatusPublished)
	} else {
		b.SetStatus(blog.StatusDraft)
	}
	return b
}

// MongoStore implements Store over a MongoDB collection. Every call runs
// under its own bounded timeout.
type MongoStore struct {
	col     CollectionSource
	timeout time.Duration
}

func NewMongoStore(col CollectionSource, opTimeout time.Duration) *MongoStore {
	if opTimeout <= 0 {
		opTimeout = 45 * time.Second
	}
	return &MongoStore{col: col, timeout: opTimeout}
}

func (m *MongoStore) collection(ctx context.Context) (*mongo.Collection, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	col, err := m.col(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return col, ctx, cancel, nil
}

// EnsureIndexes creates the indexes used by listing.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	col, ctx, cancel, err := m.collection(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	_, err = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "published", Value: 1}, {Key: "updatedAt", Value: -1}}},
	})
	return err
}

func (m *MongoStore) Insert(ctx context.Context, b *blog.Blog) error {
	doc, err := toDocument(b)
	if err != nil {
		return err
	}
	col, ctx, cancel, err := m.collection(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if _, err := col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, id string) (*blog.Blog, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	col, ctx, cancel, err := m.collection(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	var d mongoBlog
	if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d.toBlog(), nil
}

func (m *MongoStore) List(ctx context.Context, f blog.Filter) ([]*blog.Blog, error) {
	filter := bson.M{}
	switch f.Status {
	case blog.StatusDraft:
		filter["published"] = bson.M{"$ne": true}
	case blog.StatusPublished:
		filter["published"] = true
	}
	col, ctx, cancel, err := m.collection(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*blog.Blog{}
	for cur.Next(ctx) {
		var d mongoBlog
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.toBlog())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) Update(ctx context.Context, id string, ch Changes) (*blog.Blog, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	col, ctx, cancel, err := m.collection(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	set := bson.M{
		"title":     ch.Title,
		"content":   ch.Content,
		"tags":      blog.NormalizeTags(ch.Tags),
		"status":    string(ch.Status),
		"published": ch.Status == blog.StatusPublished,
		"updatedAt": ch.UpdatedAt,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d mongoBlog
	if err := col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d.toBlog(), nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	col, ctx, cancel, err := m.collection(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	res, err := col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
