package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/quillpad/blogsvc/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel invalidations travel on.
const DefaultChannel = "blog:invalidate"

type invalidation struct {
	Origin string   `json:"origin"`
	Paths  []string `json:"paths"`
}

// RedisBus invalidates the local ViewCache and tells every other replica
// sharing the Redis instance to do the same.
type RedisBus struct {
	client  *redis.Client
	channel string
	views   *ViewCache
	origin  string
	sub     *redis.PubSub
}

func NewRedisBus(client *redis.Client, channel string, views *ViewCache) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel, views: views, origin: uuid.NewString()}
}

// Invalidate drops the paths locally, then publishes them. A publish failure
// is logged; the local cache is already correct.
func (b *RedisBus) Invalidate(ctx context.Context, paths ...string) {
	b.views.Invalidate(ctx, paths...)
	msg, err := json.Marshal(invalidation{Origin: b.origin, Paths: paths})
	if err != nil {
		logger.Errorf("encode invalidation: %v", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		logger.Warnf("publish invalidation on %s: %v", b.channel, err)
	}
}

// Start subscribes and applies remote invalidations until ctx is done or
// Close is called. It returns once the subscription is confirmed.
func (b *RedisBus) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.sub = sub
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				b.apply(m.Payload)
			}
		}
	}()
	logger.Infof("listening for cache invalidations on %s", b.channel)
	return nil
}

func (b *RedisBus) apply(payload string) {
	var inv invalidation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		logger.Warnf("bad invalidation message: %v", err)
		return
	}
	if inv.Origin == b.origin {
		return
	}
	logger.Debugf("remote invalidation from %s: %v", inv.Origin, inv.Paths)
	b.views.drop("remote", inv.Paths)
}

// Close stops the subscription.
func (b *RedisBus) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Close()
}
