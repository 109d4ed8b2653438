package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quillpad/blogsvc/handlers"
	"github.com/quillpad/blogsvc/internal/blog/autosave"
	"github.com/quillpad/blogsvc/internal/blog/cache"
	"github.com/quillpad/blogsvc/internal/blog/handler"
	"github.com/quillpad/blogsvc/internal/blog/repository"
	"github.com/quillpad/blogsvc/internal/blog/service"
	"github.com/quillpad/blogsvc/internal/config"
	"github.com/quillpad/blogsvc/internal/database"
	"github.com/quillpad/blogsvc/internal/oidc"
	"github.com/quillpad/blogsvc/internal/storage"
	"github.com/quillpad/blogsvc/pkg/logger"
	"github.com/quillpad/blogsvc/pkg/middleware"
	"github.com/redis/go-redis/v9"
)

// app is the wired process: router plus everything that needs closing.
type app struct {
	router  *gin.Engine
	editors *autosave.Manager
	bus     *cache.RedisBus
	redis   *redis.Client
	mongo   *database.Handle
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]handlers.Check{}

	r := gin.New()
	r.Use(middleware.CORS(), gin.Logger(), gin.Recovery())

	// Redis is optional: it carries cache invalidations between replicas and
	// backs the shared rate limiter.
	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = client.Close()
		} else {
			logger.Infof("connected to Redis: %s", addr)
			a.redis = client
			checks["redis"] = func(ctx context.Context) bool { return client.Ping(ctx).Err() == nil }
		}
	}

	// The limiter is mounted per route by the blog handler so that on write
	// routes it runs after the token guard and keys by subject.
	var limit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limit = middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
			logger.Infof("rate limiter: redis, %.2f rps burst %d", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		} else {
			limit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
			logger.Infof("rate limiter: memory, %.2f rps burst %d", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	var store repository.Store
	switch cfg.Store.Backend {
	case config.StoreMemory:
		logger.Warn("using in-memory blog store; data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		a.mongo = database.NewHandle(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.ConnectTimeout, cfg.MongoDB.OpTimeout)
		ms := repository.NewMongoStore(a.mongo.Collection(cfg.MongoDB.Collection), cfg.MongoDB.OpTimeout)
		// Unreachable at startup is not fatal; each operation dials again.
		if err := ms.EnsureIndexes(ctx); err != nil {
			logger.Warnf("mongo indexes not ensured: %v", err)
		} else {
			logger.Infof("using MongoDB store %s.%s", a.mongo.Database(), cfg.MongoDB.Collection)
		}
		store = ms
		checks["mongo"] = func(ctx context.Context) bool { return a.mongo.Ping(ctx) == nil }
	}

	views := cache.NewViewCache(cfg.Cache.TTL)
	var inv service.Invalidator = views
	if a.redis != nil {
		bus := cache.NewRedisBus(a.redis, cfg.Redis.Channel, views)
		if err := bus.Start(ctx); err != nil {
			logger.Warnf("cache invalidations stay local: %v", err)
		} else {
			a.bus = bus
			inv = bus
		}
	}

	svc := service.NewService(store, service.WithInvalidator(inv))
	a.editors = autosave.NewManager(svc, cfg.AutoSave.QuietInterval,
		autosave.WithIdleTTL(cfg.AutoSave.IdleTTL),
		autosave.WithMaxSessions(cfg.AutoSave.MaxSessions))

	opts := []handler.Option{
		handler.WithViewCache(views),
		handler.WithEditors(a.editors),
		handler.WithSite(cfg.Server.SiteURL, cfg.Server.SiteTitle),
		handler.WithRateLimit(limit),
	}
	if cfg.MinIO.Enabled() {
		exp, err := storage.NewExporter(cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot export disabled: %v", err)
		} else {
			if err := exp.EnsureBucket(ctx); err != nil {
				logger.Warnf("snapshot bucket %s: %v", cfg.MinIO.Bucket, err)
			}
			opts = append(opts, handler.WithSnapshots(exp))
		}
	}

	verifier, err := oidc.NewFromConfig(ctx, cfg.Keycloak)
	if err != nil {
		return nil, fmt.Errorf("oidc verifier: %w", err)
	}
	var guard []gin.HandlerFunc
	if verifier != nil {
		guard = append(guard, middleware.AuthMiddleware(verifier))
	} else {
		logger.Warn("no token verifier configured; write routes are open")
	}

	handler.New(svc, opts...).Register(r, guard...)
	handlers.RegisterHealth(r, startTime, checks)
	handlers.RegisterSwagger(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = r
	return a, nil
}

// close cancels pending auto-saves and releases connections.
func (a *app) close(ctx context.Context) {
	a.editors.CloseAll()
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
}
