package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/quillpad/blogsvc/internal/config"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{Backend: config.StoreMemory},
		Cache:     config.CacheConfig{TTL: time.Minute},
		AutoSave:  config.AutoSaveConfig{QuietInterval: time.Second},
		RateLimit: config.RateLimitConfig{RPS: 100, Burst: 100, WindowSeconds: 1},
	}
}

func call(t *testing.T, a *app, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestAppMemoryStore(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memoryConfig())
	require.NoError(t, err)
	defer a.close(ctx)

	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/health", "", "").Code)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/ready", "", "").Code)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/swagger/doc.json", "", "").Code)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/metrics", "", "").Code)

	w := call(t, a, http.MethodPost, "/api/blogs/publish", `{"title":"Hi","content":"there"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = call(t, a, http.MethodGet, "/api/blogs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), created["id"])
}

func TestAppGuardsWritesWithInsecureVerifier(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Keycloak.AllowInsecureToken = true
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.close(ctx)

	require.Equal(t, http.StatusUnauthorized, call(t, a, http.MethodPost, "/api/blogs/draft", `{"title":"x"}`, "").Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "writer"}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodPost, "/api/blogs/draft", `{"title":"x"}`, token).Code)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/api/blogs", "", "").Code)
}

func TestAppWithRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{Host: m.Host(), Port: m.Port(), Channel: "test:invalidate"}
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, UseRedis: true, RPS: 0, Burst: 3, WindowSeconds: 3600}

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.close(ctx)
	require.NotNil(t, a.bus)

	w := call(t, a, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"redis":true`)

	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/api/blogs", "", "").Code)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/api/blogs", "", "").Code)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/api/blogs", "", "").Code)
	require.Equal(t, http.StatusTooManyRequests, call(t, a, http.MethodGet, "/api/blogs", "", "").Code)

	// health checks are not throttled
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/health", "", "").Code)
}

func TestAppRateLimitsWritersBySubject(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Keycloak.AllowInsecureToken = true
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.close(ctx)

	sign := func(sub string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("k"))
		require.NoError(t, err)
		return token
	}
	alice, bob := sign("alice"), sign("bob")

	// every request comes from the same address; writers get their own buckets
	require.Equal(t, http.StatusOK, call(t, a, http.MethodPost, "/api/blogs/draft", `{"title":"a"}`, alice).Code)
	require.Equal(t, http.StatusTooManyRequests, call(t, a, http.MethodPost, "/api/blogs/draft", `{"title":"a"}`, alice).Code)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodPost, "/api/blogs/draft", `{"title":"b"}`, bob).Code)

	// anonymous reads share the address bucket
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/api/blogs", "", "").Code)
	require.Equal(t, http.StatusTooManyRequests, call(t, a, http.MethodGet, "/api/blogs", "", "").Code)

	// a request without a token is refused before the limiter
	require.Equal(t, http.StatusUnauthorized, call(t, a, http.MethodPost, "/api/blogs/draft", `{"title":"x"}`, "").Code)
}

func TestAppMongoUnreachableIsNotFatal(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Store.Backend = config.StoreMongo
	cfg.MongoDB = config.MongoDBConfig{
		URI:            "mongodb://127.0.0.1:1/blog_test",
		Collection:     "blogs",
		ConnectTimeout: 200 * time.Millisecond,
		OpTimeout:      200 * time.Millisecond,
	}
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.close(ctx)

	require.Equal(t, http.StatusServiceUnavailable, call(t, a, http.MethodGet, "/ready", "", "").Code)
	w := call(t, a, http.MethodGet, "/api/blogs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
	w = call(t, a, http.MethodPost, "/api/blogs/draft", `{"title":"x"}`, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"Failed to save draft"}`, w.Body.String())
}
