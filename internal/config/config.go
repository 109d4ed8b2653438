package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends selectable with BLOG_STORE.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// ErrMissingMongoURI is returned when the mongo backend is selected without MONGODB_URI.
var ErrMissingMongoURI = errors.New("environment variable MONGODB_URI is required when BLOG_STORE=mongo")

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	AutoSave  AutoSaveConfig
	RateLimit RateLimitConfig
	Keycloak  KeycloakConfig
	MinIO     MinIOConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	SiteURL      string
	SiteTitle    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	Backend string
}

type MongoDBConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Channel  string
}

// Addr is host:port, or empty when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type CacheConfig struct {
	TTL time.Duration
}

type AutoSaveConfig struct {
	QuietInterval time.Duration
	IdleTTL       time.Duration
	MaxSessions   int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type KeycloakConfig struct {
	URL                string
	Realm              string
	ClientID           string
	AllowInsecureToken bool
}

type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Bucket        string
	Region        string
	PresignExpiry time.Duration
}

// Enabled reports whether snapshot export has somewhere to go.
func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

// LoadConfig loads configuration from environment variables and an optional
// .env file. Extra env files may be named; missing ones are ignored.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5020")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SITE_URL", "http://localhost:5020")
	v.SetDefault("SITE_TITLE", "Blog")
	v.SetDefault("BLOG_STORE", StoreMongo)
	v.SetDefault("MONGODB_COLLECTION", "blogs")
	v.SetDefault("MONGODB_CONNECT_TIMEOUT", 10)
	v.SetDefault("MONGODB_OP_TIMEOUT", 45)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "blog:invalidate")
	v.SetDefault("CACHE_TTL", 30)
	v.SetDefault("AUTOSAVE_QUIET_INTERVAL", 5)
	v.SetDefault("AUTOSAVE_SESSION_IDLE_TTL", 1800)
	v.SetDefault("AUTOSAVE_MAX_SESSIONS", 1000)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("ALLOW_INSECURE_TOKEN", false)
	v.SetDefault("MINIO_BUCKET", "blog-snapshots")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_PRESIGN_EXPIRY", 3600)

	seconds := func(key string) time.Duration {
		return time.Duration(v.GetInt(key)) * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			SiteURL:      strings.TrimRight(v.GetString("SITE_URL"), "/"),
			SiteTitle:    v.GetString("SITE_TITLE"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("BLOG_STORE"))),
		},
		MongoDB: MongoDBConfig{
			URI:            v.GetString("MONGODB_URI"),
			Database:       v.GetString("MONGODB_DATABASE"),
			Collection:     v.GetString("MONGODB_COLLECTION"),
			ConnectTimeout: seconds("MONGODB_CONNECT_TIMEOUT"),
			OpTimeout:      seconds("MONGODB_OP_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Channel:  v.GetString("REDIS_CHANNEL"),
		},
		Cache: CacheConfig{
			TTL: seconds("CACHE_TTL"),
		},
		AutoSave: AutoSaveConfig{
			QuietInterval: seconds("AUTOSAVE_QUIET_INTERVAL"),
			IdleTTL:       seconds("AUTOSAVE_SESSION_IDLE_TTL"),
			MaxSessions:   v.GetInt("AUTOSAVE_MAX_SESSIONS"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Keycloak: KeycloakConfig{
			URL:                v.GetString("KEYCLOAK_URL"),
			Realm:              v.GetString("KEYCLOAK_REALM"),
			ClientID:           v.GetString("KEYCLOAK_CLIENT_ID"),
			AllowInsecureToken: v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		MinIO: MinIOConfig{
			Endpoint:      v.GetString("MINIO_ENDPOINT"),
			AccessKey:     v.GetString("MINIO_ACCESS_KEY"),
			SecretKey:     v.GetString("MINIO_SECRET_KEY"),
			UseSSL:        v.GetBool("MINIO_USE_SSL"),
			Bucket:        v.GetString("MINIO_BUCKET"),
			Region:        v.GetString("MINIO_REGION"),
			PresignExpiry: seconds("MINIO_PRESIGN_EXPIRY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMongo:
		if c.MongoDB.URI == "" {
			return ErrMissingMongoURI
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown BLOG_STORE %q (want %s or %s)", c.Store.Backend, StoreMongo, StoreMemory)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
