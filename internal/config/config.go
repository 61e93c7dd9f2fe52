package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Store          string `toml:"store"`           // MODELBASE_STORE (default "postgres")
	DatabaseURL    string `toml:"database_url"`    // MODELBASE_DATABASE_URL (required for postgres)
	DatabaseDriver string `toml:"database_driver"` // MODELBASE_DATABASE_DRIVER ("postgres" or "pgx")
	GRPCAddr       string `toml:"grpc_addr"`       // MODELBASE_GRPC_ADDR (default ":9090")
	HTTPAddr       string `toml:"http_addr"`       // MODELBASE_HTTP_ADDR (default ":8080", PORT as fallback)
	NATSURL        string `toml:"nats_url"`        // MODELBASE_NATS_URL (optional, empty = no events)
	AuthToken      string `toml:"auth_token"`      // MODELBASE_AUTH_TOKEN (optional, empty = auth disabled)

	StrictRequired bool `toml:"strict_required"`  // MODELBASE_STRICT_REQUIRED
	ModelCacheSize int  `toml:"model_cache_size"` // MODELBASE_MODEL_CACHE_SIZE (0 = default, <0 = off)

	// Replicas sharing a database without NATS should set a TTL.
	ModelCacheTTL time.Duration `toml:"-"` // MODELBASE_MODEL_CACHE_TTL (0 = no expiry)

	LogLevel string `toml:"log_level"` // MODELBASE_LOG_LEVEL (default "info")
	LogFile  string `toml:"log_file"`  // MODELBASE_LOG_FILE (optional, rotated)

	// Sync settings
	SyncInterval   time.Duration `toml:"-"`                // MODELBASE_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        `toml:"sync_s3_bucket"`   // MODELBASE_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        `toml:"sync_s3_endpoint"` // MODELBASE_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        `toml:"sync_s3_region"`   // MODELBASE_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        `toml:"sync_s3_key"`      // MODELBASE_SYNC_S3_KEY (default "modelbase/backup.jsonl")
	SyncGitRepo    string        `toml:"sync_git_repo"`    // MODELBASE_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        `toml:"sync_git_file"`    // MODELBASE_SYNC_GIT_FILE (default "modelbase.jsonl")
	SyncGitBranch  string        `toml:"sync_git_branch"`  // MODELBASE_SYNC_GIT_BRANCH (default "main")
}

// file mirrors Config for the TOML layer. The interval is a string there.
type file struct {
	Config
	SyncInterval  string `toml:"sync_interval"`
	ModelCacheTTL string `toml:"model_cache_ttl"`
}

func defaults() *Config {
	return &Config{
		Store:          StorePostgres,
		DatabaseDriver: "postgres",
		GRPCAddr:       ":9090",
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		SyncInterval:   3 * time.Minute,
		SyncS3Region:   "us-east-1",
		SyncS3Key:      "modelbase/backup.jsonl",
		SyncGitFile:    "modelbase.jsonl",
		SyncGitBranch:  "main",
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// MODELBASE_CONFIG, then MODELBASE_* environment variables.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("MODELBASE_CONFIG"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.loadEnv(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	f := file{Config: *c}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	*c = f.Config
	if f.SyncInterval != "" {
		d, err := time.ParseDuration(f.SyncInterval)
		if err != nil {
			return fmt.Errorf("config file %s: sync_interval: %w", path, err)
		}
		c.SyncInterval = d
	}
	if f.ModelCacheTTL != "" {
		d, err := time.ParseDuration(f.ModelCacheTTL)
		if err != nil {
			return fmt.Errorf("config file %s: model_cache_ttl: %w", path, err)
		}
		c.ModelCacheTTL = d
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.Store, "MODELBASE_STORE")
	setString(&c.DatabaseURL, "MODELBASE_DATABASE_URL")
	setString(&c.DatabaseDriver, "MODELBASE_DATABASE_DRIVER")
	setString(&c.GRPCAddr, "MODELBASE_GRPC_ADDR")
	if v := os.Getenv("MODELBASE_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	} else if port := os.Getenv("PORT"); port != "" {
		c.HTTPAddr = ":" + port
	}
	setString(&c.NATSURL, "MODELBASE_NATS_URL")
	setString(&c.AuthToken, "MODELBASE_AUTH_TOKEN")
	setString(&c.LogLevel, "MODELBASE_LOG_LEVEL")
	setString(&c.LogFile, "MODELBASE_LOG_FILE")
	setString(&c.SyncS3Bucket, "MODELBASE_SYNC_S3_BUCKET")
	setString(&c.SyncS3Endpoint, "MODELBASE_SYNC_S3_ENDPOINT")
	setString(&c.SyncS3Region, "MODELBASE_SYNC_S3_REGION")
	setString(&c.SyncS3Key, "MODELBASE_SYNC_S3_KEY")
	setString(&c.SyncGitRepo, "MODELBASE_SYNC_GIT_REPO")
	setString(&c.SyncGitFile, "MODELBASE_SYNC_GIT_FILE")
	setString(&c.SyncGitBranch, "MODELBASE_SYNC_GIT_BRANCH")

	if v := os.Getenv("MODELBASE_STRICT_REQUIRED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MODELBASE_STRICT_REQUIRED: %w", err)
		}
		c.StrictRequired = b
	}
	if v := os.Getenv("MODELBASE_MODEL_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODELBASE_MODEL_CACHE_SIZE: %w", err)
		}
		c.ModelCacheSize = n
	}
	if v := os.Getenv("MODELBASE_MODEL_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MODELBASE_MODEL_CACHE_TTL: %w", err)
		}
		c.ModelCacheTTL = d
	}
	if v := os.Getenv("MODELBASE_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MODELBASE_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	if c.DatabaseURL == "" {
		c.DatabaseURL = legacyDatabaseURL()
	}
	return nil
}

// legacyDatabaseURL composes a URL from DB_USERNAME, DB_PASSWORD and
// DB_CONNECTION (host:port/dbname). It returns "" when DB_CONNECTION is unset.
func legacyDatabaseURL() string {
	conn := os.Getenv("DB_CONNECTION")
	if conn == "" {
		return ""
	}
	if strings.Contains(conn, "://") {
		return conn
	}
	u := &url.URL{Scheme: "postgres"}
	host, path, _ := strings.Cut(conn, "/")
	u.Host = host
	u.Path = "/" + path
	if user := os.Getenv("DB_USERNAME"); user != "" {
		if pass := os.Getenv("DB_PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("MODELBASE_DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want %q or %q)", c.Store, StorePostgres, StoreMemory)
	}
	switch c.DatabaseDriver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unknown database driver %q (want \"postgres\" or \"pgx\")", c.DatabaseDriver)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("MODELBASE_SYNC_INTERVAL must not be negative")
	}
	if c.ModelCacheTTL < 0 {
		return fmt.Errorf("MODELBASE_MODEL_CACHE_TTL must not be negative")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
