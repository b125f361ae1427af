package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the settings of the server and of the news ingest tool.
type Config struct {
	HTTP     HTTPConfig     `json:"http"`
	Store    StoreConfig    `json:"store"`
	Auth     AuthConfig     `json:"auth"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
	Download DownloadConfig `json:"download"`
	Feedback FeedbackConfig `json:"feedback"`
	Newsfeed NewsfeedConfig `json:"newsfeed"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

// Store backends.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

type StoreConfig struct {
	Backend          string `json:"backend"`
	PostgresURL      string `json:"postgres_url"`
	FirestoreProject string `json:"firestore_project"`
}

type AuthConfig struct {
	JWTSecret         string `json:"jwt_secret"`
	TokenTTLMinutes   int    `json:"token_ttl_minutes"`
	MinPasswordLength int    `json:"min_password_length"`
}

// RedisConfig is optional; an empty Addr keeps token revocations in memory.
type RedisConfig struct {
	Addr string `json:"addr"`
}

// RabbitMQConfig is optional; an empty URL uses in-process queues.
type RabbitMQConfig struct {
	URL           string `json:"url"`
	DownloadQueue string `json:"download_queue"`
	NewsfeedQueue string `json:"newsfeed_queue"`
}

type DownloadConfig struct {
	Dir     string `json:"dir"`
	Workers int    `json:"workers"`
}

type FeedbackConfig struct {
	Categories []string `json:"categories"`
}

type NewsfeedConfig struct {
	PollInterval int    `json:"poll_interval"`
	Workers      int    `json:"workers"`
	Feeds        []Feed `json:"feeds"`
}

// Feed binds an RSS/Atom URL to the company whose news it fills.
type Feed struct {
	CompanyID string `json:"company_id"`
	URL       string `json:"url"`
}

// DevJWTSecret signs tokens in local development. Only the memory backend
// accepts it.
const DevJWTSecret = "dev-secret-change-me"

// Default returns a config usable for local development.
func Default() *Config {
	return &Config{
		HTTP:  HTTPConfig{Addr: ":8080"},
		Store: StoreConfig{Backend: BackendMemory},
		Auth: AuthConfig{
			JWTSecret:       DevJWTSecret,
			TokenTTLMinutes: 24 * 60,
		},
		RabbitMQ: RabbitMQConfig{
			DownloadQueue: "report_downloads",
			NewsfeedQueue: "newsfeed",
		},
		Download: DownloadConfig{Dir: "downloads", Workers: 2},
		Feedback: FeedbackConfig{Categories: []string{"Sustentabilidade"}},
		Newsfeed: NewsfeedConfig{PollInterval: 15, Workers: 3},
	}
}

// Validate checks the values that would otherwise fail late at runtime.
func (cfg *Config) Validate() error {
	if cfg.HTTP.Addr == "" {
		return errors.New("http addr is required")
	}
	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.Store.PostgresURL == "" {
			return errors.New("postgres backend requires store.postgres_url")
		}
	case BackendFirestore:
		if cfg.Store.FirestoreProject == "" {
			return errors.New("firestore backend requires store.firestore_project")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth jwt_secret is required")
	}
	if cfg.Auth.JWTSecret == DevJWTSecret && cfg.Store.Backend != BackendMemory {
		return fmt.Errorf("auth jwt_secret must be set for the %s backend", cfg.Store.Backend)
	}
	if cfg.Auth.TokenTTLMinutes < 1 {
		return errors.New("auth token ttl must be ≥ 1 minute")
	}
	if cfg.Auth.MinPasswordLength < 0 {
		return errors.New("auth min_password_length must not be negative")
	}
	if cfg.Download.Dir == "" {
		return errors.New("download dir is required")
	}
	if cfg.Download.Workers < 1 {
		return errors.New("download workers must be ≥ 1")
	}
	if len(cfg.Feedback.Categories) == 0 {
		return errors.New("at least one feedback category is required")
	}
	for _, c := range cfg.Feedback.Categories {
		if strings.TrimSpace(c) == "" {
			return errors.New("feedback categories must not be blank")
		}
	}
	if cfg.RabbitMQ.DownloadQueue == "" || cfg.RabbitMQ.NewsfeedQueue == "" {
		return errors.New("rabbitmq queue names are required")
	}
	if cfg.Newsfeed.PollInterval < 5 {
		return errors.New("newsfeed poll interval must be ≥ 5 minutes")
	}
	if cfg.Newsfeed.Workers < 1 {
		return errors.New("newsfeed workers must be ≥ 1")
	}
	for _, f := range cfg.Newsfeed.Feeds {
		if strings.TrimSpace(f.CompanyID) == "" {
			return fmt.Errorf("feed %s has no company_id", f.URL)
		}
		if _, err := url.ParseRequestURI(f.URL); err != nil {
			return fmt.Errorf("invalid feed URL: %s", f.URL)
		}
	}
	return nil
}

// LoadConfig reads the JSON file at path on top of the defaults. A missing
// file is not an error when path is empty.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads .env (if present), the JSON file, then the environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides file values with non-empty environment variables.
func (cfg *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.HTTP.Addr, "STAKEVOICE_ADDR")
	set(&cfg.Store.Backend, "STAKEVOICE_STORE")
	set(&cfg.Store.PostgresURL, "DATABASE_URL")
	set(&cfg.Store.FirestoreProject, "FIRESTORE_PROJECT")
	set(&cfg.Auth.JWTSecret, "JWT_SECRET")
	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	set(&cfg.Download.Dir, "DOWNLOAD_DIR")
}
