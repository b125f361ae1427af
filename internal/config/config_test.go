package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"stakevoice/internal/config"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)
	return path
}

func TestLoadConfig_Success(t *testing.T) {
	json := `{
		"http": {"addr": ":9090"},
		"store": {"backend": "postgres", "postgres_url": "postgres://u:p@localhost:5432/stakevoice"},
		"feedback": {"categories": ["Sustentabilidade", "Governança"]},
		"newsfeed": {
			"poll_interval": 10,
			"feeds": [{"company_id": "acme", "url": "https://example.com/rss"}]
		}
	}`
	path := writeTempConfig(t, json)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, config.BackendPostgres, cfg.Store.Backend)
	require.Equal(t, []string{"Sustentabilidade", "Governança"}, cfg.Feedback.Categories)
	require.Equal(t, 10, cfg.Newsfeed.PollInterval)
	require.Equal(t, []config.Feed{{CompanyID: "acme", URL: "https://example.com/rss"}}, cfg.Newsfeed.Feeds)

	// untouched sections keep their defaults
	require.Equal(t, "downloads", cfg.Download.Dir)
	require.Equal(t, 24*60, cfg.Auth.TokenTTLMinutes)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := config.LoadConfig("/nonexistent/config.json")
	require.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeTempConfig(t, `{ invalid json }`)
	_, err := config.LoadConfig(path)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STAKEVOICE_ADDR": ":7000",
		"DATABASE_URL":    "postgres://x",
		"JWT_SECRET":      "s3cret",
		"REDIS_ADDR":      "localhost:6379",
	}
	cfg := config.Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	require.Equal(t, ":7000", cfg.HTTP.Addr)
	require.Equal(t, "postgres://x", cfg.Store.PostgresURL)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, config.BackendMemory, cfg.Store.Backend)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"postgres without url", func(c *config.Config) { c.Store.Backend = config.BackendPostgres }, "postgres_url"},
		{"firestore without project", func(c *config.Config) { c.Store.Backend = config.BackendFirestore }, "firestore_project"},
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "mongo" }, "unknown store backend"},
		{"no categories", func(c *config.Config) { c.Feedback.Categories = nil }, "feedback category"},
		{"blank category", func(c *config.Config) { c.Feedback.Categories = []string{" "} }, "must not be blank"},
		{"short interval", func(c *config.Config) { c.Newsfeed.PollInterval = 1 }, "poll interval must be ≥ 5"},
		{"bad feed url", func(c *config.Config) {
			c.Newsfeed.Feeds = []config.Feed{{CompanyID: "acme", URL: "not-a-url"}}
		}, "invalid feed URL"},
		{"feed without company", func(c *config.Config) {
			c.Newsfeed.Feeds = []config.Feed{{URL: "https://example.com/rss"}}
		}, "no company_id"},
		{"no workers", func(c *config.Config) { c.Download.Workers = 0 }, "download workers"},
		{"no feed workers", func(c *config.Config) { c.Newsfeed.Workers = 0 }, "newsfeed workers"},
		{"no queue name", func(c *config.Config) { c.RabbitMQ.DownloadQueue = "" }, "queue names"},
		{"dev secret on postgres", func(c *config.Config) {
			c.Store.Backend = config.BackendPostgres
			c.Store.PostgresURL = "postgres://localhost/stakevoice"
		}, "jwt_secret must be set"},
		{"dev secret on firestore", func(c *config.Config) {
			c.Store.Backend = config.BackendFirestore
			c.Store.FirestoreProject = "demo"
		}, "jwt_secret must be set"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_DevSecretOnMemory(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, config.DevJWTSecret, cfg.Auth.JWTSecret)
	require.NoError(t, cfg.Validate())
}

func TestExampleConfig(t *testing.T) {
	cfg, err := config.LoadConfig("../../config.example.json")
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "jwt_secret")

	cfg.ApplyEnv(func(k string) string {
		if k == "JWT_SECRET" {
			return "s3cret"
		}
		return ""
	})
	require.NoError(t, cfg.Validate())
	require.Equal(t, config.BackendPostgres, cfg.Store.Backend)
	require.Len(t, cfg.Newsfeed.Feeds, 1)
}
