package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "132", cfg.Portal.FolderID)
	assert.Equal(t, 100, cfg.Portal.RowsPerPage)
	assert.Contains(t, cfg.Portal.Endpoint, "Document_AjaxBinding")
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout())
	assert.Equal(t, 5, cfg.HTTP.MaxAttempts)
	assert.Equal(t, time.Second, cfg.HTTP.BackoffInitial())
	assert.Equal(t, 16*time.Second, cfg.HTTP.BackoffMax())
	assert.Equal(t, 19, cfg.Notify.DailyHour)
	assert.Equal(t, BackendFile, cfg.State.Backend)
	assert.Equal(t, "state.json", cfg.State.Path)
	assert.False(t, cfg.Notify.Force)
	assert.False(t, cfg.Notify.Daily)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
portal:
  folder_id: "200"
  rows_per_page: 25
http:
  timeout_seconds: 10
  max_attempts: 1
notify:
  webhook_url: "  https://discord.example/hook  "
  force: "yes"
  daily_hour: 7
state:
  backend: gcs
  gcs_bucket: watcher-state
  gcs_object: agendas/state.json
pubsub:
  project_id: civic
  topic_id: agendas
logging:
  development: true
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "200", cfg.Portal.FolderID)
	assert.Equal(t, "25", cfg.Portal.Form().Get("rowsPerPage"))
	assert.Equal(t, 1, cfg.HTTP.MaxAttempts)
	assert.Equal(t, "https://discord.example/hook", cfg.Notify.WebhookURL)
	assert.True(t, cfg.Notify.Force)
	assert.Equal(t, 7, cfg.Notify.DailyHour)
	assert.Equal(t, BackendGCS, cfg.State.Backend)
	assert.Equal(t, "watcher-state", cfg.State.GCSBucket)
	assert.Equal(t, "agendas", cfg.PubSub.TopicID)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/legacy")
	t.Setenv("FORCE_NOTIFY", "YES")
	t.Setenv("DAILY_CHECK", "1")
	t.Setenv("WATCHER_STATE_PATH", "/tmp/agendas-state.json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://discord.example/legacy", cfg.Notify.WebhookURL)
	assert.True(t, cfg.Notify.Force)
	assert.True(t, cfg.Notify.Daily)
	assert.Equal(t, "/tmp/agendas-state.json", cfg.State.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestParseFlag(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"1", "true", "TRUE", "yes", "YES", " yes "} {
		assert.True(t, ParseFlag(raw), "expected %q to be truthy", raw)
	}
	for _, raw := range []string{"", "0", "false", "True", "Yes", "on", "y"} {
		assert.False(t, ParseFlag(raw), "expected %q to be falsy", raw)
	}
}

func TestPortalForm(t *testing.T) {
	t.Parallel()

	form := PortalConfig{
		FolderID:           "132",
		RequestingModuleID: "75",
		RowsPerPage:        100,
		SortColumn:         "DisplayName",
	}.Form()

	want := map[string]string{
		"folderId":           "132",
		"getDocuments":       "1",
		"imageRepo":          "false",
		"renderMode":         "0",
		"loadSource":         "7",
		"pageNumber":         "1",
		"requestingModuleID": "75",
		"rowsPerPage":        "100",
		"searchString":       "",
		"sortColumn":         "DisplayName",
		"sortOrder":          "0",
	}
	require.Len(t, form, len(want))
	for key, value := range want {
		assert.Equal(t, value, form.Get(key), key)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid endpoint", func(c *Config) { c.Portal.Endpoint = "not a url" }, "portal.endpoint"},
		{"missing folder", func(c *Config) { c.Portal.FolderID = "" }, "portal.folder_id"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"invalid attempts", func(c *Config) { c.HTTP.MaxAttempts = 0 }, "http.max_attempts"},
		{"inverted backoff", func(c *Config) { c.HTTP.BackoffMaxMs = 10 }, "http.backoff_max_ms"},
		{"daily hour out of range", func(c *Config) { c.Notify.DailyHour = 24 }, "notify.daily_hour"},
		{"unknown backend", func(c *Config) { c.State.Backend = "s3" }, "state.backend"},
		{"file without path", func(c *Config) { c.State.Path = " " }, "state.path"},
		{"gcs without bucket", func(c *Config) { c.State.Backend = BackendGCS }, "state.gcs_bucket"},
		{"postgres without dsn", func(c *Config) { c.State.Backend = BackendPostgres }, "state.dsn"},
		{"pubsub half configured", func(c *Config) { c.PubSub.ProjectID = "civic" }, "pubsub.project_id"},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
