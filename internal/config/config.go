// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// State backends understood by the app container.
const (
	BackendFile     = "file"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

// Config captures all watcher configuration knobs loaded via Viper.
type Config struct {
	Portal   PortalConfig   `mapstructure:"portal"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	State    StateConfig    `mapstructure:"state"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PortalConfig describes the CivicPlus document center endpoint and folder query.
type PortalConfig struct {
	Endpoint           string `mapstructure:"endpoint"`
	Origin             string `mapstructure:"origin"`
	Referer            string `mapstructure:"referer"`
	UserAgent          string `mapstructure:"user_agent"`
	FolderID           string `mapstructure:"folder_id"`
	RequestingModuleID string `mapstructure:"requesting_module_id"`
	RowsPerPage        int    `mapstructure:"rows_per_page"`
	SortColumn         string `mapstructure:"sort_column"`
}

// HTTPConfig configures request timeouts and fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// NotifyConfig controls the chat webhook and optional messages.
type NotifyConfig struct {
	WebhookURL  string `mapstructure:"webhook_url"`
	Title       string `mapstructure:"title"`
	FolderLabel string `mapstructure:"folder_label"`
	DailyHour   int    `mapstructure:"daily_hour"`

	// Force and Daily accept the legacy truthy spellings, so they are parsed by hand.
	Force bool `mapstructure:"-"`
	Daily bool `mapstructure:"-"`
}

// StateConfig selects where the seen-ID state lives.
type StateConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	Name      string `mapstructure:"name"`
}

// PubSubConfig holds the optional topic that receives watcher events.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ScheduleConfig drives the long-running watch mode.
type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	Timezone   string `mapstructure:"timezone"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// ServerConfig controls the watch-mode HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Notify.WebhookURL = strings.TrimSpace(cfg.Notify.WebhookURL)
	cfg.Notify.Force = ParseFlag(v.GetString("notify.force"))
	cfg.Notify.Daily = ParseFlag(v.GetString("notify.daily"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.endpoint",
		"https://www.cityofgalenapark-tx.gov/Admin/DocumentCenter/Home/Document_AjaxBinding?renderMode=0&loadSource=7")
	v.SetDefault("portal.origin", "https://www.cityofgalenapark-tx.gov")
	v.SetDefault("portal.referer", "https://www.cityofgalenapark-tx.gov/DocumentCenter")
	v.SetDefault("portal.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("portal.folder_id", "132")
	v.SetDefault("portal.requesting_module_id", "75")
	v.SetDefault("portal.rows_per_page", 100)
	v.SetDefault("portal.sort_column", "DisplayName")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 5)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 16000)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.force", "")
	v.SetDefault("notify.daily", "")
	v.SetDefault("notify.daily_hour", 19)
	v.SetDefault("notify.title", "GP Agendas 2026")
	v.SetDefault("notify.folder_label", "Galena Park → Agendas → 2026")
	v.SetDefault("state.backend", BackendFile)
	v.SetDefault("state.path", "state.json")
	v.SetDefault("state.gcs_object", "gp-agendas-2026/state.json")
	v.SetDefault("state.table", "watcher_state")
	v.SetDefault("state.name", "gp-agendas-2026")
	v.SetDefault("schedule.cron", "0 * * * *")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.run_on_start", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// bindLegacyEnv keeps the environment names used by the original scheduled workflow.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"notify.webhook_url": {"WATCHER_NOTIFY_WEBHOOK_URL", "DISCORD_WEBHOOK_URL"},
		"notify.force":       {"WATCHER_NOTIFY_FORCE", "FORCE_NOTIFY"},
		"notify.daily":       {"WATCHER_NOTIFY_DAILY", "DAILY_CHECK"},
		"server.port":        {"WATCHER_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// ParseFlag reports whether raw is one of the accepted truthy spellings.
func ParseFlag(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	default:
		return false
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Portal.Endpoint); err != nil {
		return fmt.Errorf("portal.endpoint must be an absolute URL: %w", err)
	}
	if c.Portal.FolderID == "" {
		return fmt.Errorf("portal.folder_id is required")
	}
	if c.Portal.RowsPerPage <= 0 {
		return fmt.Errorf("portal.rows_per_page must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffInitialMs < 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_max_ms must be >= http.backoff_initial_ms >= 0")
	}
	if c.Notify.DailyHour < 0 || c.Notify.DailyHour > 23 {
		return fmt.Errorf("notify.daily_hour must be between 0 and 23")
	}
	if err := c.State.validate(); err != nil {
		return err
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set together")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

func (s StateConfig) validate() error {
	switch s.Backend {
	case BackendFile:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("state.path is required for the file backend")
		}
	case BackendGCS:
		if s.GCSBucket == "" || s.GCSObject == "" {
			return fmt.Errorf("state.gcs_bucket and state.gcs_object are required for the gcs backend")
		}
	case BackendPostgres:
		if s.DSN == "" {
			return fmt.Errorf("state.dsn is required for the postgres backend")
		}
		if s.Name == "" {
			return fmt.Errorf("state.name is required for the postgres backend")
		}
	default:
		return fmt.Errorf("state.backend %q is not one of file, gcs, postgres", s.Backend)
	}
	return nil
}

// Form returns the fixed folder query posted to the document center.
func (p PortalConfig) Form() url.Values {
	form := url.Values{}
	form.Set("folderId", p.FolderID)
	form.Set("getDocuments", "1")
	form.Set("imageRepo", "false")
	form.Set("renderMode", "0")
	form.Set("loadSource", "7")
	form.Set("pageNumber", "1")
	form.Set("requestingModuleID", p.RequestingModuleID)
	form.Set("rowsPerPage", strconv.Itoa(p.RowsPerPage))
	form.Set("searchString", "")
	form.Set("sortColumn", p.SortColumn)
	form.Set("sortOrder", "0")
	return form
}

// Timeout converts the HTTP timeout into a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial is the delay after the first failed fetch attempt.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the delay between fetch attempts.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}
