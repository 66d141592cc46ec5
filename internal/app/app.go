// Package app initializes and holds long-lived services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/clock"
	"github.com/JakeFAU/gp-agenda-watcher/internal/config"
	"github.com/JakeFAU/gp-agenda-watcher/internal/metrics"
	"github.com/JakeFAU/gp-agenda-watcher/internal/notify"
	"github.com/JakeFAU/gp-agenda-watcher/internal/notify/discord"
	pubsubnotify "github.com/JakeFAU/gp-agenda-watcher/internal/notify/pubsub"
	"github.com/JakeFAU/gp-agenda-watcher/internal/portal"
	"github.com/JakeFAU/gp-agenda-watcher/internal/runid"
	"github.com/JakeFAU/gp-agenda-watcher/internal/state"
	filestate "github.com/JakeFAU/gp-agenda-watcher/internal/state/file"
	gcsstate "github.com/JakeFAU/gp-agenda-watcher/internal/state/gcs"
	pgstate "github.com/JakeFAU/gp-agenda-watcher/internal/state/postgres"
	"github.com/JakeFAU/gp-agenda-watcher/internal/watcher"
)

// App holds the shared services for one process.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   state.Store
	watcher *watcher.Watcher
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// New builds every service described by cfg. It fails fast when a configured
// backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}

	store, err := a.buildStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := portal.NewClient(
		portal.NewCollyFetcher(portal.Config{
			Endpoint:  cfg.Portal.Endpoint,
			Origin:    cfg.Portal.Origin,
			Referer:   cfg.Portal.Referer,
			UserAgent: cfg.Portal.UserAgent,
			Form:      cfg.Portal.Form(),
			Timeout:   cfg.HTTP.Timeout(),
		}),
		portal.BackoffPolicy{
			MaxAttempts: cfg.HTTP.MaxAttempts,
			Initial:     cfg.HTTP.BackoffInitial(),
			Max:         cfg.HTTP.BackoffMax(),
		},
		logger.Named("portal"),
	)

	a.watcher = watcher.New(
		fetcher,
		store,
		notify.NewBestEffort(notifier, logger.Named("notify")),
		clock.System{},
		runid.New(),
		watcher.Config{
			Title:       cfg.Notify.Title,
			FolderLabel: cfg.Notify.FolderLabel,
			ForceNotify: cfg.Notify.Force,
			DailyCheck:  cfg.Notify.Daily,
			DailyHour:   cfg.Notify.DailyHour,
		},
		logger.Named("watcher"),
	)
	return a, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Store exposes the configured state backend.
func (a *App) Store() state.Store {
	return a.store
}

// Watcher returns the orchestrator wired to the configured collaborators.
func (a *App) Watcher() *watcher.Watcher {
	return a.watcher
}

func (a *App) buildStore(ctx context.Context) (state.Store, error) {
	sc := a.cfg.State
	switch sc.Backend {
	case config.BackendFile:
		s, err := filestate.New(filestate.Config{Path: sc.Path})
		if err != nil {
			return nil, fmt.Errorf("init file state: %w", err)
		}
		a.logger.Info("using file state", zap.String("path", s.Path()))
		return s, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		s, err := gcsstate.New(client, gcsstate.Config{Bucket: sc.GCSBucket, Object: sc.GCSObject})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs state: %w", err)
		}
		a.addCloser("gcs state", s.Close)
		a.logger.Info("using gcs state", zap.String("uri", s.URI()))
		return s, nil
	case config.BackendPostgres:
		s, err := pgstate.New(ctx, pgstate.Config{
			DSN:             sc.DSN,
			Table:           sc.Table,
			Name:            sc.Name,
			MaxConns:        2,
			MaxConnLifetime: 30 * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres state: %w", err)
		}
		a.addCloser("postgres state", s.Close)
		a.logger.Info("using postgres state", zap.String("table", sc.Table), zap.String("name", sc.Name))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend: %s", sc.Backend)
	}
}

func (a *App) buildNotifier(ctx context.Context) (notify.Notifier, error) {
	hook := discord.New(discord.Config{
		URL:     a.cfg.Notify.WebhookURL,
		Timeout: a.cfg.HTTP.Timeout(),
	}, a.logger.Named("discord"))
	notifiers := notify.Multi{hook}

	if a.cfg.PubSub.ProjectID != "" && a.cfg.PubSub.TopicID != "" {
		pub, err := pubsubnotify.New(ctx, pubsubnotify.Config{
			ProjectID: a.cfg.PubSub.ProjectID,
			TopicID:   a.cfg.PubSub.TopicID,
		})
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.addCloser("pubsub notifier", pub.Close)
		a.logger.Info("publishing events to pubsub", zap.String("topic", a.cfg.PubSub.TopicID))
		notifiers = append(notifiers, pub)
	}
	return notifiers, nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Close releases backend clients in reverse order of creation and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	// Sync on stderr returns EINVAL on some platforms; nothing useful to do with it.
	_ = a.logger.Sync()
}
