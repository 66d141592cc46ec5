// Package watcher runs one fetch, diff, notify and persist cycle.
package watcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/centraltime"
	"github.com/JakeFAU/gp-agenda-watcher/internal/clock"
	"github.com/JakeFAU/gp-agenda-watcher/internal/document"
	"github.com/JakeFAU/gp-agenda-watcher/internal/metrics"
	"github.com/JakeFAU/gp-agenda-watcher/internal/notify"
	"github.com/JakeFAU/gp-agenda-watcher/internal/portal"
	"github.com/JakeFAU/gp-agenda-watcher/internal/state"
)

// Outcome classifies a finished run.
type Outcome string

// Run outcomes.
const (
	OutcomeInitialized  Outcome = "initialized"
	OutcomeNewDocuments Outcome = "new_documents"
	OutcomeNoChange     Outcome = "no_change"
	OutcomeFailed       Outcome = "failed"
)

// Result summarizes a run.
type Result struct {
	RunID        string              `json:"run_id"`
	Outcome      Outcome             `json:"outcome"`
	CheckedAt    time.Time           `json:"checked_at"`
	Total        int                 `json:"total"`
	NewDocuments []document.Document `json:"new_documents,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Config holds message wording and optional-message switches.
type Config struct {
	Title       string
	FolderLabel string
	ForceNotify bool
	DailyCheck  bool
	DailyHour   int
}

// Watcher wires the fetch, state and notify collaborators together.
type Watcher struct {
	fetcher  portal.Fetcher
	store    state.Store
	notifier *notify.BestEffort
	clock    clock.Clock
	ids      IDGenerator
	cfg      Config
	logger   *zap.Logger
}

// New builds a Watcher. A nil clock defaults to the system clock.
func New(
	fetcher portal.Fetcher,
	store state.Store,
	notifier *notify.BestEffort,
	clk clock.Clock,
	ids IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Watcher {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		clock:    clk,
		ids:      ids,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run performs one check. Failures send a best-effort error notification and
// are returned with the failed Result.
//
// Cancelling ctx aborts the fetch and the state load. Once the diff is known,
// notifications and the state save run to completion so an announced
// document is always recorded as seen.
func (w *Watcher) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	now := w.clock.Now()
	res := Result{CheckedAt: now}

	runID, err := w.ids.NewID()
	if err != nil {
		w.logger.Warn("run id unavailable", zap.Error(err))
	}
	res.RunID = runID
	logger := w.logger.With(zap.String("run_id", runID))

	if err := w.run(ctx, logger, &res); err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		logger.Error("watcher run failed", zap.Error(err))
		w.notifier.Send(context.WithoutCancel(ctx), notify.Message{
			Kind:      notify.KindError,
			Text:      errorText(w.cfg.Title, err, now),
			RunID:     runID,
			CheckedAt: now,
		})
		metrics.ObserveRun(string(res.Outcome), time.Since(start))
		return res, err
	}

	metrics.ObserveRun(string(res.Outcome), time.Since(start))
	metrics.ObserveNewDocuments(len(res.NewDocuments))
	metrics.SetTrackedDocuments(res.Total)
	metrics.SetLastRun(now)
	return res, nil
}

func (w *Watcher) run(ctx context.Context, logger *zap.Logger, res *Result) error {
	now := res.CheckedAt

	raw, err := w.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch documents: %w", err)
	}
	docs, err := document.Extract(raw)
	if err != nil {
		return err
	}
	current := document.IDSet(docs)
	res.Total = len(current)

	prev, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	next := state.New(current, now)
	ctx = context.WithoutCancel(ctx)

	if prev.FirstRun() {
		res.Outcome = OutcomeInitialized
		if err := w.store.Save(ctx, next); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		text := initializedText(w.cfg.Title, res.Total, now)
		logger.Info(text, zap.Int("total", res.Total))
		if w.cfg.ForceNotify {
			w.send(ctx, notify.KindInitialized, text, res)
		}
		return nil
	}

	added := document.Difference(current, prev.Seen())
	if len(added) > 0 {
		res.Outcome = OutcomeNewDocuments
		res.NewDocuments = document.Select(docs, added)
		w.send(ctx, notify.KindNewDocuments, newDocumentsText(w.cfg.FolderLabel, res.NewDocuments, now), res)
		logger.Info("new documents found",
			zap.Int("new", len(res.NewDocuments)),
			zap.Int("total", res.Total),
		)
		if err := w.store.Save(ctx, next); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		return nil
	}

	res.Outcome = OutcomeNoChange
	logger.Info("no new documents",
		zap.Int("total", res.Total),
		zap.String("checked", centraltime.Stamp(now)),
	)
	if w.cfg.ForceNotify {
		w.send(ctx, notify.KindHeartbeat, heartbeatText(w.cfg.Title, res.Total, now), res)
	}
	if w.cfg.DailyCheck && centraltime.Hour(now) == w.cfg.DailyHour {
		w.send(ctx, notify.KindDaily, dailyText(res.Total, now), res)
	}
	if err := w.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (w *Watcher) send(ctx context.Context, kind notify.Kind, text string, res *Result) {
	w.notifier.Send(ctx, notify.Message{
		Kind:      kind,
		Text:      text,
		RunID:     res.RunID,
		CheckedAt: res.CheckedAt,
		Documents: res.NewDocuments,
	})
}
