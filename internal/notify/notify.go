// Package notify delivers watcher messages to chat and event sinks.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/document"
	"github.com/JakeFAU/gp-agenda-watcher/internal/metrics"
)

// Kind identifies why a message was sent.
type Kind string

// Message kinds emitted by the watcher.
const (
	KindInitialized  Kind = "initialized"
	KindNewDocuments Kind = "new_documents"
	KindHeartbeat    Kind = "heartbeat"
	KindDaily        Kind = "daily"
	KindError        Kind = "error"
)

// Message is one outgoing notification.
type Message struct {
	Kind      Kind
	Text      string
	RunID     string
	CheckedAt time.Time
	Documents []document.Document
}

// ErrSkipped reports that a notifier is not configured and sent nothing.
var ErrSkipped = errors.New("notifier not configured")

// Notifier delivers a message to one destination.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier and joins their errors. It
// returns ErrSkipped only when no notifier delivered or failed.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	delivered := false
	for _, n := range m {
		if n == nil {
			continue
		}
		err := n.Notify(ctx, msg)
		switch {
		case err == nil:
			delivered = true
		case !errors.Is(err, ErrSkipped):
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 && !delivered {
		return ErrSkipped
	}
	return errors.Join(errs...)
}

// BestEffort sends messages without ever failing the caller. It is the only
// send path the watcher uses, for regular and error notifications alike.
type BestEffort struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewBestEffort wraps n. A nil notifier turns Send into a no-op.
func NewBestEffort(n Notifier, logger *zap.Logger) *BestEffort {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestEffort{notifier: n, logger: logger}
}

// Send delivers msg and reports whether it went through. Failures and panics
// are logged and swallowed.
func (b *BestEffort) Send(ctx context.Context, msg Message) (ok bool) {
	if b == nil || b.notifier == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notifier panicked",
				zap.String("kind", string(msg.Kind)),
				zap.String("run_id", msg.RunID),
				zap.Any("panic", r),
			)
			metrics.ObserveNotification(string(msg.Kind), "error")
			ok = false
		}
	}()
	err := b.notifier.Notify(ctx, msg)
	if errors.Is(err, ErrSkipped) {
		b.logger.Debug("notification skipped",
			zap.String("kind", string(msg.Kind)),
			zap.String("run_id", msg.RunID),
		)
		metrics.ObserveNotification(string(msg.Kind), "skipped")
		return false
	}
	if err != nil {
		b.logger.Warn("notification failed",
			zap.String("kind", string(msg.Kind)),
			zap.String("run_id", msg.RunID),
			zap.Error(err),
		)
		metrics.ObserveNotification(string(msg.Kind), "error")
		return false
	}
	metrics.ObserveNotification(string(msg.Kind), "sent")
	return true
}
