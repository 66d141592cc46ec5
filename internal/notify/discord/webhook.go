// Package discord posts watcher messages to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/gp-agenda-watcher/internal/notify"
)

// MaxContentLength is Discord's limit for the content field of one message.
const MaxContentLength = 2000

// Discord allows five webhook executions per two seconds.
const (
	defaultRate  = rate.Limit(2.5)
	defaultBurst = 5
)

// Config configures the webhook notifier.
type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Limiter paces posts. Nil uses the Discord webhook default.
	Limiter *rate.Limiter
}

// Webhook implements notify.Notifier for Discord incoming webhooks.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type payload struct {
	Content string `json:"content"`
}

// New builds a webhook notifier. An empty URL yields a notifier that only logs.
func New(cfg Config, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(defaultRate, defaultBurst)
	}
	return &Webhook{
		url:     strings.TrimSpace(cfg.URL),
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// Notify posts msg.Text, split into as many messages as the length limit needs.
func (w *Webhook) Notify(ctx context.Context, msg notify.Message) error {
	if !w.Enabled() {
		w.logger.Info("webhook not configured; skipping notify", zap.String("kind", string(msg.Kind)))
		return notify.ErrSkipped
	}
	for i, chunk := range Split(msg.Text, MaxContentLength) {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		if err := w.post(ctx, chunk); err != nil {
			return fmt.Errorf("post %s message part %d: %w", msg.Kind, i+1, err)
		}
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, content string) error {
	body, err := json.Marshal(payload{Content: content})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully drained below

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Split breaks text into chunks of at most limit runes, preferring line
// boundaries. Lines longer than limit are cut hard.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if curLen+lineLen <= limit {
			cur.WriteString(line)
			curLen += lineLen
			continue
		}
		flush()
		for lineLen > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			lineLen -= limit
		}
		cur.WriteString(line)
		curLen = lineLen
	}
	flush()
	for i, c := range chunks {
		chunks[i] = strings.TrimRight(c, "\n")
	}
	return chunks
}
