// Package pubsub publishes watcher messages as JSON events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/gp-agenda-watcher/internal/document"
	"github.com/JakeFAU/gp-agenda-watcher/internal/notify"
)

// Config names the topic that receives watcher events.
type Config struct {
	ProjectID string
	TopicID   string
}

// Event is the JSON body of every published message.
type Event struct {
	Kind      string              `json:"kind"`
	RunID     string              `json:"run_id"`
	CheckedAt time.Time           `json:"checked_at"`
	Text      string              `json:"text"`
	Documents []document.Document `json:"documents"`
}

// Publisher implements notify.Notifier on top of a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New creates a Pub/Sub client using Application Default Credentials.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return NewWithClient(client, cfg.TopicID), nil
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(client *pubsub.Client, topicID string) *Publisher {
	return &Publisher{client: client, topic: client.Topic(topicID)}
}

// Notify publishes msg and waits for the server acknowledgement.
func (p *Publisher) Notify(ctx context.Context, msg notify.Message) error {
	docs := msg.Documents
	if docs == nil {
		docs = []document.Document{}
	}
	data, err := json.Marshal(Event{
		Kind:      string(msg.Kind),
		RunID:     msg.RunID,
		CheckedAt: msg.CheckedAt.UTC(),
		Text:      msg.Text,
		Documents: docs,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":   string(msg.Kind),
			"run_id": msg.RunID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s event: %w", msg.Kind, err)
	}
	return nil
}

// Close flushes pending publishes and closes the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
