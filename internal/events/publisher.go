package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishAIRequest publishes an AI gateway request event for audit persistence.
func (p *Publisher) PublishAIRequest(ctx context.Context, event AIRequestEvent) error {
	return p.publish(ctx, SubjectAIRequest, event)
}

// PublishCareTask publishes a care task lifecycle event.
func (p *Publisher) PublishCareTask(ctx context.Context, event CareTaskEvent) error {
	return p.publish(ctx, SubjectCareTask, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
