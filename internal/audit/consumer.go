package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/growmate-app/growmate/internal/events"
)

// Consumer listens on the AI request subject and persists one log row
// per event.
type Consumer struct {
	repo        *Repository
	consumerMgr *events.ConsumerManager
}

func NewConsumer(repo *Repository, consumerMgr *events.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, events.StreamEvents, "ai-request-persister", events.SubjectAIRequest)
	if err != nil {
		return err
	}

	slog.Info("AI request log consumer started", "consumer", "ai-request-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(events.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("request log consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event events.AIRequestEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("request log consumer: unmarshaling event", "error", err)
		_ = msg.Nak()
		return
	}

	log := logFromEvent(event)
	if err := c.repo.Insert(ctx, log); err != nil {
		slog.Error("request log consumer: persisting log", "error", err, "mode", event.Mode)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("request log consumer: persisted event",
		"mode", event.Mode,
		"status", event.Status,
		"request_id", event.RequestID,
	)
}

// logFromEvent converts a wire event into a database row. Anonymous
// requests carry no user ID.
func logFromEvent(event events.AIRequestEvent) *AIRequestLog {
	log := &AIRequestLog{
		ID:        uuid.New(),
		RequestID: event.RequestID,
		Anonymous: event.Anonymous,
		Mode:      event.Mode,
		Model:     event.Model,
		Status:    event.Status,
		LatencyMs: event.LatencyMs,
		Detail:    event.Detail,
		CreatedAt: event.Timestamp,
	}
	if !event.Anonymous && event.UserID != uuid.Nil {
		userID := event.UserID
		log.UserID = &userID
	}
	return log
}
