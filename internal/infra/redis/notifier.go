package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"studyhub-contest-service/internal/app"
)

// EventsChannel is the pub/sub channel the notification consumers subscribe
// to.
const EventsChannel = "contest:events"

// Notifier publishes lifecycle events to Redis pub/sub. Delivery is
// fire-and-forget: failures are logged and never surfaced to the caller.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Publish(ctx context.Context, event app.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("notifier: marshal event", "type", event.Type, "error", err)
		return
	}
	if err := n.client.Publish(ctx, EventsChannel, payload).Err(); err != nil {
		slog.Warn("notifier: publish failed", "type", event.Type, "error", err)
	}
}
