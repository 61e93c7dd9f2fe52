package events

import (
	"context"
	"log/slog"
)

// NoopPublisher drops events. With a Logger set, each dropped topic is
// logged at debug level so a server without NATS still shows its traffic.
type NoopPublisher struct {
	Logger *slog.Logger
}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, _ any) error {
	if n != nil && n.Logger != nil {
		n.Logger.DebugContext(ctx, "event dropped", "topic", topic)
	}
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
