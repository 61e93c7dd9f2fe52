// Package server implements the model service and exposes it over HTTP and
// gRPC.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/modelbase/internal/cache"
	"github.com/alfredjeanlab/modelbase/internal/events"
	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/schema"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// DefaultModelCacheSize is the number of model schemes kept in memory when
// Options leaves it unset.
const DefaultModelCacheSize = 256

// Options tunes a Server.
type Options struct {
	// StrictRequired makes a missing required field invalidate a document.
	StrictRequired bool
	// ModelCacheSize bounds the model cache. Zero means the default and a
	// negative size disables caching.
	ModelCacheSize int
	// ModelCacheTTL expires cached models. Zero keeps them until a local
	// write or a relayed event invalidates them; replicas that share a store
	// without an event bus need a TTL or no cache.
	ModelCacheTTL time.Duration
}

// Server implements the model and document operations on top of a store.
// The HTTP and gRPC surfaces are thin adapters over its methods.
type Server struct {
	store     store.Store
	publisher events.Publisher
	cache     *cache.ModelCache
	sseHub    *sseHub
	strict    bool

	// relayed is set while events reach the SSE hub through the event bus,
	// in which case local broadcasts are skipped.
	relayed atomic.Bool
}

// NewServer returns a new Server backed by the given store and publisher.
// A nil publisher publishes nothing.
func NewServer(s store.Store, p events.Publisher, opts Options) *Server {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	size := opts.ModelCacheSize
	if size == 0 {
		size = DefaultModelCacheSize
	}
	var mc *cache.ModelCache
	if size > 0 {
		var err error
		if mc, err = cache.NewModelCache(size, opts.ModelCacheTTL); err != nil {
			slog.Warn("model cache disabled", "size", size, "error", err)
		}
	}
	return &Server{
		store:     s,
		publisher: p,
		cache:     mc,
		sseHub:    newSSEHub(sseRingBufferSize),
		strict:    opts.StrictRequired,
	}
}

// recordAndPublish persists an event to the store, publishes it to NATS and
// fans it out to SSE clients. All three are best-effort; failures are logged
// but do not fail the caller.
func (s *Server) recordAndPublish(ctx context.Context, topic, modelName, documentID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "model", modelName, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:      topic,
		Model:      modelName,
		DocumentID: documentID,
		Actor:      ActorFromContext(ctx),
		Payload:    payload,
	}); err != nil {
		slog.Warn("failed to record event", "topic", topic, "model", modelName, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "model", modelName, "error", err)
	}
	if !s.relayed.Load() {
		s.sseHub.broadcast(topic, payload)
	}
}

// RelayEvents subscribes to every topic on the event bus and feeds the
// messages to SSE clients, so that clients of one replica see writes made
// through any replica. Local broadcasts stop until ctx is done or the
// subscription closes.
func (s *Server) RelayEvents(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicAll, err)
	}
	s.relayed.Store(true)
	go func() {
		defer s.relayed.Store(false)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.invalidateFromEvent(msg.Topic, msg.Data)
				s.sseHub.broadcast(msg.Topic, msg.Data)
			}
		}
	}()
	return nil
}

// invalidateFromEvent drops cached models that a bus event says have changed.
// Events from other replicas sharing the store arrive here too. A payload
// that cannot be read empties the whole cache.
func (s *Server) invalidateFromEvent(topic string, data []byte) {
	var name string
	switch topic {
	case events.TopicModelCreated, events.TopicModelUpdated:
		var ev struct {
			Model struct {
				Definition struct {
					ModelName string `json:"modelName"`
				} `json:"definition"`
			} `json:"model"`
		}
		if err := json.Unmarshal(data, &ev); err == nil {
			name = ev.Model.Definition.ModelName
		}
	case events.TopicModelDeleted:
		var ev events.ModelDeleted
		if err := json.Unmarshal(data, &ev); err == nil {
			name = ev.ModelName
		}
	case events.TopicImportCompleted:
	default:
		return
	}
	if name == "" {
		s.cache.Purge()
		return
	}
	s.cache.Invalidate(name)
}

// validate checks doc against def in the configured mode.
func (s *Server) validate(def *model.ModelDefinition, doc *jsonvalue.Object) model.ValidationResult {
	if s.strict {
		return schema.ValidateStrict(def, doc)
	}
	return schema.Validate(def, doc)
}

type actorKey struct{}

// WithActor returns a context carrying the name of whoever made the request.
// It ends up on recorded events.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, if any.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
