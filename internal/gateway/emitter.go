package gateway

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/domain"
)

// Requester sends a request to the customers microservice and returns the
// raw JSON reply.
type Requester interface {
	Send(ctx context.Context, pattern string, data any) (json.RawMessage, error)
}

// Emitter publishes an event without waiting for a reply.
type Emitter interface {
	Emit(ctx context.Context, pattern string, data any) error
}

// ChannelPublisher publishes a JSON payload on a pub/sub channel.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// PubSubEmitter emits events over Redis pub/sub, one channel per pattern.
type PubSubEmitter struct {
	pub ChannelPublisher
}

// NewPubSubEmitter creates a PubSubEmitter.
func NewPubSubEmitter(pub ChannelPublisher) *PubSubEmitter {
	return &PubSubEmitter{pub: pub}
}

// Emit wraps data in an envelope and publishes it on the pattern channel.
func (e *PubSubEmitter) Emit(ctx context.Context, pattern string, data any) error {
	env, err := domain.NewEnvelope(pattern, data, "")
	if err != nil {
		return err
	}
	return e.pub.Publish(ctx, pattern, env)
}
