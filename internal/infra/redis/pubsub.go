package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/microgate/internal/core/transport"
)

// MessageHandler handles one pub/sub message. The transport context carries
// the channel name as its first argument.
type MessageHandler func(ctx context.Context, tc transport.Context, payload []byte)

// Listen subscribes to channels and hands every message to handle until ctx
// is cancelled. Pub/sub has no acknowledgement, so handle owns all failures.
func (c *Client) Listen(ctx context.Context, channels []string, handle MessageHandler) error {
	if len(channels) == 0 {
		return nil
	}

	ps := c.rdb.Subscribe(ctx, channels...)
	defer ps.Close()

	// Wait for the subscription confirmation before consuming.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	dispatch(ctx, ps.Channel(), handle)
	return nil
}

func dispatch(ctx context.Context, msgs <-chan *redis.Message, handle MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(ctx, transport.PubSub(msg.Channel), []byte(msg.Payload))
		}
	}
}

// Publisher emits JSON events on pub/sub channels.
type Publisher struct {
	cmd Commander
}

// NewPublisher creates a Publisher.
func NewPublisher(cmd Commander) *Publisher {
	return &Publisher{cmd: cmd}
}

// Publish encodes payload as JSON and publishes it on channel.
func (p *Publisher) Publish(ctx context.Context, channel string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", channel, err)
	}
	if err := p.cmd.Publish(ctx, channel, b).Err(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", channel, err)
	}
	return nil
}
