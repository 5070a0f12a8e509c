package broker

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/domain"
)

// NewPublisher creates a Watermill JetStream publisher. The stream must
// already exist; the message UUID is used as Nats-Msg-Id for deduplication.
func NewPublisher(cfg Config, log *slog.Logger) (message.Publisher, error) {
	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: connOptions(cfg, log),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, watermill.NewSlogLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// publishEnvelope publishes env on the subject named by its pattern.
func publishEnvelope(pub message.Publisher, env *domain.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	id := env.MessageID()
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)

	if err := pub.Publish(env.Pattern, msg); err != nil {
		return fmt.Errorf("publish %s: %w", env.Pattern, err)
	}
	return nil
}
