package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/metrics"
)

// Requester sends envelopes on behalf of the gateway.
type Requester struct {
	nc      *nats.Conn
	pub     message.Publisher
	timeout time.Duration
}

// NewRequester creates a Requester. Replies are received on nc.
func NewRequester(nc *nats.Conn, pub message.Publisher, timeout time.Duration) *Requester {
	return &Requester{nc: nc, pub: pub, timeout: timeout}
}

// Send publishes a request and waits for its reply. A reply carrying an error
// is returned as an *apperr.RPCError; no reply within the timeout is a 504.
func (r *Requester) Send(ctx context.Context, pattern string, data any) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		metrics.BrokerRequestLatency.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	}()

	inbox := nats.NewInbox()
	sub, err := r.nc.SubscribeSync(inbox)
	if err != nil {
		return nil, fmt.Errorf("subscribe reply inbox: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	env, err := domain.NewEnvelope(pattern, data, inbox)
	if err != nil {
		return nil, err
	}
	if err := publishEnvelope(r.pub, env); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := sub.NextMsgWithContext(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.NewHTTP(http.StatusGatewayTimeout,
				fmt.Sprintf("No reply for %s within %s", pattern, r.timeout))
		}
		return nil, fmt.Errorf("wait reply for %s: %w", pattern, err)
	}

	return decodeReply(msg.Data)
}

// Emit publishes an event. Nobody replies to it.
func (r *Requester) Emit(ctx context.Context, pattern string, data any) error {
	env, err := domain.NewEnvelope(pattern, data, "")
	if err != nil {
		return err
	}
	return publishEnvelope(r.pub, env)
}

func decodeReply(data []byte) (json.RawMessage, error) {
	var reply domain.Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Err != nil {
		return nil, apperr.NewRPC(reply.Err.StatusCode, reply.Err.Message)
	}
	return reply.Response, nil
}

// Replier publishes replies to request inboxes.
type Replier struct {
	nc *nats.Conn
}

// NewReplier creates a Replier.
func NewReplier(nc *nats.Conn) *Replier {
	return &Replier{nc: nc}
}

// Reply publishes reply on subject.
func (r *Replier) Reply(subject string, reply domain.Reply) error {
	b, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	if err := r.nc.Publish(subject, b); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}
