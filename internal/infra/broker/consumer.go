package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vietddude/microgate/internal/core/transport"
)

// Handler processes one delivery. It must settle the message through the
// transport context; unsettled messages are redelivered after AckWait.
type Handler func(ctx context.Context, tc transport.Context)

// consumerFactory is the subset of jetstream.JetStream used by Consumer.
type consumerFactory interface {
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
}

// Consumer pulls messages from the durable work queue consumer shared by all
// worker processes.
type Consumer struct {
	js  consumerFactory
	cfg Config
	log *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(js consumerFactory, cfg Config, log *slog.Logger) *Consumer {
	return &Consumer{js: js, cfg: cfg, log: log}
}

func (c *Consumer) consumerConfig(prefetch int) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       c.cfg.Durable,
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
		MaxAckPending: prefetch,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
}

// Run starts workers goroutines, each handling one message at a time, and
// blocks until ctx is cancelled and all of them have returned.
func (c *Consumer) Run(ctx context.Context, workers int, handle Handler) error {
	if workers < 1 {
		workers = 1
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, c.consumerConfig(workers))
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", c.cfg.Durable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		runErr error
	)
	for i := 0; i < workers; i++ {
		iter, err := cons.Messages(jetstream.PullMaxMessages(1))
		if err != nil {
			runErr = fmt.Errorf("open message iterator: %w", err)
			cancel()
			break
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			iter.Stop()
		}()
		go func(id int) {
			defer wg.Done()
			c.consume(ctx, iter, handle, id)
		}(i)
	}

	wg.Wait()
	return runErr
}

func (c *Consumer) consume(ctx context.Context, iter jetstream.MessagesContext, handle Handler, id int) {
	for {
		msg, err := iter.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				return
			}
			c.log.Warn("Failed to pull message", "consumer", id, "error", err)
			continue
		}
		handle(ctx, Delivery(msg))
	}
}

// msgChannel settles one JetStream message.
type msgChannel struct {
	msg jetstream.Msg
}

func (c msgChannel) Ack(*transport.Message) error {
	return c.msg.Ack()
}

func (c msgChannel) Nack(*transport.Message) error {
	return c.msg.Nak()
}

// Delivery builds the queue transport context of a JetStream message.
func Delivery(msg jetstream.Msg) transport.Context {
	var correlationID string
	if h := msg.Headers(); h != nil {
		correlationID = h.Get(nats.MsgIdHdr)
	}
	return transport.Queue(msgChannel{msg: msg}, &transport.Message{
		Body:          msg.Data(),
		Subject:       msg.Subject(),
		CorrelationID: correlationID,
	})
}
