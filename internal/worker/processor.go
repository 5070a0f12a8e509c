// Package worker runs broker deliveries through the customers handler and
// settles them: requests are always acked and answered, failed events are
// retried through redelivery until the retry counter gives up.
package worker

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/core/filter"
	"github.com/vietddude/microgate/internal/core/transport"
	"github.com/vietddude/microgate/internal/metrics"
)

// Dispatcher runs the operation named by a pattern.
type Dispatcher interface {
	Handle(ctx context.Context, pattern string, data json.RawMessage) (any, error)
	IsEvent(pattern string) bool
}

// Replier answers a request on its reply subject.
type Replier interface {
	Reply(subject string, reply domain.Reply) error
}

// RetryCounter decides whether a failed event may be redelivered.
type RetryCounter interface {
	RetryOperation(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const (
	outcomeOK        = "ok"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
	outcomeRequeued  = "requeued"
	outcomeDropped   = "dropped"
	outcomeMalformed = "malformed"
	unknownPattern   = "unknown"
)

// Processor handles deliveries from both the queue and pub/sub transports.
type Processor struct {
	dispatcher Dispatcher
	filter     *filter.Filter
	retry      RetryCounter
	replier    Replier
	log        *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(d Dispatcher, f *filter.Filter, retry RetryCounter, replier Replier, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		dispatcher: d,
		filter:     f,
		retry:      retry,
		replier:    replier,
		log:        log,
	}
}

// HandleDelivery processes one queue delivery. Every path settles the message.
func (p *Processor) HandleDelivery(ctx context.Context, tc transport.Context) {
	env, ok := decodeEnvelope(tc.Message.Body)
	if !ok {
		p.filter.Catch(apperr.BadRequest("Malformed message envelope"), tc)
		metrics.MessagesProcessed.WithLabelValues(unknownPattern, outcomeMalformed).Inc()
		return
	}

	result, err := p.dispatcher.Handle(ctx, env.Pattern, env.Data)
	if err == nil {
		p.filter.Ack(tc, env.Pattern)
		p.replyResult(env, result)
		metrics.MessagesProcessed.WithLabelValues(env.Pattern, outcomeOK).Inc()
		return
	}

	if p.dispatcher.IsEvent(env.Pattern) {
		outcome := p.settleFailedEvent(ctx, err, tc)
		metrics.MessagesProcessed.WithLabelValues(env.Pattern, outcome).Inc()
		return
	}

	failure := p.filter.Catch(err, tc)
	p.reply(env, domain.Reply{Err: &domain.Response{
		StatusCode: failure.StatusCode,
		Message:    failure.Message,
	}})
	metrics.MessagesProcessed.WithLabelValues(env.Pattern, outcomeFailed).Inc()
}

// settleFailedEvent acks client errors, which a redelivery cannot fix, and
// nacks server errors until the retry counter is exhausted.
func (p *Processor) settleFailedEvent(ctx context.Context, err error, tc transport.Context) string {
	failure := p.filter.Catch(err, tc, filter.WithoutAutoAck())

	if failure.StatusCode < http.StatusInternalServerError {
		failure.AckMessage()
		return outcomeRejected
	}

	retry, retryErr := p.retry.RetryOperation(ctx, failure.OperationCacheKey(), 0)
	if retryErr != nil {
		p.log.Error("Failed to count retry attempt, requeueing",
			"operation", failure.Operation(),
			"message_id", failure.MessageID(),
			"error", retryErr,
		)
		failure.NackMessage()
		return outcomeRequeued
	}

	if retry {
		failure.NackMessage()
		return outcomeRequeued
	}

	p.log.Warn("Retry attempts exhausted, dropping message",
		"operation", failure.Operation(),
		"message_id", failure.MessageID(),
	)
	failure.AckMessage()
	metrics.RetriesExhausted.WithLabelValues(failure.Operation()).Inc()
	return outcomeDropped
}

// HandlePubSub processes one pub/sub message. There is nothing to settle, so
// failures are only caught and logged.
func (p *Processor) HandlePubSub(ctx context.Context, tc transport.Context, payload []byte) {
	env, ok := decodeEnvelope(payload)
	if !ok {
		p.filter.Catch(apperr.BadRequest("Malformed message envelope"), tc)
		metrics.MessagesProcessed.WithLabelValues(unknownPattern, outcomeMalformed).Inc()
		return
	}

	if _, err := p.dispatcher.Handle(ctx, env.Pattern, env.Data); err != nil {
		p.filter.Catch(err, tc)
		metrics.MessagesProcessed.WithLabelValues(env.Pattern, outcomeFailed).Inc()
		return
	}
	metrics.MessagesProcessed.WithLabelValues(env.Pattern, outcomeOK).Inc()
}

func (p *Processor) replyResult(env *domain.Envelope, result any) {
	if env.ReplyTo == "" {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		p.log.Error("Failed to encode reply", "pattern", env.Pattern, "error", err)
		p.reply(env, domain.Reply{Err: &domain.Response{
			StatusCode: http.StatusInternalServerError,
			Message:    filter.DefaultMessage,
		}})
		return
	}
	p.reply(env, domain.Reply{Response: raw})
}

func (p *Processor) reply(env *domain.Envelope, reply domain.Reply) {
	if env.ReplyTo == "" {
		return
	}
	if err := p.replier.Reply(env.ReplyTo, reply); err != nil {
		p.log.Warn("Failed to send reply", "pattern", env.Pattern, "reply_to", env.ReplyTo, "error", err)
	}
}

func decodeEnvelope(body []byte) (*domain.Envelope, bool) {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Pattern == "" {
		return nil, false
	}
	return &env, true
}
