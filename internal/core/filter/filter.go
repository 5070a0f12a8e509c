// Package filter turns a failure raised while handling a broker message into a
// normalized {statusCode, message} result, logs it and settles the delivery.
package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/transport"
	"github.com/vietddude/microgate/internal/metrics"
)

const (
	// UnknownOperation is used when no operation name can be derived.
	UnknownOperation = "Unknown"

	// DefaultMessage is used when an error carries no message.
	DefaultMessage = "An unexpected error occurred..."

	cacheKeySeparator = "---"
)

// Failure is the normalized result of one Catch call. It is returned to the
// caller as an error and owns the per-message state (operation, message id,
// transport context), so concurrent Catch calls never share it.
type Failure struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`

	operation string
	messageID string
	tc        transport.Context
	log       *slog.Logger
}

func (f *Failure) Error() string {
	return fmt.Sprintf("operation %s failed with status %d: %s", f.operation, f.StatusCode, f.Message)
}

// Operation returns the operation name extracted from the transport context.
func (f *Failure) Operation() string {
	return f.operation
}

// MessageID returns the message id extracted from the transport context.
func (f *Failure) MessageID() string {
	return f.messageID
}

// OperationCacheKey returns the key scoping retry state to this message.
func (f *Failure) OperationCacheKey() string {
	return f.operation + cacheKeySeparator + f.messageID
}

// Kind returns the effective transport kind of the caught message.
func (f *Failure) Kind() transport.Kind {
	return f.tc.EffectiveKind()
}

// AckMessage acknowledges the message. No-op for pub/sub contexts.
func (f *Failure) AckMessage() {
	f.settle("ack")
}

// NackMessage negatively acknowledges the message. No-op for pub/sub contexts.
func (f *Failure) NackMessage() {
	f.settle("nack")
}

func (f *Failure) settle(action string) {
	settle(f.log, f.tc, action, f.operation)
}

// settle acks or nacks a queue message. Errors and panics raised by the
// channel are logged and dropped.
func settle(log *slog.Logger, tc transport.Context, action, operation string) {
	if !tc.IsQueue() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("Failed to settle message",
				"action", action,
				"operation", operation,
				"error", fmt.Sprint(r),
			)
		}
	}()

	var err error
	switch action {
	case "ack":
		err = tc.Channel.Ack(tc.Message)
	case "nack":
		err = tc.Channel.Nack(tc.Message)
	}
	if err != nil {
		log.Warn("Failed to settle message",
			"action", action,
			"operation", operation,
			"error", err,
		)
		return
	}
	metrics.MessageSettlements.WithLabelValues(action).Inc()
}

// Filter catches handler failures. It holds no per-message state and is safe
// for concurrent use.
type Filter struct {
	log *slog.Logger
}

// New creates a Filter. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Filter {
	if log == nil {
		log = slog.Default()
	}
	return &Filter{log: log.With("component", "MicroserviceExceptionFilter")}
}

// Ack acknowledges a successfully handled queue message. No-op for pub/sub
// contexts.
func (f *Filter) Ack(tc transport.Context, operation string) {
	settle(f.log, tc, "ack", operation)
}

type catchOptions struct {
	autoAck bool
}

// CatchOption configures a Catch call.
type CatchOption func(*catchOptions)

// WithoutAutoAck leaves the queue message unsettled so the caller can decide
// between AckMessage and NackMessage.
func WithoutAutoAck() CatchOption {
	return func(o *catchOptions) {
		o.autoAck = false
	}
}

// Catch normalizes exception, logs one line and, for queue contexts, acks the
// message unless WithoutAutoAck is given. It never nacks and never panics.
func (f *Filter) Catch(exception error, tc transport.Context, opts ...CatchOption) *Failure {
	o := catchOptions{autoAck: true}
	for _, opt := range opts {
		opt(&o)
	}

	failure := &Failure{
		StatusCode: http.StatusInternalServerError,
		tc:         tc,
		log:        f.log,
	}

	if cause := f.normalize(failure, exception); cause != nil {
		failure.Message = cause.Error()
		f.log.Error("Microservice exception could not be normalized",
			"operation", failure.operation,
			"status_code", failure.StatusCode,
			"message", failure.Message,
		)
	} else {
		f.log.Info("Microservice exception",
			"operation", failure.operation,
			"status_code", failure.StatusCode,
			"message", failure.Message,
		)
	}
	metrics.ExceptionsCaught.WithLabelValues(
		tc.EffectiveKind().String(),
		strconv.Itoa(failure.StatusCode),
	).Inc()

	if o.autoAck {
		failure.AckMessage()
	}

	return failure
}

// normalize fills failure from the context and exception. A panic raised on
// the way is returned as an error; fields set before it are kept.
func (f *Filter) normalize(failure *Failure, exception error) (cause error) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				cause = err
				return
			}
			cause = fmt.Errorf("%v", r)
		}
	}()

	failure.operation, failure.messageID = extractOperation(failure.tc)
	failure.StatusCode = StatusCode(exception)
	failure.Message = Message(exception, failure.operation)
	return nil
}

// StatusCode returns the status carried by exception, or 500.
func StatusCode(exception error) int {
	if exception == nil {
		return http.StatusInternalServerError
	}
	var httpErr *apperr.HTTPError
	if errors.As(exception, &httpErr) {
		return httpErr.Status
	}
	var rpcErr *apperr.RPCError
	if errors.As(exception, &rpcErr) {
		return rpcErr.GetError().StatusCode
	}
	return http.StatusInternalServerError
}

// Message returns the message carried by exception. operation is only used to
// describe a nil exception.
func Message(exception error, operation string) string {
	if exception == nil {
		return fmt.Sprintf("An unexpected error occurred on operation [%s], Exception: Unknown", operation)
	}
	var httpErr *apperr.HTTPError
	if errors.As(exception, &httpErr) {
		return httpErr.Message
	}
	var rpcErr *apperr.RPCError
	if errors.As(exception, &rpcErr) {
		return rpcErr.GetError().Message
	}
	if msg := exception.Error(); msg != "" {
		return msg
	}
	return DefaultMessage
}

// extractOperation derives the operation name and message id. Queue bodies are
// expected to look like {"pattern": ..., "data": {"message_id": ...}}; anything
// else degrades to the raw content.
func extractOperation(tc transport.Context) (operation, messageID string) {
	if !tc.IsQueue() {
		if len(tc.Args) > 0 {
			return tc.Args[0], ""
		}
		return UnknownOperation, ""
	}

	body := tc.Message.Body
	if len(body) == 0 {
		return UnknownOperation, UnknownOperation
	}

	raw := string(body)
	operation, messageID = raw, raw

	var content any
	if err := json.Unmarshal(body, &content); err != nil {
		return operation, messageID
	}

	switch v := content.(type) {
	case string:
		return v, v
	case map[string]any:
		if pattern := stringify(v["pattern"]); pattern != "" {
			operation = pattern
		}
		if data, ok := v["data"].(map[string]any); ok {
			if id := stringify(data["message_id"]); id != "" {
				messageID = id
			}
		}
	}
	return operation, messageID
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
