// Package transport describes the per-message context handed to message
// handlers by the broker adapters.
package transport

// Kind identifies which transport produced a message.
type Kind int

const (
	// KindPubSub is a fire-and-forget transport without acknowledgement.
	KindPubSub Kind = iota
	// KindQueue is a broker transport that expects every delivery to be acked or nacked.
	KindQueue
)

func (k Kind) String() string {
	switch k {
	case KindQueue:
		return "queue"
	case KindPubSub:
		return "pubsub"
	default:
		return "unknown"
	}
}

// Channel settles deliveries on a queue transport.
type Channel interface {
	Ack(msg *Message) error
	Nack(msg *Message) error
}

// Message is the raw envelope of a queue delivery.
type Message struct {
	Body          []byte
	Subject       string
	CorrelationID string
}

// Context is the transport context of one inbound message. The Kind is set
// by the adapter that built it; Channel and Message are only meaningful for
// KindQueue, Args only for KindPubSub.
type Context struct {
	Kind    Kind
	Channel Channel
	Message *Message
	Args    []string
}

// Queue builds a queue context.
func Queue(ch Channel, msg *Message) Context {
	return Context{Kind: KindQueue, Channel: ch, Message: msg}
}

// PubSub builds a pub/sub context from positional arguments.
func PubSub(args ...string) Context {
	return Context{Kind: KindPubSub, Args: args}
}

// IsQueue reports whether the context can be acknowledged. A queue context
// missing its channel or message is handled as pub/sub.
func (c Context) IsQueue() bool {
	return c.Kind == KindQueue && c.Channel != nil && c.Message != nil
}

// EffectiveKind returns the kind used for handling, after the completeness check.
func (c Context) EffectiveKind() Kind {
	if c.IsQueue() {
		return KindQueue
	}
	return KindPubSub
}
