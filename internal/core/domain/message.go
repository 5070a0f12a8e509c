package domain

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// MicroserviceName is the queue name of the customers microservice.
const MicroserviceName = "customers_microservice"

// Patterns handled by the customers microservice.
const (
	PatternCreateCustomer     = MicroserviceName + ".createCustomer"
	PatternFindAllCustomers   = MicroserviceName + ".findAllCustomers"
	PatternFindOneCustomer    = MicroserviceName + ".findOneCustomerByCustomerCode"
	PatternUpdateCustomer     = MicroserviceName + ".updateCustomer"
	PatternDeleteCustomer     = MicroserviceName + ".deleteCustomer"
	PatternCreateCustomerBulk = MicroserviceName + ".createCustomerBulk"

	// SubjectWildcard matches every customers pattern on the broker.
	SubjectWildcard = MicroserviceName + ".>"
	MessageIDField  = "message_id"
)

// Envelope is the wire format of a broker message. Data is always a JSON
// object carrying a message_id.
type Envelope struct {
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data"`
	ReplyTo string          `json:"reply_to,omitempty"`
}

// NewEnvelope marshals data into an envelope and stamps it with a message id
// unless data already has one. data must encode to a JSON object.
func NewEnvelope(pattern string, data any, replyTo string) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", pattern, err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("payload of %s is not an object: %w", pattern, err)
	}
	if _, ok := fields[MessageIDField]; !ok {
		id, _ := json.Marshal(uuid.NewString())
		fields[MessageIDField] = id
	}

	stamped, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", pattern, err)
	}

	return &Envelope{Pattern: pattern, Data: stamped, ReplyTo: replyTo}, nil
}

// MessageID returns the message id stamped on the envelope data.
func (e *Envelope) MessageID() string {
	var meta struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(e.Data, &meta); err != nil {
		return ""
	}
	return meta.MessageID
}

// Response is the generic {statusCode, message} body.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Reply is sent back to the reply_to subject of a request. Exactly one of
// Response and Err is set.
type Reply struct {
	Response json.RawMessage `json:"response,omitempty"`
	Err      *Response       `json:"err,omitempty"`
}
