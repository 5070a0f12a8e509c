package customers

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
)

// IsEvent reports whether pattern is fire-and-forget. Events get no reply and
// are redelivered on server-side failure.
func IsEvent(pattern string) bool {
	return pattern == domain.PatternCreateCustomerBulk
}

// Handler dispatches envelopes to the Service.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Handle decodes and validates data for pattern and runs the matching
// operation. The result is nil for events.
func (h *Handler) Handle(ctx context.Context, pattern string, data json.RawMessage) (any, error) {
	switch pattern {
	case domain.PatternCreateCustomer:
		var in domain.CreateCustomer
		if err := decode(pattern, data, &in); err != nil {
			return nil, err
		}
		return h.svc.CreateCustomer(ctx, in)

	case domain.PatternFindAllCustomers:
		var in domain.FindAllCustomers
		if err := decode(pattern, data, &in); err != nil {
			return nil, err
		}
		return h.svc.FindAllCustomers(ctx, in)

	case domain.PatternFindOneCustomer:
		var in domain.FindCustomer
		if err := decode(pattern, data, &in); err != nil {
			return nil, err
		}
		return h.svc.FindOneCustomerByCustomerCode(ctx, in.CustomerCode)

	case domain.PatternUpdateCustomer:
		var in domain.UpdateCustomer
		if err := decode(pattern, data, &in); err != nil {
			return nil, err
		}
		return h.svc.UpdateCustomer(ctx, in)

	case domain.PatternDeleteCustomer:
		var in domain.DeleteCustomer
		if err := decode(pattern, data, &in); err != nil {
			return nil, err
		}
		return h.svc.DeleteCustomer(ctx, in)

	case domain.PatternCreateCustomerBulk:
		var in domain.CreateCustomerBulk
		if err := decode(pattern, data, &in); err != nil {
			return nil, err
		}
		_, err := h.svc.CreateCustomerBulk(ctx, in.Customers)
		return nil, err

	default:
		return nil, apperr.NotFound("There is no matching message handler defined for pattern [%s]", pattern)
	}
}

func decode(pattern string, data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return apperr.BadRequest("Missing payload for %s", pattern)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.BadRequest("Invalid payload for %s: %v", pattern, err)
	}
	if err := domain.Validate(dst); err != nil {
		return apperr.BadRequest("%s", err.Error())
	}
	return nil
}

// IsEvent reports whether pattern is fire-and-forget.
func (h *Handler) IsEvent(pattern string) bool {
	return IsEvent(pattern)
}
