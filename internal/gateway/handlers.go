package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
)

// Authenticator logs API users in and resolves bearer tokens.
type Authenticator interface {
	Login(ctx context.Context, creds domain.UserCredentials) (*domain.AccessToken, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Handlers serves the gateway routes.
type Handlers struct {
	auth       Authenticator
	requester  Requester
	emitter    Emitter
	bulkOffset int
	log        *slog.Logger
}

// NewHandlers creates Handlers. bulkOffset is the number of customers sent
// per createCustomerBulk event.
func NewHandlers(auth Authenticator, requester Requester, emitter Emitter, bulkOffset int, log *slog.Logger) *Handlers {
	if bulkOffset < 1 {
		bulkOffset = 1
	}
	return &Handlers{
		auth:       auth,
		requester:  requester,
		emitter:    emitter,
		bulkOffset: bulkOffset,
		log:        log,
	}
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.UserCredentials
	if err := decodeBody(r, &creds); err != nil {
		writeError(w, h.log, err)
		return
	}
	token, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, token)
}

func (h *Handlers) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateCustomer
	if err := decodeBody(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.send(w, r, http.StatusCreated, domain.PatternCreateCustomer, in)
}

func (h *Handlers) FindAllCustomers(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.send(w, r, http.StatusOK, domain.PatternFindAllCustomers,
		domain.FindAllCustomers{Page: int(page), Limit: int(limit)})
}

func (h *Handlers) FindCustomerByCode(w http.ResponseWriter, r *http.Request) {
	code, err := parseCode(chi.URLParam(r, "customerCode"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.send(w, r, http.StatusOK, domain.PatternFindOneCustomer, domain.FindCustomer{CustomerCode: code})
}

func (h *Handlers) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdateCustomer
	if err := decodeBody(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.send(w, r, http.StatusOK, domain.PatternUpdateCustomer, in)
}

func (h *Handlers) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	code, err := parseCode(r.URL.Query().Get("customer_code"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.send(w, r, http.StatusOK, domain.PatternDeleteCustomer, domain.DeleteCustomer{
		CustomerCode: code,
		Taxvat:       r.URL.Query().Get("taxvat"),
	})
}

// CreateCustomerBulk validates the whole batch, then emits it in slices of
// bulkOffset customers. Nothing is emitted when any customer is invalid.
func (h *Handlers) CreateCustomerBulk(w http.ResponseWriter, r *http.Request) {
	var customers []domain.CreateCustomer
	if err := json.NewDecoder(r.Body).Decode(&customers); err != nil {
		writeError(w, h.log, apperr.NewHTTP(http.StatusBadRequest, "Invalid request body"))
		return
	}
	if err := domain.Validate(domain.CreateCustomerBulk{Customers: customers}); err != nil {
		writeError(w, h.log, err)
		return
	}

	for start := 0; start < len(customers); start += h.bulkOffset {
		end := min(start+h.bulkOffset, len(customers))
		batch := domain.CreateCustomerBulk{Customers: customers[start:end]}
		if err := h.emitter.Emit(r.Context(), domain.PatternCreateCustomerBulk, batch); err != nil {
			h.log.Error("Failed to emit customer batch",
				"from", start,
				"to", end,
				"total", len(customers),
				"error", err,
			)
			writeError(w, h.log, fmt.Errorf("emit customers %d-%d: %w", start, end, err))
			return
		}
	}

	writeJSON(w, h.log, http.StatusCreated, domain.Response{
		StatusCode: http.StatusCreated,
		Message:    fmt.Sprintf("Successfully processed and sent [%d] customers to queue", len(customers)),
	})
}

// send validates in, forwards it to the customers microservice and writes
// the raw reply.
func (h *Handlers) send(w http.ResponseWriter, r *http.Request, status int, pattern string, in any) {
	if err := domain.Validate(in); err != nil {
		writeError(w, h.log, err)
		return
	}
	reply, err := h.requester.Send(r.Context(), pattern, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if len(reply) == 0 {
		reply = json.RawMessage("null")
	}
	writeRaw(w, h.log, status, reply)
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.NewHTTP(http.StatusBadRequest, "Invalid request body")
	}
	return nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.NewHTTP(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

func parseCode(raw string) (int64, error) {
	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.NewHTTP(http.StatusBadRequest, "customer_code must be an integer")
	}
	return code, nil
}
