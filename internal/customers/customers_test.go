package customers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/infra/storage/memory"
)

func newTestService() (*Service, *memory.CustomerRepo) {
	repo := memory.NewCustomerRepo(memory.NewMemoryStorage())
	return NewService(repo, nil), repo
}

func newCustomer(code int64, taxvat string) domain.CreateCustomer {
	return domain.CreateCustomer{
		CustomerCode: code,
		Name:         "ACME",
		Taxvat:       taxvat,
		Address: domain.Address{
			Street:     "Av. Paulista",
			Number:     "1000",
			Complement: "Apt 1",
			District:   "Bela Vista",
			City:       "Sao Paulo",
			PostalCode: "01310-100",
			UF:         "SP",
			Country:    "Brazil",
		},
	}
}

func expectRPC(t *testing.T, err error, status int) *apperr.RPCError {
	t.Helper()
	rpcErr, ok := apperr.AsRPC(err)
	if !ok {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Payload.StatusCode != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rpcErr.Payload.StatusCode, rpcErr.Payload.Message)
	}
	return rpcErr
}

func TestService_CreateCustomer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	resp, err := svc.CreateCustomer(ctx, newCustomer(1, "11111111111"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Message != "Customer with customer code [1] successfully created" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	_, err = svc.CreateCustomer(ctx, newCustomer(1, "11111111111"))
	rpcErr := expectRPC(t, err, http.StatusConflict)
	if rpcErr.Payload.Message != "Customer with customer code [1] and taxvat [11111111111] already exists" {
		t.Errorf("unexpected message %q", rpcErr.Payload.Message)
	}
}

func TestService_FindAllCustomers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.FindAllCustomers(ctx, domain.FindAllCustomers{})
	rpcErr := expectRPC(t, err, http.StatusNotFound)
	if rpcErr.Payload.Message != "Found no customer(s)" {
		t.Errorf("unexpected message %q", rpcErr.Payload.Message)
	}

	for i := int64(1); i <= 25; i++ {
		if _, err := svc.CreateCustomer(ctx, newCustomer(i, "11111111111")); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	resp, err := svc.FindAllCustomers(ctx, domain.FindAllCustomers{Page: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TotalCount != 25 || resp.PageInfo.TotalPages != 3 || resp.PageInfo.PageSize != 10 {
		t.Errorf("unexpected page info: %+v total=%d", resp.PageInfo, resp.TotalCount)
	}
	if len(resp.Customers) != 5 || resp.Customers[0].CustomerCode != 21 {
		t.Errorf("unexpected customers on page 3: %d", len(resp.Customers))
	}

	resp, err = svc.FindAllCustomers(ctx, domain.FindAllCustomers{Page: 9, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Customers == nil || len(resp.Customers) != 0 {
		t.Errorf("expected empty non-nil page, got %v", resp.Customers)
	}
}

func TestService_FindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	_, _ = svc.CreateCustomer(ctx, newCustomer(7, "77777777777"))

	c, err := svc.FindOneCustomerByCustomerCode(ctx, 7)
	if err != nil || c.Taxvat != "77777777777" {
		t.Fatalf("unexpected lookup: %+v, %v", c, err)
	}

	_, err = svc.FindOneCustomerByCustomerCode(ctx, 8)
	rpcErr := expectRPC(t, err, http.StatusNotFound)
	if rpcErr.Payload.Message != "Customer with customer code [8] not found" {
		t.Errorf("unexpected message %q", rpcErr.Payload.Message)
	}

	addr := newCustomer(0, "").Address
	addr.City = "Recife"
	resp, err := svc.UpdateCustomer(ctx, domain.UpdateCustomer{CustomerCode: 7, Taxvat: "77777777777", Address: addr})
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected update result: %+v, %v", resp, err)
	}

	_, err = svc.UpdateCustomer(ctx, domain.UpdateCustomer{CustomerCode: 7, Taxvat: "00000000000", Address: addr})
	expectRPC(t, err, http.StatusNotFound)

	resp, err = svc.DeleteCustomer(ctx, domain.DeleteCustomer{CustomerCode: 7, Taxvat: "77777777777"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message != "Customer with customer code [7] and taxvat [77777777777] successfully deleted" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	_, err = svc.DeleteCustomer(ctx, domain.DeleteCustomer{CustomerCode: 7, Taxvat: "77777777777"})
	expectRPC(t, err, http.StatusNotFound)
}

func TestService_CreateCustomerBulk(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	_, _ = svc.CreateCustomer(ctx, newCustomer(1, "11111111111"))

	batch := []domain.CreateCustomer{
		newCustomer(1, "11111111111"), // stored
		newCustomer(2, "22222222222"),
		newCustomer(2, "22222222222"), // duplicate in batch
		newCustomer(3, "33333333333"),
	}
	n, err := svc.CreateCustomerBulk(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}
	total, _ := repo.Count(ctx)
	if total != 3 {
		t.Errorf("expected 3 customers, got %d", total)
	}

	n, err = svc.CreateCustomerBulk(ctx, batch)
	if err != nil || n != 0 {
		t.Errorf("expected nothing to insert, got %d, %v", n, err)
	}
}

func TestHandler_Dispatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	h := NewHandler(svc)

	data, _ := json.Marshal(newCustomer(5, "55555555555"))
	out, err := h.Handle(ctx, domain.PatternCreateCustomer, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp, ok := out.(*domain.Response); !ok || resp.StatusCode != http.StatusCreated {
		t.Errorf("unexpected result %#v", out)
	}

	out, err = h.Handle(ctx, domain.PatternFindOneCustomer, json.RawMessage(`{"customer_code":5,"message_id":"M1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c, ok := out.(*domain.Customer); !ok || c.CustomerCode != 5 {
		t.Errorf("unexpected result %#v", out)
	}

	bulk, _ := json.Marshal(domain.CreateCustomerBulk{Customers: []domain.CreateCustomer{newCustomer(6, "66666666666")}})
	out, err = h.Handle(ctx, domain.PatternCreateCustomerBulk, bulk)
	if err != nil || out != nil {
		t.Errorf("expected nil result for event, got %#v, %v", out, err)
	}
}

func TestHandler_BadPayloads(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		data    string
		status  int
		message string
	}{
		{"empty", domain.PatternCreateCustomer, "", http.StatusBadRequest, "Missing payload"},
		{"malformed", domain.PatternCreateCustomer, "{", http.StatusBadRequest, "Invalid payload"},
		{"invalid", domain.PatternDeleteCustomer, `{"customer_code":1,"taxvat":"1"}`, http.StatusBadRequest, "taxvat"},
		{"limit", domain.PatternFindAllCustomers, `{"limit":100}`, http.StatusBadRequest, "limit"},
		{"empty bulk", domain.PatternCreateCustomerBulk, `{"customers":[]}`, http.StatusBadRequest, "customers"},
		{"unknown", "customers_microservice.nope", `{}`, http.StatusNotFound, "no matching message handler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.pattern, json.RawMessage(tt.data))
			rpcErr := expectRPC(t, err, tt.status)
			if !strings.Contains(rpcErr.Payload.Message, tt.message) {
				t.Errorf("expected message to contain %q, got %q", tt.message, rpcErr.Payload.Message)
			}
		})
	}
}

func TestIsEvent(t *testing.T) {
	if !IsEvent(domain.PatternCreateCustomerBulk) {
		t.Error("expected bulk to be an event")
	}
	if IsEvent(domain.PatternCreateCustomer) {
		t.Error("expected createCustomer to be a request")
	}
}

func TestService_StorageErrorsPassThrough(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&failingRepo{err: boom}, nil)

	_, err := svc.CreateCustomer(context.Background(), newCustomer(1, "11111111111"))
	if !errors.Is(err, boom) {
		t.Errorf("expected storage error, got %v", err)
	}
	if _, ok := apperr.AsRPC(err); ok {
		t.Error("storage failures must not be reported as RPC errors")
	}
}

type failingRepo struct {
	err error
}

func (r *failingRepo) Create(ctx context.Context, c *domain.Customer) error { return r.err }
func (r *failingRepo) CreateBulk(ctx context.Context, c []*domain.Customer) error { return r.err }
func (r *failingRepo) Exists(ctx context.Context, code int64, taxvat string) (bool, error) {
	return false, r.err
}
func (r *failingRepo) ExistingKeys(ctx context.Context, c []*domain.Customer) (map[string]struct{}, error) {
	return nil, r.err
}
func (r *failingRepo) Count(ctx context.Context) (int, error) { return 0, r.err }
func (r *failingRepo) FindPage(ctx context.Context, page, limit int) ([]*domain.Customer, error) {
	return nil, r.err
}
func (r *failingRepo) FindByCode(ctx context.Context, code int64) (*domain.Customer, error) {
	return nil, r.err
}
func (r *failingRepo) Update(ctx context.Context, code int64, taxvat string, a domain.Address) error {
	return r.err
}
func (r *failingRepo) Delete(ctx context.Context, code int64, taxvat string) error { return r.err }
