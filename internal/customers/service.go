// Package customers implements the customers microservice: the operations
// behind each customers_microservice pattern and the dispatch from a broker
// envelope to them.
package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/infra/storage"
)

// Service holds the customer use cases. Expected failures are returned as
// *apperr.RPCError so they reach the caller with their status.
type Service struct {
	repo storage.CustomerRepository
	log  *slog.Logger
}

// NewService creates a Service.
func NewService(repo storage.CustomerRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// CreateCustomer stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, in domain.CreateCustomer) (*domain.Response, error) {
	exists, err := s.repo.Exists(ctx, in.CustomerCode, in.Taxvat)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, alreadyExists(in.CustomerCode, in.Taxvat)
	}

	if err := s.repo.Create(ctx, in.ToCustomer()); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, alreadyExists(in.CustomerCode, in.Taxvat)
		}
		return nil, err
	}

	return &domain.Response{
		StatusCode: http.StatusCreated,
		Message:    fmt.Sprintf("Customer with customer code [%d] successfully created", in.CustomerCode),
	}, nil
}

// FindAllCustomers returns one page of customers.
func (s *Service) FindAllCustomers(ctx context.Context, q domain.FindAllCustomers) (*domain.FindAllCustomersResponse, error) {
	q = q.WithDefaults()

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, apperr.NotFound("Found no customer(s)")
	}

	found, err := s.repo.FindPage(ctx, q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []*domain.Customer{}
	}

	return &domain.FindAllCustomersResponse{
		Customers: found,
		PageInfo: domain.PageInfo{
			CurrentPage: q.Page,
			PageSize:    q.Limit,
			TotalPages:  int(math.Ceil(float64(total) / float64(q.Limit))),
		},
		TotalCount: total,
	}, nil
}

// FindOneCustomerByCustomerCode returns the customer with the code.
func (s *Service) FindOneCustomerByCustomerCode(ctx context.Context, code int64) (*domain.Customer, error) {
	c, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("Customer with customer code [%d] not found", code)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCustomer replaces the address of a customer.
func (s *Service) UpdateCustomer(ctx context.Context, in domain.UpdateCustomer) (*domain.Response, error) {
	err := s.repo.Update(ctx, in.CustomerCode, in.Taxvat, in.Address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(in.CustomerCode, in.Taxvat)
	}
	if err != nil {
		return nil, err
	}

	return &domain.Response{
		StatusCode: http.StatusOK,
		Message:    fmt.Sprintf("Customer with customer code [%d] successfully updated", in.CustomerCode),
	}, nil
}

// DeleteCustomer removes a customer.
func (s *Service) DeleteCustomer(ctx context.Context, in domain.DeleteCustomer) (*domain.Response, error) {
	err := s.repo.Delete(ctx, in.CustomerCode, in.Taxvat)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(in.CustomerCode, in.Taxvat)
	}
	if err != nil {
		return nil, err
	}

	return &domain.Response{
		StatusCode: http.StatusOK,
		Message: fmt.Sprintf("Customer with customer code [%d] and taxvat [%s] successfully deleted",
			in.CustomerCode, in.Taxvat),
	}, nil
}

// CreateCustomerBulk inserts every customer not stored yet and returns how
// many were inserted. Duplicates inside the batch are inserted once.
func (s *Service) CreateCustomerBulk(ctx context.Context, in []domain.CreateCustomer) (int, error) {
	batch := make([]*domain.Customer, 0, len(in))
	for _, c := range in {
		batch = append(batch, c.ToCustomer())
	}

	existing, err := s.repo.ExistingKeys(ctx, batch)
	if err != nil {
		return 0, err
	}

	toCreate := make([]*domain.Customer, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, c := range batch {
		key := c.Key()
		if _, ok := existing[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		toCreate = append(toCreate, c)
	}

	if len(toCreate) == 0 {
		s.log.Info("Found no bulk operations to execute", "received", len(in))
		return 0, nil
	}

	if err := s.repo.CreateBulk(ctx, toCreate); err != nil {
		return 0, err
	}

	s.log.Info("Bulk operation executed",
		"received", len(in),
		"skipped", len(in)-len(toCreate),
		"inserted", len(toCreate),
	)
	return len(toCreate), nil
}

func alreadyExists(code int64, taxvat string) error {
	return apperr.Conflict("Customer with customer code [%d] and taxvat [%s] already exists", code, taxvat)
}

func notFound(code int64, taxvat string) error {
	return apperr.NotFound("Customer with customer code [%d] and taxvat [%s] not found", code, taxvat)
}
