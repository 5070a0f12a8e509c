package storage

import (
	"context"
	"errors"

	"github.com/vietddude/microgate/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a unique key is already taken
	ErrAlreadyExists = errors.New("record already exists")
)

// CustomerRepository handles customer storage operations
type CustomerRepository interface {
	// Create inserts a customer, ErrAlreadyExists on duplicate (customer_code, taxvat)
	Create(ctx context.Context, customer *domain.Customer) error

	// CreateBulk inserts customers in one transaction
	CreateBulk(ctx context.Context, customers []*domain.Customer) error

	// Exists reports whether a customer with code and taxvat is stored
	Exists(ctx context.Context, code int64, taxvat string) (bool, error)

	// ExistingKeys returns the "code-taxvat" keys among the given customers that are stored
	ExistingKeys(ctx context.Context, customers []*domain.Customer) (map[string]struct{}, error)

	// Count returns the number of stored customers
	Count(ctx context.Context) (int, error)

	// FindPage returns one page of customers ordered by customer code
	FindPage(ctx context.Context, page, limit int) ([]*domain.Customer, error)

	// FindByCode returns the first customer with the given code
	FindByCode(ctx context.Context, code int64) (*domain.Customer, error)

	// Update replaces the address of a customer, ErrNotFound when missing
	Update(ctx context.Context, code int64, taxvat string, address domain.Address) error

	// Delete removes a customer, ErrNotFound when missing
	Delete(ctx context.Context, code int64, taxvat string) error
}

// UserRepository handles API user storage operations
type UserRepository interface {
	// Create inserts a user, ErrAlreadyExists on duplicate username
	Create(ctx context.Context, user *domain.User) error

	// FindByUsername returns the user or ErrNotFound
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// Count returns the number of users
	Count(ctx context.Context) (int, error)
}
