package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/infra/storage"
)

// addressColumn stores an address as a JSONB document.
type addressColumn domain.Address

func (a addressColumn) Value() (driver.Value, error) {
	b, err := json.Marshal(domain.Address(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *addressColumn) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*a = addressColumn{}
		return nil
	default:
		return fmt.Errorf("unsupported address column type %T", src)
	}
	return json.Unmarshal(raw, (*domain.Address)(a))
}

type customerRow struct {
	CustomerCode int64         `db:"customer_code"`
	Name         string        `db:"name"`
	Taxvat       string        `db:"taxvat"`
	Address      addressColumn `db:"address"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

func toCustomerRow(c *domain.Customer) customerRow {
	return customerRow{
		CustomerCode: c.CustomerCode,
		Name:         c.Name,
		Taxvat:       c.Taxvat,
		Address:      addressColumn(c.Address),
	}
}

func (r customerRow) toDomain() *domain.Customer {
	return &domain.Customer{
		CustomerCode: r.CustomerCode,
		Name:         r.Name,
		Taxvat:       r.Taxvat,
		Address:      domain.Address(r.Address),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const (
	customerColumns = `customer_code, name, taxvat, address, created_at, updated_at`

	insertCustomer = `INSERT INTO customers (customer_code, name, taxvat, address)
		VALUES (:customer_code, :name, :taxvat, :address)`
)

// CustomerRepo implements storage.CustomerRepository using PostgreSQL.
type CustomerRepo struct {
	db *DB
}

// NewCustomerRepo creates a new PostgreSQL customer repository.
func NewCustomerRepo(db *DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// Create inserts a customer.
func (r *CustomerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	_, err := r.db.NamedExecContext(ctx, insertCustomer, toCustomerRow(customer))
	if isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// CreateBulk inserts customers with a single multi-row INSERT.
func (r *CustomerRepo) CreateBulk(ctx context.Context, customers []*domain.Customer) error {
	if len(customers) == 0 {
		return nil
	}

	rows := make([]customerRow, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, toCustomerRow(c))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExecContext(ctx, insertCustomer, rows); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert customers: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit customers: %w", err)
	}
	return nil
}

// Exists reports whether the customer is stored.
func (r *CustomerRepo) Exists(ctx context.Context, code int64, taxvat string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE customer_code = $1 AND taxvat = $2)`,
		code, taxvat,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check customer: %w", err)
	}
	return exists, nil
}

// ExistingKeys narrows by code and taxvat in SQL and matches exact pairs here.
func (r *CustomerRepo) ExistingKeys(ctx context.Context, customers []*domain.Customer) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	if len(customers) == 0 {
		return keys, nil
	}

	wanted := make(map[string]struct{}, len(customers))
	codes := make([]int64, 0, len(customers))
	taxvats := make([]string, 0, len(customers))
	for _, c := range customers {
		wanted[c.Key()] = struct{}{}
		codes = append(codes, c.CustomerCode)
		taxvats = append(taxvats, c.Taxvat)
	}

	query, args, err := sqlx.In(
		`SELECT customer_code, taxvat FROM customers WHERE customer_code IN (?) AND taxvat IN (?)`,
		codes, taxvats,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build existence query: %w", err)
	}

	var rows []struct {
		CustomerCode int64  `db:"customer_code"`
		Taxvat       string `db:"taxvat"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query existing customers: %w", err)
	}

	for _, row := range rows {
		key := domain.CustomerKey(row.CustomerCode, row.Taxvat)
		if _, ok := wanted[key]; ok {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

// Count returns the number of customers.
func (r *CustomerRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM customers`); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}

// FindPage returns one page of customers.
func (r *CustomerRepo) FindPage(ctx context.Context, page, limit int) ([]*domain.Customer, error) {
	var rows []customerRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+customerColumns+` FROM customers
		 ORDER BY customer_code, taxvat
		 LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	customers := make([]*domain.Customer, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, row.toDomain())
	}
	return customers, nil
}

// FindByCode returns the oldest customer with the code.
func (r *CustomerRepo) FindByCode(ctx context.Context, code int64) (*domain.Customer, error) {
	var row customerRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+customerColumns+` FROM customers
		 WHERE customer_code = $1
		 ORDER BY created_at
		 LIMIT 1`,
		code,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return row.toDomain(), nil
}

// Update replaces the address of a customer.
func (r *CustomerRepo) Update(ctx context.Context, code int64, taxvat string, address domain.Address) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET address = $1, updated_at = NOW()
		 WHERE customer_code = $2 AND taxvat = $3`,
		addressColumn(address), code, taxvat,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a customer.
func (r *CustomerRepo) Delete(ctx context.Context, code int64, taxvat string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM customers WHERE customer_code = $1 AND taxvat = $2`,
		code, taxvat,
	)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
