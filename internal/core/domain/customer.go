package domain

import (
	"fmt"
	"time"
)

// Address is the postal address embedded in a customer document.
type Address struct {
	Street     string `json:"street"      validate:"required,min=1,max=255"`
	Number     string `json:"number"      validate:"max=255"`
	Complement string `json:"complement"  validate:"required,min=1,max=255"`
	District   string `json:"district"    validate:"required,min=1,max=255"`
	City       string `json:"city"        validate:"required,min=1,max=255"`
	PostalCode string `json:"postal_code" validate:"required,min=1,max=255"`
	UF         string `json:"uf"          validate:"required,min=1,max=255"`
	Country    string `json:"country"     validate:"required,min=1,max=255"`
}

// Customer is a stored customer. (CustomerCode, Taxvat) is unique.
type Customer struct {
	CustomerCode int64     `json:"customer_code"`
	Name         string    `json:"name"`
	Taxvat       string    `json:"taxvat"`
	Address      Address   `json:"address"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Key returns the "code-taxvat" identity used for duplicate detection.
func (c *Customer) Key() string {
	return CustomerKey(c.CustomerCode, c.Taxvat)
}

// CreateCustomer is the payload of the createCustomer pattern.
type CreateCustomer struct {
	CustomerCode int64   `json:"customer_code" validate:"required"`
	Name         string  `json:"name"          validate:"required,min=1,max=255"`
	Taxvat       string  `json:"taxvat"        validate:"required,min=11,max=14"`
	Address      Address `json:"address"       validate:"required"`
}

// ToCustomer converts the payload into a Customer.
func (c CreateCustomer) ToCustomer() *Customer {
	return &Customer{
		CustomerCode: c.CustomerCode,
		Name:         c.Name,
		Taxvat:       c.Taxvat,
		Address:      c.Address,
	}
}

// UpdateCustomer is the payload of the updateCustomer pattern.
type UpdateCustomer struct {
	CustomerCode int64   `json:"customer_code" validate:"required"`
	Taxvat       string  `json:"taxvat"        validate:"required,min=11,max=14"`
	Address      Address `json:"address"       validate:"required"`
}

// DeleteCustomer is the payload of the deleteCustomer pattern.
type DeleteCustomer struct {
	CustomerCode int64  `json:"customer_code" validate:"required"`
	Taxvat       string `json:"taxvat"        validate:"required,min=11,max=14"`
}

// FindCustomer is the payload of the findOneCustomerByCustomerCode pattern.
type FindCustomer struct {
	CustomerCode int64 `json:"customer_code" validate:"required"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 50
)

// FindAllCustomers is the payload of the findAllCustomers pattern.
type FindAllCustomers struct {
	Page  int `json:"page"  validate:"omitempty,min=1"`
	Limit int `json:"limit" validate:"omitempty,min=1,max=50"`
}

// WithDefaults fills unset paging fields.
func (q FindAllCustomers) WithDefaults() FindAllCustomers {
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return q
}

// PageInfo describes one page of results.
type PageInfo struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalPages  int `json:"total_pages"`
}

// FindAllCustomersResponse is the reply of the findAllCustomers pattern.
type FindAllCustomersResponse struct {
	Customers  []*Customer `json:"customers"`
	PageInfo   PageInfo    `json:"page_info"`
	TotalCount int         `json:"total_count"`
}

// CreateCustomerBulk is the payload of the createCustomerBulk event.
type CreateCustomerBulk struct {
	Customers []CreateCustomer `json:"customers" validate:"required,min=1,dive"`
}

// CustomerKey builds the "code-taxvat" identity of a customer.
func CustomerKey(code int64, taxvat string) string {
	return fmt.Sprintf("%d-%s", code, taxvat)
}
