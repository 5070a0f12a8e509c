package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/core/retry"
	"github.com/vietddude/microgate/internal/infra/storage"
)

func customer(code int64, taxvat string) *domain.Customer {
	return &domain.Customer{CustomerCode: code, Name: "ACME", Taxvat: taxvat}
}

func TestCustomerRepo_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepo(NewMemoryStorage())

	if err := repo.Create(ctx, customer(1, "11111111111")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := repo.Create(ctx, customer(1, "11111111111"))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Same code with another taxvat is a different customer.
	if err := repo.Create(ctx, customer(1, "22222222222")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ := repo.Count(ctx)
	if n != 2 {
		t.Errorf("expected 2 customers, got %d", n)
	}
}

func TestCustomerRepo_ExistingKeysAndBulk(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepo(NewMemoryStorage())
	_ = repo.Create(ctx, customer(1, "11111111111"))

	batch := []*domain.Customer{customer(1, "11111111111"), customer(2, "22222222222")}
	keys, err := repo.ExistingKeys(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := keys["1-11111111111"]; !ok || len(keys) != 1 {
		t.Fatalf("unexpected existing keys: %v", keys)
	}

	if err := repo.CreateBulk(ctx, batch[1:]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.CreateBulk(ctx, batch); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate bulk, got %v", err)
	}
}

func TestCustomerRepo_FindPage(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepo(NewMemoryStorage())
	for i := int64(5); i >= 1; i-- {
		_ = repo.Create(ctx, customer(i, "11111111111"))
	}

	page, _ := repo.FindPage(ctx, 2, 2)
	if len(page) != 2 || page[0].CustomerCode != 3 || page[1].CustomerCode != 4 {
		t.Fatalf("unexpected page 2: %+v", page)
	}
	page, _ = repo.FindPage(ctx, 3, 2)
	if len(page) != 1 || page[0].CustomerCode != 5 {
		t.Fatalf("unexpected page 3: %+v", page)
	}
	page, _ = repo.FindPage(ctx, 4, 2)
	if len(page) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestCustomerRepo_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepo(NewMemoryStorage())
	_ = repo.Create(ctx, customer(1, "11111111111"))

	if err := repo.Update(ctx, 1, "11111111111", domain.Address{City: "Recife"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := repo.FindByCode(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Address.City != "Recife" {
		t.Errorf("expected updated city, got %s", c.Address.City)
	}

	if err := repo.Update(ctx, 9, "x", domain.Address{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
	if err := repo.Delete(ctx, 1, "11111111111"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, 1, "11111111111"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := repo.FindByCode(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(NewMemoryStorage())

	if err := repo.Create(ctx, &domain.User{ID: "1", Username: "admin"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Create(ctx, &domain.User{ID: "2", Username: "admin"}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	u, err := repo.FindByUsername(ctx, "admin")
	if err != nil || u.ID != "1" {
		t.Fatalf("unexpected lookup result: %+v, %v", u, err)
	}
	if _, err := repo.FindByUsername(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", "2", time.Minute)
	if v, ok, _ := c.Get(ctx, "k"); !ok || v != "2" {
		t.Fatalf("expected 2, got %q (found=%v)", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected key to expire")
	}
}

func TestCache_SetSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c := NewCache()
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "a---M1", "2", time.Second)
	_ = c.Set(ctx, "a---M2", "2", time.Second)
	_ = c.Set(ctx, "keep", "1", 0)

	now = now.Add(sweepInterval)
	_ = c.Set(ctx, "a---M3", "2", time.Hour)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) != 2 {
		t.Errorf("expected expired keys to be swept, %d entries left", len(c.entries))
	}
	if _, ok := c.entries["keep"]; !ok {
		t.Error("expected key without ttl to survive the sweep")
	}
}

func TestCache_BacksRetryCounter(t *testing.T) {
	ctx := context.Background()
	counter := retry.NewCounter(NewCache(), retry.Config{MaxAttempts: 2})

	want := []bool{true, false, true}
	for i, w := range want {
		got, err := counter.RetryOperation(ctx, "createCustomerBulk---M1", 0)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("attempt %d: expected %v, got %v", i, w, got)
		}
	}
}
