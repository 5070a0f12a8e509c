package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/infra/storage"
)

type MemoryStorage struct {
	customers map[string]*domain.Customer
	users     map[string]*domain.User
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		customers: make(map[string]*domain.Customer),
		users:     make(map[string]*domain.User),
	}
}

// -----------------------------------------------------------------------------
// Customer Repository
// -----------------------------------------------------------------------------

type CustomerRepo struct {
	store *MemoryStorage
}

func NewCustomerRepo(store *MemoryStorage) *CustomerRepo {
	return &CustomerRepo{store: store}
}

func (r *CustomerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := customer.Key()
	if _, ok := r.store.customers[key]; ok {
		return storage.ErrAlreadyExists
	}
	now := time.Now()
	c := *customer
	c.CreatedAt, c.UpdatedAt = now, now
	r.store.customers[key] = &c
	return nil
}

func (r *CustomerRepo) CreateBulk(ctx context.Context, customers []*domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range customers {
		if _, ok := r.store.customers[c.Key()]; ok {
			return storage.ErrAlreadyExists
		}
	}
	now := time.Now()
	for _, c := range customers {
		stored := *c
		stored.CreatedAt, stored.UpdatedAt = now, now
		r.store.customers[c.Key()] = &stored
	}
	return nil
}

func (r *CustomerRepo) Exists(ctx context.Context, code int64, taxvat string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.customers[domain.CustomerKey(code, taxvat)]
	return ok, nil
}

func (r *CustomerRepo) ExistingKeys(ctx context.Context, customers []*domain.Customer) (map[string]struct{}, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	keys := make(map[string]struct{})
	for _, c := range customers {
		if _, ok := r.store.customers[c.Key()]; ok {
			keys[c.Key()] = struct{}{}
		}
	}
	return keys, nil
}

func (r *CustomerRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.customers), nil
}

func (r *CustomerRepo) FindPage(ctx context.Context, page, limit int) ([]*domain.Customer, error) {
	r.store.mu.RLock()
	all := make([]*domain.Customer, 0, len(r.store.customers))
	for _, c := range r.store.customers {
		cp := *c
		all = append(all, &cp)
	}
	r.store.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CustomerCode != all[j].CustomerCode {
			return all[i].CustomerCode < all[j].CustomerCode
		}
		return all[i].Taxvat < all[j].Taxvat
	})

	start := (page - 1) * limit
	if start < 0 || start >= len(all) {
		return nil, nil
	}
	end := min(start+limit, len(all))
	return all[start:end], nil
}

func (r *CustomerRepo) FindByCode(ctx context.Context, code int64) (*domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var found *domain.Customer
	for _, c := range r.store.customers {
		if c.CustomerCode != code {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *CustomerRepo) Update(ctx context.Context, code int64, taxvat string, address domain.Address) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.customers[domain.CustomerKey(code, taxvat)]
	if !ok {
		return storage.ErrNotFound
	}
	c.Address = address
	c.UpdatedAt = time.Now()
	return nil
}

func (r *CustomerRepo) Delete(ctx context.Context, code int64, taxvat string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := domain.CustomerKey(code, taxvat)
	if _, ok := r.store.customers[key]; !ok {
		return storage.ErrNotFound
	}
	delete(r.store.customers, key)
	return nil
}

// -----------------------------------------------------------------------------
// User Repository
// -----------------------------------------------------------------------------

type UserRepo struct {
	store *MemoryStorage
}

func NewUserRepo(store *MemoryStorage) *UserRepo {
	return &UserRepo{store: store}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.Username]; ok {
		return storage.ErrAlreadyExists
	}
	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	r.store.users[u.Username] = &u
	return nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.users), nil
}
