package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockCache implements Cache for testing
type mockCache struct {
	values  map[string]string
	ttls    map[string]time.Duration
	deleted []string
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *mockCache) Get(ctx context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Del(ctx context.Context, key string) error {
	delete(m.values, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func TestRetryOperation_MissingCountsAsFirstAttempt(t *testing.T) {
	cache := newMockCache()
	counter := NewCounter(cache, Config{MaxAttempts: 3})

	ok, err := counter.RetryOperation(context.Background(), "create", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected retry to be allowed")
	}
	// Missing value coerces to 1, then increments.
	if cache.values["create"] != "2" {
		t.Errorf("expected stored value 2, got %q", cache.values["create"])
	}
	if cache.ttls["create"] != DefaultTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultTTL, cache.ttls["create"])
	}
}

func TestRetryOperation_CustomTTL(t *testing.T) {
	cache := newMockCache()
	cache.values["create"] = "1"
	counter := NewCounter(cache, Config{MaxAttempts: 3})

	ok, err := counter.RetryOperation(context.Background(), "create", 8600*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected retry, got ok=%v err=%v", ok, err)
	}
	if cache.values["create"] != "2" {
		t.Errorf("expected stored value 2, got %q", cache.values["create"])
	}
	if cache.ttls["create"] != 8600*time.Second {
		t.Errorf("expected TTL 8600s, got %v", cache.ttls["create"])
	}
}

func TestRetryOperation_ExhaustedDeletesKey(t *testing.T) {
	cache := newMockCache()
	cache.values["create"] = "3"
	counter := NewCounter(cache, Config{MaxAttempts: 3})

	ok, err := counter.RetryOperation(context.Background(), "create", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected retries to be exhausted")
	}
	if _, exists := cache.values["create"]; exists {
		t.Error("expected key to be deleted")
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != "create" {
		t.Errorf("expected one delete of create, got %v", cache.deleted)
	}
}

func TestRetryOperation_Sequence(t *testing.T) {
	cache := newMockCache()
	counter := NewCounter(cache, Config{MaxAttempts: 3})
	ctx := context.Background()

	// The off-by-one convention allows max-1 retries before exhaustion.
	want := []bool{true, true, false, true}
	for i, expected := range want {
		ok, err := counter.RetryOperation(ctx, "op---m1", 0)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if ok != expected {
			t.Errorf("call %d: expected %v, got %v", i, expected, ok)
		}
	}
}

func TestRetryOperation_NonNumericValue(t *testing.T) {
	tests := []struct {
		stored string
		want   string
	}{
		{"", "2"},
		{"test", "2"},
		{"0", "2"},
		{"1", "2"},
		{"2", "3"},
		{"-7", "2"},
		{"-1e300", "2"},
	}

	for _, tt := range tests {
		cache := newMockCache()
		cache.values["k"] = tt.stored
		counter := NewCounter(cache, Config{MaxAttempts: 5})

		if _, err := counter.RetryOperation(context.Background(), "k", 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cache.values["k"] != tt.want {
			t.Errorf("stored %q: expected %q, got %q", tt.stored, tt.want, cache.values["k"])
		}
	}
}

func TestRetryOperation_ValueAboveLimit(t *testing.T) {
	for _, stored := range []string{"3", "4", "1e300", "+Inf", "9223372036854775808"} {
		cache := newMockCache()
		cache.values["k"] = stored
		counter := NewCounter(cache, Config{MaxAttempts: 3})

		ok, err := counter.RetryOperation(context.Background(), "k", 0)
		if err != nil {
			t.Fatalf("stored %q: unexpected error: %v", stored, err)
		}
		if ok {
			t.Errorf("stored %q: expected no retry above the limit", stored)
		}
		if _, exists := cache.values["k"]; exists {
			t.Errorf("stored %q: expected key to be deleted, got %q", stored, cache.values["k"])
		}
	}
}

func TestRetryOperation_SingleAttempt(t *testing.T) {
	cache := newMockCache()
	counter := NewCounter(cache, Config{MaxAttempts: 0})

	if counter.MaxAttempts() != 1 {
		t.Fatalf("expected max attempts clamped to 1, got %d", counter.MaxAttempts())
	}
	ok, err := counter.RetryOperation(context.Background(), "k", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no retry with a single attempt")
	}
}

func TestRetryOperation_CacheErrorPropagates(t *testing.T) {
	cache := newMockCache()
	cache.getErr = errors.New("connection refused")
	counter := NewCounter(cache, Config{MaxAttempts: 3})

	_, err := counter.RetryOperation(context.Background(), "k", 0)
	if !errors.Is(err, cache.getErr) {
		t.Errorf("expected wrapped cache error, got %v", err)
	}
}

func TestCounter_PassThroughs(t *testing.T) {
	cache := newMockCache()
	counter := NewCounter(cache, Config{MaxAttempts: 3})
	ctx := context.Background()

	if err := counter.SetCache(ctx, "test", "test", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := counter.GetCacheByKey(ctx, "test")
	if err != nil || !ok || v != "test" {
		t.Errorf("expected test, got %q ok=%v err=%v", v, ok, err)
	}
	if err := counter.DeleteCache(ctx, "test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := counter.GetCacheByKey(ctx, "test"); ok {
		t.Error("expected key to be gone")
	}
}
