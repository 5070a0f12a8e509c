package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/microgate/internal/core/retry"
	"github.com/vietddude/microgate/internal/core/transport"
)

type setCall struct {
	key   string
	value any
	ttl   time.Duration
}

type mockCommander struct {
	values    map[string]string
	sets      []setCall
	deleted   []string
	published map[string][]byte
	err       error
}

func newMockCommander() *mockCommander {
	return &mockCommander{
		values:    make(map[string]string),
		published: make(map[string][]byte),
	}
}

func (m *mockCommander) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCommander) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.sets = append(m.sets, setCall{key: key, value: value, ttl: expiration})
	m.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCommander) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	m.deleted = append(m.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCommander) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	m.published[channel] = message.([]byte)
	return redis.NewIntResult(1, nil)
}

func TestCache_GetMissingKey(t *testing.T) {
	c := NewCache(newMockCommander())

	v, found, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error for missing key, got %v", err)
	}
	if found || v != "" {
		t.Errorf("expected not found, got %q (found=%v)", v, found)
	}
}

func TestCache_ErrorsAreWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	m := newMockCommander()
	m.err = boom
	c := NewCache(m)
	ctx := context.Background()

	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped get error, got %v", err)
	}
	if err := c.Set(ctx, "k", "1", time.Second); !errors.Is(err, boom) {
		t.Errorf("expected wrapped set error, got %v", err)
	}
	if err := c.Del(ctx, "k"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped del error, got %v", err)
	}
}

func TestCache_RetryCounterSequence(t *testing.T) {
	m := newMockCommander()
	counter := retry.NewCounter(NewCache(m), retry.Config{MaxAttempts: 3})
	ctx := context.Background()
	key := "customers_microservice.createCustomerBulk---M1"

	for i, want := range []bool{true, true, false} {
		got, err := counter.RetryOperation(ctx, key, 0)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("attempt %d: expected %v, got %v", i, want, got)
		}
	}

	if len(m.sets) != 2 || m.sets[0].value != "2" || m.sets[1].value != "3" {
		t.Errorf("unexpected writes: %+v", m.sets)
	}
	if m.sets[0].ttl != retry.DefaultTTL {
		t.Errorf("expected ttl %v, got %v", retry.DefaultTTL, m.sets[0].ttl)
	}
	if len(m.deleted) != 1 || m.deleted[0] != key {
		t.Errorf("expected key to be deleted once, got %v", m.deleted)
	}
}

func TestPublisher_EncodesJSON(t *testing.T) {
	m := newMockCommander()
	p := NewPublisher(m)

	err := p.Publish(context.Background(), "customers", map[string]string{"pattern": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(m.published["customers"]); got != `{"pattern":"x"}` {
		t.Errorf("unexpected payload %s", got)
	}
}

func TestDispatch_BuildsPubSubContext(t *testing.T) {
	msgs := make(chan *redis.Message, 2)
	msgs <- &redis.Message{Channel: "customers", Payload: `{"a":1}`}
	msgs <- &redis.Message{Channel: "audit", Payload: "raw"}
	close(msgs)

	var (
		mu       sync.Mutex
		contexts []transport.Context
		payloads []string
	)
	dispatch(context.Background(), msgs, func(ctx context.Context, tc transport.Context, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		contexts = append(contexts, tc)
		payloads = append(payloads, string(payload))
	})

	if len(contexts) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(contexts))
	}
	if contexts[0].IsQueue() {
		t.Error("expected pub/sub context")
	}
	if contexts[0].Args[0] != "customers" || contexts[1].Args[0] != "audit" {
		t.Errorf("unexpected channel args: %v, %v", contexts[0].Args, contexts[1].Args)
	}
	if payloads[1] != "raw" {
		t.Errorf("unexpected payload %q", payloads[1])
	}
}

func TestDispatch_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		dispatch(ctx, make(chan *redis.Message), func(context.Context, transport.Context, []byte) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not return after cancel")
	}
}
