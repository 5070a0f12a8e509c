package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vietddude/microgate/internal/auth"
	"github.com/vietddude/microgate/internal/core/config"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/infra/storage/postgres"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStorage_MemoryFallback(t *testing.T) {
	st, err := openStorage(context.Background(), postgres.Config{}, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.db != nil || st.customers == nil || st.users == nil {
		t.Errorf("expected memory repositories, got %+v", st)
	}
	if err := st.close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestCloser_JoinsErrors(t *testing.T) {
	var c closer
	c.add("ok", nil)
	if c.err() != nil {
		t.Fatal("expected no error")
	}
	boom := errors.New("boom")
	c.add("redis", boom)
	if err := c.err(); !errors.Is(err, boom) || !strings.Contains(err.Error(), "close redis") {
		t.Errorf("unexpected error %v", err)
	}
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{}
	cfg.Auth.JWTSecret = "integration-secret"
	cfg.Broker.Embedded.Enabled = true
	cfg.Broker.Embedded.Port = -1
	cfg.Broker.Embedded.StoreDir = t.TempDir()
	cfg.Broker.ReplyTimeout = 5 * time.Second
	cfg.Customers.BulkOffset = 2
	cfg.Customers.Consumers = 2
	return cfg
}

func TestGatewayAndWorker_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := discardLogger()

	cfg := testConfig(t)
	cfg.Server.HealthPort = 0
	// Defaults are normally applied by config.Load.
	cfg.Broker.Subject = domain.SubjectWildcard
	cfg.Broker.Durable = domain.MicroserviceName
	cfg.Broker = cfg.Broker.WithDefaults()
	cfg.Retry.MaxAttempts = 3
	cfg.Auth.TokenTTL = time.Minute
	cfg.Customers.EventTransport = config.TransportNATS

	w, err := NewWorker(ctx, cfg, log)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start worker: %v", err)
	}
	defer func() { _ = w.Stop(context.Background()) }()

	gwCfg := *cfg
	gwCfg.Broker.Embedded.Enabled = false
	gwCfg.Broker.URL = w.embedded.ClientURL()
	g, err := NewGateway(ctx, &gwCfg, log)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	defer func() { _ = g.Stop(context.Background()) }()

	jwt, _ := auth.NewJWTManager(gwCfg.Auth.JWTSecret, gwCfg.Auth.TokenTTL)
	creds := domain.UserCredentials{Username: "admin", Password: "Secret123"}
	if _, err := auth.NewService(g.stores.users, jwt).CreateUser(ctx, creds); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	srv := httptest.NewServer(g.server.Handler)
	defer srv.Close()

	call := func(method, path, body, token string) (int, []byte) {
		t.Helper()
		req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, data
	}

	status, body := call(http.MethodPost, "/auth/login", `{"username":"admin","password":"Secret123"}`, "")
	if status != http.StatusCreated {
		t.Fatalf("login: %d %s", status, body)
	}
	var token domain.AccessToken
	_ = json.Unmarshal(body, &token)

	customer := `{"customer_code":1,"name":"Jane","taxvat":"12345678901","address":{` +
		`"street":"Main","number":"1","complement":"A","district":"Centre","city":"Town",` +
		`"postal_code":"00000","uf":"SP","country":"BR"}}`

	status, body = call(http.MethodPost, "/customers/create", customer, token.AccessToken)
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}

	status, body = call(http.MethodPost, "/customers/create", customer, token.AccessToken)
	if status != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d %s", status, body)
	}

	status, body = call(http.MethodGet, "/customers/findBy/1", "", token.AccessToken)
	if status != http.StatusOK || !strings.Contains(string(body), `"name":"Jane"`) {
		t.Fatalf("findBy: %d %s", status, body)
	}

	status, body = call(http.MethodGet, "/customers/findBy/2", "", token.AccessToken)
	if status != http.StatusNotFound {
		t.Fatalf("findBy missing: expected 404, got %d %s", status, body)
	}

	status, body = call(http.MethodGet, "/health", "", "")
	if status != http.StatusOK {
		t.Fatalf("health: %d %s", status, body)
	}
}
