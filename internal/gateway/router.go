// Package gateway is the HTTP front door. It validates requests, forwards
// them to the customers microservice and maps failures to JSON errors.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vietddude/microgate/internal/core/apperr"
)

// NewRouter builds the gateway routes. ops, when set, serves the health and
// metrics endpoints.
func NewRouter(h *Handlers, ops http.Handler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, log, apperr.NewHTTP(http.StatusNotFound, "Cannot "+r.Method+" "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, log, apperr.NewHTTP(http.StatusMethodNotAllowed, "Method Not Allowed"))
	})

	if ops != nil {
		r.Handle("/health", ops)
		r.Handle("/health/detailed", ops)
		r.Handle("/metrics", ops)
	}

	r.Post("/auth/login", h.Login)

	r.Route("/customers", func(r chi.Router) {
		r.Use(RequireAuth(h.auth, log))

		r.Post("/create", h.CreateCustomer)
		r.Get("/findAll", h.FindAllCustomers)
		r.Get("/findBy/{customerCode}", h.FindCustomerByCode)
		r.Patch("/update", h.UpdateCustomer)
		r.Delete("/delete", h.DeleteCustomer)
		r.Post("/bulk/create", h.CreateCustomerBulk)
	})

	return r
}
