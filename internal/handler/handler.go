// Package handler exposes the ordering flow as a JSON API for the web front
// end.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/taberna/internal/domain/auth"
	"github.com/xenking/taberna/internal/domain/cart"
	"github.com/xenking/taberna/internal/domain/order"
	"github.com/xenking/taberna/internal/domain/product"
	"github.com/xenking/taberna/pkg/httpmiddleware"
)

const maxBodyBytes = 64 << 10

// Catalog is the cached menu.
type Catalog interface {
	List(ctx context.Context) ([]product.Product, error)
	Index(ctx context.Context) (product.Index, error)
	Get(ctx context.Context, id int) (product.Product, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	Cookies CookieConfig
	// Location is the restaurant time zone used for calendar days.
	Location *time.Location
	// Limit guards the login, registration, order and contact routes. Nil
	// disables it.
	Limit httpmiddleware.Middleware
}

// Handler serves the API routes.
type Handler struct {
	catalog Catalog
	carts   *cart.Store
	orders  *order.Service
	auth    *auth.Service
	admin   *APIKeyAuth

	cookies CookieConfig
	loc     *time.Location
	limit   httpmiddleware.Middleware
	now     func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	catalog Catalog,
	carts *cart.Store,
	orders *order.Service,
	authSvc *auth.Service,
	admin *APIKeyAuth,
) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	limit := cfg.Limit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		catalog: catalog,
		carts:   carts,
		orders:  orders,
		auth:    authSvc,
		admin:   admin,
		cookies: cfg.Cookies,
		loc:     loc,
		limit:   limit,
		now:     time.Now,
	}
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/tables", h.listTables)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items/{id}", h.addItem)
			r.Post("/items/{id}/increment", h.incrementItem)
			r.Post("/items/{id}/decrement", h.decrementItem)
			r.Delete("/items/{id}", h.removeItem)
		})

		r.With(h.limit).Post("/orders", h.submitOrder)
		r.With(h.limit).Post("/contact", h.contact)

		r.Route("/auth", func(r chi.Router) {
			r.With(h.limit).Post("/login", h.login)
			r.With(h.limit).Post("/register", h.register)
			r.Post("/logout", h.logout)
			r.Get("/session", h.session)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.admin.Middleware())
			r.Get("/calendar", h.adminCalendar)
			r.Get("/orders", h.adminOrders)
		})
	})
}

// apiError is the body of every error response.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, apiError{Code: code, Message: message})
}

func writeFieldError(w http.ResponseWriter, code int, field, message string) {
	writeJSON(w, code, apiError{Code: code, Message: message, Field: field})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "La solicitud es demasiado grande")
			return false
		}
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return false
	}
	return true
}
