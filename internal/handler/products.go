package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/product"
)

const msgMenuUnavailable = "No se pudo cargar el menú. Inténtalo de nuevo más tarde."

type productResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Section     string `json:"section,omitempty"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		ImageURL:    p.ImageURL,
		Section:     p.Section,
	}
}

// listProducts handles GET /api/products?section=&q=.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	all, err := h.catalog.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("List products", zap.Error(err))
		writeError(w, http.StatusBadGateway, msgMenuUnavailable)
		return
	}

	q := r.URL.Query()
	filtered := product.Filter(all, q.Get("section"), q.Get("q"))
	out := make([]productResponse, len(filtered))
	for i, p := range filtered {
		out[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.Get(r.Context(), id)
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "Producto no encontrado")
		return
	case err != nil:
		zctx.From(r.Context()).Error("Load catalog", zap.Error(err))
		writeError(w, http.StatusBadGateway, msgMenuUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// listTables handles GET /api/tables.
func (h *Handler) listTables(w http.ResponseWriter, _ *http.Request) {
	tables := h.orders.Tables()
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// productID parses the {id} path parameter, answering 400 when invalid.
func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Identificador de producto inválido")
		return 0, false
	}
	return id, true
}
