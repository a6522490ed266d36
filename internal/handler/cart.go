package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/cart"
	"github.com/xenking/taberna/internal/domain/product"
)

type cartLine struct {
	ProductID int              `json:"productId"`
	Quantity  int              `json:"quantity"`
	Subtotal  string           `json:"subtotal"`
	Product   *productResponse `json:"product,omitempty"`
}

type cartResponse struct {
	Items     []cartLine `json:"items"`
	ItemCount int        `json:"itemCount"`
	Total     string     `json:"total"`
	// RequiresComment asks the client to prompt for the tapa comment.
	RequiresComment bool `json:"requiresComment"`
}

// renderCart resolves the cart against the menu. Without a menu the lines are
// returned bare and the total is zero.
func (h *Handler) renderCart(ctx context.Context, c *cart.Cart) cartResponse {
	idx, err := h.catalog.Index(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Render cart without menu", zap.Error(err))
		idx = product.Index{}
	}

	lines := c.Lines(idx)
	resp := cartResponse{
		Items:     make([]cartLine, len(lines)),
		ItemCount: c.ItemCount(),
		Total:     c.Total(idx).StringFixed(2),
	}
	for i, l := range lines {
		resp.Items[i] = cartLine{
			ProductID: l.ID,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal.StringFixed(2),
		}
		if l.Product != nil {
			p := toProductResponse(*l.Product)
			resp.Items[i].Product = &p
		}
	}

	if len(lines) > 0 {
		needs, err := h.orders.RequiresComment(ctx, c)
		if err != nil {
			zctx.From(ctx).Warn("Evaluate comment rule", zap.Error(err))
		}
		resp.RequiresComment = needs
	}
	return resp
}

// getCart handles GET /api/cart.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c := h.carts.Open(r.Context(), h.cartID(w, r))
	writeJSON(w, http.StatusOK, h.renderCart(r.Context(), c))
}

// clearCart handles DELETE /api/cart.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(ctx context.Context, c *cart.Cart) error {
		return c.Clear(ctx)
	})
}

// addItem handles POST /api/cart/items/{id}.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, (*cart.Cart).Add)
}

// incrementItem handles POST /api/cart/items/{id}/increment.
func (h *Handler) incrementItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, (*cart.Cart).Increment)
}

// decrementItem handles POST /api/cart/items/{id}/decrement.
func (h *Handler) decrementItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, (*cart.Cart).Decrement)
}

// removeItem handles DELETE /api/cart/items/{id}.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, (*cart.Cart).Remove)
}

func (h *Handler) mutateItem(w http.ResponseWriter, r *http.Request, op func(*cart.Cart, context.Context, int) error) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	h.mutateCart(w, r, func(ctx context.Context, c *cart.Cart) error {
		return op(c, ctx, id)
	})
}

func (h *Handler) mutateCart(w http.ResponseWriter, r *http.Request, op func(context.Context, *cart.Cart) error) {
	ctx := r.Context()
	c := h.carts.Open(ctx, h.cartID(w, r))
	if err := op(ctx, c); err != nil {
		mapCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.renderCart(ctx, c))
}

// mapCartError converts cart errors to responses.
func mapCartError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, cart.ErrInvalidProductID) {
		writeError(w, http.StatusBadRequest, "Identificador de producto inválido")
		return
	}
	zctx.From(r.Context()).Error("Save cart", zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "No se pudo guardar el carrito. Inténtalo de nuevo.")
}
