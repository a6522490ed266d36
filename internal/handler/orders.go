package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/cms"
	"github.com/xenking/taberna/internal/domain/order"
)

const msgOrderFailed = "Error al enviar el pedido. Por favor, inténtalo de nuevo."

type submitOrderRequest struct {
	Table   string `json:"table"`
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

type submitOrderResponse struct {
	OrderID    int    `json:"orderId"`
	Total      string `json:"total"`
	PaymentURL string `json:"paymentUrl"`
}

// submitOrder handles POST /api/orders. On success the browser navigates to
// paymentUrl.
func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	c := h.carts.Open(ctx, h.cartID(w, r))
	receipt, err := h.orders.Submit(ctx, c, order.SubmitRequest{
		Table:   req.Table,
		Name:    req.Name,
		Comment: req.Comment,
	})
	if err != nil {
		mapOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitOrderResponse{
		OrderID:    receipt.Order.ID,
		Total:      receipt.Order.Total.StringFixed(2),
		PaymentURL: receipt.PaymentURL,
	})
}

// mapOrderError converts order submission errors to responses.
func mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, order.Message(err))
		return
	case errors.Is(err, order.ErrTableRequired), errors.Is(err, order.ErrUnknownTable):
		writeFieldError(w, http.StatusUnprocessableEntity, "table", order.Message(err))
		return
	case errors.Is(err, order.ErrNameRequired):
		writeFieldError(w, http.StatusUnprocessableEntity, "name", order.Message(err))
		return
	case errors.Is(err, order.ErrCommentRequired):
		writeFieldError(w, http.StatusUnprocessableEntity, "comment", order.Message(err))
		return
	}

	lg := zctx.From(r.Context())
	var se *cms.StatusError
	if errors.As(err, &se) {
		lg.Error("CMS rejected order", zap.Int("status", se.Status), zap.Error(err))
	} else {
		lg.Error("Submit order", zap.Error(err))
	}
	writeError(w, http.StatusBadGateway, msgOrderFailed)
}
