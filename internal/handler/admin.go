package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/calendar"
	"github.com/xenking/taberna/internal/domain/order"
)

type calendarResponse struct {
	Title    string          `json:"title"`
	Month    string          `json:"month"`
	Selected string          `json:"selected"`
	Prev     string          `json:"prev"`
	Next     string          `json:"next"`
	Weekdays [7]string       `json:"weekdays"`
	Cells    []calendar.Cell `json:"cells"`
}

// adminCalendar handles GET /api/admin/calendar?month=YYYY-MM&selected=YYYY-MM-DD.
func (h *Handler) adminCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, err := calendar.Parse(q.Get("month"), q.Get("selected"), h.now().In(h.loc))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Fecha inválida")
		return
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Title:    m.Title(),
		Month:    m.First().Format(calendar.MonthLayout),
		Selected: m.Selected().Format(calendar.DateLayout),
		Prev:     m.Prev().First().Format(calendar.MonthLayout),
		Next:     m.Next().First().Format(calendar.MonthLayout),
		Weekdays: calendar.Weekdays,
		Cells:    m.Grid(),
	})
}

type orderRow struct {
	ID          int          `json:"id"`
	Table       string       `json:"table"`
	ItemCount   int          `json:"itemCount"`
	Items       map[int]int  `json:"items"`
	Total       string       `json:"total"`
	Status      order.Status `json:"status"`
	StatusLabel string       `json:"statusLabel"`
	Comment     string       `json:"comment"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type ordersResponse struct {
	Date   string     `json:"date"`
	Orders []orderRow `json:"orders"`
}

// adminOrders handles GET /api/admin/orders?date=YYYY-MM-DD. The default
// date is today in the restaurant time zone.
func (h *Handler) adminOrders(w http.ResponseWriter, r *http.Request) {
	day := h.now().In(h.loc)
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.ParseInLocation(calendar.DateLayout, v, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Fecha inválida")
			return
		}
		day = t
	}

	orders, err := h.orders.ListForDay(r.Context(), day)
	if err != nil {
		zctx.From(r.Context()).Error("List orders", zap.Error(err))
		writeError(w, http.StatusBadGateway, "No se pudieron cargar los pedidos")
		return
	}

	rows := make([]orderRow, len(orders))
	for i, o := range orders {
		items := o.Amounts
		if items == nil {
			items = map[int]int{}
		}
		rows[i] = orderRow{
			ID:          o.ID,
			Table:       o.Table,
			ItemCount:   o.ItemCount(),
			Items:       items,
			Total:       o.Total.StringFixed(2),
			Status:      o.Status,
			StatusLabel: o.Status.Label(),
			Comment:     o.Comment,
			CreatedAt:   o.CreatedAt.In(h.loc),
		}
	}
	writeJSON(w, http.StatusOK, ordersResponse{
		Date:   day.Format(calendar.DateLayout),
		Orders: rows,
	})
}
