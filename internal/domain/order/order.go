package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order as stored in the CMS.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Label is the Spanish name shown to staff.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pendiente"
	case StatusCompleted:
		return "Completado"
	case StatusCancelled:
		return "Cancelado"
	default:
		return string(s)
	}
}

// Order is a table order. ID and CreatedAt are assigned by the CMS.
type Order struct {
	ID        int
	Table     string
	ItemIDs   []int
	Amounts   map[int]int
	Total     decimal.Decimal
	Status    Status
	Comment   string
	CreatedAt time.Time
}

// ItemCount is the number of units ordered.
func (o *Order) ItemCount() int {
	n := 0
	for _, q := range o.Amounts {
		n += q
	}
	return n
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores o and fills in its ID and CreatedAt.
	Create(ctx context.Context, o *Order) error
	List(ctx context.Context) ([]Order, error)
}
