package product

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Menu sections used by the reference menu data.
const (
	SectionFood    = "food"
	SectionDrink   = "drink"
	SectionDessert = "dessert"
)

// Product is a menu item as published by the CMS.
type Product struct {
	ID          int
	Name        string
	Description string
	Price       decimal.Decimal
	// ImageURL is absolute, or empty when the item has no picture.
	ImageURL string
	Section  string
}

// Repository defines read operations for the menu catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
}

// Lookup resolves a product by id.
type Lookup interface {
	Get(id int) (Product, bool)
}

// Index is an in-memory Lookup built from a product list.
type Index map[int]Product

var _ Lookup = Index(nil)

// NewIndex builds an Index. Later duplicates win.
func NewIndex(products []Product) Index {
	idx := make(Index, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

// Get returns the product with the given id.
func (idx Index) Get(id int) (Product, bool) {
	p, ok := idx[id]
	return p, ok
}

// Filter returns the products of the given section whose name contains
// query, case-insensitively. An empty section or query matches everything.
// The result is ordered by id.
func Filter(products []Product, section, query string) []Product {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if section != "" && p.Section != section {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
