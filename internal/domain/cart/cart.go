// Package cart implements the shopping cart: a mapping of product id to a
// positive quantity, written through to a kv.Store on every change.
package cart

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/product"
	"github.com/xenking/taberna/internal/kv"
)

// ErrInvalidProductID is returned for product ids that are not positive.
var ErrInvalidProductID = errors.New("invalid product id")

// Store opens carts persisted in a kv.Store.
type Store struct {
	kv  kv.Store
	ttl time.Duration
}

// NewStore returns a Store. Carts expire ttl after their last change; zero
// keeps them forever.
func NewStore(store kv.Store, ttl time.Duration) *Store {
	return &Store{kv: store, ttl: ttl}
}

// Open restores the cart identified by id. A missing or unreadable stored
// value yields an empty cart: the failure is logged and never returned.
func (s *Store) Open(ctx context.Context, id string) *Cart {
	c := &Cart{
		items: make(map[int]int),
		kv:    s.kv,
		key:   Key(id),
		ttl:   s.ttl,
	}

	raw, err := s.kv.Get(ctx, c.key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return c
	case err != nil:
		zctx.From(ctx).Warn("Cart restore failed, starting empty",
			zap.String("key", c.key),
			zap.Error(err),
		)
		return c
	}

	items, err := decode(raw)
	if err != nil {
		zctx.From(ctx).Warn("Stored cart is malformed, starting empty",
			zap.String("key", c.key),
			zap.Error(err),
		)
		return c
	}
	c.items = items
	return c
}

// Key returns the storage key of a cart id.
func Key(id string) string {
	return "cart:" + id
}

// Cart is a product id -> quantity mapping. Every stored quantity is >= 1.
type Cart struct {
	mu    sync.Mutex
	items map[int]int

	kv  kv.Store
	key string
	ttl time.Duration
}

// Line is a cart entry resolved against the catalog. Product is nil when the
// id is no longer in the catalog.
type Line struct {
	Product  *product.Product
	ID       int
	Quantity int
	Subtotal decimal.Decimal
}

// Add puts one more unit of productID in the cart.
func (c *Cart) Add(ctx context.Context, productID int) error {
	return c.mutate(ctx, productID, func(items map[int]int) {
		items[productID]++
	})
}

// Increment is Add under the name the cart view uses for its "+" control.
func (c *Cart) Increment(ctx context.Context, productID int) error {
	return c.Add(ctx, productID)
}

// Decrement takes one unit out. An entry at quantity 1 is removed; a missing
// entry is left alone.
func (c *Cart) Decrement(ctx context.Context, productID int) error {
	return c.mutate(ctx, productID, func(items map[int]int) {
		q, ok := items[productID]
		switch {
		case !ok:
		case q <= 1:
			delete(items, productID)
		default:
			items[productID] = q - 1
		}
	})
}

// Remove deletes the entry regardless of its quantity.
func (c *Cart) Remove(ctx context.Context, productID int) error {
	return c.mutate(ctx, productID, func(items map[int]int) {
		delete(items, productID)
	})
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	return c.update(ctx, func(items map[int]int) {
		clear(items)
	})
}

func (c *Cart) mutate(ctx context.Context, productID int, fn func(items map[int]int)) error {
	if productID <= 0 {
		return ErrInvalidProductID
	}
	return c.update(ctx, fn)
}

// update applies fn to the stored mapping, not the one read by Open, so
// requests sharing a cart id never overwrite each other. The cart adopts
// the written mapping.
func (c *Cart) update(ctx context.Context, fn func(items map[int]int)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		items     map[int]int
		malformed error
	)
	err := c.kv.Update(ctx, c.key, c.ttl, func(current []byte) ([]byte, error) {
		items, malformed = make(map[int]int), nil
		if current != nil {
			stored, err := decode(current)
			if err != nil {
				malformed = err
			} else {
				items = stored
			}
		}
		fn(items)

		raw, err := encode(items)
		if err != nil {
			return nil, errors.Wrap(err, "encode cart")
		}
		return raw, nil
	})
	if err != nil {
		return errors.Wrap(err, "save cart")
	}
	if malformed != nil {
		zctx.From(ctx).Warn("Stored cart was malformed, replaced",
			zap.String("key", c.key),
			zap.Error(malformed),
		)
	}
	c.items = items
	return nil
}

// Items returns a copy of the mapping.
func (c *Cart) Items() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[int]int, len(c.items))
	for id, q := range c.items {
		out[id] = q
	}
	return out
}

// IDs returns the product ids in the cart in ascending order.
func (c *Cart) IDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedIDs(c.items)
}

// IsEmpty reports whether the cart has no entries.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// ItemCount is the sum of all quantities, not the number of entries.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, q := range c.items {
		n += q
	}
	return n
}

// Total is the sum of quantity × price. Ids missing from the catalog count
// as price 0.
func (c *Cart) Total(catalog product.Lookup) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for id, q := range c.items {
		p, ok := catalog.Get(id)
		if !ok {
			continue
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(q))))
	}
	return total
}

// Lines resolves every entry against the catalog, ordered by product id.
func (c *Cart) Lines(catalog product.Lookup) []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := sortedIDs(c.items)
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		q := c.items[id]
		l := Line{ID: id, Quantity: q, Subtotal: decimal.Zero}
		if p, ok := catalog.Get(id); ok {
			l.Product = &p
			l.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(q)))
		}
		lines = append(lines, l)
	}
	return lines
}

func sortedIDs(items map[int]int) []int {
	ids := make([]int, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// encode serializes the mapping as a JSON object keyed by product id, the
// same shape browsers kept in local storage: {"7":2,"9":1}.
func encode(items map[int]int) ([]byte, error) {
	return json.Marshal(items)
}

// decode parses a stored mapping, dropping entries that would break the
// quantity >= 1 invariant.
func decode(raw []byte) (map[int]int, error) {
	var stored map[string]int
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}

	items := make(map[int]int, len(stored))
	for k, q := range stored {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 || q < 1 {
			continue
		}
		items[id] = q
	}
	return items, nil
}
