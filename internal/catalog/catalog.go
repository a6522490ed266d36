// Package catalog caches the menu fetched from the CMS.
package catalog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/taberna/internal/domain/product"
)

// Cache keeps the product list for a TTL. Concurrent refreshes share one
// upstream call. When a refresh fails and an older copy exists, the older
// copy is served and the failure logged.
type Cache struct {
	repo product.Repository
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	products  []product.Product
	index     product.Index
	fetchedAt time.Time
}

// New creates a Cache. A zero ttl refreshes on every call.
func New(repo product.Repository, ttl time.Duration) *Cache {
	return &Cache{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// List returns the menu ordered by id.
func (c *Cache) List(ctx context.Context) ([]product.Product, error) {
	products, _, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(products), nil
}

// Index returns the menu keyed by id.
func (c *Cache) Index(ctx context.Context) (product.Index, error) {
	_, idx, err := c.load(ctx)
	return idx, err
}

// Get returns a single product.
func (c *Cache) Get(ctx context.Context, id int) (product.Product, error) {
	idx, err := c.Index(ctx)
	if err != nil {
		return product.Product{}, err
	}
	p, ok := idx.Get(id)
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

func (c *Cache) load(ctx context.Context) ([]product.Product, product.Index, error) {
	c.mu.RLock()
	products, idx, fetchedAt := c.products, c.index, c.fetchedAt
	c.mu.RUnlock()

	if !fetchedAt.IsZero() && c.now().Sub(fetchedAt) < c.ttl {
		return products, idx, nil
	}

	// The shared call must not be cancelled by the first caller leaving.
	ch := c.group.DoChan("menu", func() (any, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-ch:
		c.mu.RLock()
		products, idx = c.products, c.index
		c.mu.RUnlock()

		if res.Err != nil {
			if products == nil {
				return nil, nil, res.Err
			}
			zctx.From(ctx).Warn("Serving stale menu", zap.Error(res.Err))
		}
		return products, idx, nil
	}
}

func (c *Cache) refresh(ctx context.Context) error {
	products, err := c.repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh menu")
	}
	products = slices.Clone(products)
	slices.SortFunc(products, func(a, b product.Product) int { return a.ID - b.ID })

	c.mu.Lock()
	c.products = products
	c.index = product.NewIndex(products)
	c.fetchedAt = c.now()
	c.mu.Unlock()

	zctx.From(ctx).Debug("Menu refreshed", zap.Int("products", len(products)))
	return nil
}
