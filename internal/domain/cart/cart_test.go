package cart

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/taberna/internal/domain/product"
	"github.com/xenking/taberna/internal/kv"
)

// --- Helpers ---

type failingStore struct {
	kv.Store
	getErr error
	setErr error
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *failingStore) Update(ctx context.Context, key string, ttl time.Duration, fn kv.UpdateFunc) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.Update(ctx, key, ttl, fn)
}

func observedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zctx.Base(context.Background(), zap.New(core)), logs
}

func catalog() product.Index {
	return product.NewIndex([]product.Product{
		{ID: 7, Name: "Croquetas", Price: decimal.RequireFromString("10.00")},
		{ID: 9, Name: "Cerveza", Price: decimal.RequireFromString("5.00")},
	})
}

// --- Tests ---

func TestCart_AddIncrementDecrementRemove(t *testing.T) {
	ctx := context.Background()
	c := NewStore(kv.NewMemory(), 0).Open(ctx, "a")

	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Increment(ctx, 9))
	assert.Equal(t, map[int]int{7: 2, 9: 1}, c.Items())

	require.NoError(t, c.Decrement(ctx, 7))
	assert.Equal(t, 1, c.Items()[7])

	// Decrementing a quantity of 1 removes the entry entirely.
	require.NoError(t, c.Decrement(ctx, 7))
	assert.Equal(t, map[int]int{9: 1}, c.Items())

	// Decrementing an absent entry is a no-op.
	require.NoError(t, c.Decrement(ctx, 42))
	assert.Equal(t, map[int]int{9: 1}, c.Items())

	require.NoError(t, c.Add(ctx, 9))
	require.NoError(t, c.Add(ctx, 9))
	require.NoError(t, c.Remove(ctx, 9))
	assert.True(t, c.IsEmpty())
}

func TestCart_InvalidProductID(t *testing.T) {
	ctx := context.Background()
	c := NewStore(kv.NewMemory(), 0).Open(ctx, "a")

	require.ErrorIs(t, c.Add(ctx, 0), ErrInvalidProductID)
	require.ErrorIs(t, c.Decrement(ctx, -3), ErrInvalidProductID)
	assert.True(t, c.IsEmpty())
}

func TestCart_TotalAndItemCount(t *testing.T) {
	ctx := context.Background()
	c := NewStore(kv.NewMemory(), 0).Open(ctx, "a")

	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Add(ctx, 9))

	assert.True(t, decimal.RequireFromString("25.00").Equal(c.Total(catalog())),
		"got %s", c.Total(catalog()))
	assert.Equal(t, 3, c.ItemCount())
	assert.Equal(t, []int{7, 9}, c.IDs())
}

func TestCart_TotalIgnoresUnknownProducts(t *testing.T) {
	ctx := context.Background()
	c := NewStore(kv.NewMemory(), 0).Open(ctx, "a")

	require.NoError(t, c.Add(ctx, 9))
	require.NoError(t, c.Add(ctx, 1000))
	require.NoError(t, c.Add(ctx, 1000))

	assert.True(t, decimal.RequireFromString("5").Equal(c.Total(catalog())))
	assert.Equal(t, 3, c.ItemCount())

	lines := c.Lines(catalog())
	require.Len(t, lines, 2)
	assert.Equal(t, 9, lines[0].ID)
	require.NotNil(t, lines[0].Product)
	assert.Equal(t, "Cerveza", lines[0].Product.Name)
	assert.Equal(t, 1000, lines[1].ID)
	assert.Nil(t, lines[1].Product)
	assert.True(t, lines[1].Subtotal.IsZero())
}

func TestCart_PersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := NewStore(mem, 0)

	c := s.Open(ctx, "device-1")
	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Add(ctx, 9))

	raw, err := mem.Get(ctx, Key("device-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"7":2,"9":1}`, string(raw))

	restored := s.Open(ctx, "device-1")
	assert.Equal(t, c.Items(), restored.Items())

	// Other ids do not see this cart.
	assert.True(t, s.Open(ctx, "device-2").IsEmpty())
}

func TestCart_ClearPersists(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), 0)

	c := s.Open(ctx, "a")
	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Clear(ctx))

	assert.True(t, s.Open(ctx, "a").IsEmpty())
}

func TestCart_RestoreMalformed(t *testing.T) {
	ctx, logs := observedContext()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, Key("bad"), []byte("{not json"), 0))

	c := NewStore(mem, 0).Open(ctx, "bad")

	assert.True(t, c.IsEmpty())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Stored cart is malformed, starting empty", logs.All()[0].Message)
}

func TestCart_InterleavedOpenKeepsBothAdds(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), 0)

	// Two requests with the same cookie restore the cart before either saves.
	a := s.Open(ctx, "shared")
	b := s.Open(ctx, "shared")
	require.NoError(t, a.Add(ctx, 7))
	require.NoError(t, b.Add(ctx, 7))

	assert.Equal(t, map[int]int{7: 2}, b.Items())
	assert.Equal(t, map[int]int{7: 2}, s.Open(ctx, "shared").Items())
}

func TestCart_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory(), 0)

	const workers = 20
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Open(ctx, "busy").Add(ctx, 9))
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int]int{9: workers}, s.Open(ctx, "busy").Items())
}

func TestCart_MutateReplacesMalformed(t *testing.T) {
	ctx, logs := observedContext()
	mem := kv.NewMemory()
	s := NewStore(mem, 0)

	c := s.Open(ctx, "late")
	require.NoError(t, mem.Set(ctx, Key("late"), []byte("{not json"), 0))
	require.NoError(t, c.Add(ctx, 7))

	assert.Equal(t, map[int]int{7: 1}, s.Open(ctx, "late").Items())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Stored cart was malformed, replaced", logs.All()[0].Message)
}

func TestCart_RestoreDropsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, Key("x"), []byte(`{"7":2,"abc":1,"-1":4,"9":0,"11":-2}`), 0))

	c := NewStore(mem, 0).Open(ctx, "x")
	assert.Equal(t, map[int]int{7: 2}, c.Items())
}

func TestCart_RestoreStoreError(t *testing.T) {
	ctx, logs := observedContext()
	store := &failingStore{Store: kv.NewMemory(), getErr: errors.New("connection refused")}

	c := NewStore(store, 0).Open(ctx, "a")

	assert.True(t, c.IsEmpty())
	assert.Equal(t, 1, logs.Len())
}

func TestCart_SaveError(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: kv.NewMemory(), setErr: errors.New("disk full")}

	c := NewStore(store, 0).Open(ctx, "a")
	err := c.Add(ctx, 7)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}

func TestCart_RandomSequencesKeepInvariant(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))
	s := NewStore(kv.NewMemory(), 0)

	for run := range 50 {
		c := s.Open(ctx, "prop")
		require.NoError(t, c.Clear(ctx))
		model := map[int]int{}

		for range 200 {
			id := rng.IntN(5) + 1
			switch rng.IntN(4) {
			case 0:
				require.NoError(t, c.Add(ctx, id))
				model[id]++
			case 1:
				require.NoError(t, c.Increment(ctx, id))
				model[id]++
			case 2:
				require.NoError(t, c.Decrement(ctx, id))
				if model[id] <= 1 {
					delete(model, id)
				} else {
					model[id]--
				}
			case 3:
				require.NoError(t, c.Remove(ctx, id))
				delete(model, id)
			}

			for pid, q := range c.Items() {
				require.GreaterOrEqual(t, q, 1, "run %d: product %d has quantity %d", run, pid, q)
			}
		}

		assert.Equal(t, model, c.Items())
		sum := 0
		for _, q := range model {
			sum += q
		}
		assert.Equal(t, sum, c.ItemCount())
		assert.Equal(t, c.Items(), s.Open(ctx, "prop").Items())
	}
}
