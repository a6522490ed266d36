package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/taberna/internal/domain/auth"
	"github.com/xenking/taberna/internal/domain/cart"
	"github.com/xenking/taberna/internal/domain/order"
	"github.com/xenking/taberna/internal/domain/product"
	"github.com/xenking/taberna/internal/kv"
)

const (
	testPepper = "pepper"
	testAPIKey = "staff-key"
)

var testNow = time.Date(2024, 5, 15, 13, 30, 0, 0, time.UTC)

type fakeCatalog struct {
	products []product.Product
	err      error
}

func (f *fakeCatalog) List(context.Context) ([]product.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeCatalog) Index(context.Context) (product.Index, error) {
	if f.err != nil {
		return nil, f.err
	}
	return product.NewIndex(f.products), nil
}

func (f *fakeCatalog) Get(_ context.Context, id int) (product.Product, error) {
	if f.err != nil {
		return product.Product{}, f.err
	}
	p, ok := product.NewIndex(f.products).Get(id)
	if !ok {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

type fakeOrders struct {
	mu        sync.Mutex
	created   []*order.Order
	existing  []order.Order
	createErr error
	listErr   error
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	o.ID = 100 + len(f.created)
	o.CreatedAt = testNow
	f.created = append(f.created, o)
	return nil
}

func (f *fakeOrders) List(context.Context) ([]order.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.existing, nil
}

type fakeProvider struct {
	loginCalls int
	loginErr   error
}

func (f *fakeProvider) Login(_ context.Context, identifier, _ string) (*auth.Session, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &auth.Session{Token: "jwt", User: auth.User{ID: 7, Username: "ana", Email: identifier}}, nil
}

func (f *fakeProvider) Register(_ context.Context, username, email, _ string) (*auth.Session, error) {
	return &auth.Session{Token: "jwt", User: auth.User{ID: 8, Username: username, Email: email}}, nil
}

func (f *fakeProvider) UpdatePhone(context.Context, string, int, string) error {
	return nil
}

type testEnv struct {
	t        *testing.T
	router   chi.Router
	handler  *Handler
	catalog  *fakeCatalog
	orders   *fakeOrders
	provider *fakeProvider
	store    kv.Store
	cookies  map[string]*http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog := &fakeCatalog{products: []product.Product{
		{ID: 1, Name: "Tortilla española", Price: decimal.RequireFromString("4.50"), Section: "Tapas"},
		{ID: 2, Name: "Cerveza Alhambra", Price: decimal.RequireFromString("2.50"), Section: "Bebidas"},
		{ID: 3, Name: "Croquetas", Price: decimal.RequireFromString("6"), Section: "Tapas"},
	}}
	repo := &fakeOrders{}
	provider := &fakeProvider{}
	store := kv.NewMemory()

	orders, err := order.NewService(catalog, repo, order.KeywordRule{"cerveza"}, order.Config{
		PaymentURL: "https://pay.example.com/checkout",
		Tables:     []string{"Mesa 1", "Mesa 2"},
	})
	require.NoError(t, err)

	admin, err := NewAPIKeyAuth(testPepper, []string{HashAPIKey(testPepper, testAPIKey)})
	require.NoError(t, err)

	h := NewHandler(
		HandlerConfig{Location: time.UTC},
		catalog,
		cart.NewStore(store, time.Hour),
		orders,
		auth.NewService(provider, store, time.Hour),
		admin,
	)
	h.now = func() time.Time { return testNow }

	r := chi.NewRouter()
	h.Routes(r)

	return &testEnv{
		t:        t,
		router:   r,
		handler:  h,
		catalog:  catalog,
		orders:   repo,
		provider: provider,
		store:    store,
		cookies:  map[string]*http.Cookie{},
	}
}

// do sends a request carrying the cookies collected so far, like a browser.
func (e *testEnv) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	e.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = c
	}
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestProducts_List(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeJSON[[]productResponse](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, "4.50", all[0].Price)
	assert.Equal(t, "6.00", all[2].Price)

	rec = e.do(http.MethodGet, "/api/products?section=Tapas&q=croq", "")
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decodeJSON[[]productResponse](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, 3, filtered[0].ID)
}

func TestProducts_CatalogUnavailable(t *testing.T) {
	e := newTestEnv(t)
	e.catalog.err = errors.New("cms down")

	rec := e.do(http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, msgMenuUnavailable, decodeJSON[apiError](t, rec).Message)
}

func TestProducts_Get(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/api/products/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cerveza Alhambra", decodeJSON[productResponse](t, rec).Name)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/products/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/products/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/products/0", "").Code)
}

func TestProducts_GetCatalogUnavailable(t *testing.T) {
	e := newTestEnv(t)
	e.catalog.err = errors.New("cms down")

	rec := e.do(http.MethodGet, "/api/products/2", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTables(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/api/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Mesa 1", "Mesa 2"}, decodeJSON[[]string](t, rec))
}

func TestCart_Flow(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, e.cookies, cartCookie)
	empty := decodeJSON[cartResponse](t, rec)
	assert.Empty(t, empty.Items)
	assert.Equal(t, "0.00", empty.Total)

	e.do(http.MethodPost, "/api/cart/items/1", "")
	e.do(http.MethodPost, "/api/cart/items/1/increment", "")
	rec = e.do(http.MethodPost, "/api/cart/items/3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeJSON[cartResponse](t, rec)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 1, got.Items[0].ProductID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "9.00", got.Items[0].Subtotal)
	require.NotNil(t, got.Items[0].Product)
	assert.Equal(t, "Tortilla española", got.Items[0].Product.Name)
	assert.Equal(t, 3, got.ItemCount)
	assert.Equal(t, "15.00", got.Total)
	assert.False(t, got.RequiresComment)

	rec = e.do(http.MethodPost, "/api/cart/items/1/decrement", "")
	assert.Equal(t, "10.50", decodeJSON[cartResponse](t, rec).Total)

	rec = e.do(http.MethodDelete, "/api/cart/items/3", "")
	got = decodeJSON[cartResponse](t, rec)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "4.50", got.Total)

	rec = e.do(http.MethodDelete, "/api/cart", "")
	assert.Empty(t, decodeJSON[cartResponse](t, rec).Items)
}

func TestCart_DecrementAbsentIsNoop(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/cart/items/2/decrement", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[cartResponse](t, rec).Items)
}

func TestCart_BeerRequiresComment(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/cart/items/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeJSON[cartResponse](t, rec).RequiresComment)
}

func TestCart_InvalidProductID(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/cart/items/-4", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/cart/items/x", "").Code)
}

func TestCart_ForgedCookieReplaced(t *testing.T) {
	e := newTestEnv(t)
	e.cookies[cartCookie] = &http.Cookie{Name: cartCookie, Value: "session:admin"}

	rec := e.do(http.MethodPost, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "session:admin", e.cookies[cartCookie].Value)
}

func TestCart_RendersWithoutMenu(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/api/cart/items/1", "")
	e.catalog.err = errors.New("cms down")

	rec := e.do(http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[cartResponse](t, rec)
	require.Len(t, got.Items, 1)
	assert.Nil(t, got.Items[0].Product)
	assert.Equal(t, 1, got.ItemCount)
	assert.Equal(t, "0.00", got.Total)
}

func TestOrders_Submit(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/api/cart/items/1", "")
	e.do(http.MethodPost, "/api/cart/items/3", "")

	rec := e.do(http.MethodPost, "/api/orders", `{"table":"Mesa 2","name":"Ana","comment":""}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeJSON[submitOrderResponse](t, rec)
	assert.Equal(t, 100, got.OrderID)
	assert.Equal(t, "10.50", got.Total)
	assert.True(t, strings.HasPrefix(got.PaymentURL, "https://pay.example.com/checkout?"))
	assert.Contains(t, got.PaymentURL, "orderId=100")

	require.Len(t, e.orders.created, 1)
	o := e.orders.created[0]
	assert.Equal(t, "Mesa 2", o.Table)
	assert.Equal(t, map[int]int{1: 1, 3: 1}, o.Amounts)
	assert.Equal(t, "Cliente: Ana\n", o.Comment)

	rec = e.do(http.MethodGet, "/api/cart", "")
	assert.Empty(t, decodeJSON[cartResponse](t, rec).Items)
}

func TestOrders_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		body  string
		code  int
		field string
	}{
		{
			name: "EmptyCart",
			body: `{"table":"Mesa 1","name":"Ana"}`,
			code: http.StatusBadRequest,
		},
		{
			name:  "NoTable",
			items: []string{"1"},
			body:  `{"table":"","name":"Ana"}`,
			code:  http.StatusUnprocessableEntity,
			field: "table",
		},
		{
			name:  "UnknownTable",
			items: []string{"1"},
			body:  `{"table":"Terraza","name":"Ana"}`,
			code:  http.StatusUnprocessableEntity,
			field: "table",
		},
		{
			name:  "NoName",
			items: []string{"1"},
			body:  `{"table":"Mesa 1","name":"  "}`,
			code:  http.StatusUnprocessableEntity,
			field: "name",
		},
		{
			name:  "BeerWithoutComment",
			items: []string{"1", "2"},
			body:  `{"table":"Mesa 1","name":"Ana","comment":" "}`,
			code:  http.StatusUnprocessableEntity,
			field: "comment",
		},
		{
			name: "MalformedBody",
			body: `{"table":`,
			code: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			for _, id := range tt.items {
				e.do(http.MethodPost, "/api/cart/items/"+id, "")
			}

			rec := e.do(http.MethodPost, "/api/orders", tt.body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, decodeJSON[apiError](t, rec).Field)
			assert.Empty(t, e.orders.created)
		})
	}
}

func TestOrders_BeerWithComment(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/api/cart/items/2", "")

	rec := e.do(http.MethodPost, "/api/orders", `{"table":"Mesa 1","name":"Ana","comment":"Tapa de ensaladilla"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, e.orders.created, 1)
	assert.Equal(t, "Cliente: Ana\nTapa de ensaladilla", e.orders.created[0].Comment)
}

func TestOrders_CMSFailureKeepsCart(t *testing.T) {
	e := newTestEnv(t)
	e.orders.createErr = errors.New("connection refused")
	e.do(http.MethodPost, "/api/cart/items/1", "")

	rec := e.do(http.MethodPost, "/api/orders", `{"table":"Mesa 1","name":"Ana"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, msgOrderFailed, decodeJSON[apiError](t, rec).Message)

	rec = e.do(http.MethodGet, "/api/cart", "")
	assert.Len(t, decodeJSON[cartResponse](t, rec).Items, 1)
}

func TestAuth_LoginAndSession(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/auth/session", "").Code)

	rec := e.do(http.MethodPost, "/api/auth/login", `{"email":" Ana@Example.com ","password":"secreto"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeJSON[sessionResponse](t, rec)
	assert.Equal(t, "ana@example.com", got.User.Email)
	assert.Equal(t, auth.ProfilePath, got.Redirect)
	require.Contains(t, e.cookies, sessionCookie)
	first := e.cookies[sessionCookie].Value

	rec = e.do(http.MethodGet, "/api/auth/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decodeJSON[sessionResponse](t, rec).User.ID)

	// A second login rotates the id and drops the old session.
	e.do(http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"secreto"}`)
	assert.NotEqual(t, first, e.cookies[sessionCookie].Value)
	_, err := e.store.Get(context.Background(), auth.SessionKey(first))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestAuth_LoginValidation(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/auth/login", `{"email":"abc","password":"secreto"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email", decodeJSON[apiError](t, rec).Field)
	assert.Zero(t, e.provider.loginCalls)
	assert.NotContains(t, e.cookies, sessionCookie)
}

func TestAuth_LoginProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   int
	}{
		{name: "BadCredentials", status: http.StatusBadRequest, code: http.StatusBadRequest},
		{name: "Throttled", status: http.StatusTooManyRequests, code: http.StatusTooManyRequests},
		{name: "ServerError", status: http.StatusInternalServerError, code: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.provider.loginErr = &auth.ProviderError{Status: tt.status, Message: "nope"}

			rec := e.do(http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"secreto"}`)
			require.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, decodeJSON[apiError](t, rec).Message)
			assert.NotContains(t, e.cookies, sessionCookie)
		})
	}
}

func TestAuth_Register(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/auth/register", `{
		"username": "ana.g",
		"email": "ana@example.com",
		"password": "Secreto12",
		"confirmPassword": "Secreto12",
		"acceptTerms": true
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "ana.g", decodeJSON[sessionResponse](t, rec).User.Username)
	assert.Contains(t, e.cookies, sessionCookie)

	rec = e.do(http.MethodPost, "/api/auth/register", `{
		"username": "ana.g",
		"email": "ana@example.com",
		"password": "Secreto12",
		"confirmPassword": "Secreto13",
		"acceptTerms": true
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "confirmPassword", decodeJSON[apiError](t, rec).Field)
}

func TestAuth_Logout(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"secreto"}`)
	sid := e.cookies[sessionCookie].Value

	rec := e.do(http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, e.cookies, sessionCookie)

	_, err := e.store.Get(context.Background(), auth.SessionKey(sid))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestContact(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodPost, "/api/contact", `{
		"nombre": "Ana",
		"email": "ana@example.com",
		"telefono": "612 34 56 78",
		"asunto": "Reserva",
		"mensaje": "Mesa para seis el sábado"
	}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = e.do(http.MethodPost, "/api/contact", `{
		"nombre": "Ana",
		"email": "ana@example.com",
		"telefono": "123",
		"asunto": "Reserva",
		"mensaje": "Hola"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "telefono", decodeJSON[apiError](t, rec).Field)

	rec = e.do(http.MethodPost, "/api/contact", `{"nombre":"Ana","email":"ana@example.com","asunto":"x","mensaje":"`+
		strings.Repeat("a", maxContactMessage+1)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "mensaje", decodeJSON[apiError](t, rec).Field)
}

func TestAdmin_RequiresKey(t *testing.T) {
	e := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/admin/calendar", "").Code)
	assert.Equal(t, http.StatusUnauthorized,
		e.do(http.MethodGet, "/api/admin/orders", "", APIKeyHeader, "wrong").Code)
}

func TestAdmin_Calendar(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(http.MethodGet, "/api/admin/calendar", "", APIKeyHeader, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[calendarResponse](t, rec)
	assert.Equal(t, "Mayo 2024", got.Title)
	assert.Equal(t, "2024-05", got.Month)
	assert.Equal(t, "2024-05-15", got.Selected)
	assert.Equal(t, "2024-04", got.Prev)
	assert.Equal(t, "2024-06", got.Next)
	// 1 May 2024 is a Wednesday.
	require.Len(t, got.Cells, 3+31)
	assert.True(t, got.Cells[0].Blank)
	assert.Equal(t, 1, got.Cells[3].Day)
	assert.True(t, got.Cells[3+14].Selected)
	assert.True(t, got.Cells[3+14].Today)

	rec = e.do(http.MethodGet, "/api/admin/calendar?month=2024-02&selected=2024-02-29", "", APIKeyHeader, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeJSON[calendarResponse](t, rec)
	assert.Equal(t, "Febrero 2024", got.Title)
	assert.Len(t, got.Cells, 4+29)

	rec = e.do(http.MethodGet, "/api/admin/calendar?month=febrero", "", APIKeyHeader, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Orders(t *testing.T) {
	e := newTestEnv(t)
	e.orders.existing = []order.Order{
		{
			ID:        3,
			Table:     "Mesa 1",
			ItemIDs:   []int{2},
			Amounts:   map[int]int{2: 3},
			Total:     decimal.RequireFromString("7.5"),
			Status:    order.StatusCompleted,
			Comment:   "Cliente: Luis\nOlivas",
			CreatedAt: time.Date(2024, 5, 14, 21, 0, 0, 0, time.UTC),
		},
		{
			ID:        2,
			Table:     "Mesa 2",
			Total:     decimal.RequireFromString("4.5"),
			Status:    order.StatusPending,
			CreatedAt: time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC),
		},
	}

	rec := e.do(http.MethodGet, "/api/admin/orders", "", APIKeyHeader, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[ordersResponse](t, rec)
	assert.Equal(t, "2024-05-15", got.Date)
	require.Len(t, got.Orders, 1)
	assert.Equal(t, 2, got.Orders[0].ID)
	assert.Equal(t, "Pendiente", got.Orders[0].StatusLabel)
	assert.Equal(t, "4.50", got.Orders[0].Total)
	assert.NotNil(t, got.Orders[0].Items)

	rec = e.do(http.MethodGet, "/api/admin/orders?date=2024-05-14", "", APIKeyHeader, testAPIKey)
	got = decodeJSON[ordersResponse](t, rec)
	require.Len(t, got.Orders, 1)
	assert.Equal(t, 3, got.Orders[0].ItemCount)
	assert.Equal(t, order.StatusCompleted, got.Orders[0].Status)

	rec = e.do(http.MethodGet, "/api/admin/orders?date=14/05/2024", "", APIKeyHeader, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.orders.listErr = errors.New("cms down")
	rec = e.do(http.MethodGet, "/api/admin/orders", "", APIKeyHeader, testAPIKey)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	_, err := NewAPIKeyAuth(testPepper, []string{"zz"})
	require.Error(t, err)
	_, err = NewAPIKeyAuth(testPepper, []string{"abcd"})
	require.Error(t, err)

	a, err := NewAPIKeyAuth(testPepper, []string{"", HashAPIKey(testPepper, testAPIKey)})
	require.NoError(t, err)
	assert.True(t, a.Valid(testAPIKey))
	assert.False(t, a.Valid(""))
	assert.False(t, a.Valid("other"))

	var none *APIKeyAuth
	assert.False(t, none.Valid(testAPIKey))
}

func TestDecodeBody_TooLarge(t *testing.T) {
	e := newTestEnv(t)

	body := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec := e.do(http.MethodPost, "/api/auth/login", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
