package order

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/calendar"
	"github.com/xenking/taberna/internal/domain/product"
)

// Submission preconditions, checked in this order.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrTableRequired   = errors.New("table required")
	ErrUnknownTable    = errors.New("unknown table")
	ErrNameRequired    = errors.New("customer name required")
	ErrCommentRequired = errors.New("comment required for beer orders")
)

// Message returns the customer-facing text for a submission error, or "" if
// err is not a validation error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "El carrito está vacío"
	case errors.Is(err, ErrTableRequired), errors.Is(err, ErrUnknownTable):
		return "Por favor, seleccione una mesa"
	case errors.Is(err, ErrNameRequired):
		return "Por favor, ingrese su nombre"
	case errors.Is(err, ErrCommentRequired):
		return "Si pidió cerveza, por favor indique la tapa deseada en los comentarios"
	default:
		return ""
	}
}

// Cart is the part of the shopping cart the submitter needs.
type Cart interface {
	IsEmpty() bool
	Items() map[int]int
	IDs() []int
	Total(catalog product.Lookup) decimal.Decimal
	Clear(ctx context.Context) error
}

// Catalog provides the current menu as a lookup index.
type Catalog interface {
	Index(ctx context.Context) (product.Index, error)
}

// Publisher announces submitted orders to interested parties (kitchen
// display, notifications).
type Publisher interface {
	PublishSubmitted(ctx context.Context, o *Order) error
}

// SubmitRequest holds the order form fields.
type SubmitRequest struct {
	Table   string
	Name    string
	Comment string
}

// Receipt is the outcome of a successful submission.
type Receipt struct {
	Order      *Order
	PaymentURL string
}

// Config holds non-dependency settings of the Service.
type Config struct {
	// PaymentURL is the payment processor page the customer is sent to.
	PaymentURL string
	// Tables restricts the accepted table labels. Empty accepts any label.
	Tables []string
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithPublisher sets the order event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMeterProvider enables order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service validates and submits orders and lists them for staff.
type Service struct {
	catalog   Catalog
	orders    Repository
	rule      CommentRule
	publisher Publisher

	paymentURL *url.URL
	tables     []string

	meterProvider metric.MeterProvider
	submitted     metric.Int64Counter
	rejected      metric.Int64Counter
}

// NewService creates an order Service.
func NewService(catalog Catalog, orders Repository, rule CommentRule, cfg Config, opts ...Option) (*Service, error) {
	u, err := url.Parse(cfg.PaymentURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse payment url")
	}
	if rule == nil {
		rule = NoCommentRule
	}

	s := &Service{
		catalog:       catalog,
		orders:        orders,
		rule:          rule,
		paymentURL:    u,
		tables:        cfg.Tables,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meterProvider.Meter("github.com/xenking/taberna/internal/domain/order")
	if s.submitted, err = meter.Int64Counter("orders.submitted",
		metric.WithDescription("Orders accepted by the CMS"),
	); err != nil {
		return nil, errors.Wrap(err, "create submitted counter")
	}
	if s.rejected, err = meter.Int64Counter("orders.rejected",
		metric.WithDescription("Order submissions rejected by validation"),
	); err != nil {
		return nil, errors.Wrap(err, "create rejected counter")
	}

	return s, nil
}

// Tables returns the configured table labels.
func (s *Service) Tables() []string {
	return slices.Clone(s.tables)
}

// RequiresComment reports whether the cart holds a product that needs a
// comment.
func (s *Service) RequiresComment(ctx context.Context, c Cart) (bool, error) {
	if c.IsEmpty() {
		return false, nil
	}
	idx, err := s.catalog.Index(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load catalog")
	}
	return s.requiresComment(idx, c.IDs()), nil
}

func (s *Service) requiresComment(idx product.Index, ids []int) bool {
	for _, id := range ids {
		if p, ok := idx.Get(id); ok && s.rule.RequiresComment(p) {
			return true
		}
	}
	return false
}

// Submit validates the form and the cart, creates the order in the CMS,
// clears the cart and returns where to pay. Validation failures happen
// before any network call except the catalog lookup the comment rule needs.
func (s *Service) Submit(ctx context.Context, c Cart, req SubmitRequest) (*Receipt, error) {
	if err := s.validateForm(c, req); err != nil {
		s.reject(ctx, err)
		return nil, err
	}

	idx, err := s.catalog.Index(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	ids := c.IDs()
	if s.requiresComment(idx, ids) && strings.TrimSpace(req.Comment) == "" {
		s.reject(ctx, ErrCommentRequired)
		return nil, ErrCommentRequired
	}

	o := &Order{
		Table:   strings.TrimSpace(req.Table),
		ItemIDs: ids,
		Amounts: c.Items(),
		Total:   c.Total(idx).Round(2),
		Status:  StatusPending,
		Comment: fmt.Sprintf("Cliente: %s\n%s", strings.TrimSpace(req.Name), req.Comment),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	s.submitted.Add(ctx, 1)

	lg := zctx.From(ctx)
	lg.Info("Order submitted",
		zap.Int("order_id", o.ID),
		zap.String("table", o.Table),
		zap.String("total", o.Total.String()),
	)

	// The order exists in the CMS from here on; what follows is best effort.
	if err := c.Clear(ctx); err != nil {
		lg.Warn("Clear cart after order", zap.Int("order_id", o.ID), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSubmitted(ctx, o); err != nil {
			lg.Warn("Publish order event", zap.Int("order_id", o.ID), zap.Error(err))
		}
	}

	return &Receipt{
		Order:      o,
		PaymentURL: s.paymentLink(o),
	}, nil
}

func (s *Service) validateForm(c Cart, req SubmitRequest) error {
	if c.IsEmpty() {
		return ErrEmptyCart
	}
	table := strings.TrimSpace(req.Table)
	if table == "" {
		return ErrTableRequired
	}
	if len(s.tables) > 0 && !slices.Contains(s.tables, table) {
		return ErrUnknownTable
	}
	if strings.TrimSpace(req.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

func (s *Service) reject(ctx context.Context, reason error) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason.Error())))
}

// paymentLink builds the payment page URL carrying order id and total.
func (s *Service) paymentLink(o *Order) string {
	u := *s.paymentURL
	q := u.Query()
	q.Set("orderId", strconv.Itoa(o.ID))
	q.Set("total", o.Total.String())
	u.RawQuery = q.Encode()
	return u.String()
}

// ListForDay returns the orders created on the calendar day of day, in the
// day's location, newest first as returned by the repository.
func (s *Service) ListForDay(ctx context.Context, day time.Time) ([]Order, error) {
	all, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	selected := calendar.New(day, day)

	out := make([]Order, 0, len(all))
	for _, o := range all {
		if selected.Contains(o.CreatedAt) {
			out = append(out, o)
		}
	}
	return out, nil
}
