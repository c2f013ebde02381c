// Package checkout turns drafts, persisted cart positions and session carts
// into persisted orders.
package checkout

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/cart"
	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

const instrumentationName = "github.com/xenking/webshop/internal/domain/checkout"

// Transactor runs functions in a database transaction carried by the
// context.
type Transactor interface {
	// InTx runs fn in a transaction. A call inside a running transaction
	// joins it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit registers fn to run once the transaction in ctx has
	// committed. It is dropped on rollback.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}

// Notifier is told about every committed order.
type Notifier interface {
	OrderCreated(ctx context.Context, c *customer.Customer, o *order.Order)
}

// ArticleFinder resolves articles in batches.
type ArticleFinder interface {
	FindByIDs(ctx context.Context, ids []int64) ([]catalog.Article, error)
}

// DraftLine is a requested order line. The article is given either by id
// or by reference (id or article URI).
type DraftLine struct {
	ArticleID  int64
	ArticleRef string
	Quantity   int
}

// Draft is an order as submitted by a client, before articles are
// resolved.
type Draft struct {
	Lines []DraftLine
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service assembles and persists orders.
type Service struct {
	tx        Transactor
	articles  ArticleFinder
	customers customer.Repository
	orders    order.Repository
	positions cart.PositionRepository
	carts     cart.Store
	notifier  Notifier

	tracer  trace.Tracer
	meter   metric.Meter
	created metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(
	tx Transactor,
	articles ArticleFinder,
	customers customer.Repository,
	orders order.Repository,
	positions cart.PositionRepository,
	carts cart.Store,
	notifier Notifier,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		tx:        tx,
		articles:  articles,
		customers: customers,
		orders:    orders,
		positions: positions,
		carts:     carts,
		notifier:  notifier,
		tracer:    otel.GetTracerProvider().Tracer(instrumentationName),
		meter:     otel.GetMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.created, err = s.meter.Int64Counter("shop.orders.created",
		metric.WithDescription("Orders committed"),
	); err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	return s, nil
}

// Assemble builds an order from lines for c, persists it and schedules the
// order notification for after commit. Lines without an article are
// resolved through the catalog first; an unknown id fails with
// ArticleNotFoundError. A handle not loaded by a repository in this unit of
// work is re-read first.
func (s *Service) Assemble(ctx context.Context, lines []order.Line, c *customer.Customer) (*order.Order, error) {
	var o *order.Order
	err := s.tx.InTx(ctx, func(ctx context.Context) (err error) {
		o, err = s.assemble(ctx, lines, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) assemble(ctx context.Context, lines []order.Line, c *customer.Customer) (*order.Order, error) {
	if c == nil {
		return nil, ErrCustomerRequired
	}
	if !c.Attached() {
		fresh, err := s.customers.FindByID(ctx, c.ID, customer.FetchCustomerOnly)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve customer %d", c.ID)
		}
		c = fresh
	}

	o := &order.Order{Lines: slices.Clone(lines)}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolveLines(ctx, o.Lines); err != nil {
		return nil, err
	}
	if total := o.ComputeTotal(); total.GreaterThan(order.MaxGrandTotal) {
		return nil, &order.TotalTooLargeError{Total: total}
	}
	if err := c.AddOrder(o); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.tx.AfterCommit(ctx, func(ctx context.Context) {
		s.created.Add(ctx, 1)
		zctx.From(ctx).Info("Order created",
			zap.Int64("order_id", o.ID),
			zap.Int64("customer_id", c.ID),
			zap.Stringer("grand_total", o.GrandTotal),
			zap.Int("lines", len(o.Lines)),
		)
		s.notifier.OrderCreated(ctx, c, o)
	})
	return o, nil
}

// PlaceDraft orders the lines of draft for the customer with the given
// login name. Every article is resolved before anything is written.
func (s *Service) PlaceDraft(ctx context.Context, login string, draft Draft) (_ *order.Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceDraft",
		trace.WithAttributes(attribute.Int("draft.lines", len(draft.Lines))),
	)
	defer func() { endSpan(span, rerr) }()

	lines, err := s.resolveDraft(ctx, draft)
	if err != nil {
		return nil, err
	}

	var o *order.Order
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.customers.FindByLoginName(ctx, login, customer.FetchCustomerOnly)
		if err != nil {
			return errors.Wrapf(err, "find customer %q", login)
		}
		o, err = s.assemble(ctx, lines, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	return o, nil
}

// PlacePersistedCart orders the persisted cart positions of the customer
// and deletes them in the same transaction. The positions stay locked until
// commit: a concurrent checkout of the same customer waits and then finds
// nothing to order, and a position added meanwhile is kept for the next
// checkout. ErrNothingToOrder is returned when there are none.
func (s *Service) PlacePersistedCart(ctx context.Context, login string) (_ *order.Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlacePersistedCart")
	defer func() { endSpan(span, rerr) }()

	var o *order.Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.customers.FindByLoginName(ctx, login, customer.FetchCustomerOnly)
		if err != nil {
			return errors.Wrapf(err, "find customer %q", login)
		}

		positions, err := s.positions.LockByCustomer(ctx, c.ID)
		if err != nil {
			return errors.Wrap(err, "lock cart positions")
		}
		if len(positions) == 0 {
			return ErrNothingToOrder
		}

		draft := Draft{Lines: make([]DraftLine, len(positions))}
		for i, p := range positions {
			draft.Lines[i] = DraftLine{ArticleID: p.ArticleID, Quantity: p.Quantity}
		}
		lines, err := s.resolveDraft(ctx, draft)
		if err != nil {
			return err
		}

		if o, err = s.assemble(ctx, lines, c); err != nil {
			return err
		}

		ids := make([]int64, len(positions))
		for i, p := range positions {
			ids[i] = p.ID
		}
		if _, err := s.positions.Delete(ctx, c.ID, ids); err != nil {
			return errors.Wrap(err, "delete cart positions")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	return o, nil
}

// PlaceSessionCart orders the positive lines of a session cart through the
// draft path and ends the session cart once the order is committed.
// ErrNothingToOrder is returned when no line has a positive quantity.
func (s *Service) PlaceSessionCart(ctx context.Context, login, sessionID string) (_ *order.Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceSessionCart")
	defer func() { endSpan(span, rerr) }()

	if sessionID == "" {
		return nil, cart.ErrNoSession
	}
	ct, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	positive := ct.PositiveLines()
	if len(positive) == 0 {
		return nil, ErrNothingToOrder
	}

	draft := Draft{Lines: make([]DraftLine, len(positive))}
	for i, l := range positive {
		draft.Lines[i] = DraftLine{ArticleID: l.ArticleID, Quantity: l.Quantity}
	}
	o, err := s.PlaceDraft(ctx, login, draft)
	if err != nil {
		return nil, err
	}

	if err := s.carts.End(ctx, sessionID); err != nil {
		zctx.From(ctx).Warn("End session cart after checkout",
			zap.String("session", sessionID),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
	return o, nil
}

// FindOrder returns a single order.
func (s *Service) FindOrder(ctx context.Context, id int64, mode order.FetchMode) (*order.Order, error) {
	return s.orders.FindByID(ctx, id, mode)
}

// FindOrdersByCustomer returns the orders of a customer, oldest first.
func (s *Service) FindOrdersByCustomer(ctx context.Context, customerID int64, mode order.FetchMode) ([]*order.Order, error) {
	return s.orders.FindByCustomer(ctx, customerID, mode)
}

// resolveLines fills in the article of every line that has none.
func (s *Service) resolveLines(ctx context.Context, lines []order.Line) error {
	var ids []int64
	for _, l := range lines {
		if l.Article == nil {
			ids = append(ids, l.ArticleID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	fetched, err := s.articles.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return errors.Wrap(err, "find articles")
	}
	byID := make(map[int64]catalog.Article, len(fetched))
	for _, a := range fetched {
		byID[a.ID] = a
	}
	for i := range lines {
		if lines[i].Article != nil {
			continue
		}
		a, ok := byID[lines[i].ArticleID]
		if !ok {
			return &ArticleNotFoundError{ArticleID: lines[i].ArticleID}
		}
		lines[i].Article = &a
	}
	return nil
}

// resolveDraft validates the draft lines and resolves their articles in a
// single batch.
func (s *Service) resolveDraft(ctx context.Context, draft Draft) ([]order.Line, error) {
	if len(draft.Lines) == 0 {
		return nil, order.ErrEmpty
	}

	ids := make([]int64, len(draft.Lines))
	for i, dl := range draft.Lines {
		id := dl.ArticleID
		if id == 0 {
			var err error
			if id, err = catalog.ParseRef(dl.ArticleRef); err != nil {
				return nil, err
			}
		}
		if dl.Quantity <= 0 || dl.Quantity > order.MaxQuantity {
			return nil, &order.InvalidQuantityError{ArticleID: id, Quantity: dl.Quantity}
		}
		ids[i] = id
	}

	fetched, err := s.articles.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, errors.Wrap(err, "find articles")
	}
	byID := make(map[int64]catalog.Article, len(fetched))
	for _, a := range fetched {
		byID[a.ID] = a
	}

	lines := make([]order.Line, len(draft.Lines))
	for i, dl := range draft.Lines {
		a, ok := byID[ids[i]]
		if !ok {
			return nil, &ArticleNotFoundError{ArticleID: ids[i]}
		}
		lines[i] = order.Line{ArticleID: a.ID, Article: &a, Quantity: dl.Quantity}
	}
	return lines, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
