// Package notify sends the best-effort mail that follows every committed
// order.
package notify

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

const instrumentationName = "github.com/xenking/webshop/internal/notify"

// Sink delivers a rendered message.
type Sink interface {
	Send(ctx context.Context, m Message) error
}

// Config holds the sender identity. An empty SenderEmail disables
// notifications.
type Config struct {
	SenderEmail string
	SenderName  string
}

// Notifier renders order mails and hands them to a Sink on a separate
// goroutine. Delivery errors are logged and counted, never returned.
type Notifier struct {
	sink Sink
	from Address
	lg   *zap.Logger

	wg sync.WaitGroup

	dispatched metric.Int64Counter
}

// New creates a Notifier.
func New(sink Sink, cfg Config, lg *zap.Logger, mp metric.MeterProvider) (*Notifier, error) {
	n := &Notifier{
		sink: sink,
		from: Address{Name: cfg.SenderName, Email: cfg.SenderEmail},
		lg:   lg,
	}

	var err error
	if n.dispatched, err = mp.Meter(instrumentationName).Int64Counter("shop.notifications",
		metric.WithDescription("Order notifications by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create notifications counter")
	}
	return n, nil
}

// OrderCreated sends the order mail for o to c. It returns immediately;
// use Wait to block until delivery attempts finished.
func (n *Notifier) OrderCreated(ctx context.Context, c *customer.Customer, o *order.Order) {
	lg := n.lg.With(zap.Int64("order_id", o.ID))

	switch {
	case n.sink == nil || n.from.Email == "":
		lg.Debug("Notification skipped: no sender configured")
		n.count(ctx, "skipped")
		return
	case c == nil || c.Identity.Email == "":
		lg.Debug("Notification skipped: customer has no email")
		n.count(ctx, "skipped")
		return
	}

	msg := Render(n.from, c, o)
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				lg.Error("Notification panicked", zap.Any("panic", r))
				n.count(ctx, "failed")
			}
		}()

		if err := n.sink.Send(ctx, msg); err != nil {
			lg.Error("Notification failed", zap.String("to", msg.To.Email), zap.Error(err))
			n.count(ctx, "failed")
			return
		}
		lg.Info("Notification sent", zap.String("to", msg.To.Email))
		n.count(ctx, "sent")
	}()
}

// Wait blocks until every dispatched notification finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) count(ctx context.Context, outcome string) {
	n.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
