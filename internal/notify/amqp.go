package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// RoutingKey is the routing key of order mail jobs.
	RoutingKey = "mail.order.created"

	dialAttempts = 5
	dialBackoff  = 2 * time.Second
)

// Publisher is the part of *amqp.Channel used to publish.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes messages as mail jobs to a topic exchange. A relay
// consumes and delivers them.
type AMQPSink struct {
	pub      Publisher
	exchange string
}

// NewAMQPSink creates an AMQPSink publishing to exchange.
func NewAMQPSink(pub Publisher, exchange string) *AMQPSink {
	return &AMQPSink{pub: pub, exchange: exchange}
}

// Send implements Sink.
func (s *AMQPSink) Send(ctx context.Context, m Message) error {
	var e jx.Encoder
	m.Encode(&e)

	err := s.pub.PublishWithContext(ctx, s.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatInt(m.OrderID, 10),
		Timestamp:    time.Now(),
		Body:         e.Bytes(),
	})
	if err != nil {
		return errors.Wrapf(err, "publish mail job for order %d", m.OrderID)
	}
	return nil
}

// Dial connects to the broker, retrying while it starts up, opens a
// channel and declares the durable topic exchange.
func Dial(ctx context.Context, url, exchange string, lg *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		if conn, err = amqp.Dial(url); err == nil {
			break
		}
		lg.Warn("Connect to broker failed", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}
	return conn, ch, nil
}

// Consume binds a durable queue to the mail job routing key and hands every
// decoded message to sink until ctx is done. Jobs that fail delivery are
// dropped after logging; malformed jobs are rejected.
func Consume(ctx context.Context, ch *amqp.Channel, exchange, queue string, sink Sink, lg *zap.Logger) error {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "declare queue %q", queue)
	}
	if err := ch.QueueBind(q.Name, RoutingKey, exchange, false, nil); err != nil {
		return errors.Wrapf(err, "bind queue %q", q.Name)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consume")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, d, sink, lg)
		}
	}
}

// acknowledger is the part of amqp.Delivery used after handling.
type acknowledger interface {
	Ack(multiple bool) error
	Reject(requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp.Delivery, sink Sink, lg *zap.Logger) {
	handleJob(ctx, d.Body, &d, sink, lg)
}

func handleJob(ctx context.Context, body []byte, ack acknowledger, sink Sink, lg *zap.Logger) {
	var m Message
	if err := m.Decode(jx.DecodeBytes(body)); err != nil {
		lg.Error("Malformed mail job", zap.Error(err))
		_ = ack.Reject(false)
		return
	}

	lg = lg.With(zap.Int64("order_id", m.OrderID))
	if err := sink.Send(ctx, m); err != nil {
		lg.Error("Mail delivery failed", zap.String("to", m.To.Email), zap.Error(err))
	} else {
		lg.Info("Mail delivered", zap.String("to", m.To.Email))
	}
	if err := ack.Ack(false); err != nil {
		lg.Warn("Ack mail job", zap.Error(err))
	}
}
