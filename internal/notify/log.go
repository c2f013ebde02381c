package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes messages to the log instead of delivering them.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

// Send implements Sink.
func (s *LogSink) Send(_ context.Context, m Message) error {
	s.lg.Info("Mail",
		zap.Int64("order_id", m.OrderID),
		zap.String("from", m.From.Email),
		zap.String("to", m.To.Email),
		zap.String("subject", m.Subject),
		zap.String("html", m.HTML),
	)
	return nil
}
