// Command mail-relay delivers the order mails the API server publishes to
// RabbitMQ.
package main

import (
	"context"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/webshop/internal/app"
	"github.com/xenking/webshop/internal/notify"
)

type config struct {
	Notify appkg.NotifyConfig
}

func loadConfig() (*config, error) {
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
		AllowUnknownFields: true,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var sink notify.Sink = notify.NewLogSink(lg.Named("mail"))
		if cfg.Notify.SendGridAPIKey != "" {
			sink = notify.NewSendGridSink(cfg.Notify.SendGridAPIKey)
		} else {
			lg.Warn("No SendGrid API key configured, mails are only logged")
		}

		conn, ch, err := notify.Dial(ctx, cfg.Notify.AMQPURL, cfg.Notify.Exchange, lg)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		lg.Info("Relaying mail jobs",
			zap.String("exchange", cfg.Notify.Exchange),
			zap.String("queue", cfg.Notify.Queue),
		)
		return notify.Consume(ctx, ch, cfg.Notify.Exchange, cfg.Notify.Queue, sink, lg)
	})
}
