// Package app wires the shop API server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/cart"
	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/checkout"
	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/handler"
	"github.com/xenking/webshop/internal/notify"
	"github.com/xenking/webshop/internal/repository"
	"github.com/xenking/webshop/internal/sessionstore"
	"github.com/xenking/webshop/pkg/health"
	"github.com/xenking/webshop/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("notify_transport", cfg.Notify.Transport),
	)

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis: session carts and shared rate limit counters.
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	// Health check service.
	healthSvc := health.New(health.WithLogger(lg.Named("health")))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	// Repositories.
	articleRepo := repository.NewArticleRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool, orderRepo)
	positionRepo := repository.NewCartPositionRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	transactor := repository.NewTransactor(pool)

	articles := catalog.NewLookup(articleRepo)
	warmed, err := articles.Warm(ctx)
	if err != nil {
		return errors.Wrap(err, "warm catalog")
	}
	lg.Info("Catalog loaded", zap.Int("articles", warmed))
	if cfg.Catalog.RefreshInterval > 0 {
		go articles.RefreshEvery(zctx.Base(ctx, lg.Named("catalog")), cfg.Catalog.RefreshInterval)
	}

	carts := sessionstore.New(rdb, cfg.Session.KeyPrefix, cfg.Session.TTL)
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(carts))

	// Order notifications.
	sink, closeSink, err := newSink(ctx, lg, cfg.Notify, healthSvc)
	if err != nil {
		return errors.Wrap(err, "create notification sink")
	}
	defer closeSink()

	notifier, err := notify.New(sink, notify.Config{
		SenderEmail: cfg.Notify.SenderEmail,
		SenderName:  cfg.Notify.SenderName,
	}, lg.Named("notify"), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create notifier")
	}
	if cfg.Notify.SenderEmail == "" {
		lg.Warn("No sender address configured, order notifications disabled")
	}

	// Domain services.
	cartService := cart.NewService(articles, carts, positionRepo, customerRepo)
	checkoutService, err := checkout.NewService(
		transactor,
		articles,
		customerRepo,
		orderRepo,
		positionRepo,
		carts,
		notifier,
		checkout.WithTracerProvider(m.TracerProvider()),
		checkout.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	registry := customer.NewRegistry(customerRepo)
	authenticator := auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))

	// HTTP handlers.
	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(handler.Config{
		BasePath:        "/api",
		SessionCookie:   cfg.Session.Cookie,
		SessionTTL:      cfg.Session.TTL,
		SecureCookie:    cfg.Session.SecureCookie,
		CORSOrigins:     cfg.CORS.Origins,
		CORSCredentials: cfg.CORS.AllowCredentials,
	}, articles, cartService, checkoutService, registry, authenticator)

	var limiter httpmiddleware.Limiter
	if cfg.RateLimit.Shared {
		limiter = httpmiddleware.NewRedisLimiter(rdb, "ratelimit:", cfg.RateLimit.Max, cfg.RateLimit.Window)
	} else {
		memory := httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		memory.StartCleanup(ctx)
		limiter = memory
	}

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", httpmiddleware.Wrap(h.Engine(),
		httpmiddleware.RateLimit(limiter, httpmiddleware.APIKeyOrIP("api_key")),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("shop-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		lg.Info("Waiting for pending notifications")
		notifier.Wait()
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newSink builds the notification sink for the configured transport. The
// returned close function releases broker connections.
func newSink(ctx context.Context, lg *zap.Logger, cfg NotifyConfig, h *health.Health) (notify.Sink, func(), error) {
	switch cfg.Transport {
	case TransportSendGrid:
		return notify.NewSendGridSink(cfg.SendGridAPIKey), func() {}, nil
	case TransportAMQP:
		conn, ch, err := notify.Dial(ctx, cfg.AMQPURL, cfg.Exchange, lg)
		if err != nil {
			return nil, nil, err
		}
		h.AddReadinessCheck("amqp", time.Second, health.ConnectionCheck(conn))
		return notify.NewAMQPSink(ch, cfg.Exchange), func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	default:
		return notify.NewLogSink(lg.Named("mail")), func() {}, nil
	}
}
