package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/gateway/sandbox"
	"github.com/xenking/storefront/internal/gateway/sslcommerz"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("gateway", cfg.Gateway.Provider),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Add(health.Check{
		Name:    "postgres",
		Probe:   health.Readiness,
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(pool),
	})
	healthSvc.Add(health.Check{
		Name:  "goroutines",
		Probe: health.Liveness,
		Func:  health.GoroutineCountCheck(10000),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	if err := registerAPI(mux, pool, cfg, m); err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Checkout.TxTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           withMiddleware(ctx, mux, cfg, m),
	}

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

// registerAPI wires repositories, domain services and HTTP handlers onto mux.
func registerAPI(mux *http.ServeMux, pool *pgxpool.Pool, cfg *Config, p httpmiddleware.Providers) error {
	products := postgres.NewProductRepository(pool)
	coupons := postgres.NewCouponRepository(pool)
	orders := postgres.NewOrderRepository(pool)
	payments := postgres.NewPaymentRepository(pool)
	users := postgres.NewUserRepository(pool)

	discounts := coupon.NewResolver(coupons)
	assembler := order.NewAssembler(
		product.NewPriceResolver(products),
		discounts,
		delivery.NewClassifier(cfg.Delivery.Classifier()),
	)
	gateway, err := newGateway(cfg.Gateway, p)
	if err != nil {
		return errors.Wrap(err, "create payment gateway")
	}
	if sb, ok := gateway.(*sandbox.Gateway); ok {
		mux.HandleFunc("GET /sandbox/pay/{transactionId}", sb.ServePage)
	}
	coordinator, err := checkout.NewCoordinator(
		assembler,
		postgres.NewCheckoutStore(pool),
		checkout.NewDispatcher(gateway),
		cfg.Checkout.Coordinator(),
		checkout.WithTracerProvider(p.TracerProvider()),
		checkout.WithMeterProvider(p.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create checkout coordinator")
	}

	handler.New(
		coordinator,
		order.NewQueryService(orders, payments),
		coupon.NewService(coupons, discounts),
		product.NewFlashSaleService(products),
		handler.NewAuthenticator(users, []byte(cfg.JWTSecret)),
	).Register(mux)
	return nil
}

// withMiddleware wraps h with the server middleware chain, outermost first.
func withMiddleware(ctx context.Context, h http.Handler, cfg *Config, p httpmiddleware.Providers) http.Handler {
	return httpmiddleware.Wrap(h,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Rate:  cfg.RateLimit.Rate,
			Burst: cfg.RateLimit.Burst,
		}),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("storefront-api", p),
		httpmiddleware.LogRequests(),
	)
}

// newGateway builds the configured payment gateway. ProviderNone returns a
// nil gateway, which makes online checkouts fail with GatewayUnavailable.
func newGateway(cfg GatewayConfig, p httpmiddleware.Providers) (payment.Gateway, error) {
	switch cfg.Provider {
	case ProviderSandbox:
		return sandbox.New(cfg.SandboxURL), nil
	case ProviderSSLCommerz:
		client := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(p.TracerProvider()),
				otelhttp.WithMeterProvider(p.MeterProvider()),
			),
		}
		return sslcommerz.New(cfg.SSLCommerz, client), nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, errors.Errorf("unknown provider %q", cfg.Provider)
	}
}
