package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/domain/cart"
	"github.com/aurumlabs/aurum/internal/domain/inventory"
	"github.com/aurumlabs/aurum/internal/domain/loyalty"
	"github.com/aurumlabs/aurum/internal/domain/order"
	"github.com/aurumlabs/aurum/internal/domain/pricing"
	"github.com/aurumlabs/aurum/internal/domain/promo"
	"github.com/aurumlabs/aurum/internal/handler"
	"github.com/aurumlabs/aurum/internal/notify"
	"github.com/aurumlabs/aurum/internal/payment"
	"github.com/aurumlabs/aurum/internal/repository"
	"github.com/aurumlabs/aurum/internal/shipment"
	"github.com/aurumlabs/aurum/pkg/health"
	"github.com/aurumlabs/aurum/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the cart sweeper,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	rateRepo := repository.NewRateRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	discountRepo := repository.NewDiscountRuleRepository(pool)
	promoRepo := repository.NewPromoRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	inventoryRepo := repository.NewInventoryRepository(pool)
	loyaltyRepo := repository.NewLoyaltyRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// Notifications: Kafka when brokers are configured, logs otherwise.
	var notifier notify.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				lg.Error("close kafka notifier", zap.Error(err))
			}
		}()
		notifier = kafkaNotifier
	} else {
		notifier = notify.NewLogNotifier(lg)
	}
	notifier, err = notify.NewMetricsNotifier(notifier, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create notifier metrics")
	}

	// Instrumented HTTP client for all outbound provider calls.
	outbound := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	// Payment gateways.
	ccavenue := payment.NewCCAvenue(payment.CCAvenueConfig{
		MerchantID:  cfg.Payment.CCAvenue.MerchantID,
		AccessCode:  cfg.Payment.CCAvenue.AccessCode,
		WorkingKey:  cfg.Payment.CCAvenue.WorkingKey,
		GatewayURL:  cfg.Payment.CCAvenue.GatewayURL,
		RedirectURL: cfg.Payment.CCAvenue.RedirectURL,
		CancelURL:   cfg.Payment.CCAvenue.CancelURL,
	})
	razorpay := payment.NewRazorpay(payment.RazorpayConfig{
		KeyID:     cfg.Payment.Razorpay.KeyID,
		KeySecret: cfg.Payment.Razorpay.KeySecret,
		BaseURL:   cfg.Payment.Razorpay.BaseURL,
	}, outbound)
	phonepe := payment.NewPhonePe(payment.PhonePeConfig{
		MerchantID:  cfg.Payment.PhonePe.MerchantID,
		SaltKey:     cfg.Payment.PhonePe.SaltKey,
		SaltIndex:   cfg.Payment.PhonePe.SaltIndex,
		BaseURL:     cfg.Payment.PhonePe.BaseURL,
		RedirectURL: cfg.Payment.PhonePe.RedirectURL,
		CallbackURL: cfg.Payment.PhonePe.CallbackURL,
	}, outbound)
	gateways := map[payment.Method]payment.Gateway{
		payment.MethodCCAvenue: ccavenue,
		payment.MethodRazorpay: razorpay,
		payment.MethodPhonePe:  phonepe,
	}

	// Shipment provider.
	shipments := shipment.NewClient(shipment.Config{
		BaseURL:  cfg.Shipment.BaseURL,
		Email:    cfg.Shipment.Email,
		Password: cfg.Shipment.Password,
		TokenTTL: cfg.Shipment.TokenTTL,
	}, outbound)

	// Domain services.
	pricer := pricing.NewService(rateRepo)
	promoValidator := promo.NewRepoValidator(promoRepo)
	cartService := cart.NewService(cartRepo, discountRepo, catalogRepo, pricer, promoValidator)
	inventoryService := inventory.NewService(inventoryRepo, notifier, lg)
	loyaltyService := loyalty.NewService(loyaltyRepo)
	orderService := order.NewService(
		cartService, orderRepo, gateways, shipments,
		inventoryService, loyaltyService, promoRepo, txRunner, notifier, lg,
		cfg.CreditNotePrefix,
	)

	// Abandoned-cart reminder loop.
	sweeper := cart.NewSweeper(cartRepo, notifier, lg, cfg.Sweeper.Interval, cfg.Sweeper.IdleAfter)
	go sweeper.Run(ctx)

	// HTTP surface.
	h := handler.NewHandler(
		handler.Config{
			PaymentSuccessURL: cfg.Payment.SuccessURL,
			PaymentFailureURL: cfg.Payment.FailureURL,
		},
		cartService, orderService,
		catalogRepo, pricer, rateRepo, discountRepo,
		inventoryService, inventoryRepo,
		loyaltyService, loyaltyRepo,
		ccavenue, razorpay, phonepe,
		lg,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "aurum-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
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
