package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcart "github.com/Zhima-Mochi/winestore/internal/application/cart"
	appinv "github.com/Zhima-Mochi/winestore/internal/application/inventory"
	appnotif "github.com/Zhima-Mochi/winestore/internal/application/notification"
	apporder "github.com/Zhima-Mochi/winestore/internal/application/order"
	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	"github.com/Zhima-Mochi/winestore/internal/config"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/email"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/flutterwave"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/id"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/jwtauth"
	infraobs "github.com/Zhima-Mochi/winestore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/paymentfake"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/winestore/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/winestore/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.Service.Name,
		Env:     cfg.Service.Env,
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := zaplogger.Wrap(logging.System(baseLogger))
	appLogger := zaplogger.Wrap(baseLogger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := prometrics.New(reg, "").RegisterDefaults()

	oteltrace.InstallPropagator()
	tel := infraobs.New(oteltrace.New(cfg.Service.Name), appLogger, metrics)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(rootCtx, cfg, systemLogger)
	if err != nil {
		systemLogger.Error("stores_open_failed", observability.Err(err))
		os.Exit(1)
	}

	provider, decoder, err := paymentProvider(cfg)
	if err != nil {
		systemLogger.Error("payment_provider_invalid", observability.Err(err))
		os.Exit(1)
	}

	// In-process event bus; handlers get an event-scoped logger bound to their span.
	bus := outbox.NewBus(nil, tel.WithLogger(systemLogger), outbox.WithContextHook(workerpresentation.EventHook(appLogger)))
	bus.Start(rootCtx)

	idGen := id.NewUUIDGenerator()

	reserver := appinv.NewReserveInventoryUseCase(st.products, tel)
	checkout := apporder.NewCheckoutUseCase(st.orders, st.products, st.carts, reserver, cfg.Delivery, idGen, bus, tel)
	cancel := apporder.NewCancelOrderUseCase(st.orders, bus, tel)

	payCfg := apppay.PaymentConfig{
		Currency:        cfg.Payment.Currency,
		ProviderTimeout: cfg.Payment.ProviderTimeout,
		SessionTTL:      cfg.Payment.SessionTTL,
		RedirectURL:     cfg.Payment.RedirectURL,
	}
	reconciler := apppay.NewReconcileUseCase(st.txs, st.orders, st.queue, bus, apppay.ReconcileConfig{
		ReverifyInterval:    cfg.Payment.ReverifyInterval,
		ReverifyMaxAttempts: cfg.Payment.ReverifyMaxAttempts,
	}, tel)
	verify := apppay.NewVerifyUseCase(st.txs, provider, reconciler, payCfg, tel)

	appcart.NewClearWorker(bus, st.carts, cfg.Checkout.CartClearRetries, cfg.Checkout.CartClearBackoff, appLogger).Start()
	appnotif.NewWorker(bus, st.notifications, email.NewLogSender(appLogger), idGen, appLogger).Start()

	reverifyDone := make(chan struct{})
	go func() {
		defer close(reverifyDone)
		apppay.NewReverifyWorker(st.queue, verify, cfg.Payment.ReverifyPollInterval, systemLogger).Run(rootCtx)
	}()

	handler := httppresentation.NewHandler(httppresentation.Services{
		Catalog:       appinv.NewCatalogService(st.products, idGen, appLogger),
		Cart:          appcart.NewService(st.carts, st.products, appLogger),
		Checkout:      checkout,
		Orders:        apporder.NewQueries(st.orders),
		Cancel:        cancel,
		Initialize:    apppay.NewInitializeUseCase(st.orders, st.txs, st.sessions, provider, reconciler, idGen, payCfg, tel),
		Flow:          apppay.NewFlowUseCase(st.txs, st.sessions, provider, reconciler, idGen, payCfg, tel),
		Verify:        verify,
		Webhook:       apppay.NewWebhookUseCase(st.txs, decoder, reconciler, tel),
		Notifications: appnotif.NewService(st.notifications),
		Delivery:      cfg.Delivery,
	},
		jwtauth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		tel,
	)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_listening",
			observability.F("addr", cfg.HTTP.Addr),
			observability.F("storage", cfg.Storage.Driver),
			observability.F("payment_provider", provider.Name()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
		systemLogger.Info("shutdown_signal_received")
	case err := <-serverErr:
		if err != nil {
			systemLogger.Error("http_server_failed", observability.Err(err))
		}
		stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_failed", observability.Err(err))
	}
	<-reverifyDone
	bus.Stop(shutdownCtx)
	if err := st.close(shutdownCtx); err != nil {
		systemLogger.Warn("stores_close_failed", observability.Err(err))
	}
	systemLogger.Info("shutdown_complete")
}

func configPath() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func paymentProvider(cfg *config.Config) (apppay.Provider, apppay.WebhookDecoder, error) {
	if cfg.Payment.Provider == config.ProviderFake {
		return paymentfake.New(), paymentfake.NewWebhookDecoder(cfg.Payment.WebhookSecret), nil
	}
	p, err := flutterwave.New(flutterwave.Options{
		BaseURL:       cfg.Flutterwave.BaseURL,
		SecretKey:     cfg.Flutterwave.SecretKey,
		EncryptionKey: cfg.Flutterwave.EncryptionKey,
		Mode:          cfg.Payment.Mode,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, flutterwave.NewWebhookDecoder(cfg.Payment.WebhookSecret), nil
}
