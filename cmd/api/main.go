package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftline/storefront-backend/api/routes"
	"github.com/craftline/storefront-backend/internal/cancellation"
	"github.com/craftline/storefront-backend/internal/cart"
	"github.com/craftline/storefront-backend/internal/catalog"
	checkoutsvc "github.com/craftline/storefront-backend/internal/checkout"
	"github.com/craftline/storefront-backend/internal/inventory"
	"github.com/craftline/storefront-backend/internal/notifications"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/internal/payments"
	"github.com/craftline/storefront-backend/internal/shipping"
	"github.com/craftline/storefront-backend/internal/stores"
	"github.com/craftline/storefront-backend/pkg/config"
	"github.com/craftline/storefront-backend/pkg/db"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/metrics"
	"github.com/craftline/storefront-backend/pkg/migrate"
	"github.com/craftline/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	storesRepo := stores.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	inventoryManager := inventory.NewManager()

	cartValidator, err := cart.NewValidator(catalog.NewReader(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart validator", err)
		os.Exit(1)
	}

	ledger, err := orders.NewLedger(ordersRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order ledger", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	emailSink := notifications.NewLogEmailSink(cfg.Email.FromAddress, logg)

	resolver, err := payments.NewCredentialResolver(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create credential resolver", err)
		os.Exit(1)
	}
	gateway, err := payments.NewRESTGateway(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}
	carrier, err := shipping.NewRESTCarrier(cfg.Carrier)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier adapter", err)
		os.Exit(1)
	}

	autoCreator, err := shipping.NewAutoCreator(
		cfg.Shipping,
		shipping.NewRepository(gormDB),
		ordersRepo,
		ledger,
		carrier,
		storesRepo,
		notificationsSvc,
		emailSink,
		metrics.NewShippingMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment auto creator", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkoutsvc.NewService(
		dbClient,
		cartValidator,
		ordersRepo,
		inventoryManager,
		storesRepo,
		gateway,
		resolver,
		notificationsSvc,
		autoCreator,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	verificationSvc, err := payments.NewVerificationService(
		dbClient,
		ordersRepo,
		inventoryManager,
		storesRepo,
		resolver,
		notificationsSvc,
		autoCreator,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create verification service", err)
		os.Exit(1)
	}

	refundSvc, err := payments.NewRefundService(dbClient, ordersRepo, gateway, storesRepo, resolver, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refund service", err)
		os.Exit(1)
	}

	cancelOrch, err := cancellation.NewOrchestrator(dbClient, ordersRepo, inventoryManager, refundSvc, notificationsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation orchestrator", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Checkout:      checkoutSvc,
		Verification:  verificationSvc,
		Refunds:       refundSvc,
		Ledger:        ledger,
		Cancellation:  cancelOrch,
		Notifications: notificationsSvc,
		Stores:        storesRepo,
		Credentials:   resolver,
		Metrics:       prometheus.DefaultGatherer,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(context.Background(), "error shutting down http server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	// Let in-flight shipment bookings finish before the process exits.
	autoCreator.Wait()
	logg.Info(ctx, "api server shutting down gracefully")
}
