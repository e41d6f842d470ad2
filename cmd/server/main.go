package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"transit/internal/app"
	"transit/internal/config"
	"transit/internal/handler"
	"transit/internal/logger"
	internalRedis "transit/internal/redis"
	"transit/internal/repository/postgres"
	"transit/internal/service"
)

func main() {
	cfg := config.Load()

	log := logger.New("transit", cfg.LogLevel, cfg.IsProduction())
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", logger.String("env", cfg.Server.Env), logger.Error(err))
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// New Relic first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Error("failed to initialize New Relic", logger.Error(err))
		} else {
			log.Info("New Relic enabled", logger.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	if err := app.RunMigrations(cfg.Database, log); err != nil {
		log.Error("failed to run migrations", logger.Error(err))
		os.Exit(1)
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Error("failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		bus, err := app.NewEventBus(cfg.RabbitMQ, log)
		if err != nil {
			log.Error("rabbitmq unavailable, notifications will only be logged", logger.Error(err))
		} else {
			defer bus.Close()
			publisher = bus
		}
	}

	var provider service.PaymentProvider
	if cfg.UseMockPayments() {
		log.Warning("PayPal credentials not set, using mock payment provider", logger.String("env", cfg.Server.Env))
		provider = service.NewMockPaymentProvider()
	} else {
		provider, err = service.NewPayPalProvider(ctx, cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.Mode)
		if err != nil {
			log.Error("failed to initialize PayPal", logger.Error(err))
			os.Exit(1)
		}
		log.Info("PayPal provider enabled", logger.String("mode", cfg.PayPal.Mode))
	}

	var events service.EventRecorder
	if nrApp != nil {
		events = nrApp
	}

	server, settlement := wireServer(db, redisClient, publisher, provider, events, nrApp, cfg, log)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go settlement.Run(runCtx, cfg.Settlement.ReconcileInterval, cfg.Settlement.BatchSize)

	go func() {
		log.Info("starting server", logger.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	stopRun()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", logger.Error(err))
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the settlement reconciler.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher service.EventPublisher,
	provider service.PaymentProvider,
	events service.EventRecorder,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log logger.ILogger,
) (*http.Server, *service.SettlementService) {
	kvStore := internalRedis.NewKVStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)

	journeyRepo := postgres.NewJourneyRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	routeRepo := postgres.NewRouteRepository(db)
	passengerRepo := postgres.NewPassengerRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	settlementRepo := postgres.NewSettlementRepository(db)

	tickets := service.NewTicketIssuer(cfg.Ticket.Secret, service.NewPNGQREncoder(cfg.Ticket.QRSize))
	notificationService := service.NewNotificationService(publisher, log.With(logger.String("component", "notification")))
	fareService := service.NewFareService(scheduleRepo, routeRepo, kvStore, log.With(logger.String("component", "fare")))
	journeyService := service.NewJourneyService(
		journeyRepo, scheduleRepo, routeRepo, passengerRepo, driverRepo,
		tickets, notificationService, events, log.With(logger.String("component", "journey")),
	)
	settlementService := service.NewSettlementService(
		settlementRepo, journeyService, lockStore, events, log.With(logger.String("component", "settlement")),
	)
	paymentService := service.NewPaymentService(
		paymentRepo, journeyRepo, passengerRepo, provider, settlementService, lockStore, notificationService,
		service.RedirectURLs{ReturnURL: cfg.PayPal.ReturnURL(), CancelURL: cfg.PayPal.CancelURL()},
		log.With(logger.String("component", "payment")),
	)
	bookingService := service.NewBookingService(journeyService, paymentService, log.With(logger.String("component", "booking")))

	router := app.NewRouter(app.RouterDeps{
		JourneyHandler:  handler.NewJourneyHandler(journeyService),
		PaymentHandler:  handler.NewPaymentHandler(paymentService),
		ScheduleHandler: handler.NewScheduleHandler(fareService, bookingService),
		IdempotencyKV:   kvStore,
		NewRelicApp:     nrApp,
		JWTSecret:       cfg.Auth.JWTSecret,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Logger:          log.With(logger.String("component", "http")),
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, settlementService
}
