package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	pizzeriaserver "github.com/Apurer/pizzeria-api/go"

	orderscache "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/cache/redis"
	ordersevents "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/events"
	orderskafka "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/events/kafka"
	ordersrabbit "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/events/rabbitmq"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/feed/pgnotify"
	ordersmemory "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/memory"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/notification/email"
	ordersobs "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/persistence/postgres"
	settingspostgres "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/postgres"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/static"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/yamlfile"
	ordersworkflows "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	ordersports "github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/platform/migrations"
	platformobservability "github.com/Apurer/pizzeria-api/internal/platform/observability"
	platformpostgres "github.com/Apurer/pizzeria-api/internal/platform/postgres"
)

const serviceName = "pizzeria-api"

// Run boots the pizzeria HTTP API with observability, storage, messaging and workflows wired.
// It returns when ctx is cancelled or the server fails.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	db, closeDB := platformpostgres.ConnectDSN(ctx, cfg.PostgresDSN, logger)
	defer closeDB()
	if db != nil {
		if err := migrations.Run(db); err != nil {
			return fmt.Errorf("failed to migrate order schema: %w", err)
		}
	}

	repo, closeCache := buildOrderRepository(ctx, cfg, db, logger)
	defer closeCache()
	settings := buildSettingsProvider(cfg, db, logger)
	notifier := buildNotifier(cfg, logger)

	bus := ordersmemory.NewBus()
	bus.OnEvent(func(ctx context.Context, event domain.Event) {
		logger.DebugContext(ctx, "order event published",
			slog.String("event", event.EventName()),
			slog.String("order_id", event.AggregateID()),
		)
	})
	publishers, closePublishers := buildEventPublishers(cfg, bus, logger)
	defer closePublishers()

	var checkoutKeys ordersports.CheckoutKeyStore = ordersmemory.NewCheckoutKeys()
	if db != nil {
		checkoutKeys = orderspostgres.NewCheckoutKeys(db)
	}

	coreService := ordersapp.NewService(repo, notifier, settings,
		ordersapp.WithEventPublisher(publishers),
		ordersapp.WithCheckoutKeys(checkoutKeys),
		ordersapp.WithLogger(logger),
	)
	orderService := ordersobs.New(
		coreService,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)

	// Without Temporal the admin API resends synchronously and never auto-redelivers.
	var redelivery ordersports.NotificationRedelivery
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, resending notifications synchronously", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		redelivery = ordersworkflows.NewTemporalNotificationRedelivery(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	var feed ordersports.OrderFeed = bus
	if db != nil {
		feed = pgnotify.NewFeed(cfg.PostgresDSN, pgnotify.WithLogger(logger))
	}

	handlers := pizzeriaserver.ApiHandleFunctions{
		OrderAPI: pizzeriaserver.NewOrderAPI(orderService),
		AdminAPI: pizzeriaserver.NewAdminAPI(orderService,
			pizzeriaserver.WithNotificationRedelivery(redelivery, cfg.NotificationAutoRedeliver),
			pizzeriaserver.WithOrderFeed(feed),
			pizzeriaserver.WithAdminLogger(logger),
		),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), otelgin.Middleware(serviceName), pizzeriaserver.RequestLogger(logger))
	engine.GET("/metrics", gin.WrapH(instruments.MetricsHandler))
	var routerOpts []pizzeriaserver.RouterOption
	if cfg.AdminUser != "" {
		routerOpts = append(routerOpts, pizzeriaserver.WithAdminAccounts(gin.Accounts{cfg.AdminUser: cfg.AdminPassword}))
	} else {
		logger.Warn("ADMIN_USER not set, admin endpoints are unauthenticated")
	}
	router := pizzeriaserver.NewRouterWithGinEngine(engine, handlers, routerOpts...)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Pizzeria API listening", slog.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Pizzeria API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildOrderRepository(ctx context.Context, cfg Config, db *gorm.DB, logger *slog.Logger) (ordersports.Repository, func()) {
	var repo ordersports.Repository
	if db != nil {
		logger.Info("order repository configured with postgres")
		repo = orderspostgres.NewRepository(db)
	} else {
		logger.Warn("falling back to in-memory order repository")
		repo = ordersmemory.NewRepository()
	}
	if cfg.RedisAddr == "" {
		return repo, func() {}
	}
	redisClient := orderscache.NewClient(cfg.RedisAddr)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, order list cache disabled", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		_ = redisClient.Close()
		return repo, func() {}
	}
	logger.Info("order list cache enabled", slog.String("addr", cfg.RedisAddr), slog.Duration("ttl", cfg.OrderListCacheTTL))
	cached := orderscache.NewRepository(repo, redisClient, cfg.OrderListCacheTTL, orderscache.WithLogger(logger))
	return cached, func() { _ = redisClient.Close() }
}

func buildSettingsProvider(cfg Config, db *gorm.DB, logger *slog.Logger) ordersports.SettingsProvider {
	switch cfg.SettingsSource {
	case SettingsSourceYAML:
		logger.Info("restaurant settings loaded from file", slog.String("path", cfg.SettingsFile))
		return yamlfile.New(cfg.SettingsFile)
	case SettingsSourcePostgres:
		if db != nil {
			logger.Info("restaurant settings loaded from postgres")
			return settingspostgres.NewProvider(db)
		}
		logger.Warn("SETTINGS_SOURCE=postgres without a database, using default restaurant settings")
	}
	return static.New(static.Default())
}

func buildNotifier(cfg Config, logger *slog.Logger) ordersports.Notifier {
	if cfg.EmailAPIURL == "" {
		logger.Warn("EMAIL_API_URL not set, customer emails are kept in an in-memory outbox")
		return ordersmemory.NewOutbox()
	}
	mailer, err := email.NewClient(email.Config{
		APIURL:         cfg.EmailAPIURL,
		APIKey:         cfg.EmailAPIKey,
		From:           cfg.EmailFrom,
		RestaurantName: cfg.RestaurantName,
		Locale:         cfg.EmailLocale,
	})
	if err != nil {
		logger.Warn("email client misconfigured, customer emails are kept in an in-memory outbox", slog.String("error", err.Error()))
		return ordersmemory.NewOutbox()
	}
	return mailer
}

func buildEventPublishers(cfg Config, bus *ordersmemory.Bus, logger *slog.Logger) (ordersports.EventPublisher, func()) {
	publishers := ordersevents.Multi{bus}
	var closers []func() error
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := orderskafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Warn("kafka publisher disabled", slog.String("error", err.Error()))
		} else {
			logger.Info("publishing order events to kafka", slog.String("topic", cfg.KafkaTopic))
			publishers = append(publishers, producer)
			closers = append(closers, producer.Close)
		}
	}
	if cfg.RabbitMQURL != "" {
		producer, err := ordersrabbit.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			logger.Warn("rabbitmq publisher disabled", slog.String("error", err.Error()))
		} else {
			logger.Info("publishing order events to rabbitmq", slog.String("exchange", cfg.RabbitMQExchange))
			publishers = append(publishers, producer)
			closers = append(closers, producer.Close)
		}
	}
	return publishers, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("failed to close event publisher", slog.String("error", err.Error()))
			}
		}
	}
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer("temporal-client"),
	})
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
