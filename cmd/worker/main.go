package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	ordersmemory "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/memory"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/notification/email"
	ordersobs "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/persistence/postgres"
	settingspostgres "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/postgres"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/static"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/yamlfile"
	ordersapp "github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	ordersports "github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	platformobservability "github.com/Apurer/pizzeria-api/internal/platform/observability"
	platformpostgres "github.com/Apurer/pizzeria-api/internal/platform/postgres"
	orderactivities "github.com/Apurer/pizzeria-api/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/pizzeria-api/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "pizzeria-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	db, cleanupDB := platformpostgres.ConnectDSN(ctx, os.Getenv("POSTGRES_DSN"), logger)
	defer cleanupDB()
	if db == nil {
		logger.Error("worker requires POSTGRES_DSN to resend notifications")
		os.Exit(1)
	}

	var settings ordersports.SettingsProvider = settingspostgres.NewProvider(db)
	if path := strings.TrimSpace(os.Getenv("SETTINGS_FILE")); path != "" {
		settings = yamlfile.New(path)
	} else if strings.EqualFold(os.Getenv("SETTINGS_SOURCE"), "static") {
		settings = static.New(static.Default())
	}

	coreService := ordersapp.NewService(orderspostgres.NewRepository(db), buildNotifier(logger), settings,
		ordersapp.WithLogger(logger),
	)
	orderService := ordersobs.New(
		coreService,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
	activities := orderactivities.NewActivities(orderService)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.NotificationTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.NotificationRedeliveryWorkflow, workflow.RegisterOptions{Name: orderworkflows.NotificationRedeliveryWorkflowName})
	w.RegisterActivityWithOptions(activities.ResendNotification, activity.RegisterOptions{Name: orderactivities.ResendNotificationActivityName})

	logger.Info("worker listening", slog.String("taskQueue", orderworkflows.NotificationTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func buildNotifier(logger *slog.Logger) ordersports.Notifier {
	mailer, err := email.NewClient(email.Config{
		APIURL:         os.Getenv("EMAIL_API_URL"),
		APIKey:         os.Getenv("EMAIL_API_KEY"),
		From:           os.Getenv("EMAIL_FROM"),
		RestaurantName: envOrDefault("RESTAURANT_NAME", "Pizzeria"),
		Locale:         envOrDefault("EMAIL_LOCALE", "de"),
	})
	if err != nil {
		logger.Warn("email client unavailable, resent notifications stay in memory", slog.String("error", err.Error()))
		return ordersmemory.NewOutbox()
	}
	return mailer
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
