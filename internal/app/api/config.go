package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
)

// Settings sources accepted by SETTINGS_SOURCE.
const (
	SettingsSourceStatic   = "static"
	SettingsSourceYAML     = "yaml"
	SettingsSourcePostgres = "postgres"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port        string
	PostgresDSN string

	SettingsSource string
	SettingsFile   string

	EmailAPIURL    string
	EmailAPIKey    string
	EmailFrom      string
	EmailLocale    string
	RestaurantName string

	KafkaBrokers     []string
	KafkaTopic       string
	RabbitMQURL      string
	RabbitMQExchange string

	RedisAddr         string
	OrderListCacheTTL time.Duration

	NotificationAutoRedeliver bool

	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool

	AdminUser     string
	AdminPassword string
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                      envDefault("PORT", "8080"),
		PostgresDSN:               strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		SettingsFile:              strings.TrimSpace(os.Getenv("SETTINGS_FILE")),
		SettingsSource:            strings.ToLower(strings.TrimSpace(os.Getenv("SETTINGS_SOURCE"))),
		EmailAPIURL:               strings.TrimSpace(os.Getenv("EMAIL_API_URL")),
		EmailAPIKey:               strings.TrimSpace(os.Getenv("EMAIL_API_KEY")),
		EmailFrom:                 strings.TrimSpace(os.Getenv("EMAIL_FROM")),
		EmailLocale:               envDefault("EMAIL_LOCALE", "de"),
		RestaurantName:            envDefault("RESTAURANT_NAME", "Pizzeria"),
		KafkaBrokers:              splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:                envDefault("KAFKA_TOPIC", "pizzeria.orders"),
		RabbitMQURL:               strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		RabbitMQExchange:          envDefault("RABBITMQ_EXCHANGE", "pizzeria.orders"),
		RedisAddr:                 strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		OrderListCacheTTL:         30 * time.Second,
		NotificationAutoRedeliver: isTruthy(os.Getenv("NOTIFICATION_AUTO_REDELIVERY")),
		TemporalAddress:           envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:         envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:          isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		AdminUser:                 strings.TrimSpace(os.Getenv("ADMIN_USER")),
		AdminPassword:             os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.SettingsSource == "" {
		switch {
		case cfg.SettingsFile != "":
			cfg.SettingsSource = SettingsSourceYAML
		case cfg.PostgresDSN != "":
			cfg.SettingsSource = SettingsSourcePostgres
		default:
			cfg.SettingsSource = SettingsSourceStatic
		}
	}
	switch cfg.SettingsSource {
	case SettingsSourceStatic, SettingsSourcePostgres:
	case SettingsSourceYAML:
		if cfg.SettingsFile == "" {
			return Config{}, fmt.Errorf("SETTINGS_FILE is required when SETTINGS_SOURCE=yaml")
		}
	default:
		return Config{}, fmt.Errorf("SETTINGS_SOURCE must be one of static, yaml, postgres")
	}

	if raw := strings.TrimSpace(os.Getenv("ORDER_LIST_CACHE_TTL_SECONDS")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("ORDER_LIST_CACHE_TTL_SECONDS must be a positive integer")
		}
		cfg.OrderListCacheTTL = time.Duration(seconds) * time.Second
	}
	if cfg.EmailAPIURL != "" && cfg.EmailFrom == "" {
		return Config{}, fmt.Errorf("EMAIL_FROM is required when EMAIL_API_URL is set")
	}
	if (cfg.AdminUser == "") != (cfg.AdminPassword == "") {
		return Config{}, fmt.Errorf("ADMIN_USER and ADMIN_PASSWORD must be set together")
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
