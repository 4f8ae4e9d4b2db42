package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	settingspostgres "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/postgres"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/static"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/yamlfile"
	"github.com/Apurer/pizzeria-api/internal/platform/migrations"
	platformpostgres "github.com/Apurer/pizzeria-api/internal/platform/postgres"
)

const usage = `usage: migrate <command>

commands:
  up                 apply all pending migrations
  down <steps>       roll back the given number of migrations
  version            print the applied schema version
  seed [file.yaml]   replace restaurant settings (defaults when no file is given)`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot migrate")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to unwrap postgres connection: %v", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := migrations.Up(sqlDB); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		logger.Info("schema is up to date")
	case "down":
		steps, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatalf("down needs a step count: %v", err)
		}
		if err := migrations.Down(sqlDB, steps); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		logger.Info("rolled back migrations", slog.Int("steps", steps))
	case "version":
		version, dirty, err := migrations.Version(sqlDB)
		if err != nil {
			log.Fatalf("read schema version: %v", err)
		}
		logger.Info("schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	case "seed":
		settings := static.Default()
		if path := flag.Arg(1); path != "" {
			if settings, err = yamlfile.Load(path); err != nil {
				log.Fatalf("load settings: %v", err)
			}
		}
		if err := migrations.Up(sqlDB); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		if err := settingspostgres.NewProvider(db).Seed(ctx, settings); err != nil {
			log.Fatalf("seed settings: %v", err)
		}
		logger.Info("restaurant settings seeded",
			slog.Int("discounts", len(settings.Discounts)),
			slog.Int("delivery_areas", len(settings.DeliveryAreas)),
		)
	default:
		log.Printf("unknown command %q", cmd)
		flag.Usage()
		os.Exit(2)
	}
}
