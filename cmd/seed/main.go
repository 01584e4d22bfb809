package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/adapter/repository/postgres"
	"github.com/srgjo27/taxi_availability/internal/core/domain"
	"github.com/srgjo27/taxi_availability/internal/core/services"
	"github.com/srgjo27/taxi_availability/internal/platform/clock"
	"github.com/srgjo27/taxi_availability/internal/platform/config"
	"github.com/srgjo27/taxi_availability/internal/platform/database"
	"github.com/srgjo27/taxi_availability/internal/platform/logger"
	"github.com/srgjo27/taxi_availability/internal/platform/retry"
)

type seedRoute struct {
	pickup, drop string
	prices       map[domain.Category]float64
}

var routes = []seedRoute{
	{"Mumbai", "Pune", map[domain.Category]float64{
		domain.CategorySedan: 1500, domain.CategoryHatchback: 1200, domain.CategorySUV: 2000, domain.CategoryPrimeSUV: 2500,
	}},
	{"Mumbai", "Nashik", map[domain.Category]float64{
		domain.CategorySedan: 1200, domain.CategoryHatchback: 1000, domain.CategorySUV: 1800, domain.CategoryPrimeSUV: 2200,
	}},
	{"Pune", "Nashik", map[domain.Category]float64{
		domain.CategorySedan: 1000, domain.CategoryHatchback: 800, domain.CategorySUV: 1500, domain.CategoryPrimeSUV: 1800,
	}},
}

func main() {
	envFile := flag.String("env", ".env", "env file to load")
	bothWays := flag.Bool("both-ways", true, "seed the reverse direction of every route too")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		Connect:  retry.Policy{Attempts: cfg.DBConnectAttempts, Delay: cfg.DBConnectDelay, Multiplier: 2},
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to db", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		zlog.Fatal("failed to migrate schema", zap.Error(err))
	}

	svc := services.NewBookingService(services.Deps{
		Store:  postgres.NewStore(db),
		Clock:  clock.System{},
		Policy: services.Policy{Location: cfg.Location()},
		Logger: zlog,
	})

	seeded := 0
	for _, r := range routes {
		pairs := [][2]string{{r.pickup, r.drop}}
		if *bothWays {
			pairs = append(pairs, [2]string{r.drop, r.pickup})
		}

		for _, p := range pairs {
			for _, c := range domain.Categories {
				_, err := svc.UpdateInventory(ctx, services.InventoryUpdate{
					PickupLocation: p[0],
					DropLocation:   p[1],
					VehicleType:    string(c),
					Available:      cfg.DefaultFleetSize,
					Price:          r.prices[c],
				})
				if err != nil {
					zlog.Fatal("failed to seed inventory",
						zap.String("pickup", p[0]), zap.String("drop", p[1]),
						zap.String("vehicle_type", string(c)), zap.Error(err))
				}
				seeded++
			}
		}
	}

	zlog.Info("inventory seeded", zap.Int("ceilings", seeded))
}
