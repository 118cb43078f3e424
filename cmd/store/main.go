package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"atmosfera/internal/config"
	"atmosfera/internal/database"
	"atmosfera/internal/logging"
	"atmosfera/internal/models"
	"atmosfera/internal/stream"

	"github.com/go-redis/redis/v8"
)

type measurementStore interface {
	StoreMeasurements(rows []models.Measurement) (int, error)
}

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Logging)

	redisCfg := cfg.RedisSettings()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()
	consumer := stream.NewConsumer(redisClient, stream.ConsumerConfig{
		Stream:   redisCfg.Stream,
		Group:    redisCfg.Group,
		Consumer: "store-" + hostname,
	})

	logging.Info().Msg("store service started, press Ctrl+C to stop")
	if err := consumer.Run(ctx, storeHandler(db)); err != nil {
		logging.Fatal().Err(err).Msg("store service failed")
	}
	logging.Info().Msg("store service stopped")
}

// storeHandler writes each message's measurements. A failed write leaves the
// entry pending so it is retried.
func storeHandler(db measurementStore) stream.Handler {
	return func(ctx context.Context, msg stream.Message) error {
		if len(msg.Measurements) == 0 {
			return nil
		}
		n, err := db.StoreMeasurements(msg.Measurements)
		if err != nil {
			return fmt.Errorf("failed to store %s data for %s: %w", msg.Source, msg.Station, err)
		}
		logging.Info().Str("source", msg.Source).Str("station", msg.Station).Int("rows", n).Msg("stored measurements")
		return nil
	}
}
