package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"atmosfera/internal/api"
	"atmosfera/internal/config"
	"atmosfera/internal/database"
	"atmosfera/internal/logging"
	"atmosfera/internal/models"
	"atmosfera/internal/station"
	"atmosfera/internal/stream"

	"github.com/go-redis/redis/v8"
)

const defaultPastDays = 7

type fetcher interface {
	GetCurrent(ctx context.Context, lat, long float64, fields []string) (*api.AirQualityResponse, error)
	GetHourly(ctx context.Context, lat, long float64, fields []string, pastDays int) (*api.AirQualityResponse, error)
}

type publisher interface {
	Publish(ctx context.Context, source, station string, ms []models.Measurement) (string, error)
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

	stations, err := targets(cfg, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to list stations")
	}
	if len(stations) == 0 {
		logging.Fatal().Msg("no stations configured or seeded, run the seed command first")
	}

	// Stations that already have data only need the current reading.
	withData, err := db.GetStationsWithData()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to get stations with data")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewAirQualityClient()
	pub := stream.NewPublisher(redisClient, redisCfg.Stream)
	pastDays := cfg.AirQuality.PastDays
	if pastDays <= 0 {
		pastDays = defaultPastDays
	}

	var wg sync.WaitGroup
	for _, st := range stations {
		wg.Add(1)
		go func(st config.Station) {
			defer wg.Done()
			key, _ := station.Normalize(st.Name)
			if err := collectStation(ctx, client, pub, st, withData[string(key)], cfg.AirQuality.MonitoredFields, pastDays); err != nil {
				logging.Error().Err(err).Str("station", st.Name).Msg("collection failed")
			}
		}(st)
	}

	wg.Wait()
	logging.Info().Int("stations", len(stations)).Msg("data collection completed")
}

// targets lists the stations to collect: the config file when it names
// any, otherwise the seeded stations.
func targets(cfg *config.Config, db *database.DB) ([]config.Station, error) {
	if len(cfg.Stations) > 0 {
		return cfg.Stations, nil
	}
	seeded, err := db.GetAllStations()
	if err != nil {
		return nil, err
	}
	out := make([]config.Station, 0, len(seeded))
	for _, s := range seeded {
		out = append(out, config.Station{Name: s.Name, Latitude: s.Latitude, Longitude: s.Longitude})
	}
	return out, nil
}

// collectStation fetches history for a new station, or the current reading
// for a known one, and publishes the measurements.
func collectStation(ctx context.Context, client fetcher, pub publisher, st config.Station, hasData bool, fields []string, pastDays int) error {
	source := stream.SourceCurrent
	var (
		resp *api.AirQualityResponse
		err  error
	)
	if hasData {
		logging.Debug().Str("station", st.Name).Msg("fetching current air quality")
		resp, err = client.GetCurrent(ctx, st.Latitude, st.Longitude, fields)
	} else {
		logging.Info().Str("station", st.Name).Int("past_days", pastDays).Msg("new station, fetching history")
		source = stream.SourceHistorical
		resp, err = client.GetHourly(ctx, st.Latitude, st.Longitude, fields, pastDays)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s data: %w", source, err)
	}

	ms, err := api.ToMeasurements(resp, st.Name, nil)
	if err != nil {
		return err
	}
	_, err = pub.Publish(ctx, source, st.Name, ms)
	return err
}
