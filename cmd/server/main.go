package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"atmosfera/internal/bootstrap"
	"atmosfera/internal/config"
	"atmosfera/internal/database"
	"atmosfera/internal/logging"
	"atmosfera/internal/recommender"
	"atmosfera/internal/server"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Logging)

	// The database is needed for a mysql dataset or for persisting predictions.
	var db *database.DB
	if cfg.Dataset.Source == "mysql" || cfg.Server.PersistPredictions {
		db, err = database.NewDB(config.GetDatabaseDSN())
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer db.Close()
	}

	var src bootstrap.MeasurementSource
	if db != nil {
		src = db
	}
	loader := bootstrap.NewLoader(cfg, src)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := loader(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build engine state")
	}

	opts := server.Options{
		Addr:            cfg.Server.Addr,
		Mode:            cfg.Server.Mode,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Loader:          loader,
		AdminToken:      os.Getenv("ATMOSFERA_ADMIN_TOKEN"),
	}
	if cfg.Server.PersistPredictions {
		opts.Store = db
	}

	if opts.AdminToken == "" {
		logging.Warn().Msg("ATMOSFERA_ADMIN_TOKEN not set, /admin/reload disabled")
	}

	srv := server.New(recommender.NewHolder(state), opts)
	if err := srv.Run(ctx); err != nil {
		logging.Fatal().Err(err).Msg("server failed")
	}
	logging.Info().Msg("server stopped")
}
