package main

import (
	"context"
	"fmt"
	"os"

	"atmosfera/internal/bootstrap"
	"atmosfera/internal/cli"
	"atmosfera/internal/config"
	"atmosfera/internal/database"
	"atmosfera/internal/logging"
	"atmosfera/internal/recommender"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("ATMOSFERA_CONFIG")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Terminal output belongs to the commands; only problems are logged.
	logCfg := cfg.Logging
	logCfg.Level = "warn"
	logging.Init(logCfg)

	engine, err := cfg.RulesEngine()
	if err != nil {
		return err
	}

	app := &cli.App{
		Rules: engine,
		Load: func(ctx context.Context) (*recommender.State, error) {
			if cfg.Dataset.Source != "mysql" {
				return bootstrap.NewLoader(cfg, nil)(ctx)
			}
			db, err := database.NewDB(config.GetDatabaseDSN())
			if err != nil {
				return nil, err
			}
			defer db.Close()
			return bootstrap.NewLoader(cfg, db)(ctx)
		},
	}

	return cli.NewRootCmd(app).Execute()
}
