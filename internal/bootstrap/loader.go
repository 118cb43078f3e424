// Package bootstrap builds the recommender state from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"atmosfera/internal/assets"
	"atmosfera/internal/config"
	"atmosfera/internal/dataset"
	"atmosfera/internal/logging"
	"atmosfera/internal/models"
	"atmosfera/internal/recommender"
)

// MeasurementSource reads stored measurements. *database.DB satisfies it.
type MeasurementSource interface {
	GetMeasurements(since time.Time) ([]models.Measurement, error)
}

// LoadSnapshot reads the dataset from the configured source. src is only
// used when the source is "mysql".
func LoadSnapshot(cfg *config.Config, src MeasurementSource) (*dataset.Snapshot, error) {
	switch cfg.Dataset.Source {
	case "mysql":
		if src == nil {
			return nil, fmt.Errorf("dataset source is mysql but no database is connected")
		}
		var since time.Time
		if cfg.Dataset.Since > 0 {
			since = time.Now().Add(-cfg.Dataset.Since)
		}
		rows, err := src.GetMeasurements(since)
		if err != nil {
			return nil, err
		}
		logging.Info().Int("rows", len(rows)).Time("since", since).Msg("loaded dataset from mysql")
		return dataset.NewSnapshot(rows), nil

	default:
		opts, err := cfg.CSVOptions()
		if err != nil {
			return nil, err
		}
		snap, report, err := dataset.LoadFile(cfg.Dataset.Path, opts)
		if err != nil {
			return nil, err
		}
		logging.Info().
			Str("path", cfg.Dataset.Path).
			Int("accepted", report.Accepted).
			Int("total", report.Total).
			Int("unknown_categories", report.UnknownCategories).
			Msg("loaded dataset from csv")
		return snap, nil
	}
}

// LoadAssets reads the model assets. Without model.required a missing or
// invalid file is logged and nil is returned so predictions degrade to rules.
func LoadAssets(cfg *config.Config) (*assets.Assets, error) {
	if cfg.Model.AssetsPath == "" {
		if cfg.Model.Required {
			return nil, fmt.Errorf("model.assets_path is empty but model.required is set")
		}
		return nil, nil
	}
	a, err := assets.Load(cfg.Model.AssetsPath)
	if err != nil {
		if cfg.Model.Required {
			return nil, err
		}
		logging.Warn().Err(err).Msg("model assets unavailable, serving rule-only recommendations")
		return nil, nil
	}
	logging.Info().Str("version", a.Version).Strs("features", a.Features).Msg("loaded model assets")
	return a, nil
}

// NewLoader returns a loader that rebuilds the full state on each call.
func NewLoader(cfg *config.Config, src MeasurementSource) recommender.Loader {
	return func(ctx context.Context) (*recommender.State, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		engineCfg, err := cfg.EngineConfig()
		if err != nil {
			return nil, err
		}
		snap, err := LoadSnapshot(cfg, src)
		if err != nil {
			return nil, err
		}
		a, err := LoadAssets(cfg)
		if err != nil {
			return nil, err
		}
		return recommender.Build(snap, a, engineCfg)
	}
}
