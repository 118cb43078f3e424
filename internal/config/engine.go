package config

import (
	"fmt"
	"time"

	"atmosfera/internal/dataset"
	"atmosfera/internal/predictor"
	"atmosfera/internal/recommender"
	"atmosfera/internal/rules"
	"atmosfera/internal/similarity"
)

// CSVOptions maps the dataset section onto the loader options.
func (c *Config) CSVOptions() (dataset.CSVOptions, error) {
	opts := dataset.CSVOptions{
		TimestampColumn: c.Dataset.TimestampColumn,
		StationColumn:   c.Dataset.StationColumn,
		PM25Column:      c.Dataset.PM25Column,
		CategoryColumn:  c.Dataset.CategoryColumn,
		FeatureColumns:  c.Dataset.FeatureColumns,
		TimeLayouts:     c.Dataset.TimeLayouts,
	}
	if c.Dataset.Delimiter != "" {
		opts.Comma = []rune(c.Dataset.Delimiter)[0]
	}
	if c.Dataset.Timezone != "" {
		loc, err := time.LoadLocation(c.Dataset.Timezone)
		if err != nil {
			return opts, fmt.Errorf("invalid dataset.timezone: %w", err)
		}
		opts.Location = loc
	}
	return opts, nil
}

// RulesEngine builds the rule engine from the rules section.
func (c *Config) RulesEngine() (*rules.Engine, error) {
	catalog, err := rules.CatalogByName(c.Rules.Language)
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(c.Rules.Thresholds, catalog)
}

// EngineConfig assembles everything recommender.Build needs besides data.
func (c *Config) EngineConfig() (recommender.Config, error) {
	engine, err := c.RulesEngine()
	if err != nil {
		return recommender.Config{}, err
	}
	return recommender.Config{
		Similarity: similarity.Options{MinOverlap: c.Similarity.MinOverlap},
		Predictor: predictor.Options{
			SimilarityFloor: c.Similarity.Floor,
			MaxPeers:        c.Similarity.MaxPeers,
			MaxPeerAge:      c.Similarity.MaxPeerAge,
		},
		TrendWindow: c.Similarity.TrendWindow,
		Rules:       engine,
	}, nil
}
