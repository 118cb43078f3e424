package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"io"
	"os"
	"strconv"
	"strings"

	"atmosfera/internal/config"
	"atmosfera/internal/database"
	"atmosfera/internal/logging"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	csvPath := flag.String("csv", "stations_seed.csv", "station CSV: name,latitude,longitude")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Logging)

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	inserted, skipped := 0, 0
	insert := func(name string, lat, lon float64) {
		st, err := db.InsertStation(name, lat, lon)
		switch {
		case errors.Is(err, database.ErrDuplicateStation):
			logging.Debug().Str("station", name).Msg("station already exists")
			skipped++
		case err != nil:
			logging.Warn().Err(err).Str("station", name).Msg("failed to insert station")
			skipped++
		default:
			inserted++
			logging.Debug().Str("station", st.Name).Str("key", st.Key).Msg("inserted station")
		}
	}

	// stations listed in the config file are seeded first
	for _, s := range cfg.Stations {
		insert(s.Name, s.Latitude, s.Longitude)
	}

	file, err := os.Open(*csvPath)
	if errors.Is(err, os.ErrNotExist) && len(cfg.Stations) > 0 {
		logging.Info().Int("inserted", inserted).Int("skipped", skipped).Msg("seeded stations from config")
		return
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to read CSV header")
	}
	logging.Debug().Strs("header", header).Msg("csv header")

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to read CSV record")
		}

		if len(record) < 3 || strings.TrimSpace(record[0]) == "" {
			logging.Warn().Strs("record", record).Msg("skipping invalid record")
			skipped++
			continue
		}
		latitude, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			logging.Warn().Strs("record", record).Msg("skipping record with invalid latitude")
			skipped++
			continue
		}
		longitude, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			logging.Warn().Strs("record", record).Msg("skipping record with invalid longitude")
			skipped++
			continue
		}

		insert(record[0], latitude, longitude)
		if inserted > 0 && inserted%100 == 0 {
			logging.Info().Int("inserted", inserted).Msg("inserting stations")
		}
	}

	logging.Info().Int("inserted", inserted).Int("skipped", skipped).Msg("import complete")
}
