package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"atmosfera/internal/annotator"
	"atmosfera/internal/bootstrap"
	"atmosfera/internal/config"
	"atmosfera/internal/database"
	"atmosfera/internal/logging"
	"atmosfera/internal/recommender"
	"atmosfera/internal/report"
	"atmosfera/internal/station"
)

const maxWorkers = 50

type annotationStore interface {
	StoreAnnotations(anns []annotator.Annotation) error
}

// stationResult holds the annotations for a single station
type stationResult struct {
	Station        station.Key
	Annotations    []annotator.Annotation
	Error          error
	ProcessingTime time.Duration
}

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	outDir := flag.String("out", "reports", "directory for CSV, XLSX and PNG reports")
	store := flag.Bool("store", false, "store annotations in MySQL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Logging)

	var db *database.DB
	if *store || cfg.Dataset.Source == "mysql" {
		db, err = database.NewDB(config.GetDatabaseDSN())
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var src bootstrap.MeasurementSource
	if db != nil {
		src = db
	}
	state, err := bootstrap.NewLoader(cfg, src)(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build engine state")
	}

	var sink annotationStore
	if *store {
		sink = db
	}
	all := annotateAll(ctx, state, sink)

	if err := writeReports(*outDir, all, state.KPI(nil)); err != nil {
		logging.Fatal().Err(err).Msg("failed to write reports")
	}
	logging.Info().Str("dir", *outDir).Msg("annotation run completed")
}

// annotateAll fans stations out to a worker pool and collects annotations,
// newest first. Stations whose store fails are logged and skipped.
func annotateAll(ctx context.Context, state *recommender.State, sink annotationStore) []annotator.Annotation {
	startTime := time.Now()
	stations := state.Snapshot().Stations()
	if len(stations) == 0 {
		return nil
	}

	numWorkers := maxWorkers
	if len(stations) < numWorkers {
		numWorkers = len(stations)
	}

	jobs := make(chan station.Key, len(stations))
	results := make(chan stationResult, len(stations))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(ctx, state, jobs, results, &wg)
	}

	for _, key := range stations {
		jobs <- key
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		all         []annotator.Annotation
		processed   int
		totalErrors int
	)
	for result := range results {
		processed++
		log := logging.With("annotate").With().
			Int("n", processed).
			Int("of", len(stations)).
			Str("station", string(result.Station)).
			Dur("took", result.ProcessingTime).
			Logger()

		if result.Error != nil {
			log.Error().Err(result.Error).Msg("station skipped")
			totalErrors++
			continue
		}

		if sink != nil {
			if err := sink.StoreAnnotations(result.Annotations); err != nil {
				log.Error().Err(err).Msg("failed to store annotations")
				totalErrors++
				continue
			}
		}

		log.Info().Int("rows", len(result.Annotations)).Msg("station annotated")
		all = append(all, result.Annotations...)
	}

	sortNewestFirst(all)

	logging.Info().
		Int("stations", processed-totalErrors).
		Int("errors", totalErrors).
		Int("rows", len(all)).
		Int("workers", numWorkers).
		Dur("duration", time.Since(startTime)).
		Msg("annotation complete")
	return all
}

func worker(ctx context.Context, state *recommender.State, jobs <-chan station.Key, results chan<- stationResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for key := range jobs {
		startTime := time.Now()
		if err := ctx.Err(); err != nil {
			results <- stationResult{Station: key, Error: err}
			continue
		}
		results <- stationResult{
			Station:        key,
			Annotations:    state.Annotations(key),
			ProcessingTime: time.Since(startTime),
		}
	}
}

func writeReports(dir string, anns []annotator.Annotation, kpi annotator.KPI) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if err := writeFile(filepath.Join(dir, "log_rekomendasi.csv"), func(f *os.File) error {
		return report.WriteHistoryCSV(f, anns)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "log_rekomendasi.xlsx"), func(f *os.File) error {
		return report.WriteHistoryXLSX(f, anns, kpi)
	}); err != nil {
		return err
	}
	err := writeFile(filepath.Join(dir, "tren_pm25.png"), func(f *os.File) error {
		return report.WriteTrendPNG(f, kpi.Monthly)
	})
	if errors.Is(err, report.ErrNoData) {
		logging.Warn().Msg("no monthly data, trend chart skipped")
		return nil
	}
	return err
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// sortNewestFirst orders annotations by timestamp descending, then by station key.
func sortNewestFirst(anns []annotator.Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		if !anns[i].Timestamp.Equal(anns[j].Timestamp) {
			return anns[i].Timestamp.After(anns[j].Timestamp)
		}
		return anns[i].StationKey < anns[j].StationKey
	})
}
