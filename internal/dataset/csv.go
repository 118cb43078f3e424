package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"atmosfera/internal/logging"
	"atmosfera/internal/metrics"
	"atmosfera/internal/models"
	"atmosfera/internal/station"
)

var (
	ErrNoHeader      = errors.New("csv has no header row")
	ErrMissingColumn = errors.New("required column missing")
)

// Rejection reasons counted in LoadReport and metrics.
const (
	RejectEmptyStation = "empty_station"
	RejectBadTimestamp = "bad_timestamp"
	RejectBadPM25      = "bad_pm25"
	RejectShortRow     = "short_row"
)

// CSVOptions names the columns of a historical measurement file.
// Empty names fall back to the usual ISPU export headers.
type CSVOptions struct {
	TimestampColumn string         `yaml:"timestamp_column"`
	StationColumn   string         `yaml:"station_column"`
	PM25Column      string         `yaml:"pm25_column"`
	CategoryColumn  string         `yaml:"category_column"`
	FeatureColumns  []string       `yaml:"feature_columns"` // empty: every other numeric column
	TimeLayouts     []string       `yaml:"time_layouts"`
	Comma           rune           `yaml:"-"`
	Location        *time.Location `yaml:"-"`
}

var (
	timestampAliases = []string{"tanggal_lengkap", "tanggal", "timestamp", "date", "waktu"}
	stationAliases   = []string{"stasiun", "station", "lokasi", "location"}
	pm25Aliases      = []string{"pm25", "pm2_5", "pm2.5", "pm_25"}
	categoryAliases  = []string{"kategori", "category", "categori"}

	defaultLayouts = []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"02/01/2006 15:04",
		"02/01/2006",
	}
)

// LoadReport summarizes a CSV load.
type LoadReport struct {
	Total             int            `json:"total"`
	Accepted          int            `json:"accepted"`
	Rejected          map[string]int `json:"rejected"`
	UnknownCategories int            `json:"unknown_categories"`
	UnknownSamples    []string       `json:"unknown_samples,omitempty"`
}

const maxUnknownSamples = 10

// LoadFile opens path and calls LoadCSV.
func LoadFile(path string, opts CSVOptions) (*Snapshot, LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

type columns struct {
	timestamp, station, pm25, category int
	features                           map[int]string
}

// LoadCSV parses historical measurements. Rows with an empty station, an
// unparsable timestamp or an invalid PM2.5 value are rejected and counted.
// Unrecognized category text is kept as CategoryUnknown and reported.
func LoadCSV(r io.Reader, opts CSVOptions) (*Snapshot, LoadReport, error) {
	report := LoadReport{Rejected: make(map[string]int)}
	log := logging.With("dataset")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, report, ErrNoHeader
	}
	if err != nil {
		return nil, report, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols, err := resolveColumns(header, opts)
	if err != nil {
		return nil, report, err
	}

	layouts := opts.TimeLayouts
	if len(layouts) == 0 {
		layouts = defaultLayouts
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var rows []models.Measurement
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, report, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		report.Total++

		m, reason := parseRecord(record, cols, layouts, loc)
		if reason != "" {
			report.Rejected[reason]++
			metrics.RecordRejectedRow(reason)
			log.Debug().Int("line", line).Str("reason", reason).Msg("row rejected")
			continue
		}

		if m.Category == models.CategoryUnknown {
			report.UnknownCategories++
			if len(report.UnknownSamples) < maxUnknownSamples {
				report.UnknownSamples = append(report.UnknownSamples, m.CategoryRaw)
			}
			metrics.RecordUnknownCategory("dataset")
			log.Warn().Int("line", line).Str("category", m.CategoryRaw).Str("station", m.StationKey).
				Msg("unrecognized category, treating as unhealthy")
		}

		m.ID = int64(len(rows) + 1)
		rows = append(rows, m)
	}

	report.Accepted = len(rows)
	log.Info().Int("total", report.Total).Int("accepted", report.Accepted).
		Int("unknown_categories", report.UnknownCategories).Msg("dataset loaded")

	return NewSnapshot(rows), report, nil
}

func resolveColumns(header []string, opts CSVOptions) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	find := func(explicit string, aliases []string) int {
		if explicit != "" {
			if i, ok := index[strings.ToLower(explicit)]; ok {
				return i
			}
			return -1
		}
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				return i
			}
		}
		return -1
	}

	cols := columns{
		timestamp: find(opts.TimestampColumn, timestampAliases),
		station:   find(opts.StationColumn, stationAliases),
		pm25:      find(opts.PM25Column, pm25Aliases),
		category:  find(opts.CategoryColumn, categoryAliases),
		features:  make(map[int]string),
	}
	switch {
	case cols.timestamp < 0:
		return cols, fmt.Errorf("%w: timestamp", ErrMissingColumn)
	case cols.station < 0:
		return cols, fmt.Errorf("%w: station", ErrMissingColumn)
	case cols.pm25 < 0:
		return cols, fmt.Errorf("%w: pm25", ErrMissingColumn)
	}

	reserved := map[int]bool{cols.timestamp: true, cols.station: true, cols.pm25: true, cols.category: true}

	if len(opts.FeatureColumns) > 0 {
		for _, name := range opts.FeatureColumns {
			i, ok := index[strings.ToLower(name)]
			if !ok {
				return cols, fmt.Errorf("%w: feature %s", ErrMissingColumn, name)
			}
			if !reserved[i] {
				cols.features[i] = strings.ToLower(name)
			}
		}
		return cols, nil
	}

	for i, h := range header {
		if reserved[i] {
			continue
		}
		cols.features[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return cols, nil
}

func parseRecord(record []string, cols columns, layouts []string, loc *time.Location) (models.Measurement, string) {
	cell := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	if len(record) <= cols.timestamp || len(record) <= cols.station || len(record) <= cols.pm25 {
		return models.Measurement{}, RejectShortRow
	}

	raw := cell(cols.station)
	key, err := station.Normalize(raw)
	if err != nil {
		return models.Measurement{}, RejectEmptyStation
	}

	ts, ok := parseTime(cell(cols.timestamp), layouts, loc)
	if !ok {
		return models.Measurement{}, RejectBadTimestamp
	}

	pm25, ok := parseNumber(cell(cols.pm25))
	if !ok || pm25 < 0 {
		return models.Measurement{}, RejectBadPM25
	}

	m := models.Measurement{
		Timestamp:  ts,
		StationRaw: raw,
		StationKey: string(key),
		PM25:       pm25,
	}

	if cols.category >= 0 {
		m.CategoryRaw = cell(cols.category)
	}
	if m.CategoryRaw == "" {
		m.Category = models.CategoryFromPM25(pm25)
	} else {
		m.Category, _ = models.ParseCategory(m.CategoryRaw)
	}

	for i, name := range cols.features {
		if v, ok := parseNumber(cell(i)); ok {
			if m.Features == nil {
				m.Features = make(map[string]float64, len(cols.features))
			}
			m.Features[name] = v
		}
	}

	return m, ""
}

func parseTime(s string, layouts []string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber accepts dot or lone-comma decimals; blanks, dashes and NaN are missing.
func parseNumber(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "", "-", "---", "nan", "na", "n/a", "null":
		return 0, false
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
