package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atmosfera/internal/logging"
	"atmosfera/internal/metrics"
	"atmosfera/internal/models"
	"atmosfera/internal/station"

	"github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"
)

// ErrDuplicateStation is returned when a station key already exists.
var ErrDuplicateStation = errors.New("duplicate station")

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
// example: "user:pass@tcp(localhost:3306)/atmosfera?parseTime=true"
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	// MySQL doesn't support multiple statements in one Exec
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			station_key VARCHAR(191) NOT NULL,
			name VARCHAR(255) NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			UNIQUE KEY uq_stations_key (station_key)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS measurements (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			station_key VARCHAR(191) NOT NULL,
			station_raw VARCHAR(255) NOT NULL DEFAULT '',
			timestamp DATETIME(6) NOT NULL,
			pm25 DOUBLE NOT NULL,
			category VARCHAR(32) NOT NULL,
			category_raw VARCHAR(64) NOT NULL DEFAULT '',
			features JSON NULL,
			UNIQUE KEY uq_measurements_station_time (station_key, timestamp),
			INDEX idx_measurements_timestamp (timestamp)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS annotations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			measurement_id BIGINT NOT NULL,
			station_key VARCHAR(191) NOT NULL,
			timestamp DATETIME(6) NOT NULL,
			category VARCHAR(32) NOT NULL,
			pm25 DOUBLE NOT NULL,
			public_tier VARCHAR(8) NOT NULL,
			public_action VARCHAR(64) NOT NULL,
			public_text TEXT NOT NULL,
			policy_tier VARCHAR(8) NOT NULL,
			policy_action VARCHAR(64) NOT NULL,
			policy_text TEXT NOT NULL,
			highlight VARCHAR(8) NOT NULL,
			INDEX idx_annotations_station_time (station_key, timestamp)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS predictions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			request_id CHAR(36) NOT NULL,
			station_key VARCHAR(191) NOT NULL,
			observed_at DATETIME(6) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			current_category VARCHAR(32) NOT NULL,
			predicted_category VARCHAR(32) NOT NULL DEFAULT '',
			unhealthy_probability DOUBLE NOT NULL,
			available BOOLEAN NOT NULL,
			unavailable_reason VARCHAR(255) NOT NULL DEFAULT '',
			public_tier VARCHAR(8) NOT NULL,
			policy_tier VARCHAR(8) NOT NULL,
			situation_tier VARCHAR(8) NOT NULL,
			payload JSON NOT NULL,
			UNIQUE KEY uq_predictions_request (request_id),
			INDEX idx_predictions_station (station_key, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (db *DB) recordStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// StoreMeasurements upserts measurements in one transaction. A row for an
// existing (station, timestamp) pair replaces the stored values.
func (db *DB) StoreMeasurements(rows []models.Measurement) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	defer db.recordStats()

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.Prepare(`INSERT INTO measurements (station_key, station_raw, timestamp, pm25, category, category_raw, features)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE station_raw = VALUES(station_raw), pm25 = VALUES(pm25),
			category = VALUES(category), category_raw = VALUES(category_raw), features = VALUES(features)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	queryStart := time.Now()
	stored := 0
	for _, m := range rows {
		features, err := encodeFeatures(m.Features)
		if err != nil {
			return stored, fmt.Errorf("failed to encode features for %s at %s: %w", m.StationKey, m.Timestamp, err)
		}
		if _, err := stmt.Exec(m.StationKey, m.StationRaw, m.Timestamp, m.PM25, string(m.Category), m.CategoryRaw, features); err != nil {
			metrics.RecordDBQuery("INSERT", "measurements", time.Since(queryStart), err)
			return stored, fmt.Errorf("failed to insert measurement for %s at %s: %w", m.StationKey, m.Timestamp, err)
		}
		stored++
	}

	err = tx.Commit()
	metrics.RecordDBQuery("INSERT", "measurements", time.Since(queryStart), err)
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Debug().Int("rows", stored).Msg("stored measurements")
	return stored, nil
}

// GetMeasurements returns every measurement at or after since, oldest first.
// A zero since returns the full history.
func (db *DB) GetMeasurements(since time.Time) ([]models.Measurement, error) {
	defer db.recordStats()

	query := `SELECT id, station_key, station_raw, timestamp, pm25, category, category_raw, features
		FROM measurements WHERE timestamp >= ? ORDER BY timestamp, id`
	queryStart := time.Now()
	rows, err := db.conn.Query(query, since)
	metrics.RecordDBQuery("SELECT", "measurements", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var out []models.Measurement
	for rows.Next() {
		var (
			m        models.Measurement
			category string
			features []byte
		)
		if err := rows.Scan(&m.ID, &m.StationKey, &m.StationRaw, &m.Timestamp, &m.PM25, &category, &m.CategoryRaw, &features); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		if m.Category, _ = models.ParseCategory(category); m.Category == models.CategoryUnknown {
			metrics.RecordUnknownCategory("database")
		}
		if m.Features, err = decodeFeatures(features); err != nil {
			return nil, fmt.Errorf("measurement %d: %w", m.ID, err)
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

// GetStationsWithData returns the keys of stations that already have measurements.
func (db *DB) GetStationsWithData() (map[string]bool, error) {
	defer db.recordStats()

	queryStart := time.Now()
	rows, err := db.conn.Query(`SELECT DISTINCT station_key FROM measurements`)
	metrics.RecordDBQuery("SELECT", "measurements", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations with data: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan station key: %w", err)
		}
		out[key] = true
	}
	return out, rows.Err()
}

// InsertStation stores a station under its normalized key.
func (db *DB) InsertStation(name string, latitude, longitude float64) (models.Station, error) {
	key, err := station.Normalize(name)
	if err != nil {
		return models.Station{}, err
	}

	queryStart := time.Now()
	res, err := db.conn.Exec(`INSERT INTO stations (station_key, name, latitude, longitude) VALUES (?, ?, ?, ?)`,
		string(key), name, latitude, longitude)
	metrics.RecordDBQuery("INSERT", "stations", time.Since(queryStart), err)
	if err != nil {
		if isDuplicate(err) {
			return models.Station{}, fmt.Errorf("%w: %s", ErrDuplicateStation, key)
		}
		return models.Station{}, fmt.Errorf("failed to insert station: %w", err)
	}

	id, _ := res.LastInsertId()
	return models.Station{ID: id, Key: string(key), Name: name, Latitude: latitude, Longitude: longitude}, nil
}

// GetAllStations retrieves all stations ordered by key.
func (db *DB) GetAllStations() ([]models.Station, error) {
	queryStart := time.Now()
	rows, err := db.conn.Query(`SELECT id, station_key, name, latitude, longitude FROM stations ORDER BY station_key`)
	metrics.RecordDBQuery("SELECT", "stations", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var s models.Station
		if err := rows.Scan(&s.ID, &s.Key, &s.Name, &s.Latitude, &s.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stations: %w", err)
	}

	return stations, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// encodeFeatures stores nil for an empty map so the column stays NULL.
func encodeFeatures(features map[string]float64) (interface{}, error) {
	if len(features) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeFeatures(raw []byte) (map[string]float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var features map[string]float64
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, fmt.Errorf("invalid features column: %w", err)
	}
	return features, nil
}
