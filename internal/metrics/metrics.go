package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)
)

// Engine metrics
var (
	// PredictionsTotal counts hybrid predictions by outcome (ok, missing_feature, model_unavailable)
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmosfera_predictions_total",
			Help: "Hybrid predictions served, by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmosfera_recommendations_total",
			Help: "Recommendations produced, by scope and tier",
		},
		[]string{"scope", "tier"},
	)

	// UnknownCategoriesTotal is a data-quality signal: category text that matched no alias
	UnknownCategoriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmosfera_unknown_categories_total",
			Help: "Category strings that did not match any known category",
		},
		[]string{"source"},
	)

	SimilarityBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atmosfera_similarity_build_duration_seconds",
			Help:    "Time spent building the station similarity matrix",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	SimilarityStations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atmosfera_similarity_stations",
			Help: "Number of stations in the current similarity matrix",
		},
	)

	AnnotatedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atmosfera_annotated_rows_total",
			Help: "Historical rows annotated with public and policy recommendations",
		},
	)

	// IngestedMessagesTotal counts stream messages by stage (published, consumed, failed)
	IngestedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmosfera_ingested_messages_total",
			Help: "Measurement stream messages by stage",
		},
		[]string{"stage"},
	)

	RejectedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atmosfera_rejected_rows_total",
			Help: "Dataset rows rejected at load time, by reason",
		},
		[]string{"reason"},
	)

	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atmosfera_app_info",
			Help: "Application information (always 1)",
		},
	)

	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atmosfera_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueriesTotal.WithLabelValues(queryType, table, status).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}

func RecordPrediction(outcome string) {
	PredictionsTotal.WithLabelValues(outcome).Inc()
}

func RecordRecommendation(scope, tier string) {
	RecommendationsTotal.WithLabelValues(scope, tier).Inc()
}

func RecordUnknownCategory(source string) {
	UnknownCategoriesTotal.WithLabelValues(source).Inc()
}

// RecordSimilarityBuild records matrix construction time and size
func RecordSimilarityBuild(stations int, duration time.Duration) {
	SimilarityBuildDuration.Observe(duration.Seconds())
	SimilarityStations.Set(float64(stations))
}

func RecordRejectedRow(reason string) {
	RejectedRowsTotal.WithLabelValues(reason).Inc()
}

func RecordIngested(stage string, n int) {
	IngestedMessagesTotal.WithLabelValues(stage).Add(float64(n))
}
