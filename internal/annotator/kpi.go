package annotator

import (
	"sort"

	"atmosfera/internal/models"
)

// NoStation marks a KPI with no unhealthy rows.
const NoStation = "N/A"

// MonthlyMean is the average PM2.5 for one calendar month.
type MonthlyMean struct {
	Month string  `json:"month"` // YYYY-MM
	PM25  float64 `json:"pm25"`
	Count int     `json:"count"`
}

// KPI summarizes a set of historical rows.
type KPI struct {
	Rows              int            `json:"rows"`
	FromYear          int            `json:"from_year"`
	ToYear            int            `json:"to_year"`
	GlobalPM25        float64        `json:"global_pm25"`
	CriticalStation   string         `json:"critical_station"`
	CriticalCount     int            `json:"critical_count"`
	HealthyRatio      float64        `json:"healthy_ratio"` // percent of rows categorized healthy
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	Monthly           []MonthlyMean  `json:"monthly"`
}

// Summarize computes dashboard indicators. The critical station is the one
// with the most unhealthy rows; ties go to the smallest key.
func Summarize(rows []models.Measurement) KPI {
	k := KPI{CriticalStation: NoStation, CategoryBreakdown: make(map[string]int)}
	if len(rows) == 0 {
		return k
	}

	k.Rows = len(rows)
	k.FromYear, k.ToYear = rows[0].Timestamp.Year(), rows[0].Timestamp.Year()

	type acc struct {
		sum   float64
		count int
	}
	monthly := make(map[string]*acc)
	unhealthy := make(map[string]int)
	var sum float64
	healthy := 0

	for _, r := range rows {
		y := r.Timestamp.Year()
		if y < k.FromYear {
			k.FromYear = y
		}
		if y > k.ToYear {
			k.ToYear = y
		}

		sum += r.PM25

		month := r.Timestamp.Format("2006-01")
		if monthly[month] == nil {
			monthly[month] = &acc{}
		}
		monthly[month].sum += r.PM25
		monthly[month].count++

		category := r.Category
		if category == "" {
			category = models.CategoryUnknown
		}
		k.CategoryBreakdown[string(category)]++
		switch category {
		case models.CategoryHealthy:
			healthy++
		case models.CategoryUnhealthy:
			unhealthy[r.StationKey]++
		}
	}

	k.GlobalPM25 = sum / float64(len(rows))
	k.HealthyRatio = float64(healthy) / float64(len(rows)) * 100

	for st, n := range unhealthy {
		if n > k.CriticalCount || (n == k.CriticalCount && st < k.CriticalStation) {
			k.CriticalStation, k.CriticalCount = st, n
		}
	}

	k.Monthly = make([]MonthlyMean, 0, len(monthly))
	for month, a := range monthly {
		k.Monthly = append(k.Monthly, MonthlyMean{Month: month, PM25: a.sum / float64(a.count), Count: a.count})
	}
	sort.Slice(k.Monthly, func(i, j int) bool { return k.Monthly[i].Month < k.Monthly[j].Month })

	return k
}
