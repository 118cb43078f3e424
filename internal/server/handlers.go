package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"atmosfera/internal/annotator"
	"atmosfera/internal/logging"
	"atmosfera/internal/models"
	"atmosfera/internal/predictor"
	"atmosfera/internal/recommender"
	"atmosfera/internal/report"
	"atmosfera/internal/station"

	"github.com/gin-gonic/gin"
)

// PolicyRequest is the body of POST /recommendations/policy.
type PolicyRequest struct {
	Category    string   `json:"category" binding:"required"`
	Probability *float64 `json:"probability" binding:"required,gte=0,lte=1"`
	Trend       string   `json:"trend" binding:"omitempty,oneof=rising stable falling unknown"`
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.holder.Load()
	if st == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting", "time": time.Now().UTC()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"time":          time.Now().UTC(),
		"snapshot":      st.Snapshot().ID(),
		"rows":          st.Snapshot().Len(),
		"stations":      st.Matrix().Len(),
		"model_version": st.ModelVersion(),
		"built_at":      st.BuiltAt(),
	})
}

func (s *Server) handleStations(c *gin.Context) {
	stations := stateFrom(c).Stations()
	c.JSON(http.StatusOK, gin.H{
		"data": stations,
		"meta": gin.H{"count": len(stations)},
	})
}

// resolve maps the :key path parameter to a known station, writing the error response itself.
func resolve(c *gin.Context, st *recommender.State) (station.Key, bool) {
	key, err := st.Resolve(c.Param("key"))
	switch {
	case errors.Is(err, station.ErrEmptyStation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	case errors.Is(err, recommender.ErrUnknownStation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return "", false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", false
	}
	return key, true
}

func (s *Server) handleLatest(c *gin.Context) {
	st := stateFrom(c)
	key, ok := resolve(c, st)
	if !ok {
		return
	}
	latest, _ := st.Snapshot().Latest(key)
	c.JSON(http.StatusOK, gin.H{
		"data":   latest,
		"public": st.Rules().PublicAction(latest.Category),
		"trend":  st.Trend(key),
	})
}

func (s *Server) handleSimilar(c *gin.Context) {
	st := stateFrom(c)
	key, ok := resolve(c, st)
	if !ok {
		return
	}

	k := 0
	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid k"})
			return
		}
		k = parsed
	}

	neighbors, err := st.Similar(key, k)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"station": key,
		"data":    neighbors,
		"meta":    gin.H{"count": len(neighbors)},
	})
}

// handlePrediction serves the hybrid prediction. A missing model or feature
// still answers 200 with the rule-only recommendation.
func (s *Server) handlePrediction(c *gin.Context) {
	st := stateFrom(c)
	key, ok := resolve(c, st)
	if !ok {
		return
	}

	res, err := st.Recommend(key)
	if err != nil && !errors.Is(err, predictor.ErrMissingFeature) && !errors.Is(err, predictor.ErrModelUnavailable) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	requestID := c.GetString(requestIDHeader)
	if s.opts.Store != nil {
		if err := s.opts.Store.StorePrediction(requestID, res); err != nil {
			logging.Error().Err(err).Str("request_id", requestID).Msg("failed to persist prediction")
		}
	}

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := report.WritePredictionCSV(&buf, res); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		attachment(c, "prediction_"+string(key)+".csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":                requestID,
		"data":                      res,
		"unhealthy_probability_pct": res.ProbabilityPercent(),
		"policy_label":              st.Rules().PolicyLabel(res.Policy.Tier),
	})
}

// handleStoredPredictions lists previously served predictions for a station.
func (s *Server) handleStoredPredictions(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "prediction store is not configured"})
		return
	}
	st := stateFrom(c)
	key, ok := resolve(c, st)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	records, err := s.opts.Store.GetPredictions(string(key), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"station": key,
		"data":    records,
		"meta":    gin.H{"count": len(records)},
	})
}

func (s *Server) handlePublic(c *gin.Context) {
	raw := c.Query("category")
	if strings.TrimSpace(raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category is required"})
		return
	}
	_, recognized := models.ParseCategory(raw)
	c.JSON(http.StatusOK, gin.H{
		"data":       stateFrom(c).Rules().PublicActionText(raw),
		"recognized": recognized,
	})
}

func (s *Server) handlePolicy(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rules := stateFrom(c).Rules()
	rec := rules.PolicyActionText(req.Category, *req.Probability, models.ParseTrend(req.Trend))
	_, recognized := models.ParseCategory(req.Category)
	c.JSON(http.StatusOK, gin.H{
		"data":       rec,
		"label":      rules.PolicyLabel(rec.Tier),
		"recognized": recognized,
	})
}

func (s *Server) history(c *gin.Context) ([]annotator.Annotation, bool) {
	st := stateFrom(c)

	if raw := c.Query("station"); raw != "" {
		key, err := st.Resolve(raw)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return nil, false
		}
		anns := st.Annotations(key)
		// newest first, as in the full log
		for i, j := 0, len(anns)-1; i < j; i, j = i+1, j-1 {
			anns[i], anns[j] = anns[j], anns[i]
		}
		if limit, ok := parseLimit(c); !ok {
			return nil, false
		} else if limit > 0 && len(anns) > limit {
			anns = anns[:limit]
		}
		return anns, true
	}

	limit, ok := parseLimit(c)
	if !ok {
		return nil, false
	}
	return st.History(limit), true
}

func parseLimit(c *gin.Context) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return annotator.DefaultLogLimit, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	return limit, true
}

func (s *Server) handleHistory(c *gin.Context) {
	anns, ok := s.history(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": anns,
		"meta": gin.H{"count": len(anns)},
	})
}

func (s *Server) handleHistoryCSV(c *gin.Context) {
	anns, ok := s.history(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteHistoryCSV(&buf, anns); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	attachment(c, "log_rekomendasi.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) handleHistoryXLSX(c *gin.Context) {
	anns, ok := s.history(c)
	if !ok {
		return
	}
	years, ok := parseYears(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteHistoryXLSX(&buf, anns, stateFrom(c).KPI(years)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	attachment(c, "log_rekomendasi.xlsx")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// parseYears reads ?years=2023,2024. Absent means all years.
func parseYears(c *gin.Context) ([]int, bool) {
	raw := c.Query("years")
	if raw == "" {
		return nil, true
	}
	var years []int
	for _, part := range strings.Split(raw, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || y < 1900 || y > 9999 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid years"})
			return nil, false
		}
		years = append(years, y)
	}
	return years, true
}

func (s *Server) handleKPI(c *gin.Context) {
	years, ok := parseYears(c)
	if !ok {
		return
	}
	st := stateFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"data":            st.KPI(years),
		"available_years": st.Snapshot().Years(),
	})
}

func (s *Server) handleTrendPNG(c *gin.Context) {
	years, ok := parseYears(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := report.WriteTrendPNG(&buf, stateFrom(c).KPI(years).Monthly)
	if errors.Is(err, report.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleReload(c *gin.Context) {
	next, err := s.holder.Reload(c.Request.Context(), s.opts.Loader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "reloaded",
		"snapshot": next.Snapshot().ID(),
		"rows":     next.Snapshot().Len(),
	})
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
}
