package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"atmosfera/internal/database"
	"atmosfera/internal/logging"
	"atmosfera/internal/models"
	"atmosfera/internal/recommender"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// requestIDHeader carries the per-request ID, also used to key stored predictions.
const requestIDHeader = "X-Request-ID"

// PredictionStore persists served predictions. *database.DB satisfies it.
type PredictionStore interface {
	StorePrediction(requestID string, p models.HybridPrediction) error
	GetPredictions(stationKey string, limit int) ([]database.PredictionRecord, error)
}

type Options struct {
	Addr            string
	Mode            string
	ShutdownTimeout time.Duration
	// Loader rebuilds the engine state for POST /admin/reload. The route is
	// registered only when both Loader and AdminToken are set.
	Loader recommender.Loader
	// Store, when set, receives every served prediction.
	Store PredictionStore
	// AdminToken is the bearer token required by /admin routes.
	AdminToken string
}

// Server represents the HTTP server
type Server struct {
	holder *recommender.Holder
	opts   Options
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(holder *recommender.Holder, opts Options) *Server {
	if opts.Mode == "" {
		opts.Mode = gin.ReleaseMode
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	gin.SetMode(opts.Mode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(requestLogger())

	s := &Server{holder: holder, opts: opts, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ready := s.engine.Group("/")
	ready.Use(s.requireState())
	{
		ready.GET("/stations", s.handleStations)
		ready.GET("/stations/:key/latest", s.handleLatest)
		ready.GET("/stations/:key/similar", s.handleSimilar)
		ready.GET("/stations/:key/prediction", s.handlePrediction)
		ready.GET("/stations/:key/predictions", s.handleStoredPredictions)

		ready.GET("/recommendations/public", s.handlePublic)
		ready.POST("/recommendations/policy", s.handlePolicy)

		ready.GET("/history", s.handleHistory)
		ready.GET("/history/export.csv", s.handleHistoryCSV)
		ready.GET("/history/export.xlsx", s.handleHistoryXLSX)

		ready.GET("/kpi", s.handleKPI)
		ready.GET("/kpi/trend.png", s.handleTrendPNG)
	}

	// admin routes exist only behind a token
	if s.opts.Loader != nil && s.opts.AdminToken != "" {
		admin := s.engine.Group("/admin")
		admin.Use(bearerAuthMiddleware(s.opts.AdminToken))
		admin.POST("/reload", s.handleReload)
	}
}

// stateKey is the gin context key holding the State for the request.
const stateKey = "state"

// requireState pins one State for the whole request so a concurrent reload
// never mixes two snapshots in a single response.
func (s *Server) requireState() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := s.holder.Load()
		if st == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "engine not ready"})
			return
		}
		c.Set(stateKey, st)
		c.Next()
	}
}

func stateFrom(c *gin.Context) *recommender.State {
	return c.MustGet(stateKey).(*recommender.State)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := logging.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logging.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(requestIDHeader)).
			Msg("request")
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
