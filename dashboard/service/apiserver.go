package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/dashboard/config"
	"github.com/yaron8/netmon/dashboard/instrument"
	"github.com/yaron8/netmon/dashboard/stream"
	"github.com/yaron8/netmon/logi"
	"github.com/yaron8/netmon/metrics"
)

// ConnectionSource reports the feed connection state.
type ConnectionSource interface {
	State() stream.ConnState
}

// ViewSource serves the views of the last refresh.
type ViewSource interface {
	View(metric string) (analytics.View, bool)
	Views() (map[string]analytics.View, time.Time)
}

// Sources are the read-only components the API serves from.
type Sources struct {
	Store      *metrics.Store
	Attack     *metrics.AttackFlag
	Deriver    *analytics.Deriver
	Connection ConnectionSource
	Views      ViewSource
	Collector  *instrument.Collector
}

type APIServer struct {
	config  *config.Config
	server  *http.Server
	sources Sources
	logger  *slog.Logger
}

func NewAPIServer(config *config.Config, sources Sources) *APIServer {
	api := &APIServer{
		config:  config,
		sources: sources,
		logger:  logi.GetLogger(),
	}

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      api.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return api
}

// Router builds the gin engine with every route registered.
func (api *APIServer) Router() *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(api.requestLog(), gin.Recovery())

	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Telemetry endpoints
	telemetry := engine.Group("/telemetry")
	telemetry.GET("/ListMetrics", api.ListMetricsHandler)
	telemetry.GET("/GetMetric", api.GetMetricHandler)
	telemetry.GET("/Aggregate", api.AggregateHandler)
	telemetry.GET("/Classify", api.ClassifyHandler)
	telemetry.GET("/Threshold", api.ThresholdHandler)
	telemetry.GET("/View", api.ViewHandler)
	telemetry.GET("/Attack", api.AttackHandler)
	telemetry.GET("/Connection", api.ConnectionHandler)

	if api.sources.Collector != nil {
		engine.GET("/metrics", gin.WrapH(api.sources.Collector.Handler()))
	}

	return engine
}

// Start initializes and starts the HTTP server
func (api *APIServer) Start() error {
	api.logger.Info("Dashboard APIServer starting", "port", api.config.Port)

	if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		api.logger.Error("Server failed to start", "error", err, "port", api.config.Port)
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown stops the server. Start returns nil once it has been called, even
// if it had not started listening yet.
func (api *APIServer) Shutdown(ctx context.Context) error {
	return api.server.Shutdown(ctx)
}
