package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yaron8/netmon/generator/config"
	"github.com/yaron8/netmon/generator/metrics"
	"github.com/yaron8/netmon/logi"
)

type APIServer struct {
	generator *metrics.SampleGenerator
	config    *config.Config
	server    *http.Server
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewAPIServer(config *config.Config, generator *metrics.SampleGenerator) *APIServer {
	api := &APIServer{
		config:    config,
		generator: generator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the feed is read-only and carries no credentials
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logi.GetLogger(),
		done:   make(chan struct{}),
	}

	api.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Port),
		Handler:     api.Router(),
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return api
}

func (api *APIServer) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(api.middleware(), gin.Recovery())

	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	engine.GET("/ws", api.feedHandler)

	return engine
}

// Start initializes and starts the HTTP server
func (api *APIServer) Start() error {
	api.logger.Info("Generator APIServer starting", "port", api.config.Port)

	if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and sends a going-away close frame on
// every open feed.
func (api *APIServer) Shutdown(ctx context.Context) error {
	api.closeOnce.Do(func() { close(api.done) })
	return api.server.Shutdown(ctx)
}
