// Package server exposes batch progress and persisted scoring records over
// a small read-only HTTP API, for dashboards watching a long-running batch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resil/internal/batch"
	"resil/internal/config"
	"resil/internal/logging"
	"resil/internal/types"
)

// ProgressSource is anything that can report batch progress. The batch
// coordinator satisfies it.
type ProgressSource interface {
	Progress() batch.Snapshot
}

// Server serves the progress and records API.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	progress   ProgressSource
	records    *batch.RecordStore
	logger     logging.Logger
	startTime  time.Time
}

// New builds the server over a progress source and the record store.
// progress may be nil when only records are served.
func New(cfg config.ServerConfig, progress ProgressSource, records *batch.RecordStore, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		engine:    engine,
		progress:  progress,
		records:   records,
		logger:    logging.OrNop(logger),
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/progress", s.handleProgress)
		api.GET("/records", s.handleListRecords)
		api.GET("/records/:ticker/:year", s.handleGetRecord)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleProgress(c *gin.Context) {
	if s.progress == nil {
		c.JSON(http.StatusOK, batch.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, s.progress.Progress())
}

func (s *Server) handleListRecords(c *gin.Context) {
	keys, err := s.records.List()
	if err != nil {
		s.logger.Error("list records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": keys, "count": len(keys)})
}

func (s *Server) handleGetRecord(c *gin.Context) {
	ticker := strings.ToUpper(c.Param("ticker"))
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
		return
	}

	record, err := s.records.Load(types.DocumentKey{Ticker: ticker, Year: year})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no record for %s %d", ticker, year)})
		return
	}
	c.JSON(http.StatusOK, record)
}

// Start blocks serving HTTP until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("progress API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("progress API: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
