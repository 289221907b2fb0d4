package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	ginzap "github.com/gin-contrib/zap"
	"go.uber.org/zap"
)

// Config holds the debug server's listen settings.
type Config struct {
	HTTPPort int
	Mode     string // "dev" or "prod"; only affects gin's own debug/release mode
}

// Server is the read-only debug HTTP API exposing the last aggregate VM
// status and per-handler state, adapted from the teacher's
// internal/server (Gin + ginzap logging/recovery middleware), with the
// teacher's TLS/static-file-serving machinery dropped: this orchestrator
// ships no UI (DESIGN.md).
type Server struct {
	cfg    Config
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds a Server whose routes are registered by
// registerHandlers against the /api/v1 group, the same callback shape the
// teacher's server.NewServer used.
func NewServer(cfg Config, registerHandlers func(*gin.RouterGroup)) *Server {
	if cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger := zap.L().Named("http")
	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	v1 := engine.Group("/api/v1")
	registerHandlers(v1)

	return &Server{
		cfg:    cfg,
		engine: engine,
		http: &http.Server{
			Addr:    addr(cfg.HTTPPort),
			Handler: engine,
		},
	}
}

func addr(port int) string {
	if port == 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}

// Start blocks serving HTTP until ctx is cancelled or the server errors.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Stop performs a graceful shutdown, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
