package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/queue"
	"github.com/jechocarlos/queenbee/pkg/store"
)

// Deps carries the server's collaborators. DB may be nil (health then skips
// the database check); WorkerCtx is the long-lived context session workers
// run under, independent of any single request.
type Deps struct {
	DB           *sql.DB
	Tasks        store.TaskStore
	Sessions     store.SessionStore
	Chat         store.ChatStore
	Orchestrator *Orchestrator
	Supervisor   *queue.Supervisor
	WorkerCtx    context.Context
}

// Server is the HTTP API server.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router *gin.Engine
	http   *http.Server
}

// NewServer builds the router. Call Start to begin serving.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.WorkerCtx == nil {
		deps.WorkerCtx = context.Background()
	}
	if cfg.System.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, deps: deps}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions", s.createSession)
		v1.DELETE("/sessions/:id", s.terminateSession)
		v1.GET("/sessions/:id/history", s.sessionHistory)
		v1.POST("/sessions/:id/ask", s.ask)
		v1.POST("/sessions/:id/tasks", s.createTask)
		v1.GET("/tasks/:id", s.getTask)
	}

	s.router = router
	return s
}

// Router exposes the handler tree, used by tests and embedders.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving on addr and blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the listener, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
