// queenbee server binary. Wires configuration, PostgreSQL, the OpenRouter
// model client, session workers, and the HTTP API, then runs until signalled.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jechocarlos/queenbee/pkg/api"
	"github.com/jechocarlos/queenbee/pkg/cleanup"
	"github.com/jechocarlos/queenbee/pkg/config"
	"github.com/jechocarlos/queenbee/pkg/database"
	"github.com/jechocarlos/queenbee/pkg/engine"
	"github.com/jechocarlos/queenbee/pkg/events"
	"github.com/jechocarlos/queenbee/pkg/llm"
	"github.com/jechocarlos/queenbee/pkg/queue"
	"github.com/jechocarlos/queenbee/pkg/store"
	"github.com/jechocarlos/queenbee/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("Starting queenbee",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()

	// 3. Stores
	tasks := store.NewPostgresTaskStore(dbClient.DB())
	sessions := store.NewPostgresSessionStore(dbClient.DB())
	chat := store.NewPostgresChatStore(dbClient.DB())
	rateLimits := store.NewPostgresRateLimitStore(dbClient.DB())

	// 4. Language model client. The probe fails startup on bad credentials;
	// transient upstream trouble only warns so a flaky provider cannot keep
	// the server from booting.
	coordinator := llm.NewCoordinator(rateLimits)
	model, err := llm.NewOpenRouterClient(ctx, cfg.OpenRouter, coordinator)
	if err != nil {
		slog.Error("Failed to initialize language model client", "error", err)
		os.Exit(1)
	}
	probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := model.Probe(probeCtx); err != nil {
		if errors.Is(err, llm.ErrAuth) {
			slog.Error("Language model probe rejected credentials", "error", err)
			probeCancel()
			os.Exit(1)
		}
		slog.Warn("Language model probe failed, continuing", "error", err)
	}
	probeCancel()
	slog.Info("Language model client initialized", "model", model.Model())

	// 5. Event publisher and deliberation engine
	publisher := events.NewPublisher(dbClient.DB())
	eng := engine.New(model, tasks, cfg, publisher)

	// 6. Session workers. Workers for sessions that were active before a
	// restart resume immediately; their pending tasks are still queued.
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	supervisor := queue.NewSupervisor(tasks, sessions, eng, cfg.Queue)
	if err := supervisor.ResumeActive(workerCtx); err != nil {
		slog.Error("Failed to resume session workers", "error", err)
		os.Exit(1)
	}

	// Retention sweeper
	sweeper := cleanup.NewService(cfg.Retention, tasks, sessions)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 7. HTTP server
	orchestrator := api.NewOrchestrator(model, tasks, sessions, chat, publisher, cfg)
	server := api.NewServer(cfg, api.Deps{
		DB:           dbClient.DB(),
		Tasks:        tasks,
		Sessions:     sessions,
		Chat:         chat,
		Orchestrator: orchestrator,
		Supervisor:   supervisor,
		WorkerCtx:    workerCtx,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(":" + httpPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("queenbee started successfully", "environment", cfg.System.Environment)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown. The HTTP server stops first so no new sessions or
	// tasks arrive while workers drain.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		supervisor.StopAll()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Session workers stopped gracefully")
	case <-time.After(cfg.Queue.ShutdownGrace + 10*time.Second):
		slog.Warn("Worker shutdown timeout exceeded, abandoning in-flight tasks")
	}
	workerCancel()

	slog.Info("Shutdown complete")
}
