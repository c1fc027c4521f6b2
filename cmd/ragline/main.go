package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ragline/ragline/internal/api"
	"github.com/ragline/ragline/internal/bus"
	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/document"
	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/worker"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("ragline starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	// Worker client
	workerClient := worker.NewClient(cfg.WorkerURL, cfg.Provider, cfg.Model, slog.Default())
	slog.Info("worker client ready", "url", cfg.WorkerURL, "provider", cfg.Provider, "model", cfg.Model)

	// Event bus — one instance shared by the callback handler and all
	// stream sessions.
	eventBus := bus.New(slog.Default())

	// Services
	chatSvc := chat.NewService(db, eventBus, workerClient, cfg.PublicURL, slog.Default())
	docSvc := document.NewService(db, workerClient, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, chatSvc, docSvc, eventBus, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("ragline ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	cancel()
	slog.Info("ragline stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
