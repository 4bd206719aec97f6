package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwest/chatrelay/internal/config"
	"github.com/mwest/chatrelay/internal/database"
	"github.com/mwest/chatrelay/internal/hub"
	"github.com/mwest/chatrelay/internal/server"
	"github.com/mwest/chatrelay/internal/store"
	"github.com/mwest/chatrelay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relayd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"room", cfg.Hub.Room,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	messages := store.NewMessages(pool, logger)

	// Create and start the hub
	h := hub.New(hub.Config{
		Room:              cfg.Hub.Room,
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		MaxUserLen:        cfg.Hub.MaxUserLen,
		MaxTextLen:        cfg.Hub.MaxTextLen,
		EchoChat:          *cfg.Hub.EchoChat,
		StoreTimeout:      cfg.Hub.StoreTimeout,
	}, messages, logger)

	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}

	// Create and start the server
	srv := server.New(server.Config{
		Host:                cfg.Server.Host,
		Port:                cfg.Server.Port,
		SendBuffer:          cfg.Server.SendBuffer,
		WriteTimeout:        cfg.Server.WriteTimeout,
		ShutdownTimeout:     cfg.Server.ShutdownTimeout,
		HeartbeatInterval:   cfg.Hub.HeartbeatInterval,
		Room:                cfg.Hub.Room,
		HistoryDefaultLimit: cfg.History.DefaultLimit,
		HistoryMaxLimit:     cfg.History.MaxLimit,
	}, h, messages, pool, logger)

	serveErr, err := srv.Start()
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	logger.Info("relayd running",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Wait for shutdown signal or serve failure
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok && err != nil {
			logger.Error("server failed", "error", err)
		}
		cancel()
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := h.Stop(shutdownCtx); err != nil {
		logger.Error("hub shutdown failed", "error", err)
	}

	logger.Info("relayd stopped")
}
