package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/boardsync/boardsync/internal/app"
	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/mcp"
	"github.com/boardsync/boardsync/internal/notify"
)

func main() {
	// Local overrides; absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries JSON-RPC in stdio mode, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	a := app.New(app.Options{
		Config:   cfg,
		Logger:   logger,
		Notifier: notify.Logger{L: logger},
		OnUnauthorized: func() {
			logger.Error("session token rejected; check BOARDSYNC_API_TOKEN")
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Reset(); err != nil {
			logger.Warn("teardown error", "error", err)
		}
	}()

	if err := a.Bootstrap(ctx); err != nil {
		logger.Error("failed to load initial data", "error", err)
		os.Exit(1)
	}

	if cfg.Agent.Mode != "stdio" {
		logger.Error("unsupported agent mode", "mode", cfg.Agent.Mode)
		os.Exit(1)
	}

	server := mcp.NewServer(mcp.Config{App: a, Logger: logger})

	logger.Info("starting stdio transport", "user", cfg.API.Username)
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
