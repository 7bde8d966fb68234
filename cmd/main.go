/*
Package main is the entry point for the duochat server.

It loads configuration, initializes logging, opens and migrates the configured store,
starts the chat hub and the HTTP server, and shuts everything down gracefully on
SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duochat/internal/app/chat"
	"duochat/internal/app/db"
	"duochat/internal/app/identity"
	"duochat/internal/configs"
	"duochat/internal/handler"
	"duochat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("db_driver", cfg.DBDriver).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to open database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logx.Error(err, "Failed to close database")
		}
	}()

	hub := chat.NewHub(store, chat.Options{
		MaxContentBytes: cfg.MaxContentBytes,
		SendBuffer:      cfg.ClientSendBuffer,
	})

	deps := &handler.AppDeps{
		Hub:      hub,
		Config:   cfg,
		Store:    store,
		Identity: identity.NewVerifier(cfg.JWTSecret, store),
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("duochat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// hijacked websocket connections are not tracked by the server; the hub closes them
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "HTTP server forced to shutdown")
	}

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Hub shutdown incomplete")
	}

	logx.Info("Server gracefully stopped.")
}
