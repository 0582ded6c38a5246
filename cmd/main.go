/*
Package main is the entry point for the chatcore server.

It loads configuration, initializes the global logging system, connects the
database pool, wires the notification core (registry, router, cache,
dispatcher, notifier), sets up the HTTP server, and handles operating system
interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatcore/internal/app/chat"
	"chatcore/internal/app/db"
	"chatcore/internal/configs"
	"chatcore/internal/handler"
	"chatcore/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("group_include_self", cfg.GroupIncludeSelf).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect the database and apply migrations
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	// Wire the notification core
	registry := chat.NewRegistry()
	router := chat.NewRouter(chat.RouterConfig{IncludeSender: cfg.GroupIncludeSelf})
	cache := chat.NewCache()
	dispatcher := chat.NewDispatcher(registry)
	notifier := chat.NewNotifier(router, cache, dispatcher)

	deps := &handler.AppDeps{
		Config:   cfg,
		Store:    db.NewStore(pool),
		Registry: registry,
		Notifier: notifier,
	}

	// Setup HTTP server and routes
	httpRouter := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("chatcore server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
