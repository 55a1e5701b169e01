package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"flickrsearch/internal/app"
	"flickrsearch/internal/bot"
	"flickrsearch/internal/config"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := app.NewLogger(os.Stdout, cfg.Level())

	// --- Initialize Components ---
	log.Info("Initializing components...")

	a, err := app.New(cfg, log, nil)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()

	botHandler, err := bot.NewHandler(cfg, a.Flickr, a.Favorites, log)
	if err != nil {
		log.Errorf("Failed to initialize Telegram bot handler: %v", err)
		return
	}

	// --- Application Startup ---
	log.Info("Starting flickrbot...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.Favorites.RunGC(ctx, cfg.GCInterval)
	go botHandler.Start(ctx)

	log.Info("flickrbot is running. Press Ctrl+C to exit.")

	// --- Wait for Shutdown Signal ---
	<-ctx.Done()

	// --- Graceful Shutdown ---
	log.Info("Shutting down flickrbot...")
	stop()

	// The deferred a.Close() drains in-flight requests and closes the database.
	log.Info("flickrbot shut down gracefully.")
}
