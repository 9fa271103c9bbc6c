package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VoidMesh/worldstream/internal/api"
	"github.com/VoidMesh/worldstream/internal/config"
	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/spawn"
	"github.com/VoidMesh/worldstream/services/world"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logging
	log := logging.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Structured)
	log.Debug("Configuration loaded",
		"server_port", cfg.Server.Port,
		"resolution", cfg.Terrain.Resolution,
		"radius", cfg.Residency.Radius,
		"log_level", cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize world engine
	engine := world.New(ctx, world.OptionsFromConfig(cfg))

	var resources api.ResourceSource
	if cfg.Spawn.Enabled {
		spawner := spawn.New(engine.Heights(), engine.ChunkWorldSize(), spawn.Options{
			AttemptsPerChunk: cfg.Spawn.AttemptsPerChunk,
			DensityThreshold: cfg.Spawn.DensityThreshold,
		})
		engine.AddListener(spawner)
		resources = spawner
		log.Debug("Resource spawner attached", "attempts", cfg.Spawn.AttemptsPerChunk)
	}

	events := api.NewEventHub()
	engine.AddListener(events)

	// Seed the window around the origin so the API has something to show.
	if _, err := engine.UpdateAnchor(0, 0); err != nil {
		log.Fatal("Failed to seed residency window", "error", err)
	}

	go runTicker(ctx, engine, cfg.Server.TickInterval)

	handler := api.NewHandler(engine, resources, events)
	router := api.SetupRoutes(handler, api.DefaultPickLimit)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Starting worldstream server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
		log.Debug("Server stopped listening")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info("Shutting down server...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	events.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	cancel()
	if err := engine.Close(); err != nil {
		log.Error("Failed to close world engine", "error", err)
	}

	log.Info("Server exited")
}

// runTicker promotes finished asynchronous chunk builds until ctx is done.
func runTicker(ctx context.Context, engine *world.Engine, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logging.WithComponent("ticker")
	for {
		select {
		case <-ctx.Done():
			log.Debug("Ticker stopped")
			return
		case <-ticker.C:
			update := engine.Tick()
			if !update.Empty() {
				log.Debug("Promoted chunks", "loaded", len(update.Loaded), "dropped", update.Dropped)
			}
		}
	}
}
