package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/VoidMesh/worldstream/cmd/debug/models"
	"github.com/VoidMesh/worldstream/internal/config"
	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/spawn"
	"github.com/VoidMesh/worldstream/services/world"
)

func main() {
	cfg := config.Load()

	radius := flag.Int("radius", cfg.Residency.Radius, "Residency radius in chunks")
	resolution := flag.Int("resolution", cfg.Terrain.Resolution, "Vertices per chunk edge minus one")
	workers := flag.Int("workers", cfg.Residency.AsyncWorkers, "Async chunk build workers (0 builds inline)")
	startView := flag.String("view", "map", "Starting view (map, overview)")
	logLevel := flag.String("log", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.Residency.Radius = *radius
	cfg.Terrain.Resolution = *resolution
	cfg.Residency.AsyncWorkers = *workers

	log := logging.Configure(*logLevel, "text", false)
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}

	// Logging to the terminal would tear the UI; send it to a file instead.
	if len(os.Getenv("DEBUG")) > 0 {
		f, err := tea.LogToFile("debug.log", "debug")
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		logging.SetLevel(log, logging.ErrorLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := models.NewEventLog(200)
	opts := world.OptionsFromConfig(cfg)
	engine := world.New(ctx, opts)
	defer engine.Close()

	spawner := spawn.New(engine.Heights(), engine.ChunkWorldSize(), spawn.Options{
		AttemptsPerChunk: cfg.Spawn.AttemptsPerChunk,
		DensityThreshold: cfg.Spawn.DensityThreshold,
	})
	engine.AddListener(events)
	engine.AddListener(spawner)

	if _, err := engine.UpdateAnchor(0, 0); err != nil {
		log.Fatal("Failed to place anchor", "error", err)
	}

	app := models.NewApp(engine, spawner, events, *startView)
	program := tea.NewProgram(app, tea.WithAltScreen())

	log.Info("Starting worldstream debug tool", "radius", *radius, "resolution", *resolution, "start_view", *startView)

	if _, err := program.Run(); err != nil {
		log.Fatal("Error running debug tool", "error", err)
	}
}
