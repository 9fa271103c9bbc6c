package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Terrain   TerrainConfig
	Biome     BiomeConfig
	Residency ResidencyConfig
	Picking   PickingConfig
	Spawn     SpawnConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	TickInterval    time.Duration
}

type LoggingConfig struct {
	Level      string
	Format     string
	Structured bool
}

// TerrainConfig holds the chunk geometry constants. They are fixed for the
// lifetime of a process; changing them changes every generated vertex.
type TerrainConfig struct {
	Resolution  int
	VertexScale float64
	HeightScale float64
}

// BiomeConfig holds the upper bounds of the Swamp, Desert and Grassland
// ranges. Everything at or above GrasslandMax is Mountains.
type BiomeConfig struct {
	SwampMax     float64
	DesertMax    float64
	GrasslandMax float64
}

type ResidencyConfig struct {
	Radius       int
	AsyncWorkers int
}

type PickingConfig struct {
	StepSize      float64
	MaxDistance   float64
	Tolerance     float64
	MaxIterations int
}

type SpawnConfig struct {
	Enabled          bool
	AttemptsPerChunk int
	DensityThreshold float64
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvStr("PORT", "8080"),
			ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			TickInterval:    getEnvDuration("TICK_INTERVAL", 50*time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:      getEnvStr("LOG_LEVEL", "info"),
			Format:     getEnvStr("LOG_FORMAT", "json"),
			Structured: getEnvBool("LOG_STRUCTURED", true),
		},
		Terrain: TerrainConfig{
			Resolution:  getEnvInt("WORLD_CHUNK_RESOLUTION", 32),
			VertexScale: getEnvFloat("WORLD_VERTEX_SCALE", 1.0),
			HeightScale: getEnvFloat("WORLD_HEIGHT_SCALE", 10.0),
		},
		Biome: BiomeConfig{
			SwampMax:     getEnvFloat("BIOME_SWAMP_MAX", -0.3),
			DesertMax:    getEnvFloat("BIOME_DESERT_MAX", -0.1),
			GrasslandMax: getEnvFloat("BIOME_GRASSLAND_MAX", 0.3),
		},
		Residency: ResidencyConfig{
			Radius:       getEnvInt("WORLD_RESIDENCY_RADIUS", 4),
			AsyncWorkers: getEnvInt("WORLD_ASYNC_WORKERS", 0),
		},
		Picking: PickingConfig{
			StepSize:      getEnvFloat("PICK_STEP_SIZE", 0.5),
			MaxDistance:   getEnvFloat("PICK_MAX_DISTANCE", 1000),
			Tolerance:     getEnvFloat("PICK_TOLERANCE", 1e-3),
			MaxIterations: getEnvInt("PICK_MAX_ITERATIONS", 32),
		},
		Spawn: SpawnConfig{
			Enabled:          getEnvBool("SPAWN_ENABLED", true),
			AttemptsPerChunk: getEnvInt("SPAWN_ATTEMPTS_PER_CHUNK", 8),
			DensityThreshold: getEnvFloat("SPAWN_DENSITY_THRESHOLD", 0.45),
		},
	}
}

// Validate reports the first setting that would make generation or queries
// ill-defined.
func (c *Config) Validate() error {
	if c.Terrain.Resolution <= 0 {
		return fmt.Errorf("chunk resolution must be positive, got %d", c.Terrain.Resolution)
	}
	if !positiveFinite(c.Terrain.VertexScale) {
		return fmt.Errorf("vertex scale must be positive and finite, got %v", c.Terrain.VertexScale)
	}
	if !positiveFinite(c.Terrain.HeightScale) {
		return fmt.Errorf("height scale must be positive and finite, got %v", c.Terrain.HeightScale)
	}
	if !(c.Biome.SwampMax < c.Biome.DesertMax && c.Biome.DesertMax < c.Biome.GrasslandMax) {
		return errors.New("biome thresholds must be strictly increasing")
	}
	if c.Residency.Radius < 0 {
		return fmt.Errorf("residency radius must not be negative, got %d", c.Residency.Radius)
	}
	if c.Residency.AsyncWorkers < 0 {
		return fmt.Errorf("async workers must not be negative, got %d", c.Residency.AsyncWorkers)
	}
	if !positiveFinite(c.Picking.StepSize) || !positiveFinite(c.Picking.MaxDistance) || !positiveFinite(c.Picking.Tolerance) {
		return errors.New("pick step, max distance and tolerance must be positive and finite")
	}
	if c.Picking.MaxIterations <= 0 {
		return fmt.Errorf("pick iterations must be positive, got %d", c.Picking.MaxIterations)
	}
	if c.Spawn.AttemptsPerChunk < 0 {
		return fmt.Errorf("spawn attempts must not be negative, got %d", c.Spawn.AttemptsPerChunk)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positiveFinite(v float64) bool {
	return finite(v) && v > 0
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
