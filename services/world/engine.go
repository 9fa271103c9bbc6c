// Package world wires the streaming components into one engine with a small,
// serialised query surface.
package world

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/VoidMesh/worldstream/internal/config"
	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/height"
	"github.com/VoidMesh/worldstream/services/noise"
	"github.com/VoidMesh/worldstream/services/picking"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
)

// Options configures an Engine. The zero value is usable and yields the
// default world.
type Options struct {
	Params       chunk.Params
	Thresholds   biome.Thresholds
	Radius       int32
	Picking      picking.Options
	AsyncWorkers int
	Uploader     residency.Uploader
	Listeners    []residency.Listener

	// Terrain and Classifier replace the stock noise fields, mostly in tests.
	Terrain    noise.Field
	Classifier biome.Classifier
}

// OptionsFromConfig maps process configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	params := chunk.DefaultParams()
	params.Resolution = cfg.Terrain.Resolution
	params.Scale = cfg.Terrain.VertexScale
	params.HeightScale = cfg.Terrain.HeightScale

	return Options{
		Params: params,
		Thresholds: biome.Thresholds{
			SwampMax:     cfg.Biome.SwampMax,
			DesertMax:    cfg.Biome.DesertMax,
			GrasslandMax: cfg.Biome.GrasslandMax,
		},
		Radius: int32(cfg.Residency.Radius),
		Picking: picking.Options{
			StepSize:      cfg.Picking.StepSize,
			MaxDistance:   cfg.Picking.MaxDistance,
			Tolerance:     cfg.Picking.Tolerance,
			MaxIterations: cfg.Picking.MaxIterations,
		},
		AsyncWorkers: cfg.Residency.AsyncWorkers,
	}
}

// ChunkSummary describes one chunk without exposing its memory.
type ChunkSummary struct {
	Coord       spatial.Coord       `json:"coord"`
	Key         uint64              `json:"key"`
	State       residency.State     `json:"state"`
	Biome       biome.Biome         `json:"biome"`
	MinHeight   float32             `json:"min_height"`
	MaxHeight   float32             `json:"max_height"`
	Vertices    int                 `json:"vertices"`
	Triangles   int                 `json:"triangles"`
	BiomeCounts map[biome.Biome]int `json:"biome_counts,omitempty"`
}

// Stats aggregates counters from every component.
type Stats struct {
	Residency    residency.Stats `json:"residency"`
	Height       height.Stats    `json:"height"`
	Ticks        int64           `json:"ticks"`
	PoolInFlight int64           `json:"pool_in_flight"`
	ChunkSize    float64         `json:"chunk_world_size"`
	Uptime       time.Duration   `json:"uptime_ns"`
}

// Engine owns the residency manager and the query services built on it. A
// mutex serialises every call, so a residency update always completes before
// a query observes the resident set.
type Engine struct {
	mu sync.Mutex

	builder  *chunk.Builder
	pool     *chunk.Pool
	manager  *residency.Manager
	heights  *height.Service
	resolver *picking.Resolver

	ticks   int64
	started time.Time
	logger  *log.Logger
}

// New builds an engine. With AsyncWorkers > 0 chunks are generated on a
// worker pool bound to ctx and promoted on Tick; otherwise every update
// builds synchronously.
func New(ctx context.Context, opts Options) *Engine {
	logger := logging.WithComponent("world")

	if opts.Thresholds == (biome.Thresholds{}) {
		opts.Thresholds = biome.DefaultThresholds()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = biome.NewClassifier(opts.Thresholds)
	}
	builder := chunk.NewBuilder(opts.Params, opts.Terrain, classifier)
	params := builder.Params()

	e := &Engine{
		builder: builder,
		started: time.Now(),
		logger:  logger,
	}

	var loader chunk.Loader = chunk.NewSyncLoader(builder)
	if opts.AsyncWorkers > 0 {
		e.pool = chunk.NewPool(ctx, builder, opts.AsyncWorkers)
		loader = e.pool
	}

	managerOpts := []residency.Option{}
	if opts.Uploader != nil {
		managerOpts = append(managerOpts, residency.WithUploader(opts.Uploader))
	}
	for _, l := range opts.Listeners {
		managerOpts = append(managerOpts, residency.WithListener(l))
	}

	e.manager = residency.NewManager(loader, params.WorldSize(), opts.Radius, managerOpts...)
	e.heights = height.NewService(e.manager, builder)
	e.resolver = picking.NewResolver(e.heights, opts.Picking)

	logger.Info("World engine created",
		"resolution", params.Resolution,
		"scale", params.Scale,
		"height_scale", params.HeightScale,
		"radius", opts.Radius,
		"async_workers", opts.AsyncWorkers)
	return e
}

// AddListener subscribes l to chunk lifecycle events. Listeners run while the
// engine lock is held and must not call back into the engine; use Heights
// for terrain queries instead.
func (e *Engine) AddListener(l residency.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manager.AddListener(l)
}

// Heights returns the height service for use by listeners during event
// delivery. Outside of a listener callback use HeightAt.
func (e *Engine) Heights() *height.Service {
	return e.heights
}

// UpdateAnchor moves the anchor and reconciles residency.
func (e *Engine) UpdateAnchor(x, z float64) (residency.Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.UpdateAnchor(x, z)
}

// Tick promotes finished asynchronous builds. It is a no-op for synchronous
// engines beyond counting the tick.
func (e *Engine) Tick() residency.Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticks++
	return e.manager.Poll()
}

func (e *Engine) HeightAt(x, z float64) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heights.HeightAt(x, z)
}

// Probe is HeightAt with the serving chunk and biome.
func (e *Engine) Probe(x, z float64) (height.Probe, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heights.Probe(x, z)
}

// ResolvePick intersects the pick ray through NDC (ndcX, ndcY) with the
// terrain. A miss is (picking.Hit{}, false, nil).
func (e *Engine) ResolvePick(ndcX, ndcY float32, view, proj mgl32.Mat4) (picking.Hit, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Resolve(ndcX, ndcY, view, proj)
}

// ResolveScreenPick is ResolvePick for a pixel in a width x height viewport.
func (e *Engine) ResolveScreenPick(px, py, width, height float64, view, proj mgl32.Mat4) (picking.Hit, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.ResolveScreen(px, py, width, height, view, proj)
}

// Resident summarises every resident chunk, ordered by z then x.
func (e *Engine) Resident() []ChunkSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	coords := e.manager.Resident()
	out := make([]ChunkSummary, 0, len(coords))
	for _, coord := range coords {
		c, _ := e.manager.Chunk(coord)
		out = append(out, summarize(c, residency.Resident, false))
	}
	return out
}

// ChunkSummary describes the chunk at (cx, cz). ok is false when the chunk is
// not resident; the returned summary then only carries its state.
func (e *Engine) ChunkSummary(cx, cz int32) (ChunkSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	coord := spatial.Coord{X: cx, Z: cz}
	c, ok := e.manager.Chunk(coord)
	if !ok {
		return ChunkSummary{Coord: coord, Key: coord.Key(), State: e.manager.State(coord)}, false
	}
	return summarize(c, residency.Resident, true), true
}

// ChunkGeometry returns a copy of a resident chunk's mesh.
func (e *Engine) ChunkGeometry(cx, cz int32) (chunk.Geometry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.manager.Chunk(spatial.Coord{X: cx, Z: cz})
	if !ok {
		return chunk.Geometry{}, false
	}
	return c.Geometry(), true
}

// Anchor returns the current anchor chunk.
func (e *Engine) Anchor() (spatial.Coord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Anchor()
}

func (e *Engine) Radius() int32 {
	return e.manager.Radius()
}

func (e *Engine) ChunkWorldSize() float64 {
	return e.builder.Params().WorldSize()
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Residency: e.manager.Stats(),
		Height:    e.heights.Stats(),
		Ticks:     e.ticks,
		ChunkSize: e.builder.Params().WorldSize(),
		Uptime:    time.Since(e.started),
	}
	if e.pool != nil {
		s.PoolInFlight = e.pool.InFlight()
	}
	return s
}

// Close unloads every chunk, so uploaders and listeners see a matching
// unload for each load, and stops the worker pool.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.manager.UnloadAll()
	if e.pool != nil {
		return e.pool.Close()
	}
	return nil
}

func summarize(c *chunk.Chunk, state residency.State, detailed bool) ChunkSummary {
	lo, hi := c.HeightRange()
	s := ChunkSummary{
		Coord:     c.Coord,
		Key:       c.Key(),
		State:     state,
		Biome:     c.Biome,
		MinHeight: lo,
		MaxHeight: hi,
		Vertices:  len(c.Vertices),
		Triangles: len(c.Indices) / 3,
	}
	if detailed {
		s.BiomeCounts = c.BiomeCounts()
	}
	return s
}
