// Package spawn places resource nodes on chunks as they become resident.
package spawn

import (
	"sync"

	"github.com/aquilax/go-perlin"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/height"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
)

const (
	// golden is 2^64 divided by the golden ratio.
	golden = 0x9E3779B97F4A7C15

	densityScale = 4.0 // perlin periods across one chunk
	minSpacing   = 2.0 // world units between nodes in one chunk
)

// HeightSource resolves surface height and biome. *height.Service implements
// it.
type HeightSource interface {
	Probe(x, z float64) (height.Probe, error)
}

type Options struct {
	AttemptsPerChunk int
	DensityThreshold float64
}

func DefaultOptions() Options {
	return Options{
		AttemptsPerChunk: 8,
		DensityThreshold: 0.45,
	}
}

// Spawner is a residency.Listener. Placement for a chunk depends only on its
// key, so a chunk gets the same nodes every time it loads.
type Spawner struct {
	heights   HeightSource
	chunkSize float64
	opts      Options
	logger    *log.Logger

	mu     sync.RWMutex
	placed map[uint64][]Resource
}

var _ residency.Listener = (*Spawner)(nil)

func New(heights HeightSource, chunkWorldSize float64, opts Options) *Spawner {
	return &Spawner{
		heights:   heights,
		chunkSize: chunkWorldSize,
		opts:      opts,
		logger:    logging.WithComponent("spawn"),
		placed:    make(map[uint64][]Resource),
	}
}

// ChunkLoaded places nodes for the chunk. It runs during the residency update
// and must not call back into the engine.
func (s *Spawner) ChunkLoaded(e residency.LoadedEvent) {
	resources := s.Generate(e.Coord)

	s.mu.Lock()
	s.placed[e.Key] = resources
	s.mu.Unlock()

	logging.WithChunkCoords(e.Coord.X, e.Coord.Z).Debug("Spawned resources",
		"biome", e.Biome, "count", len(resources))
}

// ChunkUnloaded forgets the chunk's nodes.
func (s *Spawner) ChunkUnloaded(e residency.UnloadedEvent) {
	s.mu.Lock()
	delete(s.placed, e.Key)
	s.mu.Unlock()
}

// Generate computes the nodes for coord without recording them.
func (s *Spawner) Generate(coord spatial.Coord) []Resource {
	key := coord.Key()
	density := perlin.NewPerlin(2, 2, 3, int64(SubSeed(key, -1)))

	ox := float64(coord.X) * s.chunkSize
	oz := float64(coord.Z) * s.chunkSize

	var resources []Resource
	for attempt := 0; attempt < s.opts.AttemptsPerChunk; attempt++ {
		seed := SubSeed(key, attempt)
		fx := unit(seed)
		fz := unit(splitmix64(seed))

		d := (density.Noise2D(fx*densityScale, fz*densityScale) + 1) / 2
		if d <= s.opts.DensityThreshold {
			continue
		}

		x, z := ox+fx*s.chunkSize, oz+fz*s.chunkSize
		if crowded(resources, x, z) {
			continue
		}

		p, err := s.heights.Probe(x, z)
		if err != nil {
			s.logger.Warn("Skipping spawn attempt", "chunk", coord, "attempt", attempt, "error", err)
			continue
		}

		candidates := typesByBiome[p.Biome]
		if len(candidates) == 0 {
			continue
		}
		rt := candidates[(seed>>17)%uint64(len(candidates))]
		if d <= s.opts.DensityThreshold+float64(rt.Rarity) {
			continue
		}

		resources = append(resources, Resource{
			Kind:     rt.Kind,
			Biome:    p.Biome,
			Position: mgl32.Vec3{float32(x), p.Height, float32(z)},
			Chunk:    coord,
			Attempt:  attempt,
			Density:  d,
		})
	}
	return resources
}

// Resources returns a copy of the nodes placed on a resident chunk.
func (s *Spawner) Resources(coord spatial.Coord) ([]Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.placed[coord.Key()]
	if !ok {
		return nil, false
	}
	out := make([]Resource, len(r))
	copy(out, r)
	return out, true
}

// Count returns the number of nodes across all tracked chunks.
func (s *Spawner) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.placed {
		n += len(r)
	}
	return n
}

// Chunks returns the number of chunks the spawner is tracking.
func (s *Spawner) Chunks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.placed)
}

// SubSeed derives the seed for one spawn attempt in the chunk with the given
// key.
func SubSeed(key uint64, attempt int) uint64 {
	return splitmix64(key ^ uint64(int64(attempt))*golden)
}

func splitmix64(x uint64) uint64 {
	x += golden
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// unit maps the top 53 bits of v to [0, 1).
func unit(v uint64) float64 {
	return float64(v>>11) / (1 << 53)
}

func crowded(resources []Resource, x, z float64) bool {
	for _, r := range resources {
		dx := float64(r.Position.X()) - x
		dz := float64(r.Position.Z()) - z
		if dx*dx+dz*dz < minSpacing*minSpacing {
			return true
		}
	}
	return false
}
