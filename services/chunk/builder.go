package chunk

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/noise"
	"github.com/VoidMesh/worldstream/services/spatial"
)

// Builder synthesizes chunk geometry. It holds no mutable state and is safe
// for concurrent use.
type Builder struct {
	params     Params
	terrain    noise.Field
	classifier biome.Classifier
}

// NewBuilder creates a builder. A nil terrain field or classifier falls back to
// the stock terrain noise and default biome thresholds; unset params fall back
// per field to DefaultParams.
func NewBuilder(params Params, terrain noise.Field, classifier biome.Classifier) *Builder {
	if terrain == nil {
		terrain = noise.Terrain{}
	}
	if classifier == nil {
		classifier = biome.NewClassifier(biome.DefaultThresholds())
	}
	return &Builder{
		params:     params.WithDefaults(),
		terrain:    terrain,
		classifier: classifier,
	}
}

func (b *Builder) Params() Params {
	return b.params
}

// Surface returns the terrain height and biome at an arbitrary world point.
// Chunk vertices are exactly Surface evaluated at grid points.
func (b *Builder) Surface(x, z float64) (float64, biome.Biome) {
	n := b.terrain.Sample(x, z)
	bm := b.classifier.Classify(x, z)
	return b.params.Transform(bm, x, z, n), bm
}

// gridWorld converts a chunk coordinate plus local grid index into a world
// coordinate. The global grid index is formed before scaling so both chunks
// sharing an edge compute bit-identical positions.
func (b *Builder) gridWorld(c int32, local int) float64 {
	return float64(int64(c)*int64(b.params.Resolution)+int64(local)) * b.params.Scale
}

// Build generates the chunk at coord. Coordinates are integers, so no
// non-finite input can reach the builder; callers reject NaN and Inf before
// converting world positions to chunk coordinates.
func (b *Builder) Build(coord spatial.Coord) *Chunk {
	logger := logging.WithChunkCoords(coord.X, coord.Z)
	start := time.Now()

	n := b.params.Resolution
	stride := n + 1
	vertices := make([]Vertex, stride*stride)

	for j := 0; j < stride; j++ {
		wz := b.gridWorld(coord.Z, j)
		for i := 0; i < stride; i++ {
			wx := b.gridWorld(coord.X, i)
			h, bm := b.Surface(wx, wz)

			vertices[j*stride+i] = Vertex{
				Position: mgl32.Vec3{float32(wx), float32(h), float32(wz)},
				Biome:    bm,
			}
		}
	}

	c := &Chunk{
		Coord:      coord,
		Biome:      dominantBiome(vertices),
		Resolution: n,
		Scale:      b.params.Scale,
		Vertices:   vertices,
		Indices:    GridIndices(n),
	}

	logger.Debug("Chunk built", "biome", c.Biome, "vertices", len(vertices), "duration", time.Since(start))
	return c
}

// GridIndices returns the triangle list for an n x n quad grid with row stride
// n+1. Each quad (v0 v1 / v2 v3) becomes (v0, v2, v1) and (v1, v2, v3), which
// wind counter-clockwise seen from +Y.
func GridIndices(n int) []uint32 {
	stride := n + 1
	indices := make([]uint32, 0, n*n*6)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			v0 := uint32(j*stride + i)
			v1 := v0 + 1
			v2 := v0 + uint32(stride)
			v3 := v2 + 1
			indices = append(indices, v0, v2, v1, v1, v2, v3)
		}
	}
	return indices
}
