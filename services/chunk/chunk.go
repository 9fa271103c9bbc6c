package chunk

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/spatial"
)

// Vertex is one grid point of a chunk in world space.
type Vertex struct {
	Position mgl32.Vec3
	Biome    biome.Biome
}

// Chunk is one generated terrain tile. Vertices are stored row-major with
// rows along z: the vertex at local (i, j) lives at index j*(N+1)+i.
//
// A Chunk is owned by the residency manager. Callers outside it must not keep
// a *Chunk past the current tick; use Geometry for a copy that outlives it.
type Chunk struct {
	Coord      spatial.Coord
	Biome      biome.Biome
	Resolution int
	Scale      float64
	Vertices   []Vertex
	Indices    []uint32
}

// Geometry is a flat, caller-owned copy of a chunk's mesh, ready for upload.
// Positions holds x, y, z triples; Biomes holds one tag per vertex.
type Geometry struct {
	Positions []float32
	Biomes    []uint8
	Indices   []uint32
}

// VertexCount returns the number of vertices in g.
func (g Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

func (c *Chunk) Key() uint64 {
	return c.Coord.Key()
}

// Stride is the number of vertices per row.
func (c *Chunk) Stride() int {
	return c.Resolution + 1
}

// Index returns the vertex index of local grid position (i, j).
func (c *Chunk) Index(i, j int) int {
	return j*c.Stride() + i
}

// VertexAt returns the vertex at local grid position (i, j).
func (c *Chunk) VertexAt(i, j int) Vertex {
	return c.Vertices[c.Index(i, j)]
}

// HeightAt returns the stored height at local grid position (i, j).
func (c *Chunk) HeightAt(i, j int) float32 {
	return c.Vertices[c.Index(i, j)].Position.Y()
}

// Origin is the world-space position of local vertex (0, 0).
func (c *Chunk) Origin() (x, z float64) {
	n := int64(c.Resolution)
	return float64(int64(c.Coord.X)*n) * c.Scale, float64(int64(c.Coord.Z)*n) * c.Scale
}

// WorldSize is the edge length of the chunk in world units.
func (c *Chunk) WorldSize() float64 {
	return float64(c.Resolution) * c.Scale
}

// HeightRange returns the lowest and highest vertex heights.
func (c *Chunk) HeightRange() (lo, hi float32) {
	if len(c.Vertices) == 0 {
		return 0, 0
	}
	lo, hi = c.Vertices[0].Position.Y(), c.Vertices[0].Position.Y()
	for _, v := range c.Vertices[1:] {
		y := v.Position.Y()
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	return lo, hi
}

// BiomeCounts returns how many vertices carry each biome tag.
func (c *Chunk) BiomeCounts() map[biome.Biome]int {
	counts := make(map[biome.Biome]int, len(biome.All))
	for _, v := range c.Vertices {
		counts[v.Biome]++
	}
	return counts
}

// Geometry copies the mesh into freshly allocated slices. Nothing in the
// result aliases chunk memory, so it stays valid after the chunk is evicted.
func (c *Chunk) Geometry() Geometry {
	g := Geometry{
		Positions: make([]float32, 0, len(c.Vertices)*3),
		Biomes:    make([]uint8, 0, len(c.Vertices)),
		Indices:   make([]uint32, len(c.Indices)),
	}
	for _, v := range c.Vertices {
		g.Positions = append(g.Positions, v.Position.X(), v.Position.Y(), v.Position.Z())
		g.Biomes = append(g.Biomes, uint8(v.Biome))
	}
	copy(g.Indices, c.Indices)
	return g
}

// dominantBiome returns the most common tag; ties go to the lower enum value.
func dominantBiome(vertices []Vertex) biome.Biome {
	var counts [len(biomeOrder)]int
	for _, v := range vertices {
		if int(v.Biome) < len(counts) {
			counts[v.Biome]++
		}
	}
	best := biome.Swamp
	for _, b := range biomeOrder {
		if counts[b] > counts[best] {
			best = b
		}
	}
	return best
}

var biomeOrder = [...]biome.Biome{biome.Swamp, biome.Desert, biome.Grassland, biome.Mountains}
