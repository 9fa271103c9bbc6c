// Package height answers terrain height queries at arbitrary world points.
package height

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/spatial"
)

// ErrInvalidCoordinate rejects queries with NaN or infinite components or
// beyond the chunk grid.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ChunkSource looks up resident chunks. *residency.Manager implements it.
type ChunkSource interface {
	Chunk(coord spatial.Coord) (*chunk.Chunk, bool)
}

// Probe is the full result of a height query.
type Probe struct {
	X        float64       `json:"x"`
	Z        float64       `json:"z"`
	Height   float32       `json:"height"`
	Chunk    spatial.Coord `json:"chunk"`
	Biome    biome.Biome   `json:"biome"`
	Resident bool          `json:"resident"`
}

// Stats counts how queries were served.
type Stats struct {
	Queries   int64 `json:"queries"`
	Resident  int64 `json:"resident"`
	MemoHits  int64 `json:"memo_hits"`
	Generated int64 `json:"generated"`
	Rejected  int64 `json:"rejected"`
}

// Service resolves heights from resident chunks and falls back to generating
// the enclosing chunk on demand. Generated chunks never enter the resident
// set; the last one is kept so repeated queries in the same area, such as a
// ray march, build it only once. Service is not safe for concurrent use.
type Service struct {
	source  ChunkSource
	builder *chunk.Builder
	size    float64
	memo    *chunk.Chunk
	stats   Stats
	logger  *log.Logger
}

func NewService(source ChunkSource, builder *chunk.Builder) *Service {
	return &Service{
		source:  source,
		builder: builder,
		size:    builder.Params().WorldSize(),
		logger:  logging.WithComponent("height"),
	}
}

// HeightAt returns the interpolated terrain height at world (x, z).
func (s *Service) HeightAt(x, z float64) (float32, error) {
	p, err := s.Probe(x, z)
	if err != nil {
		return 0, err
	}
	return p.Height, nil
}

// Probe resolves the height at (x, z) along with the chunk that served it.
func (s *Service) Probe(x, z float64) (Probe, error) {
	if !finite(x) || !finite(z) {
		s.stats.Rejected++
		return Probe{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, x, z)
	}
	coord, ok := spatial.ChunkInRange(x, z, s.size, 0)
	if !ok {
		s.stats.Rejected++
		return Probe{}, fmt.Errorf("%w: (%v, %v) is outside the chunk grid", ErrInvalidCoordinate, x, z)
	}
	s.stats.Queries++

	c, resident := s.chunkFor(coord)

	h, b := Interpolate(c, x, z)
	return Probe{
		X:        x,
		Z:        z,
		Height:   h,
		Chunk:    coord,
		Biome:    b,
		Resident: resident,
	}, nil
}

// MaxHeight is an upper bound on every height the service can return.
func (s *Service) MaxHeight() float64 {
	_, hi := s.builder.Params().HeightBounds()
	return hi
}

func (s *Service) Stats() Stats {
	return s.stats
}

func (s *Service) chunkFor(coord spatial.Coord) (*chunk.Chunk, bool) {
	if s.source != nil {
		if c, ok := s.source.Chunk(coord); ok {
			s.stats.Resident++
			return c, true
		}
	}
	if s.memo != nil && s.memo.Coord == coord {
		s.stats.MemoHits++
		return s.memo, false
	}

	s.stats.Generated++
	s.logger.Debug("Generating chunk for off-window query", "chunk", coord)
	s.memo = s.builder.Build(coord)
	return s.memo, false
}

// Interpolate bilinearly interpolates the four vertex heights around world
// (x, z) inside c. Points outside c are clamped to its edge. The biome is
// that of the nearest vertex.
func Interpolate(c *chunk.Chunk, x, z float64) (float32, biome.Biome) {
	ox, oz := c.Origin()
	n := c.Resolution

	i, fx := cell((x-ox)/c.Scale, n)
	j, fz := cell((z-oz)/c.Scale, n)

	h00 := float64(c.HeightAt(i, j))
	h10 := float64(c.HeightAt(i+1, j))
	h01 := float64(c.HeightAt(i, j+1))
	h11 := float64(c.HeightAt(i+1, j+1))

	top := h00 + (h10-h00)*fx
	bottom := h01 + (h11-h01)*fx
	h := top + (bottom-top)*fz

	ni, nj := i, j
	if fx >= 0.5 {
		ni++
	}
	if fz >= 0.5 {
		nj++
	}
	return float32(h), c.VertexAt(ni, nj).Biome
}

// cell splits a local grid coordinate into a cell index in [0, n-1] and a
// fraction in [0, 1].
func cell(local float64, n int) (int, float64) {
	idx := int(math.Floor(local))
	switch {
	case idx < 0:
		return 0, 0
	case idx >= n:
		return n - 1, 1
	}
	return idx, local - float64(idx)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
