package chunk

import (
	"math"

	"github.com/VoidMesh/worldstream/services/biome"
)

const (
	DefaultResolution  = 32 // 32x32 quads, 33x33 vertices
	DefaultScale       = 1.0
	DefaultHeightScale = 10.0
)

// ShapeFunc is the biome-specific secondary shaping term. n is the terrain
// noise at (x, z). Implementations must stay within [-1, 1].
type ShapeFunc func(x, z, n float64) float64

// BiomeParams is the per-biome height transform:
//
//	h = n*HeightScale*Factor + Offset + Shape(x, z, n)*Detail
type BiomeParams struct {
	Factor float64
	Offset float64
	Detail float64
	Shape  ShapeFunc
}

// Params fixes the chunk layout and the height transforms for one deployment.
type Params struct {
	Resolution  int     // quads per chunk edge (N)
	Scale       float64 // world units between adjacent vertices
	HeightScale float64
	Biomes      map[biome.Biome]BiomeParams
}

// DuneRidges gives the Desert its sharp repeating crests.
func DuneRidges(x, z, _ float64) float64 {
	return math.Abs(math.Sin(x*0.2 + z*0.05))
}

// SharpPeaks squares the terrain noise so high ground rises steeply.
func SharpPeaks(_, _, n float64) float64 {
	return n * n
}

// Ripples is the small, fast undulation of swamp ground.
func Ripples(x, z, _ float64) float64 {
	return math.Sin(x*0.5) * math.Cos(z*0.5)
}

// RollingHills is a long-wavelength swell for grassland.
func RollingHills(x, z, _ float64) float64 {
	return math.Sin(x*0.02) * math.Cos(z*0.02)
}

func DefaultBiomeParams() map[biome.Biome]BiomeParams {
	return map[biome.Biome]BiomeParams{
		biome.Desert:    {Factor: 0.6, Offset: 2, Detail: 1.5, Shape: DuneRidges},
		biome.Mountains: {Factor: 2.5, Offset: 15, Detail: 12, Shape: SharpPeaks},
		biome.Swamp:     {Factor: 0.3, Offset: -3, Detail: 0.2, Shape: Ripples},
		biome.Grassland: {Factor: 1.0, Offset: 0, Detail: 0.5, Shape: RollingHills},
	}
}

func DefaultParams() Params {
	return Params{
		Resolution:  DefaultResolution,
		Scale:       DefaultScale,
		HeightScale: DefaultHeightScale,
		Biomes:      DefaultBiomeParams(),
	}
}

// WithDefaults replaces every unset or unusable field with its default. A
// partially filled Params therefore never yields a zero-sized chunk.
func (p Params) WithDefaults() Params {
	if p.Resolution <= 0 {
		p.Resolution = DefaultResolution
	}
	if !positiveFinite(p.Scale) {
		p.Scale = DefaultScale
	}
	if !positiveFinite(p.HeightScale) {
		p.HeightScale = DefaultHeightScale
	}
	if p.Biomes == nil {
		p.Biomes = DefaultBiomeParams()
	}
	return p
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Stride is the number of vertices per row.
func (p Params) Stride() int {
	return p.Resolution + 1
}

// WorldSize is the edge length of one chunk in world units.
func (p Params) WorldSize() float64 {
	return float64(p.Resolution) * p.Scale
}

func (p Params) biome(b biome.Biome) BiomeParams {
	if bp, ok := p.Biomes[b]; ok {
		return bp
	}
	return BiomeParams{Factor: 1}
}

// Transform applies the height transform of b to terrain noise n sampled at
// world point (x, z).
func (p Params) Transform(b biome.Biome, x, z, n float64) float64 {
	bp := p.biome(b)
	h := n*p.HeightScale*bp.Factor + bp.Offset
	if bp.Shape != nil {
		h += bp.Shape(x, z, n) * bp.Detail
	}
	return h
}

// HeightBounds returns a lower and upper bound on any surface height these
// parameters can produce, assuming noise and shapes stay within [-1, 1].
func (p Params) HeightBounds() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, b := range biome.All {
		bp := p.biome(b)
		spread := math.Abs(p.HeightScale*bp.Factor) + math.Abs(bp.Detail)
		lo = math.Min(lo, bp.Offset-spread)
		hi = math.Max(hi, bp.Offset+spread)
	}
	return lo, hi
}
