package noise

import "math"

// Field defines a scalar field over world-space (x, z).
// This enables dependency injection and makes the chunk builder easily testable.
type Field interface {
	Sample(x, z float64) float64
}

// Amplitudes of the four terrain terms, largest feature first.
const (
	largeAmplitude    = 1.0
	mediumAmplitude   = 0.5
	fineAmplitude     = 0.25
	veryFineAmplitude = 0.125

	terrainNorm = largeAmplitude + mediumAmplitude + fineAmplitude + veryFineAmplitude
)

// Terrain is the height noise used by the chunk builder. It has no state and
// no seed: the value is a pure function of the world coordinate.
type Terrain struct{}

// Sample returns the terrain noise at (x, z) in [-1, 1].
func (Terrain) Sample(x, z float64) float64 {
	return TerrainAt(x, z)
}

// TerrainAt sums four sinusoidal octaves at decreasing amplitude and increasing
// frequency. The terms are added in a fixed order so the result is bit-for-bit
// reproducible.
func TerrainAt(x, z float64) float64 {
	large := math.Sin(x*0.01) * math.Cos(z*0.01) * largeAmplitude
	medium := math.Sin(x*0.05+z*0.03) * mediumAmplitude
	fine := math.Cos(x*0.1) * math.Sin(z*0.12) * fineAmplitude
	veryFine := math.Sin((x+z)*0.3) * veryFineAmplitude

	sum := large
	sum += medium
	sum += fine
	sum += veryFine
	return sum / terrainNorm
}

// Regional is the biome-scale noise. Its wavelengths (about 4200 and 7850
// world units) are far longer than any terrain term so biome regions span
// many chunks.
type Regional struct{}

// Sample returns the regional noise at (x, z) in [-1, 1].
func (Regional) Sample(x, z float64) float64 {
	return RegionalAt(x, z)
}

func RegionalAt(x, z float64) float64 {
	primary := math.Sin(x*0.0015) * math.Cos(z*0.0015) * 0.6
	secondary := math.Sin((x-z)*0.0008) * 0.4
	return primary + secondary
}

// Constant is a flat field, handy for tests and for debugging the mesh layout.
type Constant float64

func (c Constant) Sample(x, z float64) float64 {
	return float64(c)
}

// FieldFunc adapts a plain function to Field.
type FieldFunc func(x, z float64) float64

func (f FieldFunc) Sample(x, z float64) float64 {
	return f(x, z)
}
