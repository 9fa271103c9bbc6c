package biome

import (
	"fmt"

	"github.com/VoidMesh/worldstream/services/noise"
)

// Biome labels a region. It carries no per-instance state.
type Biome uint8

const (
	Swamp Biome = iota
	Desert
	Grassland
	Mountains
)

// All lists the biomes in threshold order.
var All = []Biome{Swamp, Desert, Grassland, Mountains}

func (b Biome) String() string {
	switch b {
	case Swamp:
		return "swamp"
	case Desert:
		return "desert"
	case Grassland:
		return "grassland"
	case Mountains:
		return "mountains"
	default:
		return fmt.Sprintf("biome(%d)", uint8(b))
	}
}

// MarshalText lets biomes appear by name in JSON payloads and log lines.
func (b Biome) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Biome) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Parse returns the biome with the given name.
func Parse(name string) (Biome, error) {
	for _, b := range All {
		if b.String() == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown biome %q", name)
}

// Thresholds are the exclusive upper bounds of the Swamp, Desert and Grassland
// ranges; anything at or above GrasslandMax is Mountains.
type Thresholds struct {
	SwampMax     float64
	DesertMax    float64
	GrasslandMax float64
}

// DefaultThresholds returns the documented threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SwampMax:     -0.3,
		DesertMax:    -0.1,
		GrasslandMax: 0.3,
	}
}

// Classifier maps world coordinates to a biome.
type Classifier interface {
	Classify(x, z float64) Biome
}

// NoiseClassifier thresholds a large-wavelength noise field.
type NoiseClassifier struct {
	field      noise.Field
	thresholds Thresholds
}

// NewClassifier creates a classifier over the regional noise field.
func NewClassifier(thresholds Thresholds) *NoiseClassifier {
	return NewClassifierWithField(noise.Regional{}, thresholds)
}

// NewClassifierWithField creates a classifier over an arbitrary field.
func NewClassifierWithField(field noise.Field, thresholds Thresholds) *NoiseClassifier {
	return &NoiseClassifier{
		field:      field,
		thresholds: thresholds,
	}
}

func (c *NoiseClassifier) Classify(x, z float64) Biome {
	return c.thresholds.ClassifyValue(c.field.Sample(x, z))
}

// ClassifyValue partitions a combined biome-noise value into half-open ranges.
func (t Thresholds) ClassifyValue(v float64) Biome {
	switch {
	case v < t.SwampMax:
		return Swamp
	case v < t.DesertMax:
		return Desert
	case v < t.GrasslandMax:
		return Grassland
	default:
		return Mountains
	}
}
