package spawn

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/worldstream/internal/testutil"
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/height"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
	"github.com/VoidMesh/worldstream/services/world"
)

const testChunkSize = 32.0

// stripes assigns biomes in 100-unit bands along x and a gentle slope for
// height.
type stripes struct {
	calls int
}

func (s *stripes) Probe(x, z float64) (height.Probe, error) {
	s.calls++
	band := int(math.Floor(x/100)) % len(biome.All)
	if band < 0 {
		band += len(biome.All)
	}
	return height.Probe{
		X:      x,
		Z:      z,
		Height: float32(0.1*x + 0.05*z),
		Biome:  biome.All[band],
	}, nil
}

type failingHeights struct{}

func (failingHeights) Probe(x, z float64) (height.Probe, error) {
	return height.Probe{}, errors.New("no terrain")
}

func alwaysOptions() Options {
	return Options{AttemptsPerChunk: 8, DensityThreshold: -1}
}

func loaded(c spatial.Coord) residency.LoadedEvent {
	return residency.LoadedEvent{Coord: c, Key: c.Key()}
}

func unloaded(c spatial.Coord) residency.UnloadedEvent {
	return residency.UnloadedEvent{Coord: c, Key: c.Key()}
}

func TestSplitmix64_KnownValue(t *testing.T) {
	assert.Equal(t, uint64(0xE220A8397B1DCDAF), splitmix64(0))
	assert.Equal(t, splitmix64(0), SubSeed(0, 0))
}

func TestSubSeed_Distinct(t *testing.T) {
	seen := make(map[uint64]bool)
	for _, c := range spatial.Window(spatial.Coord{}, 3) {
		for attempt := -1; attempt < 8; attempt++ {
			s := SubSeed(c.Key(), attempt)
			assert.False(t, seen[s], "duplicate seed for %v attempt %d", c, attempt)
			seen[s] = true
		}
	}
}

func TestUnit_Range(t *testing.T) {
	for _, v := range []uint64{0, 1, math.MaxUint64, 1 << 63, 0xDEADBEEF} {
		u := unit(v)
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)
	}
	assert.Equal(t, 0.0, unit(0))
	assert.Equal(t, 0.5, unit(1<<63))
}

func TestGenerate_PlacementRules(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	src := &stripes{}
	s := New(src, testChunkSize, alwaysOptions())

	for _, coord := range spatial.Window(spatial.Coord{X: 3, Z: -2}, 2) {
		resources := s.Generate(coord)
		require.NotEmpty(t, resources, "chunk %v", coord)
		assert.LessOrEqual(t, len(resources), 8)

		ox := float32(float64(coord.X) * testChunkSize)
		oz := float32(float64(coord.Z) * testChunkSize)

		for i, r := range resources {
			assert.Equal(t, coord, r.Chunk)
			assert.GreaterOrEqual(t, r.Position.X(), ox)
			assert.LessOrEqual(t, r.Position.X(), ox+testChunkSize)
			assert.GreaterOrEqual(t, r.Position.Z(), oz)
			assert.LessOrEqual(t, r.Position.Z(), oz+testChunkSize)

			p, _ := src.Probe(float64(r.Position.X()), float64(r.Position.Z()))
			assert.InDelta(t, float64(p.Height), float64(r.Position.Y()), 1e-3)

			assert.Contains(t, kindsFor(r.Biome), r.Kind)
			assert.GreaterOrEqual(t, r.Density, 0.0)

			for _, other := range resources[:i] {
				dx := float64(other.Position.X() - r.Position.X())
				dz := float64(other.Position.Z() - r.Position.Z())
				assert.GreaterOrEqual(t, dx*dx+dz*dz, minSpacing*minSpacing-1e-3)
			}
		}
	}
}

func kindsFor(b biome.Biome) []Kind {
	var out []Kind
	for _, rt := range ResourceTypes {
		if rt.Biome == b {
			out = append(out, rt.Kind)
		}
	}
	return out
}

func TestGenerate_Deterministic(t *testing.T) {
	a := New(&stripes{}, testChunkSize, DefaultOptions())
	b := New(&stripes{}, testChunkSize, DefaultOptions())

	for _, coord := range []spatial.Coord{{}, {X: -7, Z: 12}, {X: 1 << 20, Z: -(1 << 20)}} {
		assert.Equal(t, a.Generate(coord), b.Generate(coord), "chunk %v", coord)
	}
}

func TestGenerate_Threshold(t *testing.T) {
	src := &stripes{}
	s := New(src, testChunkSize, Options{AttemptsPerChunk: 16, DensityThreshold: 2})

	assert.Empty(t, s.Generate(spatial.Coord{X: 4, Z: 4}))
	assert.Zero(t, src.calls, "rejected attempts must not sample terrain")

	none := New(src, testChunkSize, Options{AttemptsPerChunk: 0, DensityThreshold: -1})
	assert.Empty(t, none.Generate(spatial.Coord{}))
}

func TestGenerate_SkipsFailedProbes(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	s := New(failingHeights{}, testChunkSize, alwaysOptions())
	assert.Empty(t, s.Generate(spatial.Coord{X: 1, Z: 1}))
}

func TestSpawner_LoadUnloadReload(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	s := New(&stripes{}, testChunkSize, alwaysOptions())
	coord := spatial.Coord{X: -2, Z: 5}

	_, ok := s.Resources(coord)
	assert.False(t, ok)

	s.ChunkLoaded(loaded(coord))
	first, ok := s.Resources(coord)
	require.True(t, ok)
	assert.Equal(t, 1, s.Chunks())
	assert.Equal(t, len(first), s.Count())

	s.ChunkUnloaded(unloaded(coord))
	_, ok = s.Resources(coord)
	assert.False(t, ok)
	assert.Zero(t, s.Count())

	s.ChunkLoaded(loaded(coord))
	second, ok := s.Resources(coord)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestSpawner_ResourcesReturnsCopy(t *testing.T) {
	s := New(&stripes{}, testChunkSize, alwaysOptions())
	coord := spatial.Coord{}
	s.ChunkLoaded(loaded(coord))

	r, ok := s.Resources(coord)
	require.True(t, ok)
	require.NotEmpty(t, r)
	r[0].Kind = Kind(200)

	again, _ := s.Resources(coord)
	assert.NotEqual(t, Kind(200), again[0].Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "iron_ore", IronOre.String())
	assert.Equal(t, "kind(42)", Kind(42).String())

	text, err := BerryBush.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "berry_bush", string(text))

	for _, b := range biome.All {
		assert.NotEmpty(t, typesByBiome[b], "biome %v has no resources", b)
	}
}

func TestSpawner_FollowsEngineResidency(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	params := chunk.DefaultParams()
	params.Resolution = 16
	e := world.New(context.Background(), world.Options{Params: params, Radius: 1})
	defer e.Close()

	s := New(e.Heights(), e.ChunkWorldSize(), alwaysOptions())
	e.AddListener(s)

	_, err := e.UpdateAnchor(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, s.Chunks())

	origin, ok := s.Resources(spatial.Coord{})
	require.True(t, ok)
	for _, r := range origin {
		assert.Contains(t, kindsFor(r.Biome), r.Kind)
	}

	// Move three chunks east; the original window is gone entirely.
	_, err = e.UpdateAnchor(3*e.ChunkWorldSize()+1, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, s.Chunks())
	_, ok = s.Resources(spatial.Coord{})
	assert.False(t, ok)

	_, err = e.UpdateAnchor(0, 0)
	require.NoError(t, err)
	again, ok := s.Resources(spatial.Coord{})
	require.True(t, ok)
	assert.Equal(t, origin, again)

	require.NoError(t, e.Close())
	assert.Zero(t, s.Chunks())
}
