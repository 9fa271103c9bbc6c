package residency

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/VoidMesh/worldstream/internal/testutil"
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/noise"
	"github.com/VoidMesh/worldstream/services/spatial"
)

const testChunkSize = 8

func newTestBuilder() *chunk.Builder {
	params := chunk.DefaultParams()
	params.Resolution = testChunkSize
	return chunk.NewBuilder(params, noise.Terrain{}, biome.NewClassifier(biome.DefaultThresholds()))
}

// countingLoader records every coordinate it is asked to build.
type countingLoader struct {
	inner chunk.Loader
	calls map[spatial.Coord]int
}

func newCountingLoader() *countingLoader {
	return &countingLoader{
		inner: chunk.NewSyncLoader(newTestBuilder()),
		calls: make(map[spatial.Coord]int),
	}
}

func (l *countingLoader) Load(coord spatial.Coord) *chunk.Handle {
	l.calls[coord]++
	return l.inner.Load(coord)
}

func (l *countingLoader) total() int {
	n := 0
	for _, c := range l.calls {
		n += c
	}
	return n
}

// promiseLoader hands out unresolved handles the test completes by hand.
type promiseLoader struct {
	builder  *chunk.Builder
	resolves map[spatial.Coord]func(*chunk.Chunk, error)
	calls    int
}

func newPromiseLoader() *promiseLoader {
	return &promiseLoader{
		builder:  newTestBuilder(),
		resolves: make(map[spatial.Coord]func(*chunk.Chunk, error)),
	}
}

func (l *promiseLoader) Load(coord spatial.Coord) *chunk.Handle {
	l.calls++
	h, resolve := chunk.NewPromise(coord)
	l.resolves[coord] = resolve
	return h
}

func (l *promiseLoader) complete(coord spatial.Coord) {
	resolve := l.resolves[coord]
	delete(l.resolves, coord)
	resolve(l.builder.Build(coord), nil)
}

func (l *promiseLoader) fail(coord spatial.Coord, err error) {
	resolve := l.resolves[coord]
	delete(l.resolves, coord)
	resolve(nil, err)
}

// recordingListener tracks which chunks downstream consumers believe are
// loaded and fails on duplicate or unmatched events.
type recordingListener struct {
	t      *testing.T
	loaded map[spatial.Coord]biome.Biome
	log    []string
}

func newRecordingListener(t *testing.T) *recordingListener {
	return &recordingListener{t: t, loaded: make(map[spatial.Coord]biome.Biome)}
}

func (r *recordingListener) ChunkLoaded(e LoadedEvent) {
	_, dup := r.loaded[e.Coord]
	assert.False(r.t, dup, "duplicate load for %v", e.Coord)
	assert.Equal(r.t, e.Coord.Key(), e.Key)
	r.loaded[e.Coord] = e.Biome
	r.log = append(r.log, "load "+e.Coord.String())
}

func (r *recordingListener) ChunkUnloaded(e UnloadedEvent) {
	_, ok := r.loaded[e.Coord]
	assert.True(r.t, ok, "unload for %v which was never loaded", e.Coord)
	delete(r.loaded, e.Coord)
	r.log = append(r.log, "unload "+e.Coord.String())
}

func worldOf(c int32) float64 {
	return float64(c)*testChunkSize + testChunkSize/2
}

func assertWindow(t *testing.T, m *Manager, center spatial.Coord) {
	t.Helper()
	want := spatial.Window(center, m.Radius())
	require.Equal(t, want, m.Resident(), "resident set must equal the window around %v", center)
	for _, c := range want {
		assert.Equal(t, Resident, m.State(c))
	}
}

func loadedCoords(events []LoadedEvent) []spatial.Coord {
	out := make([]spatial.Coord, len(events))
	for i, e := range events {
		out[i] = e.Coord
	}
	return out
}

func unloadedCoords(events []UnloadedEvent) []spatial.Coord {
	out := make([]spatial.Coord, len(events))
	for i, e := range events {
		out[i] = e.Coord
	}
	return out
}

func TestManager_InitialUpdateLoadsWindow(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	loader := newCountingLoader()
	m := NewManager(loader, testChunkSize, 4)

	update, err := m.UpdateAnchor(worldOf(0), worldOf(0))
	require.NoError(t, err)

	assert.Len(t, update.Loaded, 81)
	assert.Empty(t, update.Unloaded)
	assert.Equal(t, spatial.Coord{}, update.Anchor)
	assert.Equal(t, spatial.Window(spatial.Coord{}, 4), loadedCoords(update.Loaded),
		"loaded events must be ordered by z then x")
	assertWindow(t, m, spatial.Coord{})
	assert.Equal(t, 81, loader.total())
	assert.Equal(t, 0, m.PendingCount())

	for _, e := range update.Loaded {
		c, ok := m.Chunk(e.Coord)
		require.True(t, ok)
		assert.Equal(t, c.Biome, e.Biome)
	}
}

func TestManager_StepReconcilesOneColumn(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	loader := newCountingLoader()
	m := NewManager(loader, testChunkSize, 4)
	_, err := m.UpdateAnchor(worldOf(0), worldOf(0))
	require.NoError(t, err)

	update, err := m.UpdateAnchor(worldOf(1), worldOf(0))
	require.NoError(t, err)

	var wantUnloaded, wantLoaded []spatial.Coord
	for z := int32(-4); z <= 4; z++ {
		wantUnloaded = append(wantUnloaded, spatial.Coord{X: -4, Z: z})
		wantLoaded = append(wantLoaded, spatial.Coord{X: 5, Z: z})
	}
	assert.Equal(t, wantUnloaded, unloadedCoords(update.Unloaded))
	assert.Equal(t, wantLoaded, loadedCoords(update.Loaded))
	assertWindow(t, m, spatial.Coord{X: 1})

	// Chunks that stayed in the window were never rebuilt.
	assert.Equal(t, 90, loader.total())
	for coord, n := range loader.calls {
		assert.Equal(t, 1, n, "chunk %v built %d times", coord, n)
	}
}

func TestManager_MoveWithinChunkIsNoop(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	loader := newCountingLoader()
	m := NewManager(loader, testChunkSize, 2)
	_, err := m.UpdateAnchor(0.1, 0.1)
	require.NoError(t, err)

	update, err := m.UpdateAnchor(7.9, 7.9)
	require.NoError(t, err)
	assert.True(t, update.Empty())
	assert.Equal(t, 25, loader.total())
}

func TestManager_TeleportReplacesEverything(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	m := NewManager(newCountingLoader(), testChunkSize, 1)
	_, err := m.UpdateAnchor(worldOf(0), worldOf(0))
	require.NoError(t, err)

	update, err := m.UpdateAnchor(worldOf(-100), worldOf(250))
	require.NoError(t, err)

	assert.Equal(t, spatial.Window(spatial.Coord{}, 1), unloadedCoords(update.Unloaded))
	assert.Equal(t, spatial.Window(spatial.Coord{X: -100, Z: 250}, 1), loadedCoords(update.Loaded))
	assertWindow(t, m, spatial.Coord{X: -100, Z: 250})
}

func TestManager_NegativeAnchor(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	m := NewManager(newCountingLoader(), testChunkSize, 0)
	update, err := m.UpdateAnchor(-0.5, -0.0001)
	require.NoError(t, err)

	require.Len(t, update.Loaded, 1)
	assert.Equal(t, spatial.Coord{X: -1, Z: -1}, update.Loaded[0].Coord)
	anchor, ok := m.Anchor()
	assert.True(t, ok)
	assert.Equal(t, spatial.Coord{X: -1, Z: -1}, anchor)
}

func TestManager_RejectsNonFiniteAnchor(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	tests := []struct {
		name string
		x, z float64
	}{
		{"nan x", math.NaN(), 0},
		{"nan z", 0, math.NaN()},
		{"positive inf", math.Inf(1), 0},
		{"negative inf", 0, math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newCountingLoader()
			listener := newRecordingListener(t)
			m := NewManager(loader, testChunkSize, 2, WithListener(listener))
			_, err := m.UpdateAnchor(worldOf(3), worldOf(-3))
			require.NoError(t, err)
			before := m.Resident()

			update, err := m.UpdateAnchor(tt.x, tt.z)
			require.ErrorIs(t, err, ErrInvalidAnchor)
			assert.True(t, update.Empty())
			assert.Equal(t, before, m.Resident())
			assert.Equal(t, 25, loader.total())
			assert.Len(t, listener.loaded, 25)

			anchor, _ := m.Anchor()
			assert.Equal(t, spatial.Coord{X: 3, Z: -3}, anchor)
			assert.Equal(t, int64(1), m.Stats().Rejected)
		})
	}
}

func TestManager_RejectsAnchorOffTheChunkGrid(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	tests := []struct {
		name string
		x, z float64
	}{
		{"far x", 1e20, 0},
		{"far negative z", 0, -1e20},
		{"just past the grid", float64(math.MaxInt32)*testChunkSize + 2*testChunkSize, 0},
		{"window would wrap high", worldOf(math.MaxInt32), 0},
		{"window would wrap low", 0, worldOf(math.MinInt32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newCountingLoader()
			listener := newRecordingListener(t)
			m := NewManager(loader, testChunkSize, 1, WithListener(listener))
			_, err := m.UpdateAnchor(worldOf(3), worldOf(-3))
			require.NoError(t, err)
			before := m.Resident()

			update, err := m.UpdateAnchor(tt.x, tt.z)
			require.ErrorIs(t, err, ErrInvalidAnchor)
			assert.True(t, update.Empty())
			assert.Equal(t, before, m.Resident())
			assert.True(t, m.Poll().Empty())
			assert.Equal(t, 9, loader.total())
			assert.Len(t, listener.loaded, 9)

			anchor, _ := m.Anchor()
			assert.Equal(t, spatial.Coord{X: 3, Z: -3}, anchor)
			assert.Equal(t, int64(1), m.Stats().Rejected)
		})
	}
}

func TestManager_AnchorAtGridEdgeIsStable(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	loader := newCountingLoader()
	listener := newRecordingListener(t)
	m := NewManager(loader, testChunkSize, 1, WithListener(listener))

	center := spatial.Coord{X: math.MaxInt32 - 1, Z: math.MinInt32 + 1}
	update, err := m.UpdateAnchor(worldOf(center.X), worldOf(center.Z))
	require.NoError(t, err)
	assert.Equal(t, center, update.Anchor)
	assert.Len(t, update.Loaded, 9)
	assertWindow(t, m, center)
	assert.Equal(t, Resident, m.State(spatial.Coord{X: math.MaxInt32, Z: math.MinInt32}))

	for i := 0; i < 3; i++ {
		assert.True(t, m.Poll().Empty(), "poll %d", i)
	}
	assert.Equal(t, 9, loader.total())
	assert.Len(t, listener.loaded, 9)
	assert.Zero(t, m.Stats().Unloads)
}

func TestManager_RandomWalkKeepsInvariant(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	listener := newRecordingListener(t)
	m := NewManager(newCountingLoader(), testChunkSize, 3, WithListener(listener))

	path := []struct{ x, z float64 }{
		{0, 0}, {8, 0}, {16, 8}, {-3, -3}, {-40, 12}, {-41, 13}, {100, -100},
		{101, -92}, {-0.01, 0}, {0, -0.01}, {500, 500}, {504, 511}, {0, 0},
	}

	for _, p := range path {
		update, err := m.UpdateAnchor(p.x, p.z)
		require.NoError(t, err)

		center := spatial.ChunkOf(p.x, p.z, testChunkSize)
		assertWindow(t, m, center)
		assert.Equal(t, center, update.Anchor)

		// The listener's view matches the resident set exactly.
		require.Len(t, listener.loaded, m.ResidentCount())
		for _, c := range m.Resident() {
			_, ok := listener.loaded[c]
			assert.True(t, ok, "listener missed load of %v", c)
		}
	}

	stats := m.Stats()
	assert.Equal(t, int64(len(path)), stats.Updates)
	assert.Equal(t, stats.Loads-stats.Unloads, int64(m.ResidentCount()))
}

func TestManager_UnloadsPrecedeLoads(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	listener := newRecordingListener(t)
	m := NewManager(newCountingLoader(), testChunkSize, 0, WithListener(listener))

	_, err := m.UpdateAnchor(worldOf(0), worldOf(0))
	require.NoError(t, err)
	_, err = m.UpdateAnchor(worldOf(1), worldOf(0))
	require.NoError(t, err)

	assert.Equal(t, []string{"load (0, 0)", "unload (0, 0)", "load (1, 0)"}, listener.log)
}

func TestManager_UploadBoundary(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	ctrl := testutil.NewMockController(t)
	uploader := NewMockUploader(ctrl)
	listener := NewMockListener(ctrl)

	m := NewManager(newCountingLoader(), testChunkSize, 0, WithUploader(uploader), WithListener(listener))

	origin := spatial.Coord{}
	east := spatial.Coord{X: 1}

	var uploaded chunk.Geometry
	gomock.InOrder(
		uploader.EXPECT().Upload(origin.Key(), gomock.Any()).Do(func(_ uint64, g chunk.Geometry) {
			uploaded = g
		}),
		listener.EXPECT().ChunkLoaded(gomock.Cond(func(e LoadedEvent) bool { return e.Coord == origin })),
		listener.EXPECT().ChunkUnloaded(UnloadedEvent{Coord: origin, Key: origin.Key()}),
		uploader.EXPECT().Release(origin.Key()),
		uploader.EXPECT().Upload(east.Key(), gomock.Any()),
		listener.EXPECT().ChunkLoaded(gomock.Cond(func(e LoadedEvent) bool { return e.Coord == east })),
	)

	_, err := m.UpdateAnchor(worldOf(0), worldOf(0))
	require.NoError(t, err)

	c, ok := m.Chunk(origin)
	require.True(t, ok)
	require.Equal(t, c.Geometry(), uploaded)

	// The uploaded copy does not alias chunk memory.
	uploaded.Positions[1] = 12345
	uploaded.Indices[0] = 777
	assert.NotEqual(t, float32(12345), c.Vertices[0].Position.Y())
	assert.NotEqual(t, uint32(777), c.Indices[0])

	_, err = m.UpdateAnchor(worldOf(1), worldOf(0))
	require.NoError(t, err)
}

func TestManager_PendingLifecycle(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	loader := newPromiseLoader()
	listener := newRecordingListener(t)
	m := NewManager(loader, testChunkSize, 1, WithListener(listener))

	update, err := m.UpdateAnchor(worldOf(0), worldOf(0))
	require.NoError(t, err)
	assert.Empty(t, update.Loaded)
	assert.Equal(t, 9, m.PendingCount())
	assert.Equal(t, 0, m.ResidentCount())
	assert.Equal(t, Pending, m.State(spatial.Coord{X: 1, Z: 1}))

	// Completion order does not matter; promotion is sorted.
	loader.complete(spatial.Coord{X: 1, Z: 1})
	loader.complete(spatial.Coord{X: -1, Z: -1})
	loader.complete(spatial.Coord{X: 0, Z: 1})

	update = m.Poll()
	assert.Equal(t, []spatial.Coord{{X: -1, Z: -1}, {X: 0, Z: 1}, {X: 1, Z: 1}}, loadedCoords(update.Loaded))
	assert.Equal(t, 3, m.ResidentCount())
	assert.Equal(t, 6, m.PendingCount())
	assert.Equal(t, 9, loader.calls, "Poll must not re-request pending chunks")

	// Move far away: resident chunks unload, pending ones are dropped silently.
	update, err = m.UpdateAnchor(worldOf(10), worldOf(0))
	require.NoError(t, err)
	assert.Len(t, update.Unloaded, 3)
	assert.Equal(t, 6, update.Dropped)
	assert.Empty(t, update.Loaded)
	assert.Equal(t, 9, m.PendingCount())
	assert.Equal(t, Absent, m.State(spatial.Coord{X: 0, Z: 0}))

	// A dropped build finishing late changes nothing.
	loader.complete(spatial.Coord{X: 0, Z: 0})
	update = m.Poll()
	assert.True(t, update.Empty())
	assert.Empty(t, listener.loaded)

	for _, c := range spatial.Window(spatial.Coord{X: 10}, 1) {
		loader.complete(c)
	}
	update = m.Poll()
	assert.Len(t, update.Loaded, 9)
	assertWindow(t, m, spatial.Coord{X: 10})
	assert.Equal(t, 0, m.PendingCount())
}

func TestManager_FailedLoadIsRetried(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	loader := newPromiseLoader()
	m := NewManager(loader, testChunkSize, 0)

	_, err := m.UpdateAnchor(worldOf(0), worldOf(0))
	require.NoError(t, err)
	loader.fail(spatial.Coord{}, errors.New("worker crashed"))

	update := m.Poll()
	assert.Empty(t, update.Loaded)
	assert.Equal(t, int64(1), m.Stats().Failed)
	assert.Equal(t, Absent, m.State(spatial.Coord{}))

	// The next poll asks again.
	m.Poll()
	assert.Equal(t, 2, loader.calls)
	assert.Equal(t, Pending, m.State(spatial.Coord{}))

	loader.complete(spatial.Coord{})
	update = m.Poll()
	require.Len(t, update.Loaded, 1)
	assertWindow(t, m, spatial.Coord{})
}

func TestManager_PollWithoutAnchor(t *testing.T) {
	m := NewManager(newCountingLoader(), testChunkSize, 2)
	assert.True(t, m.Poll().Empty())
	_, ok := m.Anchor()
	assert.False(t, ok)
}

func TestManager_UnloadAll(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	listener := newRecordingListener(t)
	m := NewManager(newCountingLoader(), testChunkSize, 1, WithListener(listener))
	_, err := m.UpdateAnchor(worldOf(2), worldOf(2))
	require.NoError(t, err)

	update := m.UnloadAll()
	assert.Equal(t, spatial.Window(spatial.Coord{X: 2, Z: 2}, 1), unloadedCoords(update.Unloaded))
	assert.Equal(t, 0, m.ResidentCount())
	assert.Empty(t, listener.loaded)
	assert.True(t, m.Poll().Empty())
}

func TestManager_WithPool(t *testing.T) {
	cleanup := testutil.SetupTest(t, testutil.DefaultTestConfig())
	defer cleanup()

	pool := chunk.NewPool(context.Background(), newTestBuilder(), 4)
	defer pool.Close()

	listener := newRecordingListener(t)
	m := NewManager(pool, testChunkSize, 2, WithListener(listener))

	_, err := m.UpdateAnchor(worldOf(-5), worldOf(5))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m.Poll()
		return m.PendingCount() == 0
	}, 10*time.Second, 5*time.Millisecond)

	assertWindow(t, m, spatial.Coord{X: -5, Z: 5})
	assert.Len(t, listener.loaded, 25)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "absent", Absent.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "resident", Resident.String())
	assert.Equal(t, "state(7)", State(7).String())
}

func TestState_UnmarshalText(t *testing.T) {
	for _, s := range []State{Absent, Pending, Resident} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var got State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("loading")))
}
