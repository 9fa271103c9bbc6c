// Package residency keeps the set of resident chunks equal to the square
// window around a moving anchor.
package residency

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/spatial"
)

// ErrInvalidAnchor rejects anchors with NaN or infinite components, and
// anchors whose window would leave the int32 chunk grid.
var ErrInvalidAnchor = errors.New("invalid anchor")

// State is the lifecycle stage of one chunk coordinate.
type State uint8

const (
	Absent State = iota
	Pending
	Resident
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Resident:
		return "resident"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{Absent, Pending, Resident} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown chunk state %q", text)
}

// Update reports the events emitted by one reconcile, in emission order
// within each slice. Unloads are emitted before loads.
type Update struct {
	Anchor   spatial.Coord   `json:"anchor"`
	Loaded   []LoadedEvent   `json:"loaded"`
	Unloaded []UnloadedEvent `json:"unloaded"`
	Dropped  int             `json:"dropped"`
}

// Empty reports whether the update changed nothing.
func (u Update) Empty() bool {
	return len(u.Loaded) == 0 && len(u.Unloaded) == 0 && u.Dropped == 0
}

// Stats are cumulative counters since the manager was created.
type Stats struct {
	Resident    int           `json:"resident"`
	Pending     int           `json:"pending"`
	Loads       int64         `json:"loads"`
	Unloads     int64         `json:"unloads"`
	Dropped     int64         `json:"dropped"`
	Failed      int64         `json:"failed"`
	Rejected    int64         `json:"rejected"`
	Updates     int64         `json:"updates"`
	LastUpdate  time.Duration `json:"last_update_ns"`
	AnchorX     float64       `json:"anchor_x"`
	AnchorZ     float64       `json:"anchor_z"`
	AnchorChunk spatial.Coord `json:"anchor_chunk"`
	HasAnchor   bool          `json:"has_anchor"`
	Radius      int32         `json:"radius"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithUploader sends geometry copies to u on load and releases on unload.
func WithUploader(u Uploader) Option {
	return func(m *Manager) {
		m.uploader = u
	}
}

// WithListener subscribes l to lifecycle events.
func WithListener(l Listener) Option {
	return func(m *Manager) {
		m.listeners = append(m.listeners, l)
	}
}

// Manager is the sole owner and mutator of the resident set. It is not safe
// for concurrent use; callers serialise access.
type Manager struct {
	loader    chunk.Loader
	worldSize float64
	radius    int32
	uploader  Uploader
	listeners []Listener

	resident map[uint64]*chunk.Chunk
	pending  map[uint64]*chunk.Handle

	anchor    spatial.Coord
	anchorX   float64
	anchorZ   float64
	hasAnchor bool
	stats     Stats
	logger    *log.Logger
}

// NewManager creates an empty manager. chunkWorldSize is the edge length of a
// chunk in world units and radius the number of chunks kept on each side of
// the anchor chunk.
func NewManager(loader chunk.Loader, chunkWorldSize float64, radius int32, opts ...Option) *Manager {
	if radius < 0 {
		radius = 0
	}
	m := &Manager{
		loader:    loader,
		worldSize: chunkWorldSize,
		radius:    radius,
		resident:  make(map[uint64]*chunk.Chunk),
		pending:   make(map[uint64]*chunk.Handle),
		logger:    logging.WithComponent("residency"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddListener subscribes l after construction.
func (m *Manager) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// UpdateAnchor moves the anchor to world (x, z) and reconciles the resident
// set to the window around it. A non-finite anchor, or one whose window does
// not fit on the chunk grid, is rejected and the previous state is kept.
func (m *Manager) UpdateAnchor(x, z float64) (Update, error) {
	if math.IsNaN(x) || math.IsNaN(z) || math.IsInf(x, 0) || math.IsInf(z, 0) {
		m.stats.Rejected++
		m.logger.Warn("Rejected anchor update", "x", x, "z", z)
		return Update{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidAnchor, x, z)
	}

	center, ok := spatial.ChunkInRange(x, z, m.worldSize, m.radius)
	if !ok {
		m.stats.Rejected++
		m.logger.Warn("Rejected anchor outside the chunk grid", "x", x, "z", z, "radius", m.radius)
		return Update{}, fmt.Errorf("%w: (%v, %v) is outside the chunk grid", ErrInvalidAnchor, x, z)
	}
	if m.hasAnchor && center != m.anchor {
		m.logger.Debug("Anchor changed chunk", "from", m.anchor, "to", center)
	}
	m.anchor = center
	m.anchorX, m.anchorZ = x, z
	m.hasAnchor = true

	return m.reconcile(center), nil
}

// Poll requests chunks still missing from the window and promotes finished
// builds to resident. With a synchronous loader there is never anything to
// do; with a pool it is called once per tick.
func (m *Manager) Poll() Update {
	if !m.hasAnchor {
		return Update{}
	}
	return m.reconcile(m.anchor)
}

func (m *Manager) reconcile(center spatial.Coord) Update {
	start := time.Now()
	update := Update{Anchor: center}

	// Evict first so downstream consumers see unloads before loads.
	var evict []spatial.Coord
	for _, c := range m.resident {
		if !spatial.InWindow(c.Coord, center, m.radius) {
			evict = append(evict, c.Coord)
		}
	}
	slices.SortFunc(evict, compareCoords)
	for _, coord := range evict {
		update.Unloaded = append(update.Unloaded, m.unload(coord))
	}

	for key, h := range m.pending {
		if !spatial.InWindow(h.Coord(), center, m.radius) {
			delete(m.pending, key)
			update.Dropped++
		}
	}

	for _, coord := range spatial.Window(center, m.radius) {
		key := coord.Key()
		if _, ok := m.resident[key]; ok {
			continue
		}
		if _, ok := m.pending[key]; ok {
			continue
		}
		m.pending[key] = m.loader.Load(coord)
	}

	update.Loaded = m.promote()

	elapsed := time.Since(start)
	m.stats.Updates++
	m.stats.Dropped += int64(update.Dropped)
	m.stats.LastUpdate = elapsed

	if !update.Empty() {
		m.logger.Debug("Residency updated",
			"anchor", center,
			"loaded", len(update.Loaded),
			"unloaded", len(update.Unloaded),
			"dropped", update.Dropped,
			"pending", len(m.pending),
			"resident", len(m.resident),
			"duration", elapsed)
	}
	return update
}

// promote moves every finished build from pending to resident, in z-then-x
// order, and emits its loaded event.
func (m *Manager) promote() []LoadedEvent {
	var ready []*chunk.Handle
	for _, h := range m.pending {
		if h.Ready() {
			ready = append(ready, h)
		}
	}
	slices.SortFunc(ready, func(a, b *chunk.Handle) int {
		return compareCoords(a.Coord(), b.Coord())
	})

	var events []LoadedEvent
	for _, h := range ready {
		coord := h.Coord()
		key := coord.Key()
		delete(m.pending, key)

		c := h.Chunk()
		if err := h.Err(); err != nil || c == nil {
			m.stats.Failed++
			logging.WithChunkCoords(coord.X, coord.Z).Warn("Chunk load failed, will retry", "error", err)
			continue
		}

		m.resident[key] = c
		m.stats.Loads++
		if m.uploader != nil {
			m.uploader.Upload(key, c.Geometry())
		}

		event := LoadedEvent{Coord: coord, Key: key, Biome: c.Biome}
		for _, l := range m.listeners {
			l.ChunkLoaded(event)
		}
		events = append(events, event)
		logging.WithChunkCoords(coord.X, coord.Z).Debug("Chunk loaded", "biome", c.Biome)
	}
	return events
}

func (m *Manager) unload(coord spatial.Coord) UnloadedEvent {
	key := coord.Key()
	delete(m.resident, key)
	m.stats.Unloads++

	event := UnloadedEvent{Coord: coord, Key: key}
	for _, l := range m.listeners {
		l.ChunkUnloaded(event)
	}
	if m.uploader != nil {
		m.uploader.Release(key)
	}
	logging.WithChunkCoords(coord.X, coord.Z).Debug("Chunk unloaded")
	return event
}

// UnloadAll evicts every resident chunk and forgets pending builds. The
// anchor is cleared, so a later Poll does nothing until the next
// UpdateAnchor.
func (m *Manager) UnloadAll() Update {
	update := Update{Anchor: m.anchor}

	coords := m.Resident()
	for _, coord := range coords {
		update.Unloaded = append(update.Unloaded, m.unload(coord))
	}
	update.Dropped = len(m.pending)
	m.stats.Dropped += int64(update.Dropped)
	clear(m.pending)
	m.hasAnchor = false

	m.logger.Info("Unloaded all chunks", "unloaded", len(update.Unloaded), "dropped", update.Dropped)
	return update
}

// Chunk returns the resident chunk at coord. The pointer is only valid until
// the next update.
func (m *Manager) Chunk(coord spatial.Coord) (*chunk.Chunk, bool) {
	c, ok := m.resident[coord.Key()]
	return c, ok
}

// ChunkByKey is Chunk for an encoded key.
func (m *Manager) ChunkByKey(key uint64) (*chunk.Chunk, bool) {
	c, ok := m.resident[key]
	return c, ok
}

func (m *Manager) State(coord spatial.Coord) State {
	key := coord.Key()
	if _, ok := m.resident[key]; ok {
		return Resident
	}
	if _, ok := m.pending[key]; ok {
		return Pending
	}
	return Absent
}

// Resident returns the resident coordinates ordered by z then x.
func (m *Manager) Resident() []spatial.Coord {
	coords := make([]spatial.Coord, 0, len(m.resident))
	for key := range m.resident {
		coords = append(coords, spatial.DecodeCoord(key))
	}
	slices.SortFunc(coords, compareCoords)
	return coords
}

func (m *Manager) ResidentCount() int {
	return len(m.resident)
}

func (m *Manager) PendingCount() int {
	return len(m.pending)
}

// Anchor returns the anchor chunk and whether an anchor has been set.
func (m *Manager) Anchor() (spatial.Coord, bool) {
	return m.anchor, m.hasAnchor
}

func (m *Manager) Radius() int32 {
	return m.radius
}

func (m *Manager) ChunkWorldSize() float64 {
	return m.worldSize
}

func (m *Manager) Stats() Stats {
	s := m.stats
	s.Resident = len(m.resident)
	s.Pending = len(m.pending)
	s.AnchorX, s.AnchorZ = m.anchorX, m.anchorZ
	s.AnchorChunk = m.anchor
	s.HasAnchor = m.hasAnchor
	s.Radius = m.radius
	return s
}

func compareCoords(a, b spatial.Coord) int {
	switch {
	case spatial.Less(a, b):
		return -1
	case spatial.Less(b, a):
		return 1
	default:
		return 0
	}
}
