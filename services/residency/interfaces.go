package residency

import (
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/spatial"
)

//go:generate mockgen -source=interfaces.go -destination=mock_interfaces.go -package=residency

// LoadedEvent fires once when a chunk becomes resident.
type LoadedEvent struct {
	Coord spatial.Coord `json:"coord"`
	Key   uint64        `json:"key"`
	Biome biome.Biome   `json:"biome"`
}

// UnloadedEvent fires once when a resident chunk is evicted.
type UnloadedEvent struct {
	Coord spatial.Coord `json:"coord"`
	Key   uint64        `json:"key"`
}

// Listener receives chunk lifecycle events, e.g. resource and NPC spawners.
// Calls happen on the goroutine running the update, in event order.
type Listener interface {
	ChunkLoaded(event LoadedEvent)
	ChunkUnloaded(event UnloadedEvent)
}

// Uploader is the rendering boundary. Upload receives a geometry copy the
// uploader may keep; Release follows the unloaded event for the same key.
type Uploader interface {
	Upload(key uint64, geom chunk.Geometry)
	Release(key uint64)
}
