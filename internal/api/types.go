package api

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/VoidMesh/worldstream/services/chunk"
	"github.com/VoidMesh/worldstream/services/picking"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
	"github.com/VoidMesh/worldstream/services/spawn"
	"github.com/VoidMesh/worldstream/services/world"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type AnchorRequest struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

type AnchorResponse struct {
	Anchor   spatial.Coord   `json:"anchor"`
	Loaded   []spatial.Coord `json:"loaded"`
	Unloaded []spatial.Coord `json:"unloaded"`
	Dropped  int             `json:"dropped"`
	Resident int             `json:"resident"`
}

func newAnchorResponse(u residency.Update, resident int) AnchorResponse {
	resp := AnchorResponse{
		Anchor:   u.Anchor,
		Loaded:   make([]spatial.Coord, 0, len(u.Loaded)),
		Unloaded: make([]spatial.Coord, 0, len(u.Unloaded)),
		Dropped:  u.Dropped,
		Resident: resident,
	}
	for _, e := range u.Loaded {
		resp.Loaded = append(resp.Loaded, e.Coord)
	}
	for _, e := range u.Unloaded {
		resp.Unloaded = append(resp.Unloaded, e.Coord)
	}
	return resp
}

// ScreenPoint is a pixel in a viewport whose origin is the top-left corner.
type ScreenPoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PickRequest carries either NDC or a screen point. Matrices are column-major.
type PickRequest struct {
	NDC        *[2]float32  `json:"ndc,omitempty"`
	Screen     *ScreenPoint `json:"screen,omitempty"`
	View       mgl32.Mat4   `json:"view"`
	Projection mgl32.Mat4   `json:"projection"`
}

type PickResponse struct {
	Hit        bool           `json:"hit"`
	Point      *mgl32.Vec3    `json:"point,omitempty"`
	Distance   float32        `json:"distance,omitempty"`
	Iterations int            `json:"iterations,omitempty"`
	Ray        *picking.Ray   `json:"ray,omitempty"`
	Chunk      *spatial.Coord `json:"chunk,omitempty"`
}

type ChunkListResponse struct {
	Anchor *spatial.Coord       `json:"anchor,omitempty"`
	Radius int32                `json:"radius"`
	Count  int                  `json:"count"`
	Chunks []world.ChunkSummary `json:"chunks"`
}

type GeometryResponse struct {
	Coord     spatial.Coord `json:"coord"`
	Vertices  int           `json:"vertices"`
	Positions []float32     `json:"positions"`
	Biomes    []int         `json:"biomes"`
	Indices   []uint32      `json:"indices"`
}

func newGeometryResponse(coord spatial.Coord, g chunk.Geometry) GeometryResponse {
	biomes := make([]int, len(g.Biomes))
	for i, b := range g.Biomes {
		biomes[i] = int(b)
	}
	return GeometryResponse{
		Coord:     coord,
		Vertices:  g.VertexCount(),
		Positions: g.Positions,
		Biomes:    biomes,
		Indices:   g.Indices,
	}
}

type ResourcesResponse struct {
	Chunk     spatial.Coord    `json:"chunk"`
	Count     int              `json:"count"`
	Resources []spawn.Resource `json:"resources"`
}

type ResourceStats struct {
	Chunks int `json:"chunks"`
	Nodes  int `json:"nodes"`
}

type StatsResponse struct {
	World     world.Stats    `json:"world"`
	Resources *ResourceStats `json:"resources,omitempty"`
}
