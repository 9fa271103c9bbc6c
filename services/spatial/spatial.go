// Package spatial encodes chunk-grid coordinates into map keys.
package spatial

import (
	"fmt"
	"math"
)

// Coord identifies a chunk on the chunk grid.
type Coord struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Z)
}

// Key returns the packed map key for c.
func (c Coord) Key() uint64 {
	return Encode(c.X, c.Z)
}

// Encode packs (cx, cz) into one key. Each coordinate is reinterpreted as its
// unsigned 32-bit pattern first; converting a negative int32 straight to
// uint64 would sign-extend into the high half and collide with other keys.
func Encode(cx, cz int32) uint64 {
	return uint64(uint32(cx))<<32 | uint64(uint32(cz))
}

// Decode reverses Encode.
func Decode(key uint64) (cx, cz int32) {
	return int32(uint32(key >> 32)), int32(uint32(key))
}

// DecodeCoord reverses Coord.Key.
func DecodeCoord(key uint64) Coord {
	cx, cz := Decode(key)
	return Coord{X: cx, Z: cz}
}

// ChunkOf returns the chunk containing world-space (x, z) for chunks that
// span chunkWorldSize units. Flooring keeps negative coordinates in the
// chunk to their left: x = -0.5 belongs to chunk -1, not 0. Points beyond the
// chunk grid saturate to its edge; use ChunkInRange for untrusted input.
func ChunkOf(x, z, chunkWorldSize float64) Coord {
	return Coord{
		X: saturate(math.Floor(x / chunkWorldSize)),
		Z: saturate(math.Floor(z / chunkWorldSize)),
	}
}

// ChunkInRange is ChunkOf for input that may fall off the chunk grid. It
// reports false unless the chunk, and every chunk within margin of it, has an
// int32 coordinate on both axes. NaN and infinite input also report false.
func ChunkInRange(x, z, chunkWorldSize float64, margin int32) (Coord, bool) {
	if margin < 0 {
		margin = 0
	}
	lo := float64(math.MinInt32) + float64(margin)
	hi := float64(math.MaxInt32) - float64(margin)

	fx := math.Floor(x / chunkWorldSize)
	fz := math.Floor(z / chunkWorldSize)
	if !(fx >= lo && fx <= hi && fz >= lo && fz <= hi) {
		return Coord{}, false
	}
	return Coord{X: int32(fx), Z: int32(fz)}, true
}

func saturate(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v <= math.MinInt32:
		return math.MinInt32
	case v >= math.MaxInt32:
		return math.MaxInt32
	}
	return int32(v)
}

// Window returns the (2r+1)x(2r+1) coordinates centred on c, ordered by z
// then x.
func Window(center Coord, radius int32) []Coord {
	if radius < 0 {
		return nil
	}
	side := int(2*radius + 1)
	coords := make([]Coord, 0, side*side)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			coords = append(coords, Coord{X: center.X + dx, Z: center.Z + dz})
		}
	}
	return coords
}

// InWindow reports whether c lies within radius chunks of center on both axes.
func InWindow(c, center Coord, radius int32) bool {
	return abs64(int64(c.X)-int64(center.X)) <= int64(radius) &&
		abs64(int64(c.Z)-int64(center.Z)) <= int64(radius)
}

// Less orders coordinates by z then x.
func Less(a, b Coord) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	return a.X < b.X
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
