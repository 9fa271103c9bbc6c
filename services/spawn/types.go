package spawn

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/spatial"
)

// Kind identifies a resource node type.
type Kind uint8

const (
	Cactus Kind = iota
	Sandstone
	IronOre
	Stone
	Reed
	Mushroom
	Tree
	BerryBush
)

func (k Kind) String() string {
	switch k {
	case Cactus:
		return "cactus"
	case Sandstone:
		return "sandstone"
	case IronOre:
		return "iron_ore"
	case Stone:
		return "stone"
	case Reed:
		return "reed"
	case Mushroom:
		return "mushroom"
	case Tree:
		return "tree"
	case BerryBush:
		return "berry_bush"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Rarity raises the density a point needs before a node of that type spawns.
type Rarity float64

const (
	Common   Rarity = 0
	Uncommon Rarity = 0.1
	Rare     Rarity = 0.2
)

// ResourceType ties a kind to the biome it grows in.
type ResourceType struct {
	Kind   Kind
	Biome  biome.Biome
	Rarity Rarity
}

// ResourceTypes lists every node type by biome.
var ResourceTypes = []ResourceType{
	{Kind: Cactus, Biome: biome.Desert, Rarity: Common},
	{Kind: Sandstone, Biome: biome.Desert, Rarity: Uncommon},
	{Kind: Stone, Biome: biome.Mountains, Rarity: Common},
	{Kind: IronOre, Biome: biome.Mountains, Rarity: Rare},
	{Kind: Reed, Biome: biome.Swamp, Rarity: Common},
	{Kind: Mushroom, Biome: biome.Swamp, Rarity: Uncommon},
	{Kind: Tree, Biome: biome.Grassland, Rarity: Common},
	{Kind: BerryBush, Biome: biome.Grassland, Rarity: Uncommon},
}

var typesByBiome = func() map[biome.Biome][]ResourceType {
	m := make(map[biome.Biome][]ResourceType)
	for _, rt := range ResourceTypes {
		m[rt.Biome] = append(m[rt.Biome], rt)
	}
	return m
}()

// Resource is one placed node.
type Resource struct {
	Kind     Kind          `json:"kind"`
	Biome    biome.Biome   `json:"biome"`
	Position mgl32.Vec3    `json:"position"`
	Chunk    spatial.Coord `json:"chunk"`
	Attempt  int           `json:"attempt"`
	Density  float64       `json:"density"`
}
