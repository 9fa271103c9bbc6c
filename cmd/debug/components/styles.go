package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spawn"
)

// Color definitions
var (
	// Primary colors
	PrimaryColor   = lipgloss.Color("#7D56F4")
	SecondaryColor = lipgloss.Color("#04B575")
	AccentColor    = lipgloss.Color("#FFD700")
	DangerColor    = lipgloss.Color("#F25D94")

	// Grayscale
	LightGray = lipgloss.Color("#D9D9D9")
	Gray      = lipgloss.Color("#8B8B8B")
	DarkGray  = lipgloss.Color("#383838")

	// Biome colors
	SwampColor     = lipgloss.Color("#2F4F4F") // DarkSlateGray
	DesertColor    = lipgloss.Color("#EDC9AF") // Desert sand
	GrasslandColor = lipgloss.Color("#228B22") // ForestGreen
	MountainsColor = lipgloss.Color("#A9A9A9") // DarkGray

	// Event colors
	LoadedColor   = lipgloss.Color("#00FF00") // Lime
	UnloadedColor = lipgloss.Color("#FFA500") // Orange
	PendingColor  = lipgloss.Color("#4682B4") // SteelBlue
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Align(lipgloss.Center).
			Padding(1, 2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true).
			Padding(0, 1)

	// Border styles
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Gray).
			Padding(1)

	// Menu styles
	MenuItemStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Padding(0, 2)

	SelectedMenuItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(PrimaryColor).
				Bold(true).
				Padding(0, 2)

	// Info panel styles
	InfoPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SecondaryColor).
			Padding(1).
			Width(34)

	EventLogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Gray).
			Padding(0, 1)

	// Status bar style
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(DarkGray).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(DangerColor).
			Bold(true)

	// Help styles
	HelpStyle = lipgloss.NewStyle().
			Foreground(Gray).
			Italic(true).
			Padding(1)

	// Grid styles (for the chunk map)
	GridCellStyle = lipgloss.NewStyle().
			Width(2).
			Height(1).
			Align(lipgloss.Center)

	GridSelectedCellStyle = lipgloss.NewStyle().
				Width(2).
				Height(1).
				Align(lipgloss.Center).
				Background(PrimaryColor).
				Foreground(lipgloss.Color("#FAFAFA"))
)

// Map symbols
const (
	SwampSymbol     = "~~"
	DesertSymbol    = ".."
	GrasslandSymbol = "\"\""
	MountainsSymbol = "^^"
	AnchorSymbol    = "@@"
	PendingSymbol   = "??"
	EmptySymbol     = "  "
)

// BiomeSymbol returns the map glyph for a biome.
func BiomeSymbol(b biome.Biome) string {
	switch b {
	case biome.Swamp:
		return SwampSymbol
	case biome.Desert:
		return DesertSymbol
	case biome.Grassland:
		return GrasslandSymbol
	case biome.Mountains:
		return MountainsSymbol
	default:
		return EmptySymbol
	}
}

// BiomeColor returns the map color for a biome.
func BiomeColor(b biome.Biome) lipgloss.Color {
	switch b {
	case biome.Swamp:
		return SwampColor
	case biome.Desert:
		return DesertColor
	case biome.Grassland:
		return GrasslandColor
	case biome.Mountains:
		return MountainsColor
	default:
		return Gray
	}
}

// StateColor colors a chunk that has no biome to show yet.
func StateColor(s residency.State) lipgloss.Color {
	switch s {
	case residency.Resident:
		return LoadedColor
	case residency.Pending:
		return PendingColor
	default:
		return DarkGray
	}
}

// ResourceColor returns the legend color for a resource kind.
func ResourceColor(k spawn.Kind) lipgloss.Color {
	switch k {
	case spawn.Cactus, spawn.Tree, spawn.BerryBush, spawn.Reed:
		return SecondaryColor
	case spawn.IronOre:
		return lipgloss.Color("#C0C0C0") // Silver
	case spawn.Sandstone:
		return DesertColor
	case spawn.Stone:
		return lipgloss.Color("#696969") // DimGray
	default:
		return LightGray
	}
}

// Layout helpers
func CenterText(text string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(text)
}

func LeftText(text string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Left).Render(text)
}
