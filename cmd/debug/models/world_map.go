package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/VoidMesh/worldstream/cmd/debug/components"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
	"github.com/VoidMesh/worldstream/services/spawn"
	"github.com/VoidMesh/worldstream/services/world"
)

const (
	tickInterval = 100 * time.Millisecond
	logLines     = 12
)

// ResourceSource is the part of the spawner the map reads.
type ResourceSource interface {
	Resources(coord spatial.Coord) ([]spawn.Resource, bool)
}

// WorldMapModel shows the residency window as a biome map. Arrow keys move
// the anchor by one chunk; wasd moves the inspection cursor within the
// window.
type WorldMapModel struct {
	engine    *world.Engine
	resources ResourceSource
	events    *EventLog

	// Cursor offset from the anchor, in chunks.
	cursorX int32
	cursorZ int32
	width   int
	height  int

	lastUpdate residency.Update
	errorMsg   string
	showInfo   bool
}

func NewWorldMapModel(engine *world.Engine, resources ResourceSource, events *EventLog) WorldMapModel {
	return WorldMapModel{
		engine:    engine,
		resources: resources,
		events:    events,
		showInfo:  true,
	}
}

type tickMsg time.Time

func (m WorldMapModel) Init() tea.Cmd {
	return m.tickCmd()
}

func (m WorldMapModel) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m WorldMapModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		// Anchor movement
		case "up":
			m.MoveAnchor(0, -1)
		case "down":
			m.MoveAnchor(0, 1)
		case "left":
			m.MoveAnchor(-1, 0)
		case "right":
			m.MoveAnchor(1, 0)

		// Cursor movement within the window
		case "w":
			m.MoveCursor(0, -1)
		case "s":
			m.MoveCursor(0, 1)
		case "a":
			m.MoveCursor(-1, 0)
		case "d":
			m.MoveCursor(1, 0)
		case "c":
			m.cursorX, m.cursorZ = 0, 0

		case "i":
			m.showInfo = !m.showInfo
		}

	case tickMsg:
		if u := m.engine.Tick(); !u.Empty() {
			m.lastUpdate = u
		}
		return m, m.tickCmd()
	}

	return m, nil
}

// MoveAnchor recentres the window dx, dz chunks away from the current anchor
// chunk.
func (m *WorldMapModel) MoveAnchor(dx, dz int32) {
	anchor, _ := m.engine.Anchor()
	size := m.engine.ChunkWorldSize()

	// Middle of the target chunk.
	x := (float64(anchor.X+dx) + 0.5) * size
	z := (float64(anchor.Z+dz) + 0.5) * size

	u, err := m.engine.UpdateAnchor(x, z)
	if err != nil {
		m.errorMsg = err.Error()
		return
	}
	m.errorMsg = ""
	m.lastUpdate = u
}

// MoveCursor shifts the inspection cursor, clamped to the window.
func (m *WorldMapModel) MoveCursor(dx, dz int32) {
	r := m.engine.Radius()
	m.cursorX = clamp(m.cursorX+dx, -r, r)
	m.cursorZ = clamp(m.cursorZ+dz, -r, r)
}

// Cursor returns the chunk under the cursor.
func (m WorldMapModel) Cursor() spatial.Coord {
	anchor, _ := m.engine.Anchor()
	return spatial.Coord{X: anchor.X + m.cursorX, Z: anchor.Z + m.cursorZ}
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m WorldMapModel) View() string {
	var s strings.Builder

	anchor, ok := m.engine.Anchor()
	title := "World Map - no anchor"
	if ok {
		title = fmt.Sprintf("World Map - anchor %v", anchor)
	}
	s.WriteString(components.TitleStyle.Render(title) + "\n")

	panels := []string{m.renderGrid()}
	if m.showInfo {
		panels = append(panels, m.renderInfoPanel())
	}
	panels = append(panels, m.renderEventLog())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...) + "\n")

	if m.errorMsg != "" {
		s.WriteString(components.ErrorStyle.Render("Error: "+m.errorMsg) + "\n")
	}

	s.WriteString(m.renderStatusBar())
	return s.String()
}

// renderGrid draws one cell per chunk in the window, north at the top.
func (m WorldMapModel) renderGrid() string {
	anchor, ok := m.engine.Anchor()
	if !ok {
		return components.BorderStyle.Render("Press an arrow key to place the anchor")
	}

	summaries := make(map[spatial.Coord]world.ChunkSummary)
	for _, c := range m.engine.Resident() {
		summaries[c.Coord] = c
	}

	r := m.engine.Radius()
	cursor := m.Cursor()

	var rows []string
	for dz := -r; dz <= r; dz++ {
		var row []string
		for dx := -r; dx <= r; dx++ {
			coord := spatial.Coord{X: anchor.X + dx, Z: anchor.Z + dz}

			var content string
			style := components.GridCellStyle
			if c, ok := summaries[coord]; ok {
				content = components.BiomeSymbol(c.Biome)
				style = style.Foreground(lipgloss.Color("#FAFAFA")).Background(components.BiomeColor(c.Biome))
			} else {
				content = components.PendingSymbol
				style = style.Foreground(components.StateColor(residency.Pending))
			}
			if coord == anchor {
				content = components.AnchorSymbol
			}
			if coord == cursor {
				style = components.GridSelectedCellStyle
			}
			row = append(row, style.Render(content))
		}
		rows = append(rows, strings.Join(row, ""))
	}

	side := int(2*r + 1)
	return components.BorderStyle.
		Width(side*2 + 4).
		Render(strings.Join(rows, "\n"))
}

func (m WorldMapModel) renderInfoPanel() string {
	var info strings.Builder
	cursor := m.Cursor()

	info.WriteString(components.SubtitleStyle.Render("Chunk") + "\n")
	summary, resident := m.engine.ChunkSummary(cursor.X, cursor.Z)
	info.WriteString(fmt.Sprintf("Coord: %v\n", cursor))
	info.WriteString(fmt.Sprintf("Key:   %#016x\n", cursor.Key()))
	info.WriteString(fmt.Sprintf("State: %s\n", summary.State))

	if resident {
		info.WriteString(fmt.Sprintf("Biome: %s\n", summary.Biome))
		info.WriteString(fmt.Sprintf("Height: %.1f .. %.1f\n", summary.MinHeight, summary.MaxHeight))

		size := m.engine.ChunkWorldSize()
		cx := (float64(cursor.X) + 0.5) * size
		cz := (float64(cursor.Z) + 0.5) * size
		if p, err := m.engine.Probe(cx, cz); err == nil {
			info.WriteString(fmt.Sprintf("Centre: %.2f (%s)\n", p.Height, p.Biome))
		}
	}

	if m.resources != nil && resident {
		info.WriteString("\n" + components.SubtitleStyle.Render("Resources") + "\n")
		nodes, _ := m.resources.Resources(cursor)
		if len(nodes) == 0 {
			info.WriteString("None\n")
		}
		for _, line := range resourceLines(nodes) {
			info.WriteString(line + "\n")
		}
	}

	return components.InfoPanelStyle.Render(info.String())
}

// resourceLines counts nodes per kind, in kind order.
func resourceLines(nodes []spawn.Resource) []string {
	counts := make(map[spawn.Kind]int)
	for _, n := range nodes {
		counts[n.Kind]++
	}
	kinds := make([]spawn.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	lines := make([]string, 0, len(kinds))
	for _, k := range kinds {
		label := lipgloss.NewStyle().Foreground(components.ResourceColor(k)).Render(k.String())
		lines = append(lines, fmt.Sprintf("%s x%d", label, counts[k]))
	}
	return lines
}

func (m WorldMapModel) renderEventLog() string {
	var log strings.Builder
	log.WriteString(components.SubtitleStyle.Render("Events") + "\n")

	for _, e := range m.events.Recent(logLines) {
		color := components.LoadedColor
		if e.Kind == EventUnloaded {
			color = components.UnloadedColor
		}
		line := fmt.Sprintf("%s %s", e.At.Format("15:04:05"), e.Line)
		log.WriteString(lipgloss.NewStyle().Foreground(color).Render(line) + "\n")
	}
	return components.EventLogStyle.Render(log.String())
}

func (m WorldMapModel) renderStatusBar() string {
	stats := m.engine.Stats()
	status := fmt.Sprintf("resident %d • pending %d • last +%d/-%d • arrows: move anchor • wasd: cursor • i: info",
		stats.Residency.Resident, stats.Residency.Pending,
		len(m.lastUpdate.Loaded), len(m.lastUpdate.Unloaded))
	return components.StatusBarStyle.Width(m.width).Render(status)
}

func (m *WorldMapModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}
