package models

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/VoidMesh/worldstream/cmd/debug/components"
	"github.com/VoidMesh/worldstream/services/world"
)

// OverviewModel shows engine counters.
type OverviewModel struct {
	engine *world.Engine
	events *EventLog
	width  int
	height int
}

func NewOverviewModel(engine *world.Engine, events *EventLog) OverviewModel {
	return OverviewModel{
		engine: engine,
		events: events,
	}
}

func (m OverviewModel) Init() tea.Cmd {
	return nil
}

func (m OverviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m OverviewModel) View() string {
	var s strings.Builder

	s.WriteString(components.TitleStyle.Render("System Overview") + "\n\n")

	stats := m.engine.Stats()
	loads, unloads := m.events.Totals()

	var body strings.Builder
	body.WriteString(components.SubtitleStyle.Render("Residency") + "\n")
	body.WriteString(fmt.Sprintf("Radius:     %d (%d chunks)\n", stats.Residency.Radius, (2*stats.Residency.Radius+1)*(2*stats.Residency.Radius+1)))
	body.WriteString(fmt.Sprintf("Resident:   %d\n", stats.Residency.Resident))
	body.WriteString(fmt.Sprintf("Pending:    %d\n", stats.Residency.Pending))
	body.WriteString(fmt.Sprintf("Loads:      %d (log %d)\n", stats.Residency.Loads, loads))
	body.WriteString(fmt.Sprintf("Unloads:    %d (log %d)\n", stats.Residency.Unloads, unloads))
	body.WriteString(fmt.Sprintf("Dropped:    %d\n", stats.Residency.Dropped))
	body.WriteString(fmt.Sprintf("Failed:     %d\n", stats.Residency.Failed))
	body.WriteString(fmt.Sprintf("Last update %s\n\n", stats.Residency.LastUpdate))

	body.WriteString(components.SubtitleStyle.Render("Height queries") + "\n")
	body.WriteString(fmt.Sprintf("Queries:    %d\n", stats.Height.Queries))
	body.WriteString(fmt.Sprintf("Resident:   %d\n", stats.Height.Resident))
	body.WriteString(fmt.Sprintf("Memo hits:  %d\n", stats.Height.MemoHits))
	body.WriteString(fmt.Sprintf("Generated:  %d\n\n", stats.Height.Generated))

	body.WriteString(components.SubtitleStyle.Render("Engine") + "\n")
	body.WriteString(fmt.Sprintf("Chunk size: %.1f\n", stats.ChunkSize))
	body.WriteString(fmt.Sprintf("Ticks:      %d\n", stats.Ticks))
	body.WriteString(fmt.Sprintf("In flight:  %d\n", stats.PoolInFlight))
	body.WriteString(fmt.Sprintf("Uptime:     %s\n", stats.Uptime.Round(1e9)))

	s.WriteString(components.BorderStyle.Render(body.String()) + "\n\n")
	s.WriteString(components.StatusBarStyle.Width(m.width).Render("tab: switch view • q: quit"))

	return s.String()
}

func (m *OverviewModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}
