package models

import (
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/log"

	"github.com/VoidMesh/worldstream/cmd/debug/components"
	"github.com/VoidMesh/worldstream/services/world"
)

// ViewType represents the different views in the debug tool
type ViewType int

const (
	MapView ViewType = iota
	OverviewView

	viewCount
)

// App is the main application model
type App struct {
	engine *world.Engine

	currentView ViewType
	width       int
	height      int

	worldMap WorldMapModel
	overview OverviewModel

	showHelp bool
}

func NewApp(engine *world.Engine, resources ResourceSource, events *EventLog, startView string) *App {
	app := &App{
		engine:   engine,
		worldMap: NewWorldMapModel(engine, resources, events),
		overview: NewOverviewModel(engine, events),
	}

	switch startView {
	case "overview":
		app.currentView = OverviewView
	default:
		app.currentView = MapView
	}

	return app
}

// Init starts the map's tick loop regardless of the starting view so
// asynchronous builds keep being promoted.
func (m *App) Init() tea.Cmd {
	log.Debug("Initializing debug tool")
	return m.worldMap.Init()
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.worldMap.SetSize(msg.Width, msg.Height)
		m.overview.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case "tab":
			m.currentView = (m.currentView + 1) % viewCount
			return m, nil
		}
		if m.showHelp {
			return m, nil
		}

	case tickMsg:
		// Ticks always go to the map, whichever view is showing.
		newModel, cmd := m.worldMap.Update(msg)
		m.worldMap = newModel.(WorldMapModel)
		return m, cmd
	}

	switch m.currentView {
	case MapView:
		newModel, cmd := m.worldMap.Update(msg)
		m.worldMap = newModel.(WorldMapModel)
		return m, cmd
	case OverviewView:
		newModel, cmd := m.overview.Update(msg)
		m.overview = newModel.(OverviewModel)
		return m, cmd
	}

	return m, nil
}

func (m *App) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	switch m.currentView {
	case MapView:
		return m.worldMap.View()
	case OverviewView:
		return m.overview.View()
	}

	return "Unknown view"
}

func (m *App) renderHelp() string {
	help := `Worldstream Debug Tool

Global keys:
  q, Ctrl+C    Quit
  ?            Toggle this help
  Tab          Cycle through views

World map:
  Arrow keys   Move the anchor one chunk
  w a s d      Move the inspection cursor
  c            Centre the cursor on the anchor
  i            Toggle the info panel

Legend:
  ~~ swamp   .. desert   "" grassland   ^^ mountains
  @@ anchor  ?? pending

Press ? again to close this help`
	return components.HelpStyle.Render(help)
}
