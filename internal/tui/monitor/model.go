// Package monitor is the live sync dashboard: queue depths, failed actions,
// identity reconciliations, and connectivity, refreshed on an interval.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/models"
)

// Panel represents which panel is active
type Panel int

const (
	PanelQueue Panel = iota
	PanelFailed
	PanelReconciliations
)

// MirrorCounts holds per-kind record totals for the footer.
type MirrorCounts struct {
	Total   int
	Pending int
}

// Model is the main Bubble Tea model for the monitor TUI
type Model struct {
	DB     *db.DB
	Online func() bool

	// Window dimensions
	Width  int
	Height int

	// Panel data
	Queue           []models.Action
	Failed          []models.Action
	Reconciliations []models.Reconciliation
	Counts          map[models.ActionStatus]int64
	Mirror          map[models.EntityKind]MirrorCounts
	IsOnline        bool

	// UI state
	ActivePanel  Panel
	ScrollOffset map[Panel]int
	ShowHelp     bool
	LastRefresh  time.Time
	Spinner      spinner.Model
	Err          error

	// Configuration
	RefreshInterval time.Duration
}

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 15

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshDataMsg carries refreshed data
type RefreshDataMsg struct {
	Queue           []models.Action
	Failed          []models.Action
	Reconciliations []models.Reconciliation
	Counts          map[models.ActionStatus]int64
	Mirror          map[models.EntityKind]MirrorCounts
	IsOnline        bool
	Err             error
	Timestamp       time.Time
}

// NewModel creates a new monitor model
func NewModel(database *db.DB, online func() bool, interval time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		DB:              database,
		Online:          online,
		RefreshInterval: interval,
		ScrollOffset:    make(map[Panel]int),
		ActivePanel:     PanelQueue,
		Spinner:         sp,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.scheduleTick(),
		m.Spinner.Tick,
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case RefreshDataMsg:
		m.Queue = msg.Queue
		m.Failed = msg.Failed
		m.Reconciliations = msg.Reconciliations
		m.Counts = msg.Counts
		m.Mirror = msg.Mirror
		m.IsOnline = msg.IsOnline
		m.Err = msg.Err
		m.LastRefresh = msg.Timestamp
		return m, nil
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.ActivePanel = (m.ActivePanel + 1) % 3
		return m, nil

	case "shift+tab":
		m.ActivePanel = (m.ActivePanel + 2) % 3
		return m, nil

	case "1":
		m.ActivePanel = PanelQueue
		return m, nil

	case "2":
		m.ActivePanel = PanelFailed
		return m, nil

	case "3":
		m.ActivePanel = PanelReconciliations
		return m, nil

	case "j", "down":
		m.ScrollOffset[m.ActivePanel]++
		return m, nil

	case "k", "up":
		if m.ScrollOffset[m.ActivePanel] > 0 {
			m.ScrollOffset[m.ActivePanel]--
		}
		return m, nil

	case "r":
		return m, m.fetchData()

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that fetches all data and sends a RefreshDataMsg
func (m Model) fetchData() tea.Cmd {
	return func() tea.Msg {
		return FetchData(m.DB, m.Online)
	}
}
