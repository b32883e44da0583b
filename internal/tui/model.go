package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/logging"
)

// Key bindings.
const (
	keyQuit  = "q"
	keyCtrlC = "ctrl+c"
	keyEnter = "enter"
	keyEsc   = "esc"
	keyS     = "s"
)

// ViewState is the screen currently shown.
type ViewState int

// View states.
const (
	ViewStateLoading ViewState = iota
	ViewStateList
	ViewStateDetail
	ViewStateQuitting
	ViewStateError
)

// SortField orders the entity table.
type SortField int

// Sort fields, cycled with "s".
const (
	SortByCost SortField = iota
	SortByName
	SortByEfficiency
	SortByAnomalies
	numSortFields
)

func (f SortField) String() string {
	switch f {
	case SortByName:
		return "name"
	case SortByEfficiency:
		return "efficiency"
	case SortByAnomalies:
		return "anomalies"
	default:
		return "cost"
	}
}

// LoadFunc produces the analyses shown by the dashboard.
type LoadFunc func(ctx context.Context) ([]*engine.Analysis, error)

// AnalysesLoadedMsg carries the result of a LoadFunc.
type AnalysesLoadedMsg struct {
	Analyses []*engine.Analysis
}

// LoadFailedMsg reports a LoadFunc error.
type LoadFailedMsg struct {
	Err error
}

// Model is the Bubble Tea model for the interactive cost dashboard: a
// ranked entity table with a per-entity detail screen.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View.
type Model struct {
	ctx  context.Context
	load LoadFunc

	state    ViewState
	analyses []*engine.Analysis // ranking order, source of truth
	rows     []*engine.Analysis // sorted view
	selected int

	table   table.Model
	spinner spinner.Model
	width   int
	height  int
	sortBy  SortField
	err     error
}

// NewModel returns a dashboard over precomputed analyses.
func NewModel(ctx context.Context, analyses []*engine.Analysis) Model {
	m := newModel(ctx)
	m.setAnalyses(analyses)
	return m
}

// NewLoadingModel returns a dashboard that shows a spinner while load runs.
func NewLoadingModel(ctx context.Context, load LoadFunc) Model {
	m := newModel(ctx)
	m.load = load
	m.state = ViewStateLoading
	return m
}

func newModel(ctx context.Context) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = InfoStyle
	return Model{
		ctx:     ctx,
		state:   ViewStateList,
		spinner: s,
		width:   defaultWidth,
		height:  defaultHeight,
		sortBy:  SortByCost,
	}
}

// Init starts the spinner and the loader when one is set.
func (m Model) Init() tea.Cmd {
	if m.state != ViewStateLoading || m.load == nil {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m Model) loadCmd() tea.Cmd {
	ctx, load := m.ctx, m.load
	return func() tea.Msg {
		analyses, err := load(ctx)
		if err != nil {
			return LoadFailedMsg{Err: err}
		}
		return AnalysesLoadedMsg{Analyses: analyses}
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuildTable()
		return m, nil
	case AnalysesLoadedMsg:
		m.setAnalyses(msg.Analyses)
		m.state = ViewStateList
		return m, nil
	case LoadFailedMsg:
		logging.FromContext(m.ctx).Error().Ctx(m.ctx).
			Str("component", "tui").
			Err(msg.Err).
			Msg("loading analyses failed")
		m.err = msg.Err
		m.state = ViewStateError
		return m, nil
	}

	switch m.state {
	case ViewStateLoading:
		return m.handleLoadingUpdate(msg)
	case ViewStateList:
		return m.handleListUpdate(msg)
	case ViewStateDetail:
		return m.handleDetailUpdate(msg)
	case ViewStateError:
		return m.handleQuitOnly(msg)
	default:
		return m, nil
	}
}

func (m Model) handleLoadingUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == keyCtrlC {
		m.state = ViewStateQuitting
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m Model) handleListUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case keyQuit, keyCtrlC:
		m.state = ViewStateQuitting
		return m, tea.Quit
	case keyEnter:
		m.selected = m.table.Cursor()
		if m.selected >= 0 && m.selected < len(m.rows) {
			m.state = ViewStateDetail
		}
		return m, nil
	case keyS:
		m.sortBy = (m.sortBy + 1) % numSortFields
		m.refreshTable()
		return m, nil
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(keyMsg)
		return m, cmd
	}
}

func (m Model) handleDetailUpdate(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyQuit, keyCtrlC:
			m.state = ViewStateQuitting
			return m, tea.Quit
		case keyEsc:
			m.state = ViewStateList
			m.table.Focus()
			return m, nil
		}
	}
	return m, nil
}

func (m Model) handleQuitOnly(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyQuit, keyCtrlC, keyEsc:
			m.state = ViewStateQuitting
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the current screen.
func (m Model) View() string {
	switch m.state {
	case ViewStateLoading:
		return fmt.Sprintf("\n %s Analyzing cost data...\n\n", m.spinner.View())
	case ViewStateError:
		return CriticalStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" +
			SubtleStyle.Render("Press q to quit.") + "\n"
	case ViewStateDetail:
		if a := m.Selected(); a != nil {
			return RenderDetailView(a, m.width) + "\n" +
				SubtleStyle.Render("esc: back  q: quit") + "\n"
		}
		return ""
	case ViewStateQuitting:
		return ""
	default:
		var b strings.Builder
		b.WriteString(RenderCostSummary(m.ranking(), m.width))
		b.WriteString("\n")
		b.WriteString(m.table.View())
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render(fmt.Sprintf(
			"enter: details  s: sort (%s)  q: quit", m.sortBy)))
		b.WriteString("\n")
		return b.String()
	}
}

// State returns the current screen.
func (m Model) State() ViewState { return m.state }

// Selected returns the analysis shown on the detail screen, or nil.
func (m Model) Selected() *engine.Analysis {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return nil
	}
	return m.rows[m.selected]
}

// Rows returns the analyses in current display order.
func (m Model) Rows() []*engine.Analysis { return m.rows }

func (m *Model) setAnalyses(analyses []*engine.Analysis) {
	m.analyses = analyses
	m.rows = make([]*engine.Analysis, len(analyses))
	copy(m.rows, analyses)
	m.refreshTable()
}

// ranking returns the shared ranking carried by the analyses.
func (m Model) ranking() []engine.EntitySummary {
	if len(m.analyses) == 0 {
		return nil
	}
	return m.analyses[0].Ranking
}

func (m *Model) refreshTable() {
	rows := m.rows
	switch m.sortBy {
	case SortByCost:
		order := make(map[string]int, len(m.analyses))
		for i, a := range m.analyses {
			order[a.Entity] = i
		}
		sort.SliceStable(rows, func(i, j int) bool { return order[rows[i].Entity] < order[rows[j].Entity] })
	case SortByName:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Entity < rows[j].Entity })
	case SortByEfficiency:
		// Undefined indexes sort last.
		sort.SliceStable(rows, func(i, j int) bool {
			vi, oki := rows[i].Efficiency.Value.Get()
			vj, okj := rows[j].Efficiency.Value.Get()
			if oki != okj {
				return oki
			}
			return vi < vj
		})
	case SortByAnomalies:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].AnomalyCount() > rows[j].AnomalyCount() })
	}
	m.rebuildTable()
}

func (m *Model) rebuildTable() {
	h := m.height - summaryHeight - 1
	if h < minHeight {
		h = minHeight
	}
	m.table = NewRankingTable(m.rows, h)
}

// Run starts the interactive program and blocks until the user quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run interactive TUI: %w", err)
	}
	return nil
}
