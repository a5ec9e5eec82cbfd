// Package monitor is the live terminal dashboard over the reconciled feed.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/fyrsmithlabs/roadwatch/internal/projection"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
)

const (
	sparklineWidth  = 28
	sparklineHeight = 3
	historyDays     = 14
	leaderboardTop  = 5
	titleWidth      = 44
)

// Store is the part of the store the dashboard reads and drives.
type Store interface {
	Snapshot() *store.State
	Select(id feed.ID) bool
	ClearSelection()
	SetSearch(q string)
	SetLayer(l store.Layer) error
}

// Refresher forces a revalidation of a watched resource, or of every
// resource that refreshes on focus.
type Refresher interface {
	Refresh(ctx context.Context, key scheduler.Key) error
	Focus(ctx context.Context) error
}

// Model is the BubbleTea dashboard model.
type Model struct {
	store     Store
	refresher Refresher
	interval  time.Duration
	now       func() time.Time

	state      *store.State
	rows       []projection.Marker
	cursor     int
	searching  bool
	search     textinput.Model
	help       help.Model
	refreshing bool
	err        error
	quitting   bool
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("45"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	categoryStyles = map[projection.Category]lipgloss.Style{
		projection.CategorySevere:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		projection.CategoryModerate: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		projection.CategoryPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		projection.CategoryCleared:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
	}
)

// NewModel creates a dashboard reading st every interval.
func NewModel(st Store, rf Refresher, interval time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search title or location"
	ti.CharLimit = 100

	m := Model{
		store:     st,
		refresher: rf,
		interval:  interval,
		now:       time.Now,
		search:    ti,
		help:      help.New(),
	}
	return m.reload()
}

// reload takes a fresh snapshot and rebuilds the list, keeping the cursor
// on the selected incident when there is one.
func (m Model) reload() Model {
	m.state = m.store.Snapshot()
	m.rows = nil
	groups := projection.GroupByCategory(projection.Markers(m.state.Incidents, m.state.View.Search, m.now()))
	for _, c := range projection.Categories {
		m.rows = append(m.rows, groups[c]...)
	}
	if sel := m.state.View.Selected; sel != "" {
		for i, r := range m.rows {
			if r.ID == sel {
				m.cursor = i
			}
		}
	}
	m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
	return m
}

// Message types
type tickMsg time.Time
type refreshedMsg struct{ err error }
type focusedMsg struct{ err error }

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tick(m.interval)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	rf := m.refresher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return refreshedMsg{err: rf.Refresh(ctx, scheduler.KeyIncidents)}
	}
}

// focus revalidates the focus-driven resources after the terminal regains
// focus.
func (m Model) focus() tea.Cmd {
	rf := m.refresher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return focusedMsg{err: rf.Focus(ctx)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)

	case tickMsg:
		return m.reload(), tick(m.interval)

	case tea.FocusMsg:
		return m, m.focus()

	case refreshedMsg:
		m.refreshing = false
		m.err = msg.err
		return m.reload(), nil

	case focusedMsg:
		m.err = msg.err
		return m.reload(), nil
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.store.SetSearch(m.search.Value())
		m.cursor = 0
		return m.reload(), nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue(m.state.View.Search)
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Select):
		if m.cursor < len(m.rows) {
			m.store.Select(m.rows[m.cursor].ID)
			return m.reload(), nil
		}
	case key.Matches(msg, keys.Clear):
		m.store.ClearSelection()
		return m.reload(), nil
	case key.Matches(msg, keys.Search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, keys.Layer):
		if err := m.store.SetLayer(m.state.View.Layer.Next()); err != nil {
			m.err = err
		}
		return m.reload(), nil
	case key.Matches(msg, keys.Refresh):
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, m.refresh()
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderIncidents())
	b.WriteString(m.renderDetail())
	b.WriteString(m.renderTrend())
	b.WriteString(m.renderLeaderboard())

	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.search.View() + "\n")
	}
	b.WriteString(m.help.View(keys))
	return containerStyle.Render(b.String())
}

func (m Model) renderHeader() string {
	status := dimStyle.Render("updated " + m.updatedLabel())
	if m.refreshing {
		status = labelStyle.Render("refreshing…")
	}
	line := fmt.Sprintf("%s   %s %s   %s %s   %s",
		headerStyle.Render(" roadwatch "),
		dimStyle.Render("layer:"), valueStyle.Render(string(m.state.View.Layer)),
		dimStyle.Render("poll:"), valueStyle.Render(FormatInterval(m.interval)),
		status)
	out := line + "\n"
	if q := m.state.View.Search; q != "" {
		out += dimStyle.Render("search: ") + valueStyle.Render(q) + "\n"
	}
	if err := m.fetchError(); err != nil {
		out += errorStyle.Render("⚠ "+err.Error()) + "\n"
	}
	return out
}

func (m Model) updatedLabel() string {
	st := m.state.Status(scheduler.KeyIncidents)
	if !st.Loaded {
		return "never"
	}
	return projection.TimeAgo(st.UpdatedAt, m.now())
}

func (m Model) fetchError() error {
	if m.err != nil {
		return m.err
	}
	return m.state.Status(scheduler.KeyIncidents).Err
}

func (m Model) renderIncidents() string {
	out := "\n" + sectionStyle.Render(fmt.Sprintf("┃ Incidents (%d)", len(m.rows))) + "\n"
	if len(m.rows) == 0 {
		if !m.state.Status(scheduler.KeyIncidents).Loaded {
			return out + dimStyle.Render("  loading…") + "\n"
		}
		return out + dimStyle.Render("  no incidents") + "\n"
	}

	var last projection.Category
	for i, r := range m.rows {
		if r.Category != last {
			out += "  " + categoryStyles[r.Category].Render(strings.ToUpper(string(r.Category))) + "\n"
			last = r.Category
		}
		line := fmt.Sprintf("%s %-*s %s", FormatSeverity(r.Severity), titleWidth, Truncate(r.Title, titleWidth), r.Time)
		marker := "  "
		if r.ID == m.state.View.Selected {
			marker = "▸ "
		}
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		out += "  " + marker + line + "\n"
	}
	return out
}

func (m Model) renderDetail() string {
	inc, ok := m.state.SelectedIncident()
	if !ok {
		return ""
	}
	mk := projection.MarkerFor(inc, m.now())
	out := "\n" + sectionStyle.Render("┃ Selected") + "\n"
	out += labelStyle.Render("  ") + valueStyle.Render(mk.Title) + "\n"
	out += labelStyle.Render("  Location: ") + valueStyle.Render(mk.Location) + "\n"
	out += labelStyle.Render("  Status: ") + categoryStyles[mk.Category].Render(string(mk.Status)) +
		labelStyle.Render("  Casualties: ") + valueStyle.Render(fmt.Sprintf("%d injured, %d dead", mk.CasualtiesInjured, mk.CasualtiesDead)) + "\n"
	if mk.ReporterUsername != "" {
		out += labelStyle.Render("  Reported by: ") + valueStyle.Render(mk.ReporterUsername) + dimStyle.Render(" "+mk.Time) + "\n"
	}
	return out
}

func (m Model) renderTrend() string {
	counts := projection.DailyCounts(m.state.Incidents, historyDays, m.now())
	out := "\n" + sectionStyle.Render(fmt.Sprintf("┃ Last %d days", historyDays)) + "\n"
	return out + "  " + createSparkline(counts) + "\n"
}

// createSparkline creates a sparkline chart from daily counts
func createSparkline(data []float64) string {
	empty := true
	for _, v := range data {
		if v > 0 {
			empty = false
			break
		}
	}
	if empty {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	spark.PushAll(data)
	spark.Draw()
	return sparklineStyle.Render(spark.View())
}

func (m Model) renderLeaderboard() string {
	rows := projection.LeaderboardRows(m.state.Leaderboard, "")
	if len(rows) == 0 {
		return ""
	}
	out := "\n" + sectionStyle.Render("┃ Leaderboard") + "\n"
	for _, r := range rows[:min(len(rows), leaderboardTop)] {
		out += fmt.Sprintf("  %s %s %s\n",
			labelStyle.Render(fmt.Sprintf("#%d", r.Rank)),
			valueStyle.Render(r.Username),
			dimStyle.Render(FormatPoints(r.Points)))
	}
	return out
}
