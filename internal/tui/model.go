package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/table"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"tasnim.dev/vpcctl/internal/topology"
	"tasnim.dev/vpcctl/internal/tui/theme"
	"tasnim.dev/vpcctl/internal/utils"
)

// Loader fetches the current topology.
type Loader func(ctx context.Context) (*topology.State, error)

// Messages
type stateMsg struct{ state *topology.State }
type errMsg struct{ err error }

type rowKey struct {
	vpc    string
	subnet string
}

// Model is the read-only topology browser.
type Model struct {
	load    Loader
	source  string
	state   *topology.State
	keys    []rowKey
	err     error
	loading bool
	spinner spinner.Model
	table   table.Model
	width   int
	height  int

	// Subnet drill-down
	detail *rowKey
}

var columns = []table.Column{
	{Title: "VPC", Width: 14},
	{Title: "Subnet", Width: 14},
	{Title: "CIDR", Width: 20},
	{Title: "Type", Width: 9},
	{Title: "IP", Width: 16},
	{Title: "Namespace", Width: 14},
}

// NewModel creates a browser reading topology through load. source labels
// the state location in the header.
func NewModel(load Loader, source string) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithWidth(95),
	)
	t.SetStyles(theme.DefaultTableStyles())

	return Model{
		load:    load,
		source:  source,
		loading: true,
		spinner: theme.NewSpinner(),
		table:   t,
		width:   100,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		st, err := load(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return stateMsg{state: st}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		case "esc":
			if m.detail != nil {
				m.detail = nil
				return m, nil
			}
		case "enter":
			if m.detail == nil {
				if k, ok := m.selected(); ok && k.subnet != "" {
					m.detail = &k
				}
				return m, nil
			}
		}

	case stateMsg:
		m.state = msg.state
		m.loading = false
		m.detail = nil
		rows, keys := buildRows(msg.state)
		m.keys = keys
		m.table.SetRows(rows)
		m.table.SetCursor(0)
		return m, nil

	case errMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(m.width-4, 40))
		m.table.SetHeight(min(max(m.height-12, 3), 20))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selected() (rowKey, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.keys) {
		return rowKey{}, false
	}
	return m.keys[i], true
}

func (m Model) renderHeader() string {
	parts := []string{theme.TitleStyle.Render("vpcctl topology"), "   "}
	if m.source != "" {
		parts = append(parts, theme.MutedStyle.Render("state: ")+m.source)
	}
	if m.state != nil {
		parts = append(parts, "   ", theme.MutedStyle.Render(fmt.Sprintf("%d vpcs, %d peerings", len(m.state.VPCs), len(m.state.Peerings))))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) View() tea.View {
	header := m.renderHeader()

	var content string
	switch {
	case m.loading:
		content = header + "\n\n" + theme.LoadingStyle.Render(m.spinner.View()+" Loading topology...") + "\n"
	case m.err != nil:
		content = header + "\n\n" + theme.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) +
			"\n\n" + theme.HelpStyle.Render("Press r to retry • q to quit")
	case m.state == nil || len(m.state.VPCs) == 0:
		content = theme.HeaderStyle.Render(header) + "\n\n" + theme.MutedStyle.Render("No VPCs found.") +
			"\n" + theme.HelpStyle.Render("r refresh • q quit")
	case m.detail != nil:
		content = theme.HeaderStyle.Render(header) + "\n\n" + theme.DashboardBoxStyle.Render(strings.TrimRight(m.renderDetail(), "\n")) + "\n" +
			theme.HelpStyle.Render("Esc back • q quit")
	default:
		content = theme.HeaderStyle.Render(header) + "\n\n" + m.table.View() + "\n" +
			m.renderPeerings() +
			theme.HelpStyle.Render("Enter subnet detail • r refresh • q quit")
	}

	v := tea.NewView(theme.DashboardStyle.Render(content))
	v.AltScreen = true
	return v
}

func (m Model) renderDetail() string {
	v, s, err := m.state.Subnet(m.detail.vpc, m.detail.subnet)
	if err != nil {
		return theme.ErrorStyle.Render(err.Error()) + "\n"
	}
	return DescribeSubnet(v, s)
}

func (m Model) renderPeerings() string {
	if len(m.state.Peerings) == 0 {
		return ""
	}
	out := "\n" + theme.SectionStyle.Render("Peerings") + "\n"
	for p := range m.state.AllPeerings() {
		out += fmt.Sprintf("  %s %s <-> %s\n", theme.RenderStatus("peered"), p.First, p.Second)
	}
	return out
}

// buildRows flattens the topology into one row per subnet. A VPC without
// subnets still gets a row so it remains visible.
func buildRows(st *topology.State) ([]table.Row, []rowKey) {
	var rows []table.Row
	var keys []rowKey
	for v := range st.ListVPCs() {
		if len(v.Subnets) == 0 {
			rows = append(rows, table.Row{v.Name, "—", v.CIDR, "—", v.BridgeIP, "—"})
			keys = append(keys, rowKey{vpc: v.Name})
			continue
		}
		for s := range v.ListSubnets() {
			rows = append(rows, table.Row{v.Name, s.Name, s.CIDR, string(s.Type), s.IP, utils.OrDash(s.Namespace)})
			keys = append(keys, rowKey{vpc: v.Name, subnet: s.Name})
		}
	}
	return rows, keys
}
