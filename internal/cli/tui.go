package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/plcpack/pkg/protocol"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listCheckedStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// searchFunc returns the next batch of search results.
type searchFunc func(ctx context.Context) ([]protocol.CatalogItem, error)

// resultsMsg delivers a batch loaded in the background.
type resultsMsg struct {
	items []protocol.CatalogItem
	err   error
}

// PackagePicker is the bubbletea model of the interactive search. It loads
// more results whenever the cursor reaches the end of the list.
type PackagePicker struct {
	Items   []protocol.CatalogItem
	Cursor  int
	Offset  int
	Height  int
	Checked map[int]bool
	// Confirmed is set when the user accepted the selection with enter.
	Confirmed bool
	Err       error

	ctx       context.Context
	more      searchFunc
	exhausted func() bool
	loading   bool
}

// NewPackagePicker creates a picker that pulls results from more.
func NewPackagePicker(ctx context.Context, more searchFunc, exhausted func() bool) PackagePicker {
	return PackagePicker{
		Height:    15,
		Checked:   map[int]bool{},
		ctx:       ctx,
		more:      more,
		exhausted: exhausted,
		loading:   true,
	}
}

func (m PackagePicker) load() tea.Cmd {
	return func() tea.Msg {
		items, err := m.more(m.ctx)
		return resultsMsg{items: items, err: err}
	}
}

func (m PackagePicker) Init() tea.Cmd {
	return m.load()
}

func (m PackagePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultsMsg:
		m.loading = false
		m.Items = append(m.Items, msg.items...)
		if msg.err != nil {
			m.Err = msg.err
			return m, tea.Quit
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ":
			if len(m.Items) > 0 {
				m.Checked[m.Cursor] = !m.Checked[m.Cursor]
			}
		case "enter":
			if len(m.Items) == 0 {
				return m, nil
			}
			if len(m.Selected()) == 0 {
				m.Checked[m.Cursor] = true
			}
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}

	if !m.loading && m.Cursor >= len(m.Items)-1 && !m.exhausted() {
		m.loading = true
		return m, m.load()
	}
	return m, nil
}

// Selected returns the checked items in list order.
func (m PackagePicker) Selected() []protocol.CatalogItem {
	var out []protocol.CatalogItem
	for i, it := range m.Items {
		if m.Checked[i] {
			out = append(out, it)
		}
	}
	return out
}

func (m PackagePicker) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Packages"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  ⏎ add  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Items))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		it := m.Items[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if m.Checked[i] {
			check = "[x]"
		}
		source := ""
		if it.Server != nil {
			source = it.Server.Name()
		}
		rows = append(rows, []string{cursor + check, it.Name, it.DistributorName, strconv.Itoa(it.Downloads), source, truncate(it.Description, 40)})
	}

	b.WriteString(renderTable([]string{"", "Package", "Distributor", "Downloads", "Source", "Description"}, rows, func(row, col int) lipgloss.Style {
		idx := m.Offset + row
		switch {
		case idx == m.Cursor:
			return listSelectedStyle
		case m.Checked[idx]:
			return listCheckedStyle
		case col == 1:
			return lipgloss.NewStyle().Foreground(colorWhite)
		}
		return listDimStyle
	}))
	b.WriteString("\n\n")

	status := fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Items)), len(m.Items))
	if m.loading {
		status += "  loading..."
	} else if !m.exhausted() {
		status += "  more below"
	}
	b.WriteString(listDimStyle.Render(status))
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
