package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/printlab/arcpress/pkg/orders"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// OrderListModel is the bubbletea model for the pre-batch order review: every
// order starts included, space toggles, enter confirms, q aborts.
type OrderListModel struct {
	Orders    []orders.Request
	Excluded  map[int]bool
	Cursor    int
	Confirmed bool
	Height    int
	Offset    int
}

// NewOrderListModel creates a review model with all orders included.
func NewOrderListModel(reqs []orders.Request) OrderListModel {
	return OrderListModel{
		Orders:   reqs,
		Excluded: make(map[int]bool),
		Height:   15,
	}
}

// Included returns the orders that remain included, in input order.
func (m OrderListModel) Included() []orders.Request {
	var kept []orders.Request
	for i, r := range m.Orders {
		if !m.Excluded[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

func (m OrderListModel) Init() tea.Cmd {
	return nil
}

func (m OrderListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
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
			if m.Cursor < len(m.Orders)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ":
			m.Excluded[m.Cursor] = !m.Excluded[m.Cursor]
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m OrderListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Review Orders"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  ⏎ start batch  q abort"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Orders) {
		end = len(m.Orders)
	}

	included := 0
	for i := range m.Orders {
		if !m.Excluded[i] {
			included++
		}
	}

	for i := m.Offset; i < end; i++ {
		r := m.Orders[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}

		mark := StyleSuccess.Render("[x]")
		if m.Excluded[i] {
			mark = listDimStyle.Render("[ ]")
		}

		text := r.Personalization
		if text == "" {
			text = listDimStyle.Render("(no text)")
		}
		line := fmt.Sprintf("%s%s %-20s  %s", cursor, mark, r.CharacterID, text)

		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case m.Excluded[i]:
			b.WriteString(listDimStyle.Render(line))
		default:
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d/%d included", included, len(m.Orders))))

	return b.String()
}
