package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/printlab/arcpress/pkg/orders"
)

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func reviewRequests() []orders.Request {
	return []orders.Request{
		{Sequence: 0, CharacterID: "dog-a", Personalization: "Amy"},
		{Sequence: 1, CharacterID: "dog-b", Personalization: "Ben"},
		{Sequence: 2, CharacterID: "boat-x", Personalization: "The Smiths"},
	}
}

func TestOrderListAllIncludedByDefault(t *testing.T) {
	m := NewOrderListModel(reviewRequests())
	if got := m.Included(); len(got) != 3 {
		t.Errorf("included = %d, want 3", len(got))
	}
}

func TestOrderListToggle(t *testing.T) {
	m := NewOrderListModel(reviewRequests())

	next, _ := m.Update(key(" "))
	m = next.(OrderListModel)
	if got := m.Included(); len(got) != 2 || got[0].CharacterID != "dog-b" {
		t.Errorf("after toggling first: %+v", got)
	}

	// Toggling again re-includes.
	next, _ = m.Update(key(" "))
	m = next.(OrderListModel)
	if got := m.Included(); len(got) != 3 {
		t.Errorf("after re-toggle: %d included", len(got))
	}
}

func TestOrderListCursorAndConfirm(t *testing.T) {
	m := NewOrderListModel(reviewRequests())

	next, _ := m.Update(key("j"))
	m = next.(OrderListModel)
	next, _ = m.Update(key(" "))
	m = next.(OrderListModel)

	next, cmd := m.Update(key("enter"))
	m = next.(OrderListModel)
	if !m.Confirmed {
		t.Error("enter should confirm")
	}
	if cmd == nil {
		t.Error("enter should quit the program")
	}

	got := m.Included()
	if len(got) != 2 {
		t.Fatalf("included = %+v", got)
	}
	if got[0].CharacterID != "dog-a" || got[1].CharacterID != "boat-x" {
		t.Errorf("wrong orders survived: %+v", got)
	}
}

func TestOrderListAbort(t *testing.T) {
	m := NewOrderListModel(reviewRequests())
	next, cmd := m.Update(key("q"))
	m = next.(OrderListModel)
	if m.Confirmed {
		t.Error("q must not confirm")
	}
	if cmd == nil {
		t.Error("q should quit the program")
	}
}

func TestOrderListViewRenders(t *testing.T) {
	m := NewOrderListModel(reviewRequests())
	view := m.View()
	if view == "" {
		t.Fatal("empty view")
	}
}
