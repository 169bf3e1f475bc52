package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/voxfree/voxfree/internal/tts/engines"
	"github.com/voxfree/voxfree/internal/ttypes"
)

func ids(voices []ttypes.Voice) string {
	var out []string
	for _, v := range voices {
		out = append(out, v.ID)
	}
	return strings.Join(out, ",")
}

func TestFilterVoices(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"", "mock-en,mock-de,mock-fr"},
		{"  ", "mock-en,mock-de,mock-fr"},
		{"german", "mock-de"},
		{"french", "mock-fr"},
		{"fr-FR", "mock-fr"},
		{"zzz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			if got := ids(filterVoices(engines.MockVoices, tt.term)); got != tt.want {
				t.Errorf("filterVoices(%q) = %q, want %q", tt.term, got, tt.want)
			}
		})
	}
}

func TestPickerDebounce(t *testing.T) {
	p := newPickerModel(300 * time.Millisecond)
	p.setVoices(engines.MockVoices)
	p.open()

	for _, r := range "ger" {
		p, _ = p.update(runeKey(r))
	}
	if p.seq != 3 {
		t.Fatalf("seq = %d, want 3", p.seq)
	}
	if len(p.filtered) != 3 {
		t.Errorf("filter applied before the debounce fired: %s", ids(p.filtered))
	}

	// stale tick from the second keystroke
	p, _ = p.update(filterTickMsg{seq: 2})
	if len(p.filtered) != 3 {
		t.Errorf("stale tick applied the filter: %s", ids(p.filtered))
	}

	p, _ = p.update(filterTickMsg{seq: 3})
	if got := ids(p.filtered); got != "mock-de" {
		t.Errorf("filtered = %q, want mock-de", got)
	}
}

func TestPickerWithoutDebounce(t *testing.T) {
	p := newPickerModel(0)
	p.setVoices(engines.MockVoices)
	p.open()

	p, _ = p.update(runeKey('f'))
	p, _ = p.update(runeKey('r'))
	if got := ids(p.filtered); got != "mock-fr" {
		t.Errorf("filtered = %q, want mock-fr", got)
	}
}

func TestPickerCursor(t *testing.T) {
	p := newPickerModel(0)
	p.setVoices(engines.MockVoices)
	p.open()

	down := tea.KeyMsg{Type: tea.KeyDown}
	for i := 0; i < 5; i++ {
		p, _ = p.update(down)
	}
	if v, _ := p.selected(); v.ID != "mock-fr" {
		t.Errorf("cursor should stop at the last voice, got %s", v.ID)
	}

	// narrowing the list keeps the cursor in range
	p, _ = p.update(runeKey('g'))
	p, _ = p.update(runeKey('e'))
	p, _ = p.update(runeKey('r'))
	v, ok := p.selected()
	if !ok || v.ID != "mock-de" {
		t.Errorf("selected = %v %v, want mock-de", v.ID, ok)
	}
}

func TestPickerView(t *testing.T) {
	p := newPickerModel(0)
	p.setVoices(engines.MockVoices)
	p.open()

	view := p.view("mock-de")
	for _, want := range []string{"mock-en", "Mock German (de-DE) •", "Mock French"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	p.setVoices(nil)
	if !strings.Contains(p.view(""), "no matching voices") {
		t.Error("empty list not reported")
	}
}
