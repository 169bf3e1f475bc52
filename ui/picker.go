package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/voxfree/voxfree/internal/ttypes"
)

const pickerMaxRows = 8

// filterTickMsg fires once the filter input has been quiet for the debounce
// interval. Ticks carrying an older seq are stale and ignored.
type filterTickMsg struct{ seq int }

// voiceSource adapts a voice list to fuzzy.Source.
type voiceSource []ttypes.Voice

func (s voiceSource) String(i int) string {
	v := s[i]
	return v.ID + " " + v.Name + " " + v.Language
}

func (s voiceSource) Len() int { return len(s) }

// filterVoices returns the voices matching term, best match first. An empty
// term keeps every voice in its original order.
func filterVoices(voices []ttypes.Voice, term string) []ttypes.Voice {
	term = strings.TrimSpace(term)
	if term == "" {
		return voices
	}
	matches := fuzzy.FindFrom(term, voiceSource(voices))
	out := make([]ttypes.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

type pickerModel struct {
	input    textinput.Model
	debounce time.Duration

	voices   []ttypes.Voice
	filtered []ttypes.Voice
	cursor   int

	// seq increases on every edit of the filter input
	seq     int
	applied string
}

func newPickerModel(debounce time.Duration) pickerModel {
	ti := textinput.New()
	ti.Prompt = "Voice: "
	ti.Placeholder = "type to filter"
	ti.PromptStyle = selectedStyle
	ti.CharLimit = 64
	return pickerModel{input: ti, debounce: debounce}
}

func (m *pickerModel) setVoices(voices []ttypes.Voice) {
	m.voices = voices
	m.applyFilter()
}

func (m *pickerModel) open() tea.Cmd {
	m.input.SetValue("")
	m.applied = ""
	m.filtered = m.voices
	m.cursor = 0
	return m.input.Focus()
}

func (m *pickerModel) close() {
	m.input.Blur()
}

func (m *pickerModel) applyFilter() {
	m.applied = m.input.Value()
	m.filtered = filterVoices(m.voices, m.applied)
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// selected returns the voice under the cursor.
func (m pickerModel) selected() (ttypes.Voice, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return ttypes.Voice{}, false
	}
	return m.filtered[m.cursor], true
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case filterTickMsg:
		if msg.seq == m.seq && m.input.Value() != m.applied {
			m.applyFilter()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "ctrl+k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}

	m.seq++
	seq := m.seq
	if m.debounce <= 0 {
		m.applyFilter()
		return m, cmd
	}
	return m, tea.Batch(cmd, tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return filterTickMsg{seq: seq}
	}))
}

func (m pickerModel) view(current string) string {
	var b strings.Builder
	b.WriteString(m.input.View() + "\n")

	if len(m.filtered) == 0 {
		b.WriteString(subtleStyle.Render("  no matching voices"))
		return b.String()
	}

	start := 0
	if m.cursor >= pickerMaxRows {
		start = m.cursor - pickerMaxRows + 1
	}
	end := min(len(m.filtered), start+pickerMaxRows)
	idWidth := 0
	for _, v := range m.filtered[start:end] {
		idWidth = max(idWidth, runewidth.StringWidth(v.ID))
	}
	for i := start; i < end; i++ {
		v := m.filtered[i]
		line := fmt.Sprintf("%s  %s (%s)", padRight(v.ID, idWidth), v.Name, v.Language)
		if v.ID == current {
			line += " •"
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	if len(m.filtered) > end {
		b.WriteString("\n" + subtleStyle.Render(fmt.Sprintf("  %d more", len(m.filtered)-end)))
	}
	return b.String()
}
