package ui

import (
	"fmt"
	"strings"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/voxfree/voxfree/internal/ttypes"
)

// speechNote describes what the voice engine is doing.
func (m model) speechNote() string {
	switch m.speech {
	case ttypes.StatePending:
		return "Preparing speech…"
	case ttypes.StateSpeaking:
		return "▶ Speaking"
	case ttypes.StatePaused:
		return "⏸ Paused"
	case ttypes.StateError:
		return "✗ Speech failed"
	default:
		return "ctrl+s speak · ctrl+e export"
	}
}

// exportNote describes the export in flight.
func (m model) exportNote() string {
	s := m.spinner.View() + " Exporting"
	if a := m.lastAttempt; a != nil {
		s += fmt.Sprintf(" · chunk %d, proxy %d, pass %d: %s", a.Chunk+1, a.Proxy+1, a.Pass+1, a.Outcome())
	}
	switch {
	case m.attempts == 1:
		s += " · 1 attempt"
	case m.attempts > 1:
		s += fmt.Sprintf(" · %d attempts", m.attempts)
	}
	return s
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	// Logo
	logo := logoView()

	// Speech parameters
	params := " " + m.tuner.Display() + " "
	if showStatusMessage {
		params = statusBarMessageParamsStyle(params)
	} else {
		params = statusBarParamsStyle(params)
	}

	// "Help" note
	var helpNote string
	if showStatusMessage {
		helpNote = statusBarMessageHelpStyle(" f1 Help ")
	} else {
		helpNote = statusBarHelpStyle(" f1 Help ")
	}

	// Note
	var note string
	switch {
	case showStatusMessage:
		note = m.statusMessage
	case m.exporting:
		note = m.exportNote()
	default:
		note = m.speechNote()
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(params)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(params)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		params,
		helpNote,
	)
}

// padRight pads s with spaces to width cells.
func padRight(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
