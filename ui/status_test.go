package ui

import (
	"strings"
	"testing"

	"github.com/muesli/reflow/ansi"
	"github.com/voxfree/voxfree/internal/ttypes"
)

func TestStatusBarFillsWidth(t *testing.T) {
	tests := []struct {
		name    string
		message string
		speech  ttypes.State
		want    string
	}{
		{"idle", "", ttypes.StateIdle, "ctrl+s speak"},
		{"speaking", "", ttypes.StateSpeaking, "Speaking"},
		{"paused", "", ttypes.StatePaused, "Paused"},
		{"failed", "", ttypes.StateError, "Speech failed"},
		{"message", "Saved out.mp3", ttypes.StateSpeaking, "Saved out.mp3"},
		{"long message", "Saved " + strings.Repeat("x", 200) + ".mp3", ttypes.StateIdle, ellipsis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, Deps{})
			m.statusMessage = tt.message
			m.speech = tt.speech

			var b strings.Builder
			m.statusBarView(&b)
			bar := b.String()

			if w := ansi.PrintableRuneWidth(bar); w != 100 {
				t.Errorf("status bar width = %d, want 100", w)
			}
			if !strings.Contains(bar, tt.want) {
				t.Errorf("status bar %q does not contain %q", bar, tt.want)
			}
			if !strings.Contains(bar, "1.00x · pitch 1.00 · vol 100%") {
				t.Error("speech parameters missing")
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"ab", 4, "ab  "},
		{"abcd", 2, "abcd"},
		{"日本", 6, "日本  "},
	}
	for _, tt := range tests {
		if got := padRight(tt.in, tt.width); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestIndent(t *testing.T) {
	if got := indent("a\nb", 2); got != "  a\n  b\n" {
		t.Errorf("indent = %q", got)
	}
	if got := indent("a", 0); got != "a" {
		t.Errorf("indent with 0 = %q", got)
	}
}
