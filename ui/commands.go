package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/voxfree/voxfree/internal/export"
	"github.com/voxfree/voxfree/internal/tts"
	"github.com/voxfree/voxfree/internal/ttypes"
)

type (
	errMsg struct{ err error }

	// utteranceEventMsg relays a controller event.
	utteranceEventMsg ttypes.UtteranceEvent
	eventsClosedMsg   struct{}

	speakStartedMsg struct {
		utterance *tts.Utterance
		err       error
	}

	controlDoneMsg struct{ err error }

	voicesLoadedMsg struct {
		voices []ttypes.Voice
		err    error
	}

	exportProgressMsg export.Attempt

	exportDoneMsg struct {
		result *export.Result
		path   string
		err    error
	}

	statusMessageTimeoutMsg struct{ seq int }
)

func (e errMsg) Error() string { return e.err.Error() }

// waitForEvent delivers the next controller event. It has to be issued
// again after every event.
func waitForEvent(ch <-chan ttypes.UtteranceEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return utteranceEventMsg(ev)
	}
}

// waitForProgress delivers the next export attempt.
func waitForProgress(ch <-chan export.Attempt) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		a, ok := <-ch
		if !ok {
			return nil
		}
		return exportProgressMsg(a)
	}
}

func speakCmd(c *tts.Controller, req ttypes.SpeechRequest) tea.Cmd {
	return func() tea.Msg {
		u, err := c.Speak(context.Background(), req)
		return speakStartedMsg{utterance: u, err: err}
	}
}

func cancelCmd(c *tts.Controller) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{err: c.Cancel()}
	}
}

func togglePauseCmd(c *tts.Controller) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{err: c.TogglePause()}
	}
}

func loadVoicesCmd(c *tts.Controller, refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var (
			voices []ttypes.Voice
			err    error
		)
		if refresh {
			voices, err = c.RefreshVoices(ctx)
		} else {
			voices, err = c.Voices(ctx)
		}
		if err != nil {
			log.Error("unable to list voices", "error", err)
		}
		return voicesLoadedMsg{voices: voices, err: err}
	}
}

// exportCmd runs the export and saves the audio.
func exportCmd(ctx context.Context, ex Exporter, sv Saver, text, lang string) tea.Cmd {
	return func() tea.Msg {
		res, err := ex.Export(ctx, text, lang)
		if err != nil {
			return exportDoneMsg{result: res, err: err}
		}
		path, err := sv.Save(res.Audio)
		if err != nil {
			return exportDoneMsg{
				result: res,
				err:    tts.NewTTSError(tts.ErrorCodeSaveFailed, "could not save the audio", err),
			}
		}
		return exportDoneMsg{result: res, path: path}
	}
}

func waitForStatusMessageTimeout(seq int) tea.Cmd {
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{seq: seq}
	})
}
