// Package ui provides the interactive terminal UI for voxfree.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/voxfree/voxfree/internal/export"
	"github.com/voxfree/voxfree/internal/tts"
	"github.com/voxfree/voxfree/internal/ttypes"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "saved"
	ellipsis             = "…"
	eventBuffer          = 32
)

// Exporter turns text into audio through the remote endpoint.
type Exporter interface {
	Export(ctx context.Context, text, lang string) (*export.Result, error)
}

// Saver stores exported audio and returns where it went.
type Saver interface {
	Save(audio []byte) (string, error)
}

// Deps are the services the UI drives.
type Deps struct {
	Controller *tts.Controller
	Exporter   Exporter
	Saver      Saver
	// Progress receives export attempts as they finish; optional
	Progress <-chan export.Attempt
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug(
		"Starting voxfree",
		"engine", cfg.Engine,
		"alt_screen", cfg.AltScreen,
		"filter_debounce", cfg.FilterDebounce,
	)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

// state is the top-level application state.
type state int

const (
	stateEditing state = iota
	statePicking
)

func (s state) String() string {
	return map[state]string{
		stateEditing: "editing text",
		statePicking: "picking a voice",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common   *commonModel
	deps     Deps
	state    state
	fatalErr error

	// Sub-models
	editor  textarea.Model
	picker  pickerModel
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	tuner   *tts.Tuner
	voiceID string

	// Speech, as reported by controller events. The controller drops
	// events of superseded utterances, so they are applied in order.
	speech    ttypes.State
	utterance string
	events    <-chan ttypes.UtteranceEvent

	// Export in flight
	exporting    bool
	cancelExport context.CancelFunc
	lastAttempt  *export.Attempt
	attempts     int

	notification tts.Notification
	manualURL    string

	showHelp      bool
	statusMessage string
	statusSeq     int
}

func newModel(cfg Config, deps Deps) model {
	common := &commonModel{cfg: cfg}

	ta := textarea.New()
	ta.Placeholder = "Type or paste text to speak…"
	ta.ShowLineNumbers = false
	ta.CharLimit = cfg.MaxTextLength
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	m := model{
		common:  common,
		deps:    deps,
		state:   stateEditing,
		editor:  ta,
		picker:  newPickerModel(cfg.FilterDebounce),
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
		tuner:   tts.NewTuner(cfg.Rate, cfg.Pitch, cfg.Volume),
		voiceID: cfg.Voice,
		speech:  ttypes.StateIdle,
	}

	if deps.Controller == nil {
		m.fatalErr = fmt.Errorf("no voice engine available")
		return m
	}
	m.events, _ = deps.Controller.Subscribe(eventBuffer)
	return m
}

func (m model) Init() tea.Cmd {
	if m.fatalErr != nil {
		return nil
	}
	return tea.Batch(
		textarea.Blink,
		waitForEvent(m.events),
		waitForProgress(m.deps.Progress),
		loadVoicesCmd(m.deps.Controller, false),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.setSize()
		return m, nil

	case errMsg:
		m.fatalErr = msg.err
		return m, nil

	case utteranceEventMsg:
		m.handleEvent(ttypes.UtteranceEvent(msg))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case speakStartedMsg:
		if msg.err != nil {
			m.speech = ttypes.StateError
			m.notify(msg.err)
			return m, nil
		}
		m.utterance = msg.utterance.ID
		select {
		case <-msg.utterance.Done():
			// already finished, its events came in first
		default:
			if m.speech != ttypes.StateSpeaking && m.speech != ttypes.StatePaused {
				m.speech = ttypes.StatePending
			}
		}
		return m, nil

	case controlDoneMsg:
		if msg.err != nil {
			log.Debug("control ignored", "error", msg.err)
		}
		return m, nil

	case voicesLoadedMsg:
		if msg.err != nil {
			m.notify(msg.err)
			return m, nil
		}
		m.picker.setVoices(msg.voices)
		if m.voiceID == "" {
			for _, v := range msg.voices {
				if v.Default {
					m.voiceID = v.ID
					break
				}
			}
		}
		return m, m.showStatusMessage(fmt.Sprintf("%d voices", len(msg.voices)))

	case exportProgressMsg:
		a := export.Attempt(msg)
		m.lastAttempt = &a
		m.attempts++
		return m, waitForProgress(m.deps.Progress)

	case exportDoneMsg:
		return m, m.finishExport(msg)

	case configReloadedMsg:
		return m, m.reloadConfig(msg)

	case spinner.TickMsg:
		if !m.exporting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMessageTimeoutMsg:
		if msg.seq == m.statusSeq {
			m.statusMessage = ""
		}
		return m, nil

	case filterTickMsg:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.update(msg)
		return m, cmd
	}

	// Process children
	switch m.state {
	case statePicking:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.update(msg)
		cmds = append(cmds, cmd)
	default:
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes application keys. It reports false when the key
// should go to the focused child.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	// Ctrl+C always quits no matter where in the application you are.
	if key.Matches(msg, m.keys.Quit) {
		return m.quit(), true
	}

	if m.state == statePicking {
		switch msg.String() {
		case "esc":
			m.closePicker()
			return nil, true
		case "enter":
			if v, ok := m.picker.selected(); ok {
				m.voiceID = v.ID
				m.closePicker()
				return m.showStatusMessage("voice " + v.ID), true
			}
			return nil, true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Stop):
		return m.stop(), true

	case key.Matches(msg, m.keys.Speak):
		return m.speak(), true

	case key.Matches(msg, m.keys.Pause):
		if m.speech != ttypes.StateSpeaking && m.speech != ttypes.StatePaused {
			return nil, true
		}
		return togglePauseCmd(m.deps.Controller), true

	case key.Matches(msg, m.keys.Export):
		return m.startExport(), true

	case key.Matches(msg, m.keys.CopyURL):
		if m.manualURL == "" {
			return nil, true
		}
		// Copy using OSC 52
		termenv.Copy(m.manualURL)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(m.manualURL)
		return m.showStatusMessage("Copied link"), true

	case key.Matches(msg, m.keys.Voices):
		m.state = statePicking
		m.editor.Blur()
		cmd := m.picker.open()
		m.setSize()
		return cmd, true

	case key.Matches(msg, m.keys.Refresh):
		return loadVoicesCmd(m.deps.Controller, true), true

	case key.Matches(msg, m.keys.Faster):
		m.tuner.FasterRate()
		return m.showStatusMessage(m.tuner.Display()), true
	case key.Matches(msg, m.keys.Slower):
		m.tuner.SlowerRate()
		return m.showStatusMessage(m.tuner.Display()), true
	case key.Matches(msg, m.keys.PitchUp):
		m.tuner.HigherPitch()
		return m.showStatusMessage(m.tuner.Display()), true
	case key.Matches(msg, m.keys.PitchDown):
		m.tuner.LowerPitch()
		return m.showStatusMessage(m.tuner.Display()), true
	case key.Matches(msg, m.keys.Louder):
		m.tuner.Louder()
		return m.showStatusMessage(m.tuner.Display()), true
	case key.Matches(msg, m.keys.Quieter):
		m.tuner.Quieter()
		return m.showStatusMessage(m.tuner.Display()), true

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.setSize()
		return nil, true
	}
	return nil, false
}

func (m *model) speak() tea.Cmd {
	text := strings.TrimSpace(m.editor.Value())
	if text == "" {
		m.notify(tts.NewTTSError(tts.ErrorCodeInvalidInput, "nothing to speak", nil))
		return nil
	}
	m.clearNotification()

	req := ttypes.SpeechRequest{
		Text:    text,
		VoiceID: m.voiceID,
		Rate:    m.tuner.Rate(),
		Pitch:   m.tuner.Pitch(),
		Volume:  m.tuner.Volume(),
	}
	log.Debug("Speaking", "chars", len(text), "voice", req.VoiceID, "params", m.tuner.Display())
	return speakCmd(m.deps.Controller, req)
}

// stop cancels whatever is running: an export, then speech. With nothing
// running it dismisses the notification.
// stop silences the live utterance first. An export only stops when
// nothing is speaking.
func (m *model) stop() tea.Cmd {
	if m.speech == ttypes.StateSpeaking || m.speech == ttypes.StatePaused || m.speech == ttypes.StatePending {
		return cancelCmd(m.deps.Controller)
	}
	if m.exporting && m.cancelExport != nil {
		m.cancelExport()
		return nil
	}
	m.clearNotification()
	return nil
}

func (m *model) startExport() tea.Cmd {
	if m.exporting {
		return nil
	}
	if m.deps.Exporter == nil || m.deps.Saver == nil {
		m.notify(fmt.Errorf("export is not available"))
		return nil
	}
	text := strings.TrimSpace(m.editor.Value())
	if text == "" {
		m.notify(tts.NewTTSError(tts.ErrorCodeInvalidInput, "nothing to export", nil))
		return nil
	}
	m.clearNotification()

	ctx, cancel := context.WithCancel(context.Background())
	m.exporting = true
	m.cancelExport = cancel
	m.lastAttempt = nil
	m.attempts = 0

	log.Debug("Exporting", "chars", len(text), "lang", m.common.cfg.Language)
	return tea.Batch(
		m.spinner.Tick,
		exportCmd(ctx, m.deps.Exporter, m.deps.Saver, text, m.common.cfg.Language),
	)
}

func (m *model) finishExport(msg exportDoneMsg) tea.Cmd {
	m.exporting = false
	if m.cancelExport != nil {
		m.cancelExport()
		m.cancelExport = nil
	}

	if msg.err != nil {
		if tts.CodeOf(msg.err) == tts.ErrorCodeCanceled {
			return m.showStatusMessage("Export canceled")
		}
		log.Error("export failed", "error", msg.err)
		m.notify(msg.err)
		return nil
	}

	log.Info("Exported", "path", msg.path, "summary", msg.result.Summary())
	return m.showStatusMessage("Saved " + msg.path + " (" + msg.result.Summary() + ")")
}

func (m *model) handleEvent(ev ttypes.UtteranceEvent) {
	log.Debug("Utterance event", "id", ev.UtteranceID, "event", ev.Type, "err", ev.Err)

	switch ev.Type {
	case ttypes.EventStarted, ttypes.EventResumed:
		m.speech = ttypes.StateSpeaking
	case ttypes.EventPaused:
		m.speech = ttypes.StatePaused
	case ttypes.EventEnded, ttypes.EventCanceled:
		m.speech = ttypes.StateIdle
	case ttypes.EventError:
		m.speech = ttypes.StateError
		m.notify(ev.Err)
	}
}

func (m *model) notify(err error) {
	m.notification = tts.Notify(err)
	m.manualURL = m.notification.ManualURL
	m.setSize()
}

func (m *model) clearNotification() {
	m.notification = tts.Notification{}
	m.manualURL = ""
	m.setSize()
}

func (m *model) closePicker() {
	m.picker.close()
	m.state = stateEditing
	m.editor.Focus()
	m.setSize()
}

func (m *model) showStatusMessage(s string) tea.Cmd {
	m.statusSeq++
	m.statusMessage = s
	return waitForStatusMessageTimeout(m.statusSeq)
}

func (m *model) quit() tea.Cmd {
	if m.cancelExport != nil {
		m.cancelExport()
	}
	if m.deps.Controller != nil {
		_ = m.deps.Controller.Cancel()
	}
	return tea.Quit
}

// setSize lays the editor out in the space left by the other views.
func (m *model) setSize() {
	w, h := m.common.width, m.common.height
	if w == 0 || h == 0 {
		return
	}

	used := 1 + 1 // header and status bar
	if m.state == statePicking {
		used += lineCount(m.picker.view(m.voiceID)) + 1
	}
	if n := m.notificationView(); n != "" {
		used += lineCount(n)
	}
	if m.showHelp {
		used += lineCount(m.helpView())
	}

	m.editor.SetWidth(w)
	m.editor.SetHeight(max(3, h-used))
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	b.WriteString(m.headerView() + "\n")
	b.WriteString(m.editor.View() + "\n")
	if m.state == statePicking {
		b.WriteString(m.picker.view(m.voiceID) + "\n")
	}
	if n := m.notificationView(); n != "" {
		b.WriteString(n + "\n")
	}
	m.statusBarView(&b)
	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m model) headerView() string {
	voice := m.voiceID
	if voice == "" {
		voice = "default voice"
	}
	return logoView() + " " + subtleStyle.Render(m.common.cfg.Engine+" · "+voice+" · "+m.common.cfg.Language)
}

func (m model) notificationView() string {
	n := m.notification
	if n.Kind == tts.NotifyNone {
		return ""
	}

	color := red
	switch n.Kind {
	case tts.NotifyInput:
		color = amber
	case tts.NotifyExport:
		color = fuchsia
	}

	width := max(20, m.common.width-4)
	body := selectedStyle.Foreground(color).Render(n.Title)
	if n.Message != "" {
		body += "\n" + n.Message
	}
	if n.ManualURL != "" {
		body += "\n" + subtleStyle.Render("ctrl+y copies the link · esc dismisses")
	}
	return notificationStyle.BorderForeground(color).Width(width).Render(body)
}

func (m model) helpView() string {
	m.help.Width = m.common.width
	m.help.ShowAll = true
	return m.help.View(m.keys)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
