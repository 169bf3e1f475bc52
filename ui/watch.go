package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/voxfree/voxfree/internal/tts"
)

// configReloadedMsg carries the configuration re-read after the config file
// changed on disk.
type configReloadedMsg struct {
	cfg tts.Config
	err error
}

// WatchConfig reloads the speech defaults into the running program whenever
// the config file is written. It does nothing when no config file is in use.
func WatchConfig(p *tea.Program, load func() (tts.Config, error)) {
	file := viper.ConfigFileUsed()
	if file == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Debug("fsnotify event", "file", e.Name, "event", e.Op)
		cfg, err := load()
		p.Send(configReloadedMsg{cfg: cfg, err: err})
	})
	viper.WatchConfig()
	log.Info("watching config", "file", file)
}

// reloadConfig applies new speech defaults. The engine, limits and export
// settings stay as they were at startup.
func (m *model) reloadConfig(msg configReloadedMsg) tea.Cmd {
	if msg.err != nil {
		log.Error("config reload failed", "error", msg.err)
		return m.showStatusMessage("Config not reloaded: " + msg.err.Error())
	}

	old := m.common.cfg
	m.common.cfg.Apply(msg.cfg)
	m.common.cfg.Engine = old.Engine
	m.common.cfg.MaxTextLength = old.MaxTextLength

	m.tuner.Set(msg.cfg.Speech.Rate, msg.cfg.Speech.Pitch, msg.cfg.Speech.Volume)
	if msg.cfg.Speech.Voice != old.Voice {
		m.voiceID = msg.cfg.Speech.Voice
	}

	log.Debug("config reloaded", "voice", m.voiceID, "params", m.tuner.Display())
	return m.showStatusMessage("Config reloaded")
}
