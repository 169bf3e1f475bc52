package ui

import (
	"time"

	"github.com/voxfree/voxfree/internal/tts"
)

// Config contains TUI-specific configuration.
type Config struct {
	AltScreen      bool          `env:"VOXFREE_ALT_SCREEN"      envDefault:"true"`
	EnableMouse    bool          `env:"VOXFREE_MOUSE"           envDefault:"false"`
	FilterDebounce time.Duration `env:"VOXFREE_FILTER_DEBOUNCE" envDefault:"300ms"`

	// Speech defaults, taken from the application configuration
	Engine        string
	Voice         string
	Language      string
	Rate          float64
	Pitch         float64
	Volume        float64
	MaxTextLength int
}

// Apply copies the speech defaults and limits from c.
func (cfg *Config) Apply(c tts.Config) {
	cfg.Engine = c.Speech.Engine
	cfg.Voice = c.Speech.Voice
	cfg.Language = c.Speech.Language
	cfg.Rate = c.Speech.Rate
	cfg.Pitch = c.Speech.Pitch
	cfg.Volume = c.Speech.Volume
	cfg.MaxTextLength = c.Limits.MaxTextLength
}
