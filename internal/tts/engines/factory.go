package engines

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/voxfree/voxfree/internal/audio"
	"github.com/voxfree/voxfree/internal/ttypes"
)

// Options configures an engine built by New.
type Options struct {
	// Binary is the espeak executable, already resolved
	Binary       string
	DefaultVoice string
	Timeout      time.Duration
	SampleRate   int

	// Player overrides the audio device; nil opens the default device
	// for espeak and a silent mock player for the mock engine.
	Player ttypes.AudioPlayer

	Cache  ttypes.AudioCache
	Logger *log.Logger
}

// New builds the voice engine for kind.
func New(kind ttypes.EngineType, o Options) (*PlaybackEngine, error) {
	if o.SampleRate == 0 {
		o.SampleRate = audio.DefaultPlayerConfig().SampleRate
	}

	var synth Synthesizer
	switch kind {
	case ttypes.EngineEspeak:
		s, err := NewEspeakSynthesizer(EspeakConfig{
			Binary:       o.Binary,
			DefaultVoice: o.DefaultVoice,
			Timeout:      o.Timeout,
		})
		if err != nil {
			return nil, err
		}
		synth = s
		// espeak output has a fixed format
		o.SampleRate = EspeakSampleRate

	case ttypes.EngineMock:
		synth = NewMockSynthesizer(o.SampleRate)
		if o.Player == nil {
			mp := audio.DefaultMockPlayer()
			mp.SetDelayFactor(1)
			o.Player = mp
		}

	default:
		return nil, fmt.Errorf("unsupported engine %q", kind)
	}

	if o.Player == nil {
		cfg := audio.DefaultPlayerConfig()
		cfg.SampleRate = o.SampleRate
		p, err := audio.NewPlayer(cfg)
		if err != nil {
			return nil, fmt.Errorf("open audio device: %w", err)
		}
		o.Player = p
	}

	return NewPlaybackEngine(synth, o.Player,
		WithCache(o.Cache),
		WithLogger(o.Logger),
		WithSampleRate(o.SampleRate),
	)
}
