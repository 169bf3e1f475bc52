package audio

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// PlayerState represents the current state of the player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrPlayerClosed is returned by operations on a closed player
	ErrPlayerClosed = errors.New("player is closed")

	// ErrEmptyAudio is returned when Play is given no samples
	ErrEmptyAudio = errors.New("audio data is empty")
)

// oto allows a single context per process; every Player shares it.
var (
	sharedMu      sync.Mutex
	sharedContext *oto.Context
	sharedFormat  PlayerConfig
)

// Player implements ttypes.AudioPlayer on top of oto.
type Player struct {
	context *oto.Context

	// current playback; stream keeps the PCM alive while oto reads from it
	player *oto.Player
	stream *bytes.Reader
	done   chan struct{}
	stopCh chan struct{}

	state  atomic.Int32  // PlayerState
	volume atomic.Uint64 // float64 bits

	startTime  time.Time
	pausedAt   time.Time
	totalPause time.Duration
	duration   time.Duration

	mu      sync.Mutex
	stateMu sync.Mutex

	config       PlayerConfig
	pollInterval time.Duration
	logger       *log.Logger
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // Hz
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // 16 bits per sample
	BufferSize int // bytes
}

// DefaultPlayerConfig returns the default player configuration,
// matching what espeak-ng writes.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 22050,
		Channels:   1,
		BitDepth:   16,
		BufferSize: 4096,
	}
}

// NewPlayer creates a new audio player with the specified configuration.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, err := acquireContext(config)
	if err != nil {
		return nil, err
	}

	player := &Player{
		context:      ctx,
		config:       config,
		pollInterval: 20 * time.Millisecond,
		logger:       log.Default().WithPrefix("audio"),
	}
	player.state.Store(int32(StateStopped))
	player.storeVolume(1.0)

	return player, nil
}

func acquireContext(config PlayerConfig) (*oto.Context, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedContext != nil {
		if sharedFormat.SampleRate != config.SampleRate || sharedFormat.Channels != config.Channels {
			return nil, fmt.Errorf("audio device already opened at %d Hz/%d ch, cannot reopen at %d Hz/%d ch",
				sharedFormat.SampleRate, sharedFormat.Channels, config.SampleRate, config.Channels)
		}
		return sharedContext, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*2),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	sharedContext = ctx
	sharedFormat = config
	return ctx, nil
}

func validateConfig(config PlayerConfig) error {
	switch config.SampleRate {
	case 8000, 16000, 22050, 24000, 44100, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d Hz", config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}

	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}

	return nil
}

// Play starts playback of 16-bit little-endian PCM. Any current playback is
// stopped first. The returned channel is closed when playback finishes or
// is stopped.
func (p *Player) Play(pcm []byte) (<-chan struct{}, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if PlayerState(p.state.Load()) == StateClosed {
		return nil, ErrPlayerClosed
	}

	p.stopInternal()

	data := make([]byte, len(pcm))
	copy(data, pcm)
	stream := bytes.NewReader(data)

	player := p.context.NewPlayer(stream)
	if player == nil {
		return nil, errors.New("failed to create oto player")
	}
	player.SetVolume(p.loadVolume())

	done := make(chan struct{})
	stopCh := make(chan struct{})

	p.mu.Lock()
	p.player = player
	p.stream = stream
	p.done = done
	p.stopCh = stopCh
	p.startTime = time.Now()
	p.totalPause = 0
	p.duration = Duration(len(data), p.config.SampleRate, p.config.Channels)
	p.mu.Unlock()

	player.Play()
	p.state.Store(int32(StatePlaying))

	go p.watch(player, done, stopCh)

	p.logger.Debug("Playback started", "bytes", len(data), "duration", p.duration)
	return done, nil
}

// watch closes done once oto has drained the stream.
func (p *Player) watch(player *oto.Player, done, stopCh chan struct{}) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		if PlayerState(p.state.Load()) != StatePlaying {
			continue
		}
		if player.IsPlaying() {
			continue
		}

		p.stateMu.Lock()
		p.mu.Lock()
		current := p.player == player
		p.mu.Unlock()
		if current {
			p.stopInternal()
		}
		p.stateMu.Unlock()
		return
	}
}

// Pause pauses the current playback.
func (p *Player) Pause() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if s := PlayerState(p.state.Load()); s != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", s)
	}

	p.mu.Lock()
	if p.player != nil {
		p.player.Pause()
	}
	p.pausedAt = time.Now()
	p.mu.Unlock()

	p.state.Store(int32(StatePaused))
	return nil
}

// Resume resumes paused playback.
func (p *Player) Resume() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if s := PlayerState(p.state.Load()); s != StatePaused {
		return fmt.Errorf("cannot resume: player is %s", s)
	}

	p.mu.Lock()
	if p.player != nil {
		p.player.Play()
	}
	p.totalPause += time.Since(p.pausedAt)
	p.mu.Unlock()

	p.state.Store(int32(StatePlaying))
	return nil
}

// Stop stops playback. Stopping an idle player is a no-op.
func (p *Player) Stop() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.stopInternal()
	return nil
}

// stopInternal must be called with stateMu held.
func (p *Player) stopInternal() {
	s := PlayerState(p.state.Load())
	if s == StateStopped || s == StateClosed {
		return
	}

	p.mu.Lock()
	if p.player != nil {
		p.player.Pause()
		if err := p.player.Close(); err != nil {
			p.logger.Debug("Closing oto player", "err", err)
		}
		p.player = nil
	}
	p.stream = nil
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	p.mu.Unlock()

	p.state.Store(int32(StateStopped))
}

// IsPlaying returns whether audio is currently playing.
func (p *Player) IsPlaying() bool {
	return PlayerState(p.state.Load()) == StatePlaying
}

// Position returns how much of the current audio has been played.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch PlayerState(p.state.Load()) {
	case StatePlaying:
		pos := time.Since(p.startTime) - p.totalPause
		return min(pos, p.duration)
	case StatePaused:
		return min(p.pausedAt.Sub(p.startTime)-p.totalPause, p.duration)
	default:
		return 0
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 || math.IsNaN(volume) {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	p.storeVolume(volume)

	p.mu.Lock()
	if p.player != nil {
		p.player.SetVolume(volume)
	}
	p.mu.Unlock()

	return nil
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	return p.loadVolume()
}

func (p *Player) storeVolume(v float64) {
	p.volume.Store(math.Float64bits(v))
}

func (p *Player) loadVolume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// State returns the current player state.
func (p *Player) State() PlayerState {
	return PlayerState(p.state.Load())
}

// Close stops playback and marks the player unusable. The shared oto
// context stays open for other players.
func (p *Player) Close() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.stopInternal()
	p.state.Store(int32(StateClosed))
	return nil
}

// Duration returns the play time of n bytes of 16-bit PCM.
func Duration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := n / (channels * 2)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
