package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/voxfree/voxfree/internal/audio"
	"github.com/voxfree/voxfree/internal/cache"
	"github.com/voxfree/voxfree/internal/ttypes"
)

// Synthesizer renders a request to WAV audio and lists the voices it offers.
type Synthesizer interface {
	// Name identifies the synthesizer in logs and cache keys
	Name() string

	Synthesize(ctx context.Context, req ttypes.SpeechRequest) ([]byte, error)

	Voices(ctx context.Context) ([]ttypes.Voice, error)
}

// ErrSampleRateMismatch is returned when the synthesizer output does not
// match the format the audio device was opened with.
var ErrSampleRateMismatch = errors.New("synthesizer sample rate does not match audio device")

// PlaybackEngine implements ttypes.VoiceEngine by synthesizing the whole
// utterance and playing it through an AudioPlayer. Pause and resume are
// handled by the player.
type PlaybackEngine struct {
	synth      Synthesizer
	player     ttypes.AudioPlayer
	cache      ttypes.AudioCache
	sampleRate int
	logger     *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	job    uint64 // id of the active utterance, 0 when idle
	nextID uint64
	jobs   sync.WaitGroup
}

// EngineOption configures a PlaybackEngine.
type EngineOption func(*PlaybackEngine)

// WithCache caches synthesized audio so repeated text is not re-rendered.
func WithCache(c ttypes.AudioCache) EngineOption {
	return func(e *PlaybackEngine) {
		e.cache = c
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *PlaybackEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSampleRate sets the rate the player was opened with. Synthesizer
// output at a different rate is rejected.
func WithSampleRate(rate int) EngineOption {
	return func(e *PlaybackEngine) {
		e.sampleRate = rate
	}
}

// NewPlaybackEngine creates an engine that renders with synth and plays
// through player.
func NewPlaybackEngine(synth Synthesizer, player ttypes.AudioPlayer, opts ...EngineOption) (*PlaybackEngine, error) {
	if synth == nil {
		return nil, errors.New("synthesizer is required")
	}
	if player == nil {
		return nil, errors.New("audio player is required")
	}

	e := &PlaybackEngine{
		synth:      synth,
		player:     player,
		sampleRate: audio.DefaultPlayerConfig().SampleRate,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Voices lists the synthesizer's voices.
func (e *PlaybackEngine) Voices(ctx context.Context) ([]ttypes.Voice, error) {
	return e.synth.Voices(ctx)
}

// Speak renders req in the background and reports progress through emit.
func (e *PlaybackEngine) Speak(ctx context.Context, req ttypes.SpeechRequest, emit ttypes.EmitFunc) error {
	if emit == nil {
		return errors.New("emit callback is required")
	}

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	jobCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.nextID++
	id := e.nextID
	e.job = id
	e.mu.Unlock()

	if err := e.player.SetVolume(req.Volume); err != nil {
		cancel()
		return fmt.Errorf("set volume: %w", err)
	}

	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		defer cancel()
		e.run(jobCtx, id, req, emit)
	}()

	return nil
}

func (e *PlaybackEngine) run(ctx context.Context, id uint64, req ttypes.SpeechRequest, emit ttypes.EmitFunc) {
	pcm, err := e.render(ctx, req)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		emit(ttypes.EventError, err)
		return
	}

	// hold mu so a concurrent Cancel or newer Speak cannot be overtaken
	e.mu.Lock()
	if e.job != id {
		e.mu.Unlock()
		return
	}
	done, err := e.player.Play(pcm)
	e.mu.Unlock()
	if err != nil {
		emit(ttypes.EventError, fmt.Errorf("playback: %w", err))
		return
	}
	emit(ttypes.EventStarted, nil)

	select {
	case <-done:
		if ctx.Err() == nil {
			emit(ttypes.EventEnded, nil)
		}
	case <-ctx.Done():
		// only stop the player if a newer utterance has not taken it over
		e.mu.Lock()
		active := e.job == id
		e.mu.Unlock()
		if active {
			_ = e.player.Stop()
		}
	}
}

// render returns PCM for req, from the cache when possible.
func (e *PlaybackEngine) render(ctx context.Context, req ttypes.SpeechRequest) ([]byte, error) {
	key := cache.GenerateCacheKey(e.synth.Name(), req.VoiceID,
		fmt.Sprintf("%.2f", req.Rate), fmt.Sprintf("%.2f", req.Pitch), req.Text)

	if e.cache != nil {
		if pcm, ok := e.cache.Get(key); ok {
			e.logger.Debug("Speech cache hit", "key", key[:12])
			return pcm, nil
		}
	}

	data, err := e.synth.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	wav, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%s output: %w", e.synth.Name(), err)
	}
	if wav.SampleRate != e.sampleRate || wav.Channels != 1 || wav.BitDepth != 16 {
		return nil, fmt.Errorf("%w: got %d Hz/%d ch/%d bit, want %d Hz mono 16 bit",
			ErrSampleRateMismatch, wav.SampleRate, wav.Channels, wav.BitDepth, e.sampleRate)
	}
	if len(wav.PCM) == 0 {
		return nil, fmt.Errorf("%s produced no audio", e.synth.Name())
	}

	if e.cache != nil {
		if err := e.cache.Put(key, wav.PCM); err != nil {
			e.logger.Debug("Speech cache put failed", "err", err)
		}
	}

	e.logger.Debug("Synthesized", "engine", e.synth.Name(), "duration", wav.Duration())
	return wav.PCM, nil
}

// Pause pauses playback.
func (e *PlaybackEngine) Pause() error {
	return e.player.Pause()
}

// Resume resumes playback.
func (e *PlaybackEngine) Resume() error {
	return e.player.Resume()
}

// Cancel stops synthesis and playback. It is safe to call when idle.
func (e *PlaybackEngine) Cancel() error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.job = 0
	e.mu.Unlock()

	return e.player.Stop()
}

// Close cancels any utterance, waits for background work and closes the player.
func (e *PlaybackEngine) Close() error {
	_ = e.Cancel()
	e.jobs.Wait()
	return e.player.Close()
}
