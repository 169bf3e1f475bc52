package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockPlayer implements ttypes.AudioPlayer for testing purposes.
// It simulates audio playback without producing sound. With a zero delay
// factor playback only ends when Finish or Stop is called.
type MockPlayer struct {
	mu sync.Mutex

	state  PlayerState
	volume float64
	audio  []byte

	done      chan struct{}
	timer     *time.Timer
	remaining time.Duration
	resumedAt time.Time

	sampleRate  int
	delayFactor float64
	playErr     error

	callbacks MockCallbacks

	playCount   atomic.Int64
	pauseCount  atomic.Int64
	resumeCount atomic.Int64
	stopCount   atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay   func(audio []byte)
	OnPause  func()
	OnResume func()
	OnStop   func()
	OnClose  func()
}

// DefaultMockPlayer creates a mock player whose playback never ends on its own.
func DefaultMockPlayer() *MockPlayer {
	return &MockPlayer{
		volume:     1.0,
		sampleRate: 22050,
	}
}

// NewMockPlayer creates a new mock player with custom callbacks.
func NewMockPlayer(callbacks MockCallbacks) *MockPlayer {
	mp := DefaultMockPlayer()
	mp.callbacks = callbacks
	return mp
}

// SetDelayFactor makes playback finish by itself after the audio's real
// duration multiplied by factor. Zero disables automatic completion.
func (mp *MockPlayer) SetDelayFactor(factor float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.delayFactor = factor
}

// SetPlayError makes subsequent Play calls fail with err.
func (mp *MockPlayer) SetPlayError(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.playErr = err
}

// Play starts simulated playback.
func (mp *MockPlayer) Play(pcm []byte) (<-chan struct{}, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}

	mp.mu.Lock()
	if mp.state == StateClosed {
		mp.mu.Unlock()
		return nil, ErrPlayerClosed
	}
	if mp.playErr != nil {
		err := mp.playErr
		mp.mu.Unlock()
		return nil, err
	}

	mp.stopLocked()

	mp.audio = make([]byte, len(pcm))
	copy(mp.audio, pcm)
	mp.done = make(chan struct{})
	mp.state = StatePlaying
	mp.remaining = time.Duration(float64(Duration(len(pcm), mp.sampleRate, 1)) * mp.delayFactor)
	mp.armLocked()
	done := mp.done
	cb := mp.callbacks.OnPlay
	mp.mu.Unlock()

	mp.playCount.Add(1)
	if cb != nil {
		cb(pcm)
	}
	return done, nil
}

// armLocked starts the completion timer for the remaining play time.
func (mp *MockPlayer) armLocked() {
	if mp.delayFactor <= 0 {
		return
	}
	mp.resumedAt = time.Now()
	done := mp.done
	mp.timer = time.AfterFunc(mp.remaining, func() {
		mp.mu.Lock()
		defer mp.mu.Unlock()
		if mp.done == done && mp.state == StatePlaying {
			mp.finishLocked()
		}
	})
}

// Finish ends the current playback as if the audio ran out.
func (mp *MockPlayer) Finish() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.state == StatePlaying || mp.state == StatePaused {
		mp.finishLocked()
	}
}

func (mp *MockPlayer) finishLocked() {
	if mp.timer != nil {
		mp.timer.Stop()
		mp.timer = nil
	}
	if mp.done != nil {
		close(mp.done)
		mp.done = nil
	}
	mp.audio = nil
	mp.state = StateStopped
}

// Pause pauses the current playback.
func (mp *MockPlayer) Pause() error {
	mp.mu.Lock()
	if mp.state != StatePlaying {
		s := mp.state
		mp.mu.Unlock()
		return fmt.Errorf("cannot pause: player is %s", s)
	}
	if mp.timer != nil {
		mp.timer.Stop()
		mp.timer = nil
		mp.remaining -= time.Since(mp.resumedAt)
		if mp.remaining < 0 {
			mp.remaining = 0
		}
	}
	mp.state = StatePaused
	cb := mp.callbacks.OnPause
	mp.mu.Unlock()

	mp.pauseCount.Add(1)
	if cb != nil {
		cb()
	}
	return nil
}

// Resume resumes paused playback.
func (mp *MockPlayer) Resume() error {
	mp.mu.Lock()
	if mp.state != StatePaused {
		s := mp.state
		mp.mu.Unlock()
		return fmt.Errorf("cannot resume: player is %s", s)
	}
	mp.state = StatePlaying
	mp.armLocked()
	cb := mp.callbacks.OnResume
	mp.mu.Unlock()

	mp.resumeCount.Add(1)
	if cb != nil {
		cb()
	}
	return nil
}

// Stop stops playback.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	stopped := mp.stopLocked()
	cb := mp.callbacks.OnStop
	mp.mu.Unlock()

	if stopped && cb != nil {
		cb()
	}
	return nil
}

func (mp *MockPlayer) stopLocked() bool {
	if mp.state != StatePlaying && mp.state != StatePaused {
		return false
	}
	mp.finishLocked()
	mp.stopCount.Add(1)
	return true
}

// IsPlaying returns whether audio is currently playing.
func (mp *MockPlayer) IsPlaying() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state == StatePlaying
}

// State returns the current player state.
func (mp *MockPlayer) State() PlayerState {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (mp *MockPlayer) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.volume = volume
	return nil
}

// Volume returns the last volume set.
func (mp *MockPlayer) Volume() float64 {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.volume
}

// LastAudio returns a copy of the audio being played.
func (mp *MockPlayer) LastAudio() []byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.audio == nil {
		return nil
	}
	out := make([]byte, len(mp.audio))
	copy(out, mp.audio)
	return out
}

// Close releases the player.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	if mp.state == StateClosed {
		mp.mu.Unlock()
		return errors.New("player already closed")
	}
	mp.stopLocked()
	mp.state = StateClosed
	cb := mp.callbacks.OnClose
	mp.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Counts returns how many times each control was used.
func (mp *MockPlayer) Counts() (plays, pauses, resumes, stops int64) {
	return mp.playCount.Load(), mp.pauseCount.Load(), mp.resumeCount.Load(), mp.stopCount.Load()
}
