package tts

import (
	"fmt"
	"sync"
)

// stepper moves a value through a fixed ladder of steps while still
// accepting arbitrary in-range values from configuration.
type stepper struct {
	current float64
	steps   []float64
}

func (s *stepper) increase() float64 {
	for _, v := range s.steps {
		if v > s.current {
			s.current = v
			return s.current
		}
	}
	// Already at maximum
	return s.current
}

func (s *stepper) decrease() float64 {
	for i := len(s.steps) - 1; i >= 0; i-- {
		if s.steps[i] < s.current {
			s.current = s.steps[i]
			return s.current
		}
	}
	// Already at minimum
	return s.current
}

// Tuner holds the user's rate, pitch and volume and steps them on key presses.
// Values are always kept inside their valid ranges.
type Tuner struct {
	rate   stepper
	pitch  stepper
	volume stepper
	mu     sync.RWMutex
}

// NewTuner creates a tuner starting from the given (clamped) values.
func NewTuner(rate, pitch, volume float64) *Tuner {
	return &Tuner{
		rate: stepper{
			current: ClampRate(rate),
			steps:   []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0},
		},
		pitch: stepper{
			current: ClampPitch(pitch),
			steps:   []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0},
		},
		volume: stepper{
			current: ClampVolume(volume),
			steps:   []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	}
}

// Rate returns the current rate multiplier.
func (t *Tuner) Rate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rate.current
}

// Pitch returns the current pitch multiplier.
func (t *Tuner) Pitch() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pitch.current
}

// Volume returns the current volume.
func (t *Tuner) Volume() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.volume.current
}

// Set replaces all three values, clamping each.
func (t *Tuner) Set(rate, pitch, volume float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rate.current = ClampRate(rate)
	t.pitch.current = ClampPitch(pitch)
	t.volume.current = ClampVolume(volume)
}

// FasterRate steps the rate up. Returns the new value.
func (t *Tuner) FasterRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate.increase()
}

// SlowerRate steps the rate down. Returns the new value.
func (t *Tuner) SlowerRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate.decrease()
}

// HigherPitch steps the pitch up. Returns the new value.
func (t *Tuner) HigherPitch() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pitch.increase()
}

// LowerPitch steps the pitch down. Returns the new value.
func (t *Tuner) LowerPitch() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pitch.decrease()
}

// Louder steps the volume up. Returns the new value.
func (t *Tuner) Louder() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume.increase()
}

// Quieter steps the volume down. Returns the new value.
func (t *Tuner) Quieter() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume.decrease()
}

// Display returns a short human-readable summary, e.g. "1.25x · pitch 1.00 · vol 80%".
func (t *Tuner) Display() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fmt.Sprintf("%.2fx · pitch %.2f · vol %d%%",
		t.rate.current, t.pitch.current, int(t.volume.current*100+0.5))
}
