package engines

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxfree/voxfree/internal/audio"
	"github.com/voxfree/voxfree/internal/ttypes"
)

// MockSynthesizer produces silence sized like real speech. It backs the
// "mock" engine and engine tests.
type MockSynthesizer struct {
	sampleRate int
	delay      time.Duration

	mu     sync.Mutex
	err    error
	voices []ttypes.Voice

	calls atomic.Int64
}

// MockVoices are the voices offered by the mock engine.
var MockVoices = []ttypes.Voice{
	{ID: "mock-en", Name: "Mock English", Language: "en-US", Gender: "female", Default: true},
	{ID: "mock-de", Name: "Mock German", Language: "de-DE", Gender: "male"},
	{ID: "mock-fr", Name: "Mock French", Language: "fr-FR"},
}

// NewMockSynthesizer creates a mock synthesizer writing at sampleRate.
func NewMockSynthesizer(sampleRate int) *MockSynthesizer {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultPlayerConfig().SampleRate
	}
	voices := make([]ttypes.Voice, len(MockVoices))
	copy(voices, MockVoices)
	return &MockSynthesizer{sampleRate: sampleRate, voices: voices}
}

// SetError makes subsequent Synthesize calls fail with err.
func (m *MockSynthesizer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay simulates synthesis latency.
func (m *MockSynthesizer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times Synthesize was called.
func (m *MockSynthesizer) Calls() int {
	return int(m.calls.Load())
}

// Name implements Synthesizer.
func (m *MockSynthesizer) Name() string {
	return "mock"
}

// Synthesize returns a silent WAV lasting roughly as long as req would
// take to say.
func (m *MockSynthesizer) Synthesize(ctx context.Context, req ttypes.SpeechRequest) ([]byte, error) {
	m.mu.Lock()
	err, delay := m.err, m.delay
	m.mu.Unlock()
	m.calls.Add(1)

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	d := SpeechDuration(req.Text, req.Rate)
	samples := int(d.Seconds() * float64(m.sampleRate))
	return audio.EncodeWAV(make([]byte, samples*2), m.sampleRate, 1), nil
}

// Voices implements Synthesizer.
func (m *MockSynthesizer) Voices(context.Context) ([]ttypes.Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ttypes.Voice, len(m.voices))
	copy(out, m.voices)
	return out, nil
}

// SpeechDuration estimates how long text takes to speak at rate.
func SpeechDuration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := max(1, len(strings.Fields(text)))
	minutes := float64(words) / (espeakBaseWPM * rate)
	return time.Duration(minutes * float64(time.Minute))
}
