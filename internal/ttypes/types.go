// Package ttypes contains shared types and interfaces for the speech system.
// This package is used to break import cycles between tts, engines, audio and export packages.
package ttypes

import (
	"context"
	"time"
)

// Speech parameter bounds.
const (
	MinRate   = 0.5
	MaxRate   = 2.0
	MinPitch  = 0.5
	MaxPitch  = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

// EngineType represents the voice engine selection
type EngineType string

const (
	// EngineEspeak represents the on-device espeak-ng / espeak engine
	EngineEspeak EngineType = "espeak"

	// EngineMock represents the in-process mock engine (testing and demos)
	EngineMock EngineType = "mock"

	// EngineNone represents no engine selected
	EngineNone EngineType = ""
)

// State represents the current state of the utterance controller
type State int

const (
	// StateIdle indicates nothing is being spoken
	StateIdle State = iota

	// StatePending indicates an utterance was submitted but has not started yet
	StatePending

	// StateSpeaking indicates audio is being produced
	StateSpeaking

	// StatePaused indicates the active utterance is paused
	StatePaused

	// StateError indicates the last utterance failed
	StateError
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Voice describes one voice offered by a voice engine.
type Voice struct {
	ID       string // Engine-specific identifier passed back in SpeechRequest.VoiceID
	Name     string // Human readable name
	Language string // BCP 47 language tag (e.g. "en-US")
	Gender   string // Optional, engine reported
	Default  bool   // Whether the engine uses this voice when none is selected
}

// SpeechRequest is one speak or export action.
// It is immutable once submitted to the utterance controller.
type SpeechRequest struct {
	// Text is the content to speak; non-empty, at most the configured max length
	Text string

	// VoiceID references an entry of the engine's voice list; empty selects the default
	VoiceID string

	// Rate is the speaking rate multiplier, clamped to [0.5, 2.0]
	Rate float64

	// Pitch is the pitch multiplier, clamped to [0.5, 2.0]
	Pitch float64

	// Volume is the output volume, clamped to [0.0, 1.0]
	Volume float64
}

// TextChunk is a bounded-length slice of the input text.
type TextChunk struct {
	// Index is the 0-based sequence position; it defines concatenation order
	Index int

	// Content is the trimmed, non-empty chunk text
	Content string

	// SizeBound is the maximum length the chunk was cut against
	SizeBound int
}

// EventType identifies an utterance lifecycle signal.
type EventType int

const (
	// EventStarted is emitted once audio output begins
	EventStarted EventType = iota

	// EventEnded is emitted when the utterance finishes normally
	EventEnded

	// EventError is emitted when the engine fails
	EventError

	// EventPaused is emitted when output is paused
	EventPaused

	// EventResumed is emitted when output resumes
	EventResumed

	// EventCanceled is emitted when the utterance was canceled by the caller
	EventCanceled
)

// String returns the string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further events follow this one.
func (e EventType) IsTerminal() bool {
	return e == EventEnded || e == EventError || e == EventCanceled
}

// UtteranceEvent is a lifecycle signal relayed by the utterance controller.
type UtteranceEvent struct {
	UtteranceID string
	Type        EventType
	Err         error // Set for EventError
	At          time.Time
}

// EmitFunc receives lifecycle signals from a voice engine.
type EmitFunc func(t EventType, err error)

// VoiceEngine is the on-device speech capability.
//
// Speak must return once rendering has been scheduled; the engine reports
// progress through emit from any goroutine. Cancel stops output immediately
// and is safe to call when nothing is playing.
type VoiceEngine interface {
	// Voices enumerates the available voices. The list may change at runtime.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak starts rendering req.
	Speak(ctx context.Context, req SpeechRequest, emit EmitFunc) error

	// Pause pauses the active utterance.
	Pause() error

	// Resume resumes a paused utterance.
	Resume() error

	// Cancel stops any in-flight utterance.
	Cancel() error

	// Close releases engine resources.
	Close() error
}

// AudioPlayer defines the contract for PCM playback used by on-device engines.
type AudioPlayer interface {
	// Play starts playback of PCM audio data and returns a channel closed when playback ends.
	Play(pcm []byte) (<-chan struct{}, error)

	// Pause pauses the current playback.
	Pause() error

	// Resume resumes paused playback.
	Resume() error

	// Stop stops playback.
	Stop() error

	// IsPlaying returns whether audio is currently playing.
	IsPlaying() bool

	// SetVolume sets the playback volume (0.0 to 1.0).
	SetVolume(volume float64) error

	// Close releases audio device and resources.
	Close() error
}

// AudioCache defines the contract for caching fetched chunk audio.
type AudioCache interface {
	// Get retrieves cached audio for the given key.
	Get(key string) ([]byte, bool)

	// Put stores audio data with the given key.
	Put(key string, audio []byte) error

	// Clear removes all cached entries.
	Clear() error

	// Close flushes and releases the cache.
	Close() error
}
